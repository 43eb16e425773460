package index

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Entry is one file or directory tracked by the index. Identity is Path.
type Entry struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
	// Symlink is the final link target, empty when Path is not a link.
	Symlink string
}

// Ext returns the lowercase extension without dot, taken from the link
// target when the entry is a symlink.
func (e Entry) Ext() string {
	name := e.Name
	if e.Symlink != "" {
		name = filepath.Base(e.Symlink)
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

const maxLinkHops = 16

// statEntry builds an Entry for path, following symlinks. The returned
// FileInfo describes the final target.
func statEntry(fsys afero.Fs, path string) (Entry, os.FileInfo, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return Entry{}, nil, err
	}
	return Entry{
		Path:    path,
		Name:    filepath.Base(path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
		Symlink: resolveLink(fsys, path),
	}, info, nil
}

// resolveLink follows a symlink chain and returns the final target, or ""
// when path is not a link or the filesystem cannot read links.
func resolveLink(fsys afero.Fs, path string) string {
	lst, ok := fsys.(afero.Lstater)
	if !ok {
		return ""
	}
	lr, ok := fsys.(afero.LinkReader)
	if !ok {
		return ""
	}

	target := ""
	cur := path
	for i := 0; i < maxLinkHops; i++ {
		info, _, err := lst.LstatIfPossible(cur)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			break
		}
		next, err := lr.ReadlinkIfPossible(cur)
		if err != nil {
			break
		}
		if !filepath.IsAbs(next) {
			next = filepath.Join(filepath.Dir(cur), next)
		}
		target = next
		cur = next
	}
	return target
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
