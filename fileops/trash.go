package fileops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/ghyeongl/imgview/logging"
)

const trashInfoExt = ".trashinfo"

// Trash is a freedesktop.org trash can: trashed items live in files/ and
// each has a matching info/NAME.trashinfo recording where it came from.
type Trash struct {
	fs   afero.Fs
	root string
	now  func() time.Time
}

// NewTrash returns a trash rooted at root, with a leading ~ expanded.
func NewTrash(fsys afero.Fs, root string) *Trash {
	if expanded, err := homedir.Expand(root); err == nil {
		root = expanded
	}
	return &Trash{fs: fsys, root: root, now: time.Now}
}

func (t *Trash) Root() string { return t.root }

func (t *Trash) filesDir() string { return filepath.Join(t.root, "files") }
func (t *Trash) infoDir() string  { return filepath.Join(t.root, "info") }

// Put moves path into the trash and returns its new location.
func (t *Trash) Put(path string) (string, error) {
	if t.root == "" {
		return "", errors.New("trash directory not configured")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if err := t.fs.MkdirAll(t.filesDir(), 0700); err != nil {
		return "", fmt.Errorf("mkdir trash: %w", err)
	}
	if err := t.fs.MkdirAll(t.infoDir(), 0700); err != nil {
		return "", fmt.Errorf("mkdir trash: %w", err)
	}

	name := t.freeName(filepath.Base(abs))
	infoPath := filepath.Join(t.infoDir(), name+trashInfoExt)
	trashPath := filepath.Join(t.filesDir(), name)

	info := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		(&url.URL{Path: abs}).EscapedPath(), t.now().Format("2006-01-02T15:04:05"))
	if err := afero.WriteFile(t.fs, infoPath, []byte(info), 0600); err != nil {
		return "", fmt.Errorf("write trash info: %w", err)
	}

	if err := t.move(abs, trashPath); err != nil {
		t.fs.Remove(infoPath)
		return "", fmt.Errorf("move to trash: %w", err)
	}

	logging.Sub("fileops").Info("trashed", "path", abs, "to", trashPath)
	return trashPath, nil
}

func (t *Trash) move(src, dst string) error {
	err := t.fs.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	info, serr := t.fs.Stat(src)
	if serr != nil || !info.Mode().IsRegular() {
		return err
	}
	if err := copyFile(context.Background(), t.fs, src, dst); err != nil {
		return err
	}
	return t.fs.Remove(src)
}

// freeName picks a name not yet used in files/ or info/.
func (t *Trash) freeName(base string) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := base
	for i := 1; t.taken(name); i++ {
		name = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	return name
}

func (t *Trash) taken(name string) bool {
	for _, p := range []string{
		filepath.Join(t.filesDir(), name),
		filepath.Join(t.infoDir(), name+trashInfoExt),
	} {
		if _, err := t.fs.Stat(p); !errors.Is(err, fs.ErrNotExist) {
			return true
		}
	}
	return false
}

// Entry is one trashed item as recorded in its .trashinfo file.
type Entry struct {
	Name         string
	OriginalPath string
	DeletedAt    time.Time
}

// List reads every .trashinfo file. Unparseable files are skipped.
func (t *Trash) List() ([]Entry, error) {
	infos, err := afero.ReadDir(t.fs, t.infoDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []Entry
	for _, fi := range infos {
		if !strings.HasSuffix(fi.Name(), trashInfoExt) {
			continue
		}
		data, err := afero.ReadFile(t.fs, filepath.Join(t.infoDir(), fi.Name()))
		if err != nil {
			continue
		}
		e, ok := parseTrashInfo(string(data))
		if !ok {
			continue
		}
		e.Name = strings.TrimSuffix(fi.Name(), trashInfoExt)
		out = append(out, e)
	}
	return out, nil
}

// Restore moves a trashed item back to its original path. An occupied
// original path is refused with ErrDestinationExists.
func (t *Trash) Restore(name string) (string, error) {
	infoPath := filepath.Join(t.infoDir(), name+trashInfoExt)
	data, err := afero.ReadFile(t.fs, infoPath)
	if err != nil {
		return "", opErr("restore", name, ErrNotExist)
	}
	e, ok := parseTrashInfo(string(data))
	if !ok {
		return "", opErr("restore", name, errors.New("malformed trash info"))
	}
	if _, err := t.fs.Stat(e.OriginalPath); err == nil {
		return "", opErr("restore", e.OriginalPath, ErrDestinationExists)
	}
	if err := t.fs.MkdirAll(filepath.Dir(e.OriginalPath), 0755); err != nil {
		return "", opErr("restore", e.OriginalPath, err)
	}
	if err := t.move(filepath.Join(t.filesDir(), name), e.OriginalPath); err != nil {
		return "", opErr("restore", name, err)
	}
	t.fs.Remove(infoPath)
	return e.OriginalPath, nil
}

func parseTrashInfo(data string) (Entry, bool) {
	var e Entry
	for _, line := range strings.Split(data, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "Path":
			p, err := url.PathUnescape(val)
			if err != nil {
				return Entry{}, false
			}
			e.OriginalPath = p
		case "DeletionDate":
			e.DeletedAt, _ = time.ParseInLocation("2006-01-02T15:04:05", val, time.Local)
		}
	}
	return e, e.OriginalPath != ""
}
