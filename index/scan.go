package index

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ghyeongl/imgview/logging"
)

type scanOptions struct {
	recursive  bool
	dirsMode   bool
	showHidden bool
	exts       map[string]struct{}
	ignore     []*IgnoreList
}

func (o scanOptions) ignored(name string, isDir bool) bool {
	for _, il := range o.ignore {
		if il.IsIgnored(name, isDir) {
			return true
		}
	}
	return false
}

// accept decides whether info (an lstat result for path) belongs in the
// listing and returns the resolved entry.
func (o scanOptions) accept(fsys afero.Fs, path string, info os.FileInfo) (Entry, bool) {
	name := info.Name()
	if !o.showHidden && isHidden(name) {
		return Entry{}, false
	}

	var e Entry
	if info.Mode()&os.ModeSymlink != 0 {
		resolved, target, err := statEntry(fsys, path)
		if err != nil {
			// broken link
			return Entry{}, false
		}
		e, info = resolved, target
	} else {
		e = Entry{
			Path:    path,
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   info.IsDir(),
		}
	}

	if o.ignored(name, e.IsDir) {
		return Entry{}, false
	}
	if o.dirsMode {
		return e, e.IsDir
	}
	if !info.Mode().IsRegular() {
		return Entry{}, false
	}
	_, ok := o.exts[e.Ext()]
	return e, ok
}

// scan lists root according to opts. Only a failure to read root itself is
// an error; unreadable subdirectories of a recursive scan are skipped.
func scan(fsys afero.Fs, root string, opts scanOptions) ([]Entry, error) {
	l := logging.Sub("scanner")
	l.Debug("scan start", "root", root, "recursive", opts.recursive, "dirs", opts.dirsMode)

	var result []Entry

	if !opts.recursive {
		infos, err := afero.ReadDir(fsys, root)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			if e, ok := opts.accept(fsys, filepath.Join(root, info.Name()), info); ok {
				result = append(result, e)
			}
		}
		l.Debug("scan complete", "root", root, "entries", len(result))
		return result, nil
	}

	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			l.Warn("scan walk error", "path", path, "err", err)
			return nil
		}

		// Skip the root itself
		if path == root {
			return nil
		}

		if info.IsDir() {
			name := info.Name()
			if (!opts.showHidden && isHidden(name)) || opts.ignored(name, true) {
				return filepath.SkipDir
			}
		}

		if e, ok := opts.accept(fsys, path, info); ok {
			result = append(result, e)
		}
		return nil
	})

	l.Debug("scan complete", "root", root, "entries", len(result))
	return result, err
}
