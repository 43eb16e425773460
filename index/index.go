package index

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/afero"

	"github.com/ghyeongl/imgview/logging"
	"github.com/ghyeongl/imgview/metrics"
	"github.com/ghyeongl/imgview/notify"
	"github.com/ghyeongl/imgview/settings"
	"github.com/ghyeongl/imgview/watcher"
)

var (
	// ErrEmptyPath is returned by SetDirectory for an empty path.
	ErrEmptyPath = errors.New("empty directory path")
	// ErrNotReadable is returned by SetDirectory when the directory cannot be listed.
	ErrNotReadable = errors.New("directory is not readable")

	errNotDir = errors.New("not a directory")
)

// Source describes how the current listing was produced.
type Source int

const (
	SourceNone Source = iota
	SourceDirectory
	SourceRecursive
)

func (s Source) String() string {
	switch s {
	case SourceDirectory:
		return "directory"
	case SourceRecursive:
		return "recursive"
	}
	return "none"
}

// Options configures a new Index.
type Options struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// Watcher defaults to a no-op watcher.
	Watcher watcher.Watcher
	// Emit receives every change notification, synchronously.
	Emit     func(notify.Event)
	Settings settings.Snapshot
	// Detached indexes do not report entry counts to metrics.
	Detached bool
}

// Index keeps the sorted file and directory lists of one directory.
// It is not safe for concurrent use; the owner serializes all calls,
// including HandleWatchEvent.
type Index struct {
	fs       afero.Fs
	watcher  watcher.Watcher
	emit     func(notify.Event)
	detached bool

	mode   SortMode
	coll   *collator
	cmp    compareFunc
	dirCmp compareFunc

	dirPath     string
	source      Source
	dirsMode    bool
	showHidden  bool
	sortFolders bool
	exts        map[string]struct{}
	cfgIgnore   *IgnoreList
	dirIgnore   *IgnoreList

	files sequence
	dirs  sequence
}

// New creates an empty Index.
func New(opts Options) *Index {
	ix := &Index{
		fs:       opts.Fs,
		watcher:  opts.Watcher,
		emit:     opts.Emit,
		detached: opts.Detached,
		files:    newSequence(),
		dirs:     newSequence(),
	}
	if ix.fs == nil {
		ix.fs = afero.NewOsFs()
	}
	if ix.watcher == nil {
		ix.watcher = watcher.NewNoop()
	}
	if ix.emit == nil {
		ix.emit = func(notify.Event) {}
	}

	s := opts.Settings
	mode, err := ParseSortMode(s.Sort)
	if err != nil && s.Sort != "" {
		logging.Sub("index").Warn("invalid sort mode, using name-asc", "sort", s.Sort)
	}
	ix.mode = mode
	ix.exts = s.ExtensionSet()
	ix.showHidden = s.ShowHidden
	ix.sortFolders = s.SortFolders
	ix.cfgIgnore = NewIgnoreList(s.Ignore)
	ix.coll = newCollator(s.Locale)
	ix.rebuildComparators()
	return ix
}

func (ix *Index) rebuildComparators() {
	ix.cmp = ix.mode.comparator(ix.coll)
	if ix.sortFolders || ix.dirsMode {
		ix.dirCmp = ix.cmp
	} else {
		ix.dirCmp = NameAsc.comparator(ix.coll)
	}
}

// SetDirectory scans path and replaces both sequences. On failure the
// previous listing is kept and ErrorOccurred is emitted.
func (ix *Index) SetDirectory(path string, recursive, watch bool) error {
	l := logging.Sub("index")
	if path == "" {
		return ErrEmptyPath
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return ix.setupFailed(path, err)
	}
	info, err := ix.fs.Stat(abs)
	if err != nil {
		return ix.setupFailed(abs, err)
	}
	if !info.IsDir() {
		return ix.setupFailed(abs, errNotDir)
	}

	start := time.Now()
	dirIgnore := LoadIgnoreFile(ix.fs, filepath.Join(abs, IgnoreFileName))
	entries, err := scan(ix.fs, abs, scanOptions{
		recursive:  recursive,
		dirsMode:   ix.dirsMode,
		showHidden: ix.showHidden,
		exts:       ix.exts,
		ignore:     []*IgnoreList{ix.cfgIgnore, dirIgnore},
	})
	if err != nil {
		return ix.setupFailed(abs, err)
	}

	if recursive || !watch || abs != ix.dirPath {
		ix.stopWatcher()
	}

	ix.dirPath = abs
	ix.dirIgnore = dirIgnore
	ix.source = SourceDirectory
	if recursive {
		ix.source = SourceRecursive
	}

	if ix.dirsMode {
		slices.SortFunc(entries, ix.dirCmp)
		ix.dirs.reset(entries)
		ix.files.reset(nil)
	} else {
		slices.SortFunc(entries, ix.cmp)
		ix.files.reset(entries)
		ix.dirs.reset(nil)
	}
	if !ix.detached {
		metrics.RecordIndexScan(time.Since(start))
	}
	ix.report()

	l.Info("directory loaded", "path", abs, "files", ix.files.len(), "dirs", ix.dirs.len(),
		"recursive", recursive, "elapsed", time.Since(start))
	ix.emit(notify.Event{Kind: notify.Loaded, Path: abs})

	if watch && !recursive {
		ix.startWatcher(abs)
	}
	return nil
}

func (ix *Index) setupFailed(path string, cause error) error {
	logging.Sub("index").Warn("set directory failed", "path", path, "err", cause)
	ix.emit(notify.Event{
		Kind:    notify.ErrorOccurred,
		Path:    path,
		Message: fmt.Sprintf("Directory is not readable: %s", path),
	})
	return fmt.Errorf("%w: %s: %w", ErrNotReadable, path, cause)
}

func (ix *Index) startWatcher(path string) {
	if ix.watcher.IsObserving() && ix.watcher.WatchPath() == path {
		return
	}
	ix.watcher.StopObserving()
	ix.watcher.SetWatchPath(path)
	if err := ix.watcher.Observe(); err != nil {
		logging.Sub("index").Warn("watcher start failed, live refresh disabled", "path", path, "err", err)
	}
}

func (ix *Index) stopWatcher() {
	ix.watcher.StopObserving()
}

// WatchEvents returns the watcher's event channel.
func (ix *Index) WatchEvents() <-chan watcher.Event {
	return ix.watcher.Events()
}

// WatcherActive reports whether live refresh is running.
func (ix *Index) WatcherActive() bool {
	return ix.watcher.IsObserving()
}

// SetDirectoriesMode switches scans between listing files and listing
// directories. Takes effect on the next SetDirectory.
func (ix *Index) SetDirectoriesMode(on bool) {
	if on == ix.dirsMode {
		return
	}
	ix.dirsMode = on
	ix.rebuildComparators()
	ix.dirs.sort(ix.dirCmp)
}

// DirectoriesMode reports whether scans list directories.
func (ix *Index) DirectoriesMode() bool {
	return ix.dirsMode
}

// Clear drops both sequences and forgets the directory.
func (ix *Index) Clear() {
	ix.stopWatcher()
	ix.files.reset(nil)
	ix.dirs.reset(nil)
	ix.dirPath = ""
	ix.dirIgnore = nil
	ix.source = SourceNone
	ix.report()
}

// Close stops the watcher.
func (ix *Index) Close() error {
	return ix.watcher.Close()
}

func (ix *Index) report() {
	if ix.detached {
		return
	}
	metrics.SetIndexEntries(ix.files.len(), ix.dirs.len())
}

// --- queries ---

func (ix *Index) DirectoryPath() string { return ix.dirPath }
func (ix *Index) Source() Source         { return ix.source }
func (ix *Index) SortMode() SortMode     { return ix.mode }
func (ix *Index) FileCount() int         { return ix.files.len() }
func (ix *Index) DirCount() int          { return ix.dirs.len() }
func (ix *Index) TotalCount() int        { return ix.files.len() + ix.dirs.len() }
func (ix *Index) IsEmpty() bool          { return ix.files.len() == 0 }

// Files returns a copy of the file sequence.
func (ix *Index) Files() []Entry { return ix.files.clone() }

// Dirs returns a copy of the directory sequence.
func (ix *Index) Dirs() []Entry { return ix.dirs.clone() }

func (ix *Index) IndexOfFile(path string) int {
	return ix.files.indexOf(filepath.Clean(path), ix.cmp)
}

func (ix *Index) IndexOfDir(path string) int {
	return ix.dirs.indexOf(filepath.Clean(path), ix.dirCmp)
}

func (ix *Index) ContainsFile(path string) bool {
	return ix.files.contains(filepath.Clean(path))
}

func (ix *Index) ContainsDir(path string) bool {
	return ix.dirs.contains(filepath.Clean(path))
}

// FileAt returns the file entry at i.
func (ix *Index) FileAt(i int) (Entry, bool) {
	return ix.files.at(i)
}

// FileEntry returns the tracked entry for path.
func (ix *Index) FileEntry(path string) (Entry, bool) {
	e, ok := ix.files.byPath[filepath.Clean(path)]
	return e, ok
}

func (ix *Index) FilePathAt(i int) string {
	e, _ := ix.files.at(i)
	return e.Path
}

func (ix *Index) FileNameAt(i int) string {
	e, _ := ix.files.at(i)
	return e.Name
}

func (ix *Index) DirPathAt(i int) string {
	e, _ := ix.dirs.at(i)
	return e.Path
}

func (ix *Index) DirNameAt(i int) string {
	e, _ := ix.dirs.at(i)
	return e.Name
}

func (ix *Index) FirstFile() string {
	return ix.FilePathAt(0)
}

func (ix *Index) LastFile() string {
	return ix.FilePathAt(ix.files.len() - 1)
}

// PrevOfFile returns "" when path is first or not tracked.
func (ix *Index) PrevOfFile(path string) string {
	i := ix.IndexOfFile(path)
	if i <= 0 {
		return ""
	}
	return ix.FilePathAt(i - 1)
}

// NextOfFile returns "" when path is last or not tracked.
func (ix *Index) NextOfFile(path string) string {
	i := ix.IndexOfFile(path)
	if i < 0 {
		return ""
	}
	return ix.FilePathAt(i + 1)
}

func (ix *Index) PrevOfDir(path string) string {
	i := ix.IndexOfDir(path)
	if i <= 0 {
		return ""
	}
	return ix.DirPathAt(i - 1)
}

func (ix *Index) NextOfDir(path string) string {
	i := ix.IndexOfDir(path)
	if i < 0 {
		return ""
	}
	return ix.DirPathAt(i + 1)
}

// LastModified returns the zero time when path is not tracked.
func (ix *Index) LastModified(path string) time.Time {
	e, ok := ix.FileEntry(path)
	if !ok {
		return time.Time{}
	}
	return e.ModTime
}

// IsDir reports whether path currently exists as a directory.
func (ix *Index) IsDir(path string) bool {
	info, err := ix.fs.Stat(path)
	return err == nil && info.IsDir()
}

// IsSupportedFile reports whether path (after following symlinks) is a
// regular file with a supported extension.
func (ix *Index) IsSupportedFile(path string) bool {
	e, info, err := statEntry(ix.fs, path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	_, ok := ix.exts[e.Ext()]
	return ok
}

// admit applies the hidden-file and ignore-pattern filters.
func (ix *Index) admit(path string, isDir bool) bool {
	name := filepath.Base(path)
	if !ix.showHidden && isHidden(name) {
		return false
	}
	return !ix.cfgIgnore.IsIgnored(name, isDir) && !ix.dirIgnore.IsIgnored(name, isDir)
}
