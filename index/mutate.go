package index

import (
	"log/slog"
	"path/filepath"

	"github.com/ghyeongl/imgview/logging"
	"github.com/ghyeongl/imgview/notify"
	"github.com/ghyeongl/imgview/settings"
	"github.com/ghyeongl/imgview/watcher"
)

// Mutations keep both sequences sorted and duplicate-free. Input that no
// longer matches the filesystem degrades to a smaller change, never an error.

// InsertFile adds a supported, admitted file. Returns false when path is
// not supported or already present.
func (ix *Index) InsertFile(path string) bool {
	path = filepath.Clean(path)
	if !ix.IsSupportedFile(path) || !ix.admit(path, false) {
		return false
	}
	return ix.ForceInsertFile(path)
}

// ForceInsertFile adds any regular file, skipping the extension and
// hidden-file checks.
func (ix *Index) ForceInsertFile(path string) bool {
	path = filepath.Clean(path)
	if ix.files.contains(path) {
		return false
	}
	e, info, err := statEntry(ix.fs, path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	i := ix.files.insert(e, ix.cmp)
	ix.report()
	if ix.dirPath != "" {
		ix.emit(notify.Event{Kind: notify.FileAdded, Path: path, Index: i})
	}
	return true
}

// InsertDir adds a directory. Returns false when it is already present or
// no longer a directory.
func (ix *Index) InsertDir(path string) bool {
	path = filepath.Clean(path)
	if ix.dirs.contains(path) || !ix.admit(path, true) {
		return false
	}
	e, _, err := statEntry(ix.fs, path)
	if err != nil || !e.IsDir {
		return false
	}

	i := ix.dirs.insert(e, ix.dirCmp)
	ix.report()
	ix.emit(notify.Event{Kind: notify.DirAdded, Path: path, Index: i})
	return true
}

// RemoveFile erases path and reports its pre-removal index.
func (ix *Index) RemoveFile(path string) {
	path = filepath.Clean(path)
	i := ix.files.indexOf(path, ix.cmp)
	if i < 0 {
		return
	}
	ix.files.removeAt(i)
	ix.report()
	ix.emit(notify.Event{Kind: notify.FileRemoved, Path: path, Index: i})
}

// RemoveDir erases path and reports its pre-removal index.
func (ix *Index) RemoveDir(path string) {
	path = filepath.Clean(path)
	i := ix.dirs.indexOf(path, ix.dirCmp)
	if i < 0 {
		return
	}
	ix.dirs.removeAt(i)
	ix.report()
	ix.emit(notify.Event{Kind: notify.DirRemoved, Path: path, Index: i})
}

// UpdateFile refreshes size and mtime of a tracked file. FileModified is
// emitted only when either changed; unchanged metadata emits nothing. When
// the new metadata moves the entry under the active order, NewIndex differs
// from Index in the emitted event.
func (ix *Index) UpdateFile(path string) {
	path = filepath.Clean(path)
	i := ix.files.indexOf(path, ix.cmp)
	if i < 0 {
		return
	}
	e, info, err := statEntry(ix.fs, path)
	if err != nil || !info.Mode().IsRegular() {
		// gone or replaced; the matching delete event will remove it
		return
	}
	if old, _ := ix.files.at(i); old.Size == e.Size && old.ModTime.Equal(e.ModTime) {
		return
	}

	ix.files.removeAt(i)
	j := ix.files.insert(e, ix.cmp)
	ix.emit(notify.Event{Kind: notify.FileModified, Path: path, Index: i, NewIndex: j})
}

// RenameFile moves the entry at oldPath to oldPath's directory + newName.
// The collision removal (if any) and the rename are applied before any
// notification is emitted, so observers never see a half-applied rename.
func (ix *Index) RenameFile(oldPath, newName string) {
	oldPath = filepath.Clean(oldPath)
	newPath := filepath.Join(filepath.Dir(oldPath), newName)

	if newPath == oldPath {
		ix.UpdateFile(oldPath)
		return
	}
	if !ix.files.contains(oldPath) {
		if ix.files.contains(newPath) {
			ix.UpdateFile(newPath)
		} else {
			ix.InsertFile(newPath)
		}
		return
	}
	if !ix.IsSupportedFile(newPath) || !ix.admit(newPath, false) {
		ix.RemoveFile(oldPath)
		return
	}
	e, _, err := statEntry(ix.fs, newPath)
	if err != nil {
		ix.RemoveFile(oldPath)
		return
	}

	var batch []notify.Event
	if j := ix.files.indexOf(newPath, ix.cmp); j >= 0 {
		ix.files.removeAt(j)
		batch = append(batch, notify.Event{Kind: notify.FileRemoved, Path: newPath, Index: j})
	}
	oldIdx := ix.files.indexOf(oldPath, ix.cmp)
	ix.files.removeAt(oldIdx)
	newIdx := ix.files.insert(e, ix.cmp)
	batch = append(batch, notify.Event{
		Kind:     notify.FileRenamed,
		Path:     oldPath,
		Index:    oldIdx,
		NewPath:  newPath,
		NewIndex: newIdx,
	})

	ix.report()
	for _, ev := range batch {
		ix.emit(ev)
	}
}

// RenameDir is the directory counterpart of RenameFile.
func (ix *Index) RenameDir(oldPath, newName string) {
	oldPath = filepath.Clean(oldPath)
	newPath := filepath.Join(filepath.Dir(oldPath), newName)

	if newPath == oldPath {
		return
	}
	if !ix.dirs.contains(oldPath) {
		ix.InsertDir(newPath)
		return
	}
	e, _, err := statEntry(ix.fs, newPath)
	if err != nil || !e.IsDir || !ix.admit(newPath, true) {
		ix.RemoveDir(oldPath)
		return
	}

	var batch []notify.Event
	if j := ix.dirs.indexOf(newPath, ix.dirCmp); j >= 0 {
		ix.dirs.removeAt(j)
		batch = append(batch, notify.Event{Kind: notify.DirRemoved, Path: newPath, Index: j})
	}
	oldIdx := ix.dirs.indexOf(oldPath, ix.dirCmp)
	ix.dirs.removeAt(oldIdx)
	newIdx := ix.dirs.insert(e, ix.dirCmp)
	batch = append(batch, notify.Event{
		Kind:     notify.DirRenamed,
		Path:     oldPath,
		Index:    oldIdx,
		NewPath:  newPath,
		NewIndex: newIdx,
	})

	ix.report()
	for _, ev := range batch {
		ix.emit(ev)
	}
}

// HandleWatchEvent applies one watcher event. Events for a directory other
// than the current one are stale and dropped.
func (ix *Index) HandleWatchEvent(ev watcher.Event) {
	if ix.dirPath == "" || ix.source != SourceDirectory || filepath.Clean(ev.Dir) != ix.dirPath {
		if logging.Enabled(slog.LevelDebug) {
			logging.Sub("index").Debug("stale watcher event dropped", "dir", ev.Dir, "name", ev.Name, "op", ev.Op.String())
		}
		return
	}

	path := filepath.Join(ix.dirPath, ev.Name)
	switch ev.Op {
	case watcher.Created:
		if ix.IsDir(path) {
			ix.InsertDir(path)
		} else {
			ix.InsertFile(path)
		}
	case watcher.Deleted:
		ix.RemoveDir(path)
		ix.RemoveFile(path)
	case watcher.Modified:
		ix.UpdateFile(path)
	case watcher.Renamed:
		oldPath := filepath.Join(ix.dirPath, ev.OldName)
		if ix.IsDir(path) {
			ix.RenameDir(oldPath, ev.Name)
		} else {
			ix.RenameFile(oldPath, ev.Name)
		}
	}
}

// SetSortMode switches the comparator. Both sequences are re-sorted and
// SortingChanged is emitted once, only when either holds more than one entry.
func (ix *Index) SetSortMode(mode SortMode) {
	if mode == ix.mode {
		return
	}
	ix.mode = mode
	ix.rebuildComparators()
	ix.resort()
}

func (ix *Index) resort() {
	if ix.files.len() <= 1 && ix.dirs.len() <= 1 {
		return
	}
	ix.files.sort(ix.cmp)
	ix.dirs.sort(ix.dirCmp)
	ix.emit(notify.Event{Kind: notify.SortingChanged})
}

// ApplySettings refreshes the filters and collation from s. The sort mode
// is left alone; callers switch it with SetSortMode. Existing entries are
// not re-filtered until the next SetDirectory.
func (ix *Index) ApplySettings(s settings.Snapshot) {
	ix.exts = s.ExtensionSet()
	ix.showHidden = s.ShowHidden
	ix.cfgIgnore = NewIgnoreList(s.Ignore)

	reorder := false
	if s.SortFolders != ix.sortFolders {
		ix.sortFolders = s.SortFolders
		reorder = true
	}
	if s.Locale != ix.coll.locale {
		ix.coll = newCollator(s.Locale)
		reorder = true
	}
	if reorder {
		ix.rebuildComparators()
		ix.resort()
	}
}
