package model

import (
	"path/filepath"
	"time"

	"github.com/ghyeongl/imgview/index"
	"github.com/ghyeongl/imgview/logging"
)

// SetDirectory drops every cached image and queued decode, then lists
// path and starts watching it.
func (m *Model) SetDirectory(path string) error {
	return call(m, func() error {
		m.cache.Clear()
		m.loader.ClearTasks()
		return m.index.SetDirectory(path, false, true)
	})
}

// SetDirectoryRecursive lists path and all of its subdirectories. The
// listing is not watched.
func (m *Model) SetDirectoryRecursive(path string) error {
	return call(m, func() error {
		m.cache.Clear()
		m.loader.ClearTasks()
		return m.index.SetDirectory(path, true, false)
	})
}

// RemoveFile deletes path, or moves it to the trash, and only then drops
// it from the index and the cache.
func (m *Model) RemoveFile(path string, trash bool) error {
	path = filepath.Clean(path)
	return call(m, func() error {
		if err := m.ops.Remove(path, trash); err != nil {
			return err
		}
		m.cache.Remove(path)
		m.index.RemoveFile(path)
		return nil
	})
}

// RemoveDir deletes a directory, or moves it to the trash, and only then
// drops it from the index.
func (m *Model) RemoveDir(path string, trash, recursive bool) error {
	path = filepath.Clean(path)
	return call(m, func() error {
		if err := m.ops.RemoveDir(path, trash, recursive); err != nil {
			return err
		}
		m.index.RemoveDir(path)
		return nil
	})
}

// RenameEntry renames a file or directory inside its parent. Watcher events
// queued before the rename are applied first, so the rename's own echo
// finds the index already up to date.
func (m *Model) RenameEntry(oldPath, newName string, force bool) error {
	oldPath = filepath.Clean(oldPath)
	return call(m, func() error {
		isDir := m.index.IsDir(oldPath)
		if _, err := m.ops.Rename(oldPath, newName, force); err != nil {
			return err
		}
		m.drainWatchEvents()
		if isDir {
			m.index.RenameDir(oldPath, newName)
		} else {
			m.index.RenameFile(oldPath, newName)
		}
		return nil
	})
}

// MoveFileTo moves src into destDir. The entry leaves the index when
// destDir is not the current directory.
func (m *Model) MoveFileTo(src, destDir string, force bool) error {
	src = filepath.Clean(src)
	destDir = filepath.Clean(destDir)
	return call(m, func() error {
		if _, err := m.ops.MoveTo(src, destDir, force); err != nil {
			return err
		}
		m.drainWatchEvents()
		m.cache.Remove(src)
		if destDir != m.index.DirectoryPath() {
			m.index.RemoveFile(src)
		}
		return nil
	})
}

// drainWatchEvents applies every watcher event already queued, without
// waiting for more.
func (m *Model) drainWatchEvents() {
	events := m.index.WatchEvents()
	for n := 0; ; n++ {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.index.HandleWatchEvent(ev)
		default:
			if n > 0 {
				logging.Sub("model").Debug("drained watcher events", "count", n)
			}
			return
		}
	}
}

// ForceInsert adds a file the extension and hidden filters would reject,
// such as a freshly saved copy.
func (m *Model) ForceInsert(path string) bool {
	path = filepath.Clean(path)
	return query(m, func() bool { return m.index.ForceInsertFile(path) })
}

func (m *Model) SetSortMode(mode index.SortMode) {
	m.exec(func() { m.index.SetSortMode(mode) })
}

// ResolveNextDirectory returns the sibling directory after the current one
// in the active order, or "" at the end.
func (m *Model) ResolveNextDirectory() string {
	return m.resolveSibling((*index.Index).NextOfDir)
}

// ResolvePrevDirectory returns the sibling directory before the current one.
func (m *Model) ResolvePrevDirectory() string {
	return m.resolveSibling((*index.Index).PrevOfDir)
}

func (m *Model) resolveSibling(pick func(*index.Index, string) string) string {
	return query(m, func() string {
		cur := m.index.DirectoryPath()
		if cur == "" {
			return ""
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return ""
		}
		s := m.settings
		s.Sort = m.index.SortMode().String()
		siblings := index.New(index.Options{Fs: m.fs, Settings: s, Detached: true})
		siblings.SetDirectoriesMode(true)
		if err := siblings.SetDirectory(parent, false, false); err != nil {
			return ""
		}
		return pick(siblings, cur)
	})
}

// Clear forgets the directory, stops watching and drops every cached
// image and queued decode.
func (m *Model) Clear() {
	m.exec(func() {
		m.loader.ClearTasks()
		m.cache.Clear()
		m.index.Clear()
	})
}

func (m *Model) DirectoryPath() string {
	return query(m, m.index.DirectoryPath)
}

func (m *Model) SortMode() index.SortMode {
	return query(m, m.index.SortMode)
}

func (m *Model) Files() []index.Entry {
	return query(m, m.index.Files)
}

func (m *Model) Dirs() []index.Entry {
	return query(m, m.index.Dirs)
}

func (m *Model) FileCount() int {
	return query(m, m.index.FileCount)
}

func (m *Model) IndexOfFile(path string) int {
	return query(m, func() int { return m.index.IndexOfFile(path) })
}

func (m *Model) FilePathAt(i int) string {
	return query(m, func() string { return m.index.FilePathAt(i) })
}

func (m *Model) FirstFile() string {
	return query(m, m.index.FirstFile)
}

func (m *Model) LastFile() string {
	return query(m, m.index.LastFile)
}

func (m *Model) NextOfFile(path string) string {
	return query(m, func() string { return m.index.NextOfFile(path) })
}

func (m *Model) PrevOfFile(path string) string {
	return query(m, func() string { return m.index.PrevOfFile(path) })
}

func (m *Model) ContainsFile(path string) bool {
	return query(m, func() bool { return m.index.ContainsFile(path) })
}

func (m *Model) LastModified(path string) time.Time {
	return query(m, func() time.Time { return m.index.LastModified(path) })
}

func (m *Model) WatcherActive() bool {
	return query(m, m.index.WatcherActive)
}

func (m *Model) IsEmpty() bool {
	return query(m, m.index.IsEmpty)
}
