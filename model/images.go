package model

import (
	"fmt"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/ghyeongl/imgview/img"
	"github.com/ghyeongl/imgview/loader"
	"github.com/ghyeongl/imgview/logging"
	"github.com/ghyeongl/imgview/notify"
)

// Load makes the image at path available. A cached image is announced
// right away; otherwise it is decoded on a priority worker when async is
// set, or on the loop. Untracked and already-loading paths are ignored.
func (m *Model) Load(path string, async bool) {
	path = filepath.Clean(path)
	m.exec(func() { m.load(path, async) })
}

func (m *Model) load(path string, async bool) {
	if !m.index.ContainsFile(path) || m.loader.IsLoading(path) {
		return
	}
	if im, ok := m.cache.Get(path); ok {
		m.publishReady(im)
		return
	}
	if async {
		m.loader.LoadAsyncPriority(path)
		return
	}
	m.loadSync(path)
}

func (m *Model) loadSync(path string) (*img.Image, error) {
	im, err := m.loader.Load(path)
	if err != nil {
		m.publishFailed(path, err)
		return nil, err
	}
	m.cache.Insert(im)
	m.publishReady(im)
	return im, nil
}

func (m *Model) onLoadResult(r loader.Result) {
	defer m.loader.Done(r.Path)
	if r.Err != nil {
		m.publishFailed(r.Path, r.Err)
		return
	}
	if !m.index.ContainsFile(r.Path) {
		logging.Sub("model").Debug("discarding result for untracked path", "path", r.Path)
		return
	}
	m.cache.Insert(r.Image)
	m.publishReady(r.Image)
}

func (m *Model) publishReady(im *img.Image) {
	m.publish(notify.Event{Kind: notify.ImageReady, Path: im.Path, Image: im.Pixels})
}

func (m *Model) publishFailed(path string, err error) {
	logging.Sub("model").Debug("load failed", "path", path, "err", err)
	m.publish(notify.Event{Kind: notify.LoadFailed, Path: path, Message: err.Error()})
}

// Preload queues a background decode of a tracked file that is not cached.
func (m *Model) Preload(path string) {
	path = filepath.Clean(path)
	m.exec(func() {
		if !m.index.ContainsFile(path) || m.cache.Contains(path) || m.loader.IsLoading(path) {
			return
		}
		m.loader.LoadAsync(path)
	})
}

// Reload drops a cached image, refreshes the file's metadata and decodes
// it again.
func (m *Model) Reload(path string) {
	path = filepath.Clean(path)
	m.exec(func() {
		if !m.cache.Remove(path) {
			return
		}
		m.index.UpdateFile(path)
		m.loadSync(path)
	})
}

func (m *Model) reload(path string) {
	m.cache.Remove(path)
	m.loadSync(path)
}

func (m *Model) Unload(path string) {
	path = filepath.Clean(path)
	m.exec(func() { m.cache.Remove(path) })
}

// UnloadExcept evicts every cached image except path and, with keepNearby,
// its neighbours in the current order.
func (m *Model) UnloadExcept(path string, keepNearby bool) {
	path = filepath.Clean(path)
	m.exec(func() {
		keep := []string{path}
		if keepNearby {
			keep = append(keep, m.index.PrevOfFile(path), m.index.NextOfFile(path))
		}
		m.cache.TrimTo(lo.Compact(keep))
	})
}

func (m *Model) IsLoaded(path string) bool {
	path = filepath.Clean(path)
	return query(m, func() bool { return m.cache.Contains(path) })
}

func (m *Model) LoaderBusy() bool {
	return query(m, m.loader.IsBusy)
}

// CachedPaths lists the paths currently held in the cache.
func (m *Model) CachedPaths() []string {
	return query(m, m.cache.Paths)
}

// GetImage returns the cached image, decoding and caching it on a miss.
func (m *Model) GetImage(path string) (*img.Image, error) {
	path = filepath.Clean(path)
	var out *img.Image
	err := call(m, func() error {
		if im, ok := m.cache.Get(path); ok {
			out = im
			return nil
		}
		im, err := m.loader.Load(path)
		if err != nil {
			return err
		}
		m.cache.Insert(im)
		out = im
		return nil
	})
	return out, err
}

// UpdateImage replaces the decoded image of a tracked file, for example
// after an edit. ImageUpdated is emitted when an image was already cached.
func (m *Model) UpdateImage(path string, im *img.Image) {
	path = filepath.Clean(path)
	m.exec(func() {
		if im == nil || !m.index.ContainsFile(path) {
			return
		}
		cp := *im
		cp.Path = path
		if m.cache.Insert(&cp) {
			m.publish(notify.Event{Kind: notify.ImageUpdated, Path: path, Image: cp.Pixels})
		}
	})
}

// SaveFile encodes the cached image of path to dest, or over path itself
// when dest is empty.
func (m *Model) SaveFile(path, dest string) error {
	path = filepath.Clean(path)
	if dest == "" {
		dest = path
	}
	dest = filepath.Clean(dest)

	return call(m, func() error {
		im, ok := m.cache.Get(path)
		if !ok {
			return fmt.Errorf("save %s: %w", path, ErrNotLoaded)
		}
		if err := im.Save(m.fs, dest); err != nil {
			return err
		}

		if dest == path {
			info, err := m.fs.Stat(dest)
			if err == nil {
				cp := *im
				cp.ModTime = info.ModTime()
				cp.Size = info.Size()
				m.cache.Insert(&cp)
			}
			m.index.UpdateFile(path)
			return nil
		}
		if filepath.Dir(dest) == m.index.DirectoryPath() {
			m.index.InsertFile(dest)
		}
		return nil
	})
}
