// Package model composes the directory index, image cache and loader into
// the facade the viewer talks to. One goroutine, Run, owns all of them.
package model

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/spf13/afero"

	"github.com/ghyeongl/imgview/fileops"
	"github.com/ghyeongl/imgview/imgcache"
	"github.com/ghyeongl/imgview/index"
	"github.com/ghyeongl/imgview/loader"
	"github.com/ghyeongl/imgview/logging"
	"github.com/ghyeongl/imgview/notify"
	"github.com/ghyeongl/imgview/settings"
	"github.com/ghyeongl/imgview/watcher"
)

var (
	// ErrClosed is returned by operations issued after the loop stopped.
	ErrClosed = errors.New("model closed")
	// ErrNotLoaded is returned by SaveFile when the image is not cached.
	ErrNotLoaded = errors.New("image not loaded")

	errStarted = errors.New("model already started")
)

// Options configures a Model.
type Options struct {
	// Fs defaults to the OS filesystem.
	Fs       afero.Fs
	Settings settings.Snapshot
	// Changes delivers configuration updates; nil disables live reload.
	Changes <-chan settings.Snapshot
	// Watcher defaults to the platform watcher.
	Watcher watcher.Watcher
	// Decode overrides the image decoder.
	Decode loader.DecodeFunc
}

// Model is safe for concurrent use once Run is running. Every exported
// method hands a closure to Run and waits for it.
type Model struct {
	fs       afero.Fs
	settings settings.Snapshot
	changes  <-chan settings.Snapshot

	index  *index.Index
	cache  *imgcache.Cache
	loader *loader.Loader
	ops    *fileops.Ops
	bus    *notify.Bus

	cmds     chan func()
	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	stopped  chan struct{}
	shutdown sync.Once
}

// New builds a Model. Nothing happens until Run is started.
func New(opts Options) *Model {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	s := opts.Settings
	w := opts.Watcher
	if w == nil {
		w = watcher.New(s.StopTimeout)
	}

	m := &Model{
		fs:       fsys,
		settings: s,
		changes:  opts.Changes,
		cache:    imgcache.New(s.CacheCapacity),
		ops:      fileops.New(fsys, s.TrashDir),
		bus:      notify.NewBus(),
		cmds:     make(chan func()),
		stopped:  make(chan struct{}),
	}
	m.loader = loader.New(loader.Options{Workers: s.LoaderWorkers, Fs: fsys, Decode: opts.Decode})
	m.index = index.New(index.Options{
		Fs:       fsys,
		Watcher:  w,
		Emit:     m.onIndexEvent,
		Settings: s,
	})
	return m
}

// Run owns the index, cache and loader until ctx is cancelled or Close is
// called. Watcher events, loader results, configuration changes and
// commands are applied one at a time in arrival order per source.
func (m *Model) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errStarted
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	l := logging.Sub("model")
	l.Info("model loop started")
	defer close(m.stopped)
	defer m.teardown()

	watchEvents := m.index.WatchEvents()
	results := m.loader.Results()
	changes := m.changes
	for {
		select {
		case <-ctx.Done():
			l.Info("model loop stopping")
			return nil

		case fn := <-m.cmds:
			fn()

		case ev, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			if logging.Enabled(slog.LevelDebug) {
				l.Debug("watch event", "op", ev.Op.String(), "name", ev.Name, "old", ev.OldName)
			}
			m.index.HandleWatchEvent(ev)

		case r, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			m.onLoadResult(r)

		case s, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			m.applySettings(s)
		}
	}
}

// Close stops Run, if running, and releases the watcher, loader and
// subscribers.
func (m *Model) Close() error {
	m.mu.Lock()
	if !m.started {
		m.started = true
		m.mu.Unlock()
		m.teardown()
		close(m.stopped)
		return nil
	}
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-m.stopped
	return nil
}

func (m *Model) teardown() {
	m.shutdown.Do(func() {
		m.loader.Close()
		if err := m.index.Close(); err != nil {
			logging.Sub("model").Warn("watcher close failed", "err", err)
		}
		m.bus.Close()
	})
}

// exec runs fn on the loop and waits for it. Returns false when the loop
// has stopped.
func (m *Model) exec(fn func()) bool {
	done := make(chan struct{})
	select {
	case m.cmds <- func() { defer close(done); fn() }:
	case <-m.stopped:
		return false
	}
	<-done
	return true
}

func query[T any](m *Model, fn func() T) T {
	var out T
	m.exec(func() { out = fn() })
	return out
}

func call(m *Model, fn func() error) error {
	var err error
	if !m.exec(func() { err = fn() }) {
		return ErrClosed
	}
	return err
}

// Subscribe returns a channel receiving every notification. A subscriber
// that falls behind loses events.
func (m *Model) Subscribe() chan notify.Event {
	return m.bus.Subscribe()
}

func (m *Model) Unsubscribe(ch chan notify.Event) {
	m.bus.Unsubscribe(ch)
}

func (m *Model) publish(ev notify.Event) {
	m.bus.Publish(ev)
}

// onIndexEvent forwards index notifications and keeps the cache in step.
func (m *Model) onIndexEvent(ev notify.Event) {
	m.publish(ev)

	switch ev.Kind {
	case notify.FileRemoved, notify.FileRenamed:
		m.cache.Remove(ev.Path)
	case notify.FileModified:
		m.onFileModified(ev.Path)
	}
}

// onFileModified reloads a cached image whose file changed on disk.
func (m *Model) onFileModified(path string) {
	im, ok := m.cache.Get(path)
	if !ok {
		return
	}
	if mt := m.index.LastModified(path); !mt.IsZero() && !mt.Equal(im.ModTime) {
		logging.Sub("model").Debug("cached image stale, reloading", "path", path)
		m.reload(path)
	}
}

func (m *Model) applySettings(s settings.Snapshot) {
	l := logging.Sub("model")
	m.index.ApplySettings(s)
	if s.Sort != m.settings.Sort {
		if mode, err := index.ParseSortMode(s.Sort); err == nil {
			m.index.SetSortMode(mode)
		} else {
			l.Warn("invalid sort mode in config", "sort", s.Sort)
		}
	}
	if s.LoaderWorkers != m.settings.LoaderWorkers {
		m.loader.SetWorkers(s.LoaderWorkers)
	}
	m.settings = s
	l.Info("settings applied", "sort", s.Sort, "extensions", len(s.Extensions))
}
