//go:build darwin || dragonfly || freebsd || openbsd || netbsd || linux || solaris || windows

package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ghyeongl/imgview/logging"
	"github.com/ghyeongl/imgview/metrics"
)

// renamePairWindow is how long a Rename waits for the Create of its new name.
const renamePairWindow = 50 * time.Millisecond

const eventBuffer = 256

// fsWatcher reports changes to the direct children of one directory.
// A fresh fsnotify handle is created per Observe so a restart never
// registers the directory twice.
type fsWatcher struct {
	mu          sync.Mutex
	path        string
	fw          *fsnotify.Watcher
	cancel      context.CancelFunc
	done        chan struct{}
	events      chan Event
	stopTimeout time.Duration
}

func newBackend(stopTimeout time.Duration) (Watcher, error) {
	probe, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	probe.Close() //nolint:errcheck

	return &fsWatcher{
		events:      make(chan Event, eventBuffer),
		stopTimeout: stopTimeout,
	}, nil
}

func (w *fsWatcher) SetWatchPath(path string) {
	w.mu.Lock()
	w.path = filepath.Clean(path)
	w.mu.Unlock()
}

func (w *fsWatcher) WatchPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

func (w *fsWatcher) IsObserving() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fw != nil
}

func (w *fsWatcher) Events() <-chan Event {
	return w.events
}

func (w *fsWatcher) Observe() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fw != nil {
		return nil
	}
	if w.path == "" || w.path == "." {
		return ErrNoWatchPath
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close() //nolint:errcheck
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.fw = fw
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, fw, w.path, w.done)

	logging.Sub("watcher").Info("watching", "path", w.path)
	return nil
}

func (w *fsWatcher) StopObserving() {
	w.mu.Lock()
	fw, cancel, done, path := w.fw, w.cancel, w.done, w.path
	w.fw, w.cancel, w.done = nil, nil, nil
	w.mu.Unlock()

	if fw == nil {
		return
	}
	l := logging.Sub("watcher")

	cancel()
	timer := time.NewTimer(w.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		l.Warn("watcher loop did not exit in time, abandoning it", "path", path, "timeout", w.stopTimeout)
	}

	if err := fw.Close(); err != nil {
		l.Warn("close fsnotify watcher", "path", path, "err", err)
	}
	l.Info("stopped watching", "path", path)
}

func (w *fsWatcher) Close() error {
	w.StopObserving()
	return nil
}

// loop translates fsnotify events into Events until ctx is cancelled or the
// fsnotify handle is closed.
func (w *fsWatcher) loop(ctx context.Context, fw *fsnotify.Watcher, dir string, done chan struct{}) {
	defer close(done)
	l := logging.Sub("watcher")

	// Old name of a Rename still waiting for its Create. fsnotify does not
	// expose the rename cookie, so pairing is by timing only: a move out of
	// the directory followed within the window by an unrelated Create is
	// reported as Renamed. The index ends up the same either way.
	var pending string
	timer := time.NewTimer(renamePairWindow)
	timer.Stop()

	emit := func(ev Event) bool {
		ev.Dir = dir
		select {
		case w.events <- ev:
			metrics.RecordWatcherEvent(ev.Op.String())
			if logging.Enabled(slog.LevelDebug) {
				l.Debug("event", "op", ev.Op.String(), "name", ev.Name, "old", ev.OldName)
			}
			return true
		case <-ctx.Done():
			return false
		}
	}
	flush := func() bool {
		if pending == "" {
			return true
		}
		name := pending
		pending = ""
		timer.Stop()
		return emit(Event{Op: Deleted, Name: name})
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			name, ok := childName(dir, ev.Name)
			if !ok {
				continue
			}

			var sent bool
			switch {
			case ev.Has(fsnotify.Rename):
				sent = flush()
				pending = name
				timer.Reset(renamePairWindow)
			case ev.Has(fsnotify.Create):
				if pending != "" {
					old := pending
					pending = ""
					timer.Stop()
					sent = emit(Event{Op: Renamed, Name: name, OldName: old})
				} else {
					sent = emit(Event{Op: Created, Name: name})
				}
			case ev.Has(fsnotify.Remove):
				sent = flush() && emit(Event{Op: Deleted, Name: name})
			case ev.Has(fsnotify.Write):
				sent = flush() && emit(Event{Op: Modified, Name: name})
			default:
				// chmod only
				continue
			}
			if !sent {
				return
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			l.Warn("fsnotify error", "path", dir, "err", err)

		case <-timer.C:
			if !flush() {
				return
			}
		}
	}
}

// childName returns the base name of p when p is a direct child of dir.
func childName(dir, p string) (string, bool) {
	p = filepath.Clean(p)
	if p == dir || filepath.Dir(p) != dir {
		return "", false
	}
	return filepath.Base(p), true
}
