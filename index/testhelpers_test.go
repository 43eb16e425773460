package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ghyeongl/imgview/notify"
	"github.com/ghyeongl/imgview/settings"
	"github.com/ghyeongl/imgview/watcher"
)

type recorder struct {
	events []notify.Event
}

func (r *recorder) emit(ev notify.Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []notify.Kind {
	out := make([]notify.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) reset() {
	r.events = nil
}

func testSettings() settings.Snapshot {
	s := settings.Default()
	s.Extensions = []string{"jpg", "png", "gif"}
	return s
}

func newTestIndex(t *testing.T) (*Index, *recorder) {
	t.Helper()
	rec := &recorder{}
	ix := New(Options{Emit: rec.emit, Settings: testSettings()})
	t.Cleanup(func() { ix.Close() })
	return ix, rec
}

// writeFile creates dir/name with size bytes and the given mtime offset
// from a fixed base time.
func writeFile(t *testing.T, dir, name string, size int, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	mt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Add(age)
	require.NoError(t, os.Chtimes(path, mt, mt))
	return path
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

// fakeWatcher records start/stop calls without touching the filesystem.
type fakeWatcher struct {
	path      string
	observing bool
	starts    int
	stops     int
	events    chan watcher.Event
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan watcher.Event, 8)}
}

func (w *fakeWatcher) SetWatchPath(path string)     { w.path = path }
func (w *fakeWatcher) WatchPath() string            { return w.path }
func (w *fakeWatcher) IsObserving() bool            { return w.observing }
func (w *fakeWatcher) Events() <-chan watcher.Event { return w.events }
func (w *fakeWatcher) Close() error                 { w.observing = false; return nil }

func (w *fakeWatcher) Observe() error {
	if w.path == "" {
		return watcher.ErrNoWatchPath
	}
	if !w.observing {
		w.observing = true
		w.starts++
	}
	return nil
}

func (w *fakeWatcher) StopObserving() {
	if w.observing {
		w.observing = false
		w.stops++
	}
}
