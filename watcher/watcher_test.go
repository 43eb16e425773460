package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, w Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher event")
	}
	return Event{}
}

// nextEventOf skips events of other ops, e.g. the Modified that follows a
// Created when a file is written.
func nextEventOf(t *testing.T, w Watcher, op Op) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Op == op {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", op)
		}
	}
}

func newTestWatcher(t *testing.T, dir string) Watcher {
	t.Helper()
	w := New(time.Second)
	if _, ok := w.(*noopWatcher); ok {
		t.Skip("no watcher backend on this platform")
	}
	w.SetWatchPath(dir)
	require.NoError(t, w.Observe())
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWatcher_CreateModifyDelete(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	ev := nextEventOf(t, w, Created)
	assert.Equal(t, "a.jpg", ev.Name)
	assert.Equal(t, filepath.Clean(dir), ev.Dir)

	time.Sleep(50 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("more")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ev = nextEventOf(t, w, Modified)
	assert.Equal(t, "a.jpg", ev.Name)

	require.NoError(t, os.Remove(path))
	ev = nextEventOf(t, w, Deleted)
	assert.Equal(t, "a.jpg", ev.Name)
}

func TestWatcher_RenameIsPaired(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.png")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0644))

	w := newTestWatcher(t, dir)
	require.NoError(t, os.Rename(old, filepath.Join(dir, "new.png")))

	ev := nextEvent(t, w)
	assert.Equal(t, Renamed, ev.Op)
	assert.Equal(t, "old.png", ev.OldName)
	assert.Equal(t, "new.png", ev.Name)
}

func TestWatcher_MoveOutBecomesDelete(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	src := filepath.Join(dir, "gone.png")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	w := newTestWatcher(t, dir)
	require.NoError(t, os.Rename(src, filepath.Join(outside, "gone.png")))

	ev := nextEvent(t, w)
	assert.Equal(t, Deleted, ev.Op)
	assert.Equal(t, "gone.png", ev.Name)
}

func TestWatcher_ObserveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	require.NoError(t, w.Observe())
	assert.True(t, w.IsObserving())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "once.jpg"), nil, 0644))
	ev := nextEvent(t, w)
	assert.Equal(t, Created, ev.Op)

	// a duplicate registration would deliver a second Created
	select {
	case dup := <-w.Events():
		assert.NotEqual(t, Created, dup.Op, "duplicate event: %+v", dup)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StopObserving(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	w.StopObserving()
	assert.False(t, w.IsObserving())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.jpg"), nil, 0644))
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event after stop: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}

	// restart picks up new changes again
	require.NoError(t, w.Observe())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "again.jpg"), nil, 0644))
	ev := nextEventOf(t, w, Created)
	assert.Equal(t, "again.jpg", ev.Name)
}

func TestWatcher_ObserveWithoutPath(t *testing.T) {
	w := New(time.Second)
	if _, ok := w.(*noopWatcher); ok {
		t.Skip("no watcher backend on this platform")
	}
	assert.ErrorIs(t, w.Observe(), ErrNoWatchPath)
}

func TestNoopWatcher(t *testing.T) {
	w := NewNoop()
	w.SetWatchPath("/tmp")
	assert.Equal(t, "/tmp", w.WatchPath())
	require.NoError(t, w.Observe())
	assert.False(t, w.IsObserving())
	assert.NotNil(t, w.Events())
	require.NoError(t, w.Close())
}
