package watcher

import (
	"errors"
	"sync"
	"time"

	"github.com/ghyeongl/imgview/logging"
)

// Op is the kind of change a Watcher reports.
type Op int

const (
	Created Op = iota + 1
	Deleted
	Modified
	Renamed
)

func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	}
	return "unknown"
}

// Event is a change inside the watched directory. Name and OldName are
// relative to Dir; OldName is only set for Renamed.
type Event struct {
	Op      Op
	Dir     string
	Name    string
	OldName string
}

// Watcher observes one directory for changes to its direct children.
type Watcher interface {
	// SetWatchPath changes the directory; takes effect on the next Observe.
	SetWatchPath(path string)
	WatchPath() string
	// Observe starts watching. Calling it while running is a no-op.
	Observe() error
	// StopObserving stops the background loop, waiting a bounded time for it.
	StopObserving()
	IsObserving() bool
	// Events is the only channel through which the background loop reports.
	Events() <-chan Event
	Close() error
}

// ErrNoWatchPath is returned by Observe before SetWatchPath.
var ErrNoWatchPath = errors.New("watch path not set")

// DefaultStopTimeout bounds StopObserving when no timeout is configured.
const DefaultStopTimeout = 2 * time.Second

// New returns the platform backend, or a no-op watcher when the backend is
// unavailable.
func New(stopTimeout time.Duration) Watcher {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	w, err := newBackend(stopTimeout)
	if err != nil {
		logging.Sub("watcher").Warn("watcher backend unavailable, live refresh disabled", "err", err)
		return NewNoop()
	}
	return w
}

// noopWatcher keeps the path but never reports anything.
type noopWatcher struct {
	mu     sync.Mutex
	path   string
	events chan Event
}

// NewNoop returns a Watcher that never observes.
func NewNoop() Watcher {
	return &noopWatcher{events: make(chan Event)}
}

func (w *noopWatcher) SetWatchPath(path string) {
	w.mu.Lock()
	w.path = path
	w.mu.Unlock()
}

func (w *noopWatcher) WatchPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

func (w *noopWatcher) Observe() error       { return nil }
func (w *noopWatcher) StopObserving()       {}
func (w *noopWatcher) IsObserving() bool    { return false }
func (w *noopWatcher) Events() <-chan Event { return w.events }
func (w *noopWatcher) Close() error         { return nil }
