package loader

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/ghyeongl/imgview/logging"
)

// queue is a thread-safe set-based queue of paths waiting to be decoded.
// Duplicates are deduplicated. Priority paths pop before normal ones;
// each class pops in FIFO order.
type queue struct {
	mu       sync.Mutex
	priority map[string]bool // queued path -> is priority
	high     []string
	normal   []string
	notify   chan struct{} // signaled when items are added
}

func newQueue() *queue {
	return &queue{
		priority: make(map[string]bool),
		notify:   make(chan struct{}, 1),
	}
}

func (q *queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Push adds a normal path. If the path is already queued, this is a no-op.
func (q *queue) Push(path string) {
	q.mu.Lock()
	if _, exists := q.priority[path]; exists {
		q.mu.Unlock()
		if logging.Enabled(slog.LevelDebug) {
			logging.Sub("queue").Debug("push dedup", "path", path)
		}
		return
	}
	q.priority[path] = false
	q.normal = append(q.normal, path)
	newLen := len(q.high) + len(q.normal)
	q.mu.Unlock()

	if logging.Enabled(slog.LevelDebug) {
		logging.Sub("queue").Debug("push", "path", path, "queueLen", newLen)
	}
	q.signal()
}

// PushPriority adds a priority path, or promotes it if it is already
// queued as normal work.
func (q *queue) PushPriority(path string) {
	q.mu.Lock()
	prio, exists := q.priority[path]
	if exists && prio {
		q.mu.Unlock()
		return
	}
	if exists {
		q.normal = slices.DeleteFunc(q.normal, func(p string) bool { return p == path })
	}
	q.priority[path] = true
	q.high = append(q.high, path)
	newLen := len(q.high) + len(q.normal)
	q.mu.Unlock()

	if logging.Enabled(slog.LevelDebug) {
		logging.Sub("queue").Debug("push priority", "path", path, "promoted", exists, "queueLen", newLen)
	}
	q.signal()
}

// Promote moves a queued normal path into the priority class. It reports
// false when path is not queued.
func (q *queue) Promote(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	prio, exists := q.priority[path]
	if !exists {
		return false
	}
	if !prio {
		q.normal = slices.DeleteFunc(q.normal, func(p string) bool { return p == path })
		q.high = append(q.high, path)
		q.priority[path] = true
	}
	return true
}

// Pop removes and returns the next path. Blocks until a path is available
// or the done channel is closed. Returns ("", false) when done.
func (q *queue) Pop(done <-chan struct{}) (string, bool) {
	for {
		q.mu.Lock()
		var path string
		switch {
		case len(q.high) > 0:
			path, q.high = q.high[0], q.high[1:]
		case len(q.normal) > 0:
			path, q.normal = q.normal[0], q.normal[1:]
		}
		if path != "" {
			delete(q.priority, path)
			remaining := len(q.high) + len(q.normal)
			q.mu.Unlock()
			if logging.Enabled(slog.LevelDebug) {
				logging.Sub("queue").Debug("pop", "path", path, "queueLen", remaining)
			}
			return path, true
		}
		q.mu.Unlock()

		// Wait for signal or done
		select {
		case <-done:
			logging.Sub("queue").Debug("pop cancelled")
			return "", false
		case <-q.notify:
		}
	}
}

// Has checks if a path is currently in the queue.
func (q *queue) Has(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, exists := q.priority[path]
	return exists
}

// Len returns the current queue size.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.high) + len(q.normal)
}

// Drain removes and returns all queued paths, priority ones first.
func (q *queue) Drain() []string {
	q.mu.Lock()
	result := append(q.high, q.normal...)
	q.high = nil
	q.normal = nil
	q.priority = make(map[string]bool)
	q.mu.Unlock()

	if logging.Enabled(slog.LevelDebug) {
		logging.Sub("queue").Debug("drain", "count", len(result))
	}
	return result
}
