// Package loader decodes images off the caller's goroutine with a bounded
// worker pool, coalescing duplicate requests for the same path.
package loader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/marusama/semaphore/v2"
	"github.com/spf13/afero"

	"github.com/ghyeongl/imgview/img"
	"github.com/ghyeongl/imgview/logging"
	"github.com/ghyeongl/imgview/metrics"
)

const resultBuffer = 64

// DecodeFunc decodes one file.
type DecodeFunc func(path string) (*img.Image, error)

// Result is one finished asynchronous load. Exactly one of Image and Err
// is set.
type Result struct {
	Path  string
	Image *img.Image
	Err   error
}

// Options configures a Loader.
type Options struct {
	// Workers bounds concurrent decodes; at least 1.
	Workers int
	// Fs is used by the default decoder; defaults to the OS filesystem.
	Fs afero.Fs
	// Decode overrides the decoder.
	Decode DecodeFunc
}

// Loader schedules decodes and reports them on Results.
type Loader struct {
	decode DecodeFunc
	queue  *queue
	sem    semaphore.Semaphore

	mu       sync.Mutex
	inflight map[string]struct{} // queued, running or awaiting Done

	results chan Result
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  sync.Once
}

// New starts a Loader. Close stops it.
func New(opts Options) *Loader {
	workers := max(opts.Workers, 1)
	decode := opts.Decode
	if decode == nil {
		fsys := opts.Fs
		if fsys == nil {
			fsys = afero.NewOsFs()
		}
		decode = func(path string) (*img.Image, error) {
			return img.Decode(fsys, path)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		decode:   decode,
		queue:    newQueue(),
		sem:      semaphore.New(workers),
		inflight: make(map[string]struct{}),
		results:  make(chan Result, resultBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}

	l.wg.Add(1)
	go l.dispatch()
	return l
}

// Results delivers finished asynchronous loads. The consumer calls Done
// for each one. Closed by Close.
func (l *Loader) Results() <-chan Result {
	return l.results
}

// SetWorkers changes the decode concurrency limit.
func (l *Loader) SetWorkers(n int) {
	l.sem.SetLimit(max(n, 1))
}

// Load decodes path on the calling goroutine.
func (l *Loader) Load(path string) (*img.Image, error) {
	start := time.Now()
	im, err := l.decode(path)
	metrics.RecordDecode(false, time.Since(start), err)
	return im, err
}

// LoadAsync queues a decode. It reports false when path is already queued
// or running.
func (l *Loader) LoadAsync(path string) bool {
	return l.schedule(path, false)
}

// LoadAsyncPriority queues a decode ahead of normal work. A path already
// queued as normal work is promoted; a running path is left alone.
func (l *Loader) LoadAsyncPriority(path string) bool {
	return l.schedule(path, true)
}

func (l *Loader) schedule(path string, priority bool) bool {
	if l.ctx.Err() != nil {
		return false
	}

	l.mu.Lock()
	_, busy := l.inflight[path]
	if busy {
		l.mu.Unlock()
		if priority {
			l.queue.Promote(path)
		}
		return false
	}
	l.inflight[path] = struct{}{}
	l.mu.Unlock()

	if priority {
		l.queue.PushPriority(path)
	} else {
		l.queue.Push(path)
	}
	metrics.SetLoaderQueued(l.queue.Len())
	return true
}

// Done releases path after its Result has been consumed. Until then the
// path counts as loading and further requests for it are coalesced.
func (l *Loader) Done(path string) {
	l.mu.Lock()
	delete(l.inflight, path)
	l.mu.Unlock()
}

// IsLoading reports whether path is queued, being decoded, or has a Result
// not yet released with Done.
func (l *Loader) IsLoading(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.inflight[path]
	return ok
}

// IsBusy reports whether any load is queued or running.
func (l *Loader) IsBusy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight) > 0
}

// ClearTasks drops queued work. Decodes already running still finish and
// report.
func (l *Loader) ClearTasks() {
	dropped := l.queue.Drain()
	l.mu.Lock()
	for _, p := range dropped {
		delete(l.inflight, p)
	}
	l.mu.Unlock()
	metrics.SetLoaderQueued(0)

	if len(dropped) > 0 {
		logging.Sub("loader").Debug("queued loads dropped", "count", len(dropped))
	}
}

// Close stops dispatching, waits for running decodes and closes Results.
func (l *Loader) Close() {
	l.closed.Do(func() {
		l.ClearTasks()
		l.cancel()
		l.wg.Wait()
		close(l.results)
	})
}

// dispatch takes a worker slot before popping so that a priority request
// arriving while all workers are busy still overtakes normal work.
func (l *Loader) dispatch() {
	defer l.wg.Done()
	for {
		if err := l.sem.Acquire(l.ctx, 1); err != nil {
			return
		}
		path, ok := l.queue.Pop(l.ctx.Done())
		if !ok {
			l.sem.Release(1)
			return
		}
		metrics.SetLoaderQueued(l.queue.Len())

		l.wg.Add(1)
		go l.work(path)
	}
}

func (l *Loader) work(path string) {
	defer l.wg.Done()

	start := time.Now()
	im, err := l.decode(path)
	elapsed := time.Since(start)
	l.sem.Release(1)
	metrics.RecordDecode(true, elapsed, err)

	if err != nil {
		logging.Sub("loader").Debug("decode failed", "path", path, "err", err)
	} else if logging.Enabled(slog.LevelDebug) {
		logging.Sub("loader").Debug("decoded", "path", path, "elapsed", elapsed)
	}

	r := Result{Path: path, Image: im, Err: err}
	if err != nil {
		r.Image = nil
	}
	select {
	case l.results <- r:
	case <-l.ctx.Done():
		l.Done(path)
	}
}
