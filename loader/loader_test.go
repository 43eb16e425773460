package loader

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghyeongl/imgview/img"
)

// gatedDecoder blocks decodes of gatePath until release is closed and
// records the order decodes start in.
type gatedDecoder struct {
	gatePath string
	started  chan string
	release  chan struct{}

	mu    sync.Mutex
	order []string
	calls map[string]int
}

func newGatedDecoder(gatePath string) *gatedDecoder {
	return &gatedDecoder{
		gatePath: gatePath,
		started:  make(chan string, 16),
		release:  make(chan struct{}),
		calls:    make(map[string]int),
	}
}

func (d *gatedDecoder) decode(path string) (*img.Image, error) {
	d.mu.Lock()
	d.order = append(d.order, path)
	d.calls[path]++
	d.mu.Unlock()
	d.started <- path

	if path == d.gatePath {
		<-d.release
	}
	if path == "bad.jpg" {
		return nil, errors.New("corrupt")
	}
	return &img.Image{Path: path, Pixels: image.NewNRGBA(image.Rect(0, 0, 2, 2))}, nil
}

func (d *gatedDecoder) snapshot() ([]string, map[string]int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	calls := make(map[string]int, len(d.calls))
	for k, v := range d.calls {
		calls[k] = v
	}
	return append([]string(nil), d.order...), calls
}

func waitStarted(t *testing.T, d *gatedDecoder, want string) {
	t.Helper()
	select {
	case got := <-d.started:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("decode of %s did not start", want)
	}
}

func nextResult(t *testing.T, l *Loader) Result {
	t.Helper()
	select {
	case r := <-l.Results():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
		return Result{}
	}
}

func TestLoadAsync_Coalesces(t *testing.T) {
	d := newGatedDecoder("a.jpg")
	l := New(Options{Workers: 2, Decode: d.decode})
	defer l.Close()

	assert.True(t, l.LoadAsync("a.jpg"))
	waitStarted(t, d, "a.jpg")

	assert.False(t, l.LoadAsync("a.jpg"))
	assert.False(t, l.LoadAsyncPriority("a.jpg"))
	assert.True(t, l.IsLoading("a.jpg"))
	assert.True(t, l.IsBusy())

	close(d.release)
	r := nextResult(t, l)
	assert.Equal(t, "a.jpg", r.Path)
	require.NoError(t, r.Err)
	assert.Equal(t, 2, r.Image.Width())

	select {
	case extra := <-l.Results():
		t.Fatalf("unexpected second result for %s", extra.Path)
	case <-time.After(100 * time.Millisecond):
	}

	_, calls := d.snapshot()
	assert.Equal(t, 1, calls["a.jpg"])
	assert.True(t, l.IsLoading("a.jpg"))

	l.Done("a.jpg")
	assert.False(t, l.IsLoading("a.jpg"))
	assert.False(t, l.IsBusy())
}

func TestLoadAsync_UnconsumedResultStillCoalesces(t *testing.T) {
	d := newGatedDecoder("")
	l := New(Options{Workers: 2, Decode: d.decode})
	defer l.Close()

	require.True(t, l.LoadAsync("a.jpg"))
	waitStarted(t, d, "a.jpg")

	// the decode has finished but nobody has read the result yet
	require.Eventually(t, func() bool { return len(l.results) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, l.LoadAsync("a.jpg"))
	assert.False(t, l.LoadAsyncPriority("a.jpg"))

	assert.Equal(t, "a.jpg", nextResult(t, l).Path)
	select {
	case extra := <-l.Results():
		t.Fatalf("unexpected second result for %s", extra.Path)
	case <-time.After(100 * time.Millisecond):
	}
	_, calls := d.snapshot()
	assert.Equal(t, 1, calls["a.jpg"])

	l.Done("a.jpg")
	assert.True(t, l.LoadAsync("a.jpg"))
	assert.Equal(t, "a.jpg", nextResult(t, l).Path)
}

func TestLoadAsync_PriorityOvertakesQueued(t *testing.T) {
	d := newGatedDecoder("first.jpg")
	l := New(Options{Workers: 1, Decode: d.decode})
	defer l.Close()

	l.LoadAsync("first.jpg")
	waitStarted(t, d, "first.jpg")

	l.LoadAsync("n1.jpg")
	l.LoadAsync("n2.jpg")
	l.LoadAsyncPriority("p.jpg")
	l.LoadAsyncPriority("n2.jpg") // promotes the queued request

	close(d.release)
	for i := 0; i < 4; i++ {
		nextResult(t, l)
	}

	order, calls := d.snapshot()
	assert.Equal(t, []string{"first.jpg", "p.jpg", "n2.jpg", "n1.jpg"}, order)
	assert.Equal(t, 1, calls["n2.jpg"])
}

func TestClearTasks_DropsQueuedOnly(t *testing.T) {
	d := newGatedDecoder("running.jpg")
	l := New(Options{Workers: 1, Decode: d.decode})
	defer l.Close()

	l.LoadAsync("running.jpg")
	waitStarted(t, d, "running.jpg")
	l.LoadAsync("a.jpg")
	l.LoadAsync("b.jpg")

	l.ClearTasks()
	assert.False(t, l.IsLoading("a.jpg"))
	assert.False(t, l.IsLoading("b.jpg"))
	assert.True(t, l.IsLoading("running.jpg"))

	close(d.release)
	r := nextResult(t, l)
	assert.Equal(t, "running.jpg", r.Path)
	l.Done(r.Path)

	select {
	case extra := <-l.Results():
		t.Fatalf("dropped task %s still ran", extra.Path)
	case <-time.After(100 * time.Millisecond):
	}

	// dropped paths can be requested again
	assert.True(t, l.LoadAsync("a.jpg"))
	assert.Equal(t, "a.jpg", nextResult(t, l).Path)
}

func TestLoadAsync_Failure(t *testing.T) {
	d := newGatedDecoder("")
	l := New(Options{Decode: d.decode})
	defer l.Close()

	l.LoadAsync("bad.jpg")
	r := nextResult(t, l)
	assert.Equal(t, "bad.jpg", r.Path)
	assert.Error(t, r.Err)
	assert.Nil(t, r.Image)
}

func TestLoad_Sync(t *testing.T) {
	d := newGatedDecoder("")
	l := New(Options{Decode: d.decode})
	defer l.Close()

	im, err := l.Load("a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", im.Path)

	_, err = l.Load("bad.jpg")
	assert.Error(t, err)
	assert.False(t, l.IsBusy())
}

func TestClose(t *testing.T) {
	l := New(Options{Decode: newGatedDecoder("").decode})
	l.Close()
	l.Close()

	_, open := <-l.Results()
	assert.False(t, open)
	assert.False(t, l.LoadAsync("a.jpg"))
}

func TestDefaultDecoder(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := &img.Image{Pixels: image.NewNRGBA(image.Rect(0, 0, 6, 3))}
	require.NoError(t, src.Save(fs, "/p.png"))

	l := New(Options{Fs: fs})
	defer l.Close()

	l.LoadAsyncPriority("/p.png")
	r := nextResult(t, l)
	require.NoError(t, r.Err)
	assert.Equal(t, 6, r.Image.Width())
	assert.Equal(t, 3, r.Image.Height())
}
