package imagemanager

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"photoalbum/internal/mediatypes"
)

func writeJPEG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}

func solid(w, h int) image.Image {
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

func testIdentity(path string) mediatypes.FileIdentity {
	return mediatypes.FileIdentity{Path: path, Fingerprint: 1}
}

func newHandle() *ClientHandle {
	h := &ClientHandle{}
	h.alive.Store(true)
	return h
}

// queuedRequest builds a request as Load would leave it.
func queuedRequest(path string, size int, p Priority, client *ClientHandle) *ImageRequest {
	r := NewRequest(path, size, 0, client).SetPriority(p)
	r.identity = testIdentity(path)
	r.frozen.Store(true)
	return r
}

// recordingClient collects callbacks. It is only touched from the test
// goroutine via ProcessEvents.
type recordingClient struct {
	results   []ImageResult
	cancelled []*ImageRequest
}

func (c *recordingClient) ImageReady(r ImageResult)           { c.results = append(c.results, r) }
func (c *recordingClient) RequestCancelled(req *ImageRequest) { c.cancelled = append(c.cancelled, req) }

// gateDecoder records decode order and optionally blocks each decode until
// released.
type gateDecoder struct {
	mu      sync.Mutex
	order   []string
	started chan string
	release chan struct{}
	fail    bool
}

func newGateDecoder(blocking bool) *gateDecoder {
	d := &gateDecoder{started: make(chan string, 64)}
	if blocking {
		d.release = make(chan struct{})
	}
	return d
}

func (d *gateDecoder) Decode(ctx context.Context, path string, size, angle int) (image.Image, image.Point, error) {
	d.mu.Lock()
	d.order = append(d.order, filepath.Base(path))
	d.mu.Unlock()
	d.started <- filepath.Base(path)
	if d.release != nil {
		select {
		case <-d.release:
		case <-ctx.Done():
			return nil, image.Point{}, ctx.Err()
		}
	}
	if d.fail {
		return nil, image.Point{}, os.ErrInvalid
	}
	return solid(size, size), image.Pt(size*2, size*2), nil
}

func (d *gateDecoder) decoded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

func waitStarted(t *testing.T, d *gateDecoder) string {
	t.Helper()
	select {
	case name := <-d.started:
		return name
	case <-time.After(5 * time.Second):
		t.Fatal("decode did not start")
		return ""
	}
}

// pump delivers messages until cond holds.
func pump(t *testing.T, l *AsyncLoader, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		l.ProcessEvents()
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for delivery")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// settle gives workers time to post anything they were going to post and
// delivers it.
func settle(l *AsyncLoader) {
	for i := 0; i < 10; i++ {
		time.Sleep(10 * time.Millisecond)
		l.ProcessEvents()
	}
}
