package imagemanager

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"photoalbum/internal/backgroundtask"
	"photoalbum/internal/media"
	"photoalbum/internal/mediatypes"
)

func identityOf(t *testing.T, path string) mediatypes.FileIdentity {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return mediatypes.NewFileIdentity(path, info)
}

func TestLoadPhotoEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := writeJPEG(t, dir, "photo.jpg", 1000, 1000)

	cache := NewThumbnailCache(CacheConfig{})
	l := NewAsyncLoader(LoaderConfig{Decoder: media.NewDecoder(false, nil), Cache: cache, Workers: 2})
	defer l.Close()

	client := &recordingClient{}
	h := l.NewClient(client)
	req := NewRequest(path, 200, 0, h).SetThumbnail(true)
	if !l.Load(req) {
		t.Fatal("Load rejected an existing photo")
	}

	pump(t, l, func() bool { return len(client.results) == 1 })

	res := client.results[0]
	if !res.LoadedOK {
		t.Fatal("photo failed to load")
	}
	if b := res.Image.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("image is %dx%d, want 200x200", b.Dx(), b.Dy())
	}
	if res.FullSize != image.Pt(1000, 1000) {
		t.Errorf("FullSize = %v", res.FullSize)
	}
	if res.Request != req {
		t.Error("result carries a different request")
	}
	if _, ok := cache.Lookup(identityOf(t, path)); !ok {
		t.Error("thumbnail not cached")
	}
	if img, ok := l.CachedThumbnail(path); !ok || img.Bounds().Dx() != 200 {
		t.Error("CachedThumbnail missed")
	}
	if l.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d after delivery", l.ActiveCount())
	}
}

func TestLoadMissingFileIsDropped(t *testing.T) {
	dec := newGateDecoder(false)
	l := NewAsyncLoader(LoaderConfig{Decoder: dec, Workers: 1})
	defer l.Close()

	client := &recordingClient{}
	h := l.NewClient(client)
	if l.Load(NewRequest(filepath.Join(t.TempDir(), "gone.jpg"), 64, 0, h)) {
		t.Error("Load accepted a missing file")
	}
	settle(l)
	if len(client.results) != 0 || len(dec.decoded()) != 0 {
		t.Errorf("missing file produced results=%d decodes=%d", len(client.results), len(dec.decoded()))
	}
}

func TestLoadDeduplicates(t *testing.T) {
	dir := t.TempDir()
	path := writeJPEG(t, dir, "a.jpg", 10, 10)
	dec := newGateDecoder(true)
	l := NewAsyncLoader(LoaderConfig{Decoder: dec, Workers: 1})
	defer l.Close()

	client := &recordingClient{}
	h := l.NewClient(client)
	if !l.Load(NewRequest(path, 64, 0, h)) {
		t.Fatal("first Load rejected")
	}
	waitStarted(t, dec)
	if l.Load(NewRequest(path, 64, 0, h)) {
		t.Error("equivalent request accepted while the first is in flight")
	}
	close(dec.release)

	pump(t, l, func() bool { return len(client.results) == 1 })
	settle(l)
	if len(client.results) != 1 {
		t.Errorf("got %d results, want 1", len(client.results))
	}
}

func TestLoadPriorityOrder(t *testing.T) {
	dir := t.TempDir()
	dec := newGateDecoder(true)
	l := NewAsyncLoader(LoaderConfig{Decoder: dec, Workers: 1})
	defer l.Close()

	client := &recordingClient{}
	h := l.NewClient(client)

	l.Load(NewRequest(writeJPEG(t, dir, "first.jpg", 4, 4), 8, 0, h).SetPriority(BatchTask))
	waitStarted(t, dec)

	l.Load(NewRequest(writeJPEG(t, dir, "batch.jpg", 4, 4), 8, 0, h).SetPriority(BatchTask))
	l.Load(NewRequest(writeJPEG(t, dir, "invisible.jpg", 4, 4), 8, 0, h).SetPriority(ThumbnailInvisible))
	l.Load(NewRequest(writeJPEG(t, dir, "viewer.jpg", 4, 4), 8, 0, h).SetPriority(Viewer))
	close(dec.release)

	pump(t, l, func() bool { return len(client.results) == 4 })

	want := []string{"first.jpg", "viewer.jpg", "invisible.jpg", "batch.jpg"}
	got := dec.decoded()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("decode order = %v, want %v", got, want)
		}
	}
}

func TestStopIsNonDestructive(t *testing.T) {
	dir := t.TempDir()
	running := writeJPEG(t, dir, "running.jpg", 4, 4)
	pending := writeJPEG(t, dir, "pending.jpg", 4, 4)

	dec := newGateDecoder(true)
	cache := NewThumbnailCache(CacheConfig{})
	l := NewAsyncLoader(LoaderConfig{Decoder: dec, Cache: cache, Workers: 1})
	defer l.Close()

	client := &recordingClient{}
	h := l.NewClient(client)
	l.Load(NewRequest(running, 8, 0, h).SetThumbnail(true))
	waitStarted(t, dec)
	l.Load(NewRequest(pending, 8, 0, h).SetThumbnail(true))

	l.Stop(h, StopAll|NotifyCancelled)
	close(dec.release)

	pump(t, l, func() bool { return len(client.cancelled) == 1 && l.ActiveCount() == 0 })
	settle(l)

	if len(client.results) != 0 {
		t.Errorf("withdrawn requests delivered %d results", len(client.results))
	}
	if got := client.cancelled[0].FileName(); got != pending {
		t.Errorf("cancel notice for %s, want %s", got, pending)
	}
	if got := dec.decoded(); len(got) != 1 {
		t.Errorf("decoded %v, want only the running request", got)
	}
	if _, ok := cache.Lookup(identityOf(t, running)); !ok {
		t.Error("result of the running decode was not cached")
	}
}

func TestStopOnlyNonPriorityLoads(t *testing.T) {
	dir := t.TempDir()
	dec := newGateDecoder(true)
	l := NewAsyncLoader(LoaderConfig{Decoder: dec, Workers: 1})
	defer l.Close()

	client := &recordingClient{}
	h := l.NewClient(client)
	l.Load(NewRequest(writeJPEG(t, dir, "busy.jpg", 4, 4), 8, 0, h).SetPriority(Viewer))
	waitStarted(t, dec)
	if n := l.Decoding(); n != 1 {
		t.Errorf("Decoding() = %d while the viewer request decodes, want 1", n)
	}
	l.Load(NewRequest(writeJPEG(t, dir, "visible.jpg", 4, 4), 8, 0, h).SetPriority(ThumbnailVisible))
	l.Load(NewRequest(writeJPEG(t, dir, "invisible.jpg", 4, 4), 8, 0, h).SetPriority(ThumbnailInvisible))

	l.Stop(h, StopOnlyNonPriorityLoads)
	close(dec.release)

	pump(t, l, func() bool { return len(client.results) == 2 })
	settle(l)
	for _, r := range client.results {
		if filepath.Base(r.Request.FileName()) == "invisible.jpg" {
			t.Error("non-priority request was delivered")
		}
	}
	if len(client.cancelled) != 0 {
		t.Error("cancel notices sent without NotifyCancelled")
	}
}

func TestDecodeFailureDeliversPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := writeJPEG(t, dir, "broken.jpg", 4, 4)
	dec := newGateDecoder(false)
	dec.fail = true

	cache := NewThumbnailCache(CacheConfig{})
	l := NewAsyncLoader(LoaderConfig{Decoder: dec, Cache: cache, Workers: 1})
	defer l.Close()

	client := &recordingClient{}
	l.Load(NewRequest(path, 96, 0, l.NewClient(client)).SetThumbnail(true))
	pump(t, l, func() bool { return len(client.results) == 1 })

	res := client.results[0]
	if res.LoadedOK {
		t.Error("failed decode reported LoadedOK")
	}
	if res.Image != media.BrokenImage(96) {
		t.Error("failed decode did not deliver the placeholder")
	}
}

func TestReleasedClientIsNeverCalled(t *testing.T) {
	dir := t.TempDir()
	dec := newGateDecoder(true)
	l := NewAsyncLoader(LoaderConfig{Decoder: dec, Workers: 1})
	defer l.Close()

	client := &recordingClient{}
	h := l.NewClient(client)
	l.Load(NewRequest(writeJPEG(t, dir, "a.jpg", 4, 4), 8, 0, h))
	waitStarted(t, dec)
	l.Load(NewRequest(writeJPEG(t, dir, "b.jpg", 4, 4), 8, 0, h))

	h.Release()
	close(dec.release)
	pump(t, l, func() bool { return l.ActiveCount() == 0 })
	settle(l)

	if len(client.results) != 0 || len(client.cancelled) != 0 {
		t.Errorf("released client called: results=%d cancelled=%d", len(client.results), len(client.cancelled))
	}
	if l.Load(NewRequest(filepath.Join(dir, "a.jpg"), 8, 0, h)) {
		t.Error("released client's request accepted")
	}
}

func TestSettersFrozenAfterLoad(t *testing.T) {
	dir := t.TempDir()
	dec := newGateDecoder(true)
	l := NewAsyncLoader(LoaderConfig{Decoder: dec, Workers: 1})
	defer func() {
		close(dec.release)
		l.Close()
	}()

	req := NewRequest(writeJPEG(t, dir, "a.jpg", 4, 4), 8, 0, nil).SetPriority(BatchTask)
	l.Load(req)
	req.SetPriority(Viewer).SetThumbnail(true)
	if req.Priority() != BatchTask || req.IsThumbnail() {
		t.Error("setters changed a loaded request")
	}
	if req.Identity().IsZero() {
		t.Error("Load did not fill the identity")
	}
}

func TestVideoWithoutExtractorIsDropped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0644); err != nil {
		t.Fatal(err)
	}
	l := NewAsyncLoader(LoaderConfig{Decoder: newGateDecoder(false), Workers: 1})
	defer l.Close()

	client := &recordingClient{}
	if l.Load(NewRequest(path, 64, 0, l.NewClient(client))) {
		t.Error("video accepted without an extractor")
	}
}

// frameTool writes a fixed JPEG as every extracted frame.
type frameTool struct {
	dir   string
	frame string
}

func (f *frameTool) Length(ctx context.Context, path string) (time.Duration, error) {
	return 10 * time.Second, nil
}

func (f *frameTool) ExtractFrame(ctx context.Context, path string, offset time.Duration, dest string) error {
	data, err := os.ReadFile(f.frame)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0644)
}

func (f *frameTool) FrameName(path string, index int) string {
	return filepath.Join(f.dir, filepath.Base(path)+"-"+string(rune('0'+index))+".jpg")
}

func (f *frameTool) ThumbnailName(path string) string {
	return filepath.Join(f.dir, filepath.Base(path)+".jpg")
}

func TestVideoThumbnailThroughScheduler(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(video, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}
	tool := &frameTool{dir: t.TempDir(), frame: writeJPEG(t, dir, "frame.jpg", 320, 240)}

	decoder := media.NewDecoder(false, nil)
	sched := backgroundtask.New(backgroundtask.Config{Workers: 1, Tool: tool, Decode: decoder.Decode})
	sched.Start(context.Background())
	defer sched.Stop()

	cache := NewThumbnailCache(CacheConfig{})
	l := NewAsyncLoader(LoaderConfig{Decoder: decoder, Cache: cache, Videos: sched, Workers: 1})
	defer l.Close()

	client := &recordingClient{}
	if !l.Load(NewRequest(video, 160, 0, l.NewClient(client)).SetThumbnail(true)) {
		t.Fatal("video request rejected")
	}
	pump(t, l, func() bool { return len(client.results) == 1 })

	res := client.results[0]
	if !res.LoadedOK {
		t.Fatal("video thumbnail failed")
	}
	if b := res.Image.Bounds(); b.Dx() != 160 || b.Dy() != 120 {
		t.Errorf("thumbnail is %dx%d, want 160x120", b.Dx(), b.Dy())
	}
	if res.FullSize != image.Pt(320, 240) {
		t.Errorf("FullSize = %v", res.FullSize)
	}
	if _, ok := cache.Lookup(identityOf(t, video)); !ok {
		t.Error("video thumbnail not cached")
	}
}

func TestStopCancelsVideoJobs(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(video, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}
	tool := &frameTool{dir: t.TempDir(), frame: writeJPEG(t, dir, "frame.jpg", 32, 32)}

	// Not started, so the job stays queued.
	sched := backgroundtask.New(backgroundtask.Config{Workers: 1, Tool: tool})
	defer sched.Stop()

	l := NewAsyncLoader(LoaderConfig{Decoder: newGateDecoder(false), Videos: sched, Workers: 1})
	defer l.Close()

	client := &recordingClient{}
	h := l.NewClient(client)
	if !l.Load(NewRequest(video, 64, 0, h)) {
		t.Fatal("video request rejected")
	}
	if l.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", l.ActiveCount())
	}

	l.Stop(h, StopAll|NotifyCancelled)
	pump(t, l, func() bool { return len(client.cancelled) == 1 })
	if l.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d after cancel", l.ActiveCount())
	}
	if queued, _, _ := sched.Stats(); queued != 0 {
		t.Errorf("scheduler still has %d queued jobs", queued)
	}
}

func TestRunDeliversUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	l := NewAsyncLoader(LoaderConfig{Decoder: newGateDecoder(false), Workers: 1})
	defer l.Close()

	delivered := make(chan ImageResult, 1)
	h := l.NewClient(clientFunc(func(r ImageResult) { delivered <- r }))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()

	l.Load(NewRequest(writeJPEG(t, dir, "a.jpg", 4, 4), 8, 0, h))
	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not deliver")
	}

	cancel()
	if err := <-errc; err != context.Canceled {
		t.Errorf("Run returned %v", err)
	}
}

type clientFunc func(ImageResult)

func (f clientFunc) ImageReady(r ImageResult) { f(r) }
