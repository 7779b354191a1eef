package imagemanager

import (
	"sync"
)

// Progress reports how many of total files have been handled.
type Progress func(done, total int)

// ThumbnailBuilder pre-generates thumbnails for a list of files, one
// BatchTask request at a time. Its callbacks run on the loader's owning
// goroutine.
type ThumbnailBuilder struct {
	loader   *AsyncLoader
	files    []string
	size     int
	progress Progress
	handle   *ClientHandle

	mu       sync.Mutex
	next     int
	handled  int
	finished bool
	done     chan struct{}
}

// NewThumbnailBuilder prepares a builder. Nothing is requested until Start.
func NewThumbnailBuilder(loader *AsyncLoader, files []string, size int, progress Progress) *ThumbnailBuilder {
	b := &ThumbnailBuilder{
		loader:   loader,
		files:    files,
		size:     size,
		progress: progress,
		done:     make(chan struct{}),
	}
	b.handle = loader.NewClient(b)
	return b
}

// Start requests the first thumbnail.
func (b *ThumbnailBuilder) Start() {
	log.Info("building thumbnails for %d files", len(b.files))
	b.requestNext()
}

// requestNext skips files that are already cached or cannot be loaded and
// submits the next one.
func (b *ThumbnailBuilder) requestNext() {
	for {
		b.mu.Lock()
		if b.finished {
			b.mu.Unlock()
			return
		}
		if b.next >= len(b.files) {
			b.mu.Unlock()
			b.finish()
			return
		}
		path := b.files[b.next]
		b.next++
		b.mu.Unlock()

		if _, ok := b.loader.CachedThumbnail(path); ok {
			b.advance()
			continue
		}
		req := NewRequest(path, b.size, 0, b.handle).
			SetPriority(BatchTask).
			SetThumbnail(true)
		if b.loader.Load(req) {
			return
		}
		b.advance()
	}
}

func (b *ThumbnailBuilder) advance() {
	b.mu.Lock()
	b.handled++
	handled := b.handled
	b.mu.Unlock()
	if b.progress != nil {
		b.progress(handled, len(b.files))
	}
}

// ImageReady implements ImageClient.
func (b *ThumbnailBuilder) ImageReady(ImageResult) {
	b.advance()
	b.requestNext()
}

// Cancel stops the build. The request in flight is discarded.
func (b *ThumbnailBuilder) Cancel() {
	b.handle.Release()
	b.finish()
}

func (b *ThumbnailBuilder) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.finished = true
	close(b.done)
	log.Info("thumbnail build finished: %d of %d files", b.handled, len(b.files))
}

// Handled returns the number of files processed so far.
func (b *ThumbnailBuilder) Handled() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handled
}

// Done is closed when the builder has finished or been cancelled.
func (b *ThumbnailBuilder) Done() <-chan struct{} {
	return b.done
}
