package imagemanager

import (
	"container/list"
	"context"
	"image"
	"sync"

	"photoalbum/internal/logging"
	"photoalbum/internal/mediatypes"
	"photoalbum/internal/metrics"
)

var cacheLog = logging.For("thumbcache")

const (
	DefaultScreenWidth   = 1920
	DefaultScreenHeight  = 1080
	DefaultCacheScreens  = 3
	DefaultThumbnailSize = 256
	bytesPerPixel        = 4
)

// Store persists thumbnails beneath the memory cache.
type Store interface {
	// Load returns the stored thumbnail for id. A stored entry whose
	// fingerprint differs is a miss.
	Load(ctx context.Context, id mediatypes.FileIdentity) (image.Image, bool, error)
	Save(ctx context.Context, id mediatypes.FileIdentity, img image.Image) error
	// Delete removes every entry for path.
	Delete(ctx context.Context, path string) error
	// Reset drops everything and records the new thumbnail size.
	Reset(ctx context.Context, thumbnailSize int) error
}

// CacheConfig sizes a ThumbnailCache.
type CacheConfig struct {
	ScreenWidth   int
	ScreenHeight  int
	Screens       int
	ThumbnailSize int
	// Store is optional.
	Store Store
}

func (c CacheConfig) withDefaults() CacheConfig {
	if c.ScreenWidth <= 0 {
		c.ScreenWidth = DefaultScreenWidth
	}
	if c.ScreenHeight <= 0 {
		c.ScreenHeight = DefaultScreenHeight
	}
	if c.Screens <= 0 {
		c.Screens = DefaultCacheScreens
	}
	if c.ThumbnailSize <= 0 {
		c.ThumbnailSize = DefaultThumbnailSize
	}
	return c
}

// CacheBudget returns the byte budget for the given screen geometry.
func CacheBudget(width, height, screens int) int64 {
	return int64(bytesPerPixel) * int64(width) * int64(height) * int64(screens)
}

// ImageCost is the number of bytes an image is accounted for.
func ImageCost(img image.Image) int64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return int64(bytesPerPixel) * int64(b.Dx()) * int64(b.Dy())
}

type cacheEntry struct {
	id   mediatypes.FileIdentity
	img  image.Image
	cost int64
}

// ThumbnailCache is a byte-bounded LRU of decoded thumbnails keyed by file
// identity, optionally backed by a Store that is written behind.
type ThumbnailCache struct {
	mu        sync.Mutex
	entries   map[mediatypes.FileIdentity]*list.Element
	lru       *list.List // front is most recently used
	bytes     int64
	budget    int64
	thumbSize int
	gen       uint64
	store     Store

	writer *writeBehind
}

// NewThumbnailCache creates a cache. If cfg.Store is set a writer goroutine
// is started; call Close to stop it.
func NewThumbnailCache(cfg CacheConfig) *ThumbnailCache {
	cfg = cfg.withDefaults()
	c := &ThumbnailCache{
		entries:   make(map[mediatypes.FileIdentity]*list.Element),
		lru:       list.New(),
		budget:    CacheBudget(cfg.ScreenWidth, cfg.ScreenHeight, cfg.Screens),
		thumbSize: cfg.ThumbnailSize,
		store:     cfg.Store,
	}
	if c.store != nil {
		c.writer = newWriteBehind(c.store)
	}
	cacheLog.Debug("budget %d bytes, thumbnail size %d, persistent=%v", c.budget, c.thumbSize, c.store != nil)
	return c
}

// Insert stores img under id, overwriting any previous entry, and evicts
// least recently used entries until the budget holds again. The entry just
// inserted is never evicted.
func (c *ThumbnailCache) Insert(id mediatypes.FileIdentity, img image.Image) {
	c.insert(id, img, true)
}

func (c *ThumbnailCache) insert(id mediatypes.FileIdentity, img image.Image, persist bool) {
	if img == nil || id.IsZero() {
		return
	}
	c.mu.Lock()
	c.putLocked(id, img)
	c.mu.Unlock()

	if persist && c.writer != nil {
		c.writer.enqueue(writeOp{kind: opSave, id: id, img: img})
	}
}

func (c *ThumbnailCache) putLocked(id mediatypes.FileIdentity, img image.Image) {
	cost := ImageCost(img)
	if el, ok := c.entries[id]; ok {
		e := el.Value.(*cacheEntry)
		c.bytes += cost - e.cost
		e.img = img
		e.cost = cost
		c.lru.MoveToFront(el)
	} else {
		c.entries[id] = c.lru.PushFront(&cacheEntry{id: id, img: img, cost: cost})
		c.bytes += cost
	}
	c.evictLocked()
}

func (c *ThumbnailCache) evictLocked() {
	evicted := 0
	for c.bytes > c.budget && c.lru.Len() > 1 {
		el := c.lru.Back()
		c.removeLocked(el)
		evicted++
	}
	if evicted > 0 {
		metrics.CacheEvictionsTotal.Add(float64(evicted))
	}
}

func (c *ThumbnailCache) removeLocked(el *list.Element) {
	e := el.Value.(*cacheEntry)
	c.lru.Remove(el)
	delete(c.entries, e.id)
	c.bytes -= e.cost
}

// Lookup returns the thumbnail for id. A memory miss falls through to the
// store; store hits are kept in memory.
func (c *ThumbnailCache) Lookup(id mediatypes.FileIdentity) (image.Image, bool) {
	c.mu.Lock()
	if el, ok := c.entries[id]; ok {
		c.lru.MoveToFront(el)
		img := el.Value.(*cacheEntry).img
		c.mu.Unlock()
		metrics.CacheLookupsTotal.WithLabelValues("memory_hit").Inc()
		return img, true
	}
	gen := c.gen
	store := c.store
	c.mu.Unlock()

	if store == nil {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	img, ok, err := store.Load(context.Background(), id)
	if err != nil {
		cacheLog.Warn("load %s: %v", id.Path, err)
		metrics.CacheStoreErrors.WithLabelValues("load").Inc()
	}
	if err != nil || !ok || img == nil {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	c.mu.Lock()
	// Skip promotion if the cache was invalidated during the load.
	if c.gen == gen {
		c.putLocked(id, img)
	}
	c.mu.Unlock()
	metrics.CacheLookupsTotal.WithLabelValues("disk_hit").Inc()
	return img, true
}

// contains reports whether id is in memory without touching recency.
func (c *ThumbnailCache) contains(id mediatypes.FileIdentity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

// RemoveFile drops every entry for path from memory and the store.
func (c *ThumbnailCache) RemoveFile(path string) {
	c.mu.Lock()
	for id, el := range c.entries {
		if id.Path == path {
			c.removeLocked(el)
		}
	}
	c.gen++
	c.mu.Unlock()

	if c.writer != nil {
		c.writer.enqueue(writeOp{kind: opDelete, path: path})
	}
}

// SetThumbnailSize resets the whole cache when the size changes.
func (c *ThumbnailCache) SetThumbnailSize(size int) {
	if size <= 0 {
		return
	}
	c.mu.Lock()
	if size == c.thumbSize {
		c.mu.Unlock()
		return
	}
	c.thumbSize = size
	c.entries = make(map[mediatypes.FileIdentity]*list.Element)
	c.lru.Init()
	c.bytes = 0
	c.gen++
	c.mu.Unlock()

	cacheLog.Info("thumbnail size changed to %d, cache reset", size)
	if c.writer != nil {
		c.writer.enqueue(writeOp{kind: opReset, size: size})
	}
}

// setBudget changes the byte budget and evicts immediately if needed.
func (c *ThumbnailCache) setBudget(budget int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.budget = budget
	c.evictLocked()
}

// ThumbnailSize returns the edge length of cached thumbnails.
func (c *ThumbnailCache) ThumbnailSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thumbSize
}

// Len returns the number of thumbnails held in memory.
func (c *ThumbnailCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Bytes returns the estimated memory held by cached thumbnails.
func (c *ThumbnailCache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Budget returns the memory budget in bytes.
func (c *ThumbnailCache) Budget() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.budget
}

// Flush blocks until every write queued so far has reached the store.
func (c *ThumbnailCache) Flush() {
	if c.writer != nil {
		c.writer.flush()
	}
}

// Close flushes pending writes and stops the writer.
func (c *ThumbnailCache) Close() {
	if c.writer != nil {
		c.writer.close()
	}
}

type opKind int

const (
	opSave opKind = iota
	opDelete
	opReset
	opBarrier
)

type writeOp struct {
	kind opKind
	id   mediatypes.FileIdentity
	img  image.Image
	path string
	size int
	done chan struct{}
}

// writeBehind applies store operations in order on its own goroutine.
type writeBehind struct {
	store  Store
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []writeOp
	closed bool
	done   chan struct{}
	once   sync.Once
}

func newWriteBehind(store Store) *writeBehind {
	w := &writeBehind{store: store, done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	go w.loop()
	return w
}

func (w *writeBehind) enqueue(op writeOp) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		if op.done != nil {
			close(op.done)
		}
		return false
	}
	w.queue = append(w.queue, op)
	w.cond.Signal()
	return true
}

func (w *writeBehind) flush() {
	done := make(chan struct{})
	w.enqueue(writeOp{kind: opBarrier, done: done})
	<-done
}

func (w *writeBehind) close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.cond.Broadcast()
		w.mu.Unlock()
		<-w.done
	})
}

func (w *writeBehind) loop() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		batch := w.queue
		w.queue = nil
		closed := w.closed
		w.mu.Unlock()

		for _, op := range batch {
			w.apply(op)
		}
		if closed && len(batch) == 0 {
			return
		}
	}
}

func (w *writeBehind) apply(op writeOp) {
	ctx := context.Background()
	var err error
	var label string
	switch op.kind {
	case opSave:
		label = "save"
		err = w.store.Save(ctx, op.id, op.img)
	case opDelete:
		label = "delete"
		err = w.store.Delete(ctx, op.path)
	case opReset:
		label = "reset"
		err = w.store.Reset(ctx, op.size)
	case opBarrier:
		close(op.done)
	}
	if err != nil {
		cacheLog.Warn("store %s failed: %v", label, err)
		metrics.CacheStoreErrors.WithLabelValues(label).Inc()
	}
}
