package indexer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"photoalbum/internal/logging"
	"photoalbum/internal/mediatypes"
	"photoalbum/internal/metrics"
)

// ErrIndexing is returned when a scan is requested while one is running.
var ErrIndexing = errors.New("indexing already in progress")

// Invalidator drops cached data for a file. *imagemanager.ThumbnailCache
// implements it.
type Invalidator interface {
	RemoveFile(path string)
}

// IndexProgress tracks the current indexing progress
type IndexProgress struct {
	Images     int       `json:"images"`
	Videos     int       `json:"videos"`
	IsIndexing bool      `json:"isIndexing"`
	LastIndex  time.Time `json:"lastIndex,omitempty"`
}

// Result summarises one scan.
type Result struct {
	Files    int
	Added    int
	Changed  int
	Removed  int
	Duration time.Duration
}

// Indexer keeps an in-memory list of the media files under a directory and
// invalidates cached thumbnails of files that changed or disappeared
// between scans.
type Indexer struct {
	mediaDir       string
	invalidator    Invalidator
	parallelConfig ParallelWalkerConfig

	indexMu    sync.Mutex
	isIndexing bool

	stateMu   sync.RWMutex
	files     map[string]MediaFile
	lastIndex time.Time

	onIndexComplete func(Result)
	indexed         atomic.Bool
}

// New creates an indexer. invalidator may be nil.
func New(mediaDir string, invalidator Invalidator) *Indexer {
	return &Indexer{
		mediaDir:       mediaDir,
		invalidator:    invalidator,
		parallelConfig: DefaultParallelWalkerConfig(),
		files:          make(map[string]MediaFile),
	}
}

// SetParallelConfig sets the parallel walker configuration.
func (idx *Indexer) SetParallelConfig(config ParallelWalkerConfig) {
	idx.parallelConfig = config
}

// SetOnIndexComplete sets a callback invoked after every successful scan.
func (idx *Indexer) SetOnIndexComplete(callback func(Result)) {
	idx.onIndexComplete = callback
}

// Index scans the media directory and replaces the file list.
func (idx *Indexer) Index(ctx context.Context) (Result, error) {
	idx.indexMu.Lock()
	if idx.isIndexing {
		idx.indexMu.Unlock()
		return Result{}, ErrIndexing
	}
	idx.isIndexing = true
	idx.indexMu.Unlock()

	metrics.IndexerIsRunning.Set(1)
	defer func() {
		idx.indexMu.Lock()
		idx.isIndexing = false
		idx.indexMu.Unlock()
		metrics.IndexerIsRunning.Set(0)
	}()

	start := time.Now()
	walker := NewParallelWalker(ctx, idx.mediaDir, idx.parallelConfig)
	found, err := walker.Walk()
	if err != nil {
		metrics.IndexerErrors.Inc()
		return Result{}, err
	}

	next := make(map[string]MediaFile, len(found))
	for _, f := range found {
		next[f.Path] = f
	}

	idx.stateMu.Lock()
	prev := idx.files
	idx.files = next
	idx.lastIndex = time.Now()
	idx.stateMu.Unlock()

	result := Result{Files: len(next)}
	var stale []string
	for path, f := range next {
		old, ok := prev[path]
		switch {
		case !ok:
			result.Added++
		case old.Identity != f.Identity:
			result.Changed++
			stale = append(stale, path)
		}
	}
	for path := range prev {
		if _, ok := next[path]; !ok {
			result.Removed++
			stale = append(stale, path)
		}
	}
	if idx.invalidator != nil {
		for _, path := range stale {
			idx.invalidator.RemoveFile(path)
		}
		metrics.IndexerInvalidationsTotal.Add(float64(len(stale)))
	}

	result.Duration = time.Since(start)
	idx.indexed.Store(true)

	images, videos := idx.counts()
	metrics.IndexerRunsTotal.Inc()
	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(result.Duration.Seconds())
	metrics.IndexerFiles.WithLabelValues(string(mediatypes.FileTypeImage)).Set(float64(images))
	metrics.IndexerFiles.WithLabelValues(string(mediatypes.FileTypeVideo)).Set(float64(videos))

	logging.Info("Index complete: %d files (%d added, %d changed, %d removed) in %v",
		result.Files, result.Added, result.Changed, result.Removed, result.Duration)

	if idx.onIndexComplete != nil {
		idx.onIndexComplete(result)
	}
	return result, nil
}

func (idx *Indexer) counts() (images, videos int) {
	idx.stateMu.RLock()
	defer idx.stateMu.RUnlock()
	for _, f := range idx.files {
		switch f.Type {
		case mediatypes.FileTypeImage:
			images++
		case mediatypes.FileTypeVideo:
			videos++
		}
	}
	return images, videos
}

// paths returns the sorted absolute paths of files of type t.
func (idx *Indexer) paths(t mediatypes.FileType) []string {
	idx.stateMu.RLock()
	out := make([]string, 0, len(idx.files))
	for path, f := range idx.files {
		if f.Type == t {
			out = append(out, path)
		}
	}
	idx.stateMu.RUnlock()
	sort.Strings(out)
	return out
}

// Videos lists the known videos, scanning first if no scan has completed
// yet. It implements backgroundtask.MediaSource.
func (idx *Indexer) Videos(ctx context.Context) ([]string, error) {
	if !idx.indexed.Load() {
		if _, err := idx.Index(ctx); err != nil && !errors.Is(err, ErrIndexing) {
			return nil, err
		}
	}
	return idx.paths(mediatypes.FileTypeVideo), nil
}

// Images lists the known still images.
func (idx *Indexer) Images() []string {
	return idx.paths(mediatypes.FileTypeImage)
}

// Files returns every known media file sorted by path.
func (idx *Indexer) Files() []MediaFile {
	idx.stateMu.RLock()
	out := make([]MediaFile, 0, len(idx.files))
	for _, f := range idx.files {
		out = append(out, f)
	}
	idx.stateMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Progress reports counts and whether a scan is running.
func (idx *Indexer) Progress() IndexProgress {
	idx.indexMu.Lock()
	running := idx.isIndexing
	idx.indexMu.Unlock()

	images, videos := idx.counts()
	idx.stateMu.RLock()
	last := idx.lastIndex
	idx.stateMu.RUnlock()

	return IndexProgress{Images: images, Videos: videos, IsIndexing: running, LastIndex: last}
}

// IsReady reports whether at least one scan has completed.
func (idx *Indexer) IsReady() bool {
	return idx.indexed.Load()
}
