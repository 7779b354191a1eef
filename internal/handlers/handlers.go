package handlers

import (
	"context"
	"time"

	"photoalbum/internal/backgroundtask"
	"photoalbum/internal/indexer"
)

// Pipeline is the view of the async image loader the status API needs.
type Pipeline interface {
	Pending() map[string]int
	ActiveCount() int
	Decoding() int
	Workers() int
}

// Cache is the view of the thumbnail cache the status API needs.
type Cache interface {
	Len() int
	Bytes() int64
	Budget() int64
	ThumbnailSize() int
}

// Jobs is the view of the background job scheduler the status API needs.
type Jobs interface {
	Stats() (queued, running, waiting int)
	Snapshot() []backgroundtask.JobInfo
	Pause()
	Resume()
	IsPaused() bool
}

// Library reports indexing state.
type Library interface {
	Progress() indexer.IndexProgress
	IsReady() bool
}

// Scanner rescans the media directory and queues video thumbnail work.
type Scanner interface {
	Scan(ctx context.Context) error
}

// MemoryStatus reports heap pressure. *memory.Monitor implements it.
type MemoryStatus interface {
	Usage() float64
	IsPaused() bool
}

// Deps bundles the components the handlers read from. Memory may be nil.
type Deps struct {
	Pipeline Pipeline
	Cache    Cache
	Jobs     Jobs
	Library  Library
	Scanner  Scanner
	Memory   MemoryStatus
}

type Handlers struct {
	pipeline Pipeline
	cache    Cache
	jobs     Jobs
	library  Library
	scanner  Scanner
	memory   MemoryStatus

	startTime time.Time
	// scanCtx bounds scans started over HTTP; cancelled by Close.
	scanCtx    context.Context
	cancelScan context.CancelFunc
}

// New returns handlers over deps. A nil Scanner disables POST /api/scan.
func New(deps Deps) *Handlers {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{
		pipeline:   deps.Pipeline,
		cache:      deps.Cache,
		jobs:       deps.Jobs,
		library:    deps.Library,
		scanner:    deps.Scanner,
		memory:     deps.Memory,
		startTime:  time.Now(),
		scanCtx:    ctx,
		cancelScan: cancel,
	}
}

// Close cancels any scan started through the API.
func (h *Handlers) Close() {
	h.cancelScan()
}
