package main

import (
	"context"
	"fmt"
	"sync"

	"photoalbum/internal/backgroundtask"
	"photoalbum/internal/imagemanager"
	"photoalbum/internal/indexer"
	"photoalbum/internal/logging"

	"github.com/robfig/cron/v3"
)

var scanLog = logging.For("scan")

// libraryScanner rescans the media directory, queues the video thumbnail
// search and optionally pre-builds image thumbnails.
type libraryScanner struct {
	idx    *indexer.Indexer
	jobs   *backgroundtask.Scheduler // nil when videos are disabled
	loader *imagemanager.AsyncLoader
	// buildSize > 0 enables the thumbnail builder.
	buildSize int

	mu      sync.Mutex
	builder *imagemanager.ThumbnailBuilder
}

// Scan implements handlers.Scanner.
func (s *libraryScanner) Scan(ctx context.Context) error {
	result, err := s.idx.Index(ctx)
	if err != nil {
		return fmt.Errorf("index media: %w", err)
	}
	scanLog.Info("indexed %d files in %v (%d added, %d changed, %d removed)",
		result.Files, result.Duration, result.Added, result.Changed, result.Removed)

	if s.jobs != nil {
		if err := s.jobs.AddJob(backgroundtask.NewSearchVideosJob(), backgroundtask.BackgroundVideoPreviewRequest); err != nil {
			return fmt.Errorf("queue video search: %w", err)
		}
	}

	if s.buildSize > 0 {
		s.startBuilder()
	}
	return nil
}

// startBuilder starts a thumbnail build unless the previous one is still
// running.
func (s *libraryScanner) startBuilder() {
	s.mu.Lock()
	if s.builder != nil {
		select {
		case <-s.builder.Done():
		default:
			s.mu.Unlock()
			scanLog.Debug("thumbnail build still running, not starting another")
			return
		}
	}
	b := imagemanager.NewThumbnailBuilder(s.loader, s.idx.Images(), s.buildSize, func(done, total int) {
		if done%500 == 0 {
			scanLog.Info("thumbnail build: %d/%d", done, total)
		}
	})
	s.builder = b
	s.mu.Unlock()

	b.Start()
}

// Stop cancels a running thumbnail build.
func (s *libraryScanner) Stop() {
	s.mu.Lock()
	b := s.builder
	s.mu.Unlock()
	if b != nil {
		b.Cancel()
	}
}

// cronLogger routes cron's messages through the logging package.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	scanLog.Debug("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	scanLog.Error("cron: %s: %v %v", msg, err, keysAndValues)
}

// scheduleScans runs s.Scan on spec. Overlapping runs are skipped.
func scheduleScans(ctx context.Context, spec string, s *libraryScanner) (*cron.Cron, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		if err := s.Scan(ctx); err != nil {
			scanLog.Warn("scheduled scan: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid scan schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
