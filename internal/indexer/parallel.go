package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"photoalbum/internal/logging"
	"photoalbum/internal/mediatypes"
	"photoalbum/internal/metrics"
)

// ParallelWalkerConfig configures the parallel directory walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of parallel workers
	NumWorkers int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
}

// DefaultParallelWalkerConfig returns defaults, honouring INDEX_WORKERS.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	// 3 workers is safe for NFS and still fast on local disks
	numWorkers := 3
	if override := os.Getenv("INDEX_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			numWorkers = count
		}
	}

	return ParallelWalkerConfig{
		NumWorkers:    numWorkers,
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

// MediaFile is one image or video found under the media directory.
type MediaFile struct {
	Path     string // absolute
	RelPath  string
	Name     string
	Type     mediatypes.FileType
	Size     int64
	ModTime  time.Time
	Identity mediatypes.FileIdentity
}

type fileJob struct {
	path    string
	info    os.FileInfo
	relPath string
}

// ParallelWalker walks a directory tree, classifying files on a pool of
// workers.
type ParallelWalker struct {
	config   ParallelWalkerConfig
	mediaDir string

	jobs    chan fileJob
	results chan MediaFile

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	filesProcessed   atomic.Int64
	foldersProcessed atomic.Int64
	errorsCount      atomic.Int64
}

// NewParallelWalker creates a walker bound to ctx.
func NewParallelWalker(ctx context.Context, mediaDir string, config ParallelWalkerConfig) *ParallelWalker {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &ParallelWalker{
		config:   config,
		mediaDir: mediaDir,
		jobs:     make(chan fileJob, config.ChannelBuffer),
		results:  make(chan MediaFile, config.ChannelBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Walk returns every media file under the directory. On cancellation the
// files found so far are returned with the context error.
func (pw *ParallelWalker) Walk() ([]MediaFile, error) {
	logging.Info("Starting parallel directory walk of %s with %d workers", pw.mediaDir, pw.config.NumWorkers)
	startTime := time.Now()
	defer pw.cancel()

	metrics.IndexerParallelWorkers.Set(float64(pw.config.NumWorkers))

	for i := 0; i < pw.config.NumWorkers; i++ {
		pw.wg.Add(1)
		go pw.worker(i)
	}

	var allFiles []MediaFile
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for f := range pw.results {
			allFiles = append(allFiles, f)
		}
	}()

	err := pw.walkAndEnqueue()

	close(pw.jobs)
	pw.wg.Wait()
	close(pw.results)
	<-collected

	logging.Info("Parallel walk complete: %d files, %d folders in %v (errors: %d)",
		pw.filesProcessed.Load(),
		pw.foldersProcessed.Load(),
		time.Since(startTime),
		pw.errorsCount.Load())

	if err == nil {
		err = pw.ctx.Err()
	}
	return allFiles, err
}

func (pw *ParallelWalker) walkAndEnqueue() error {
	return filepath.WalkDir(pw.mediaDir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-pw.ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			if path == pw.mediaDir {
				return err
			}
			pw.errorsCount.Add(1)
			metrics.IndexerErrors.Inc()
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if pw.config.SkipHidden && path != pw.mediaDir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != pw.mediaDir {
				pw.foldersProcessed.Add(1)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(pw.mediaDir, path)
		if err != nil {
			//nolint:nilerr // skip this file but keep walking
			return nil
		}

		info, err := d.Info()
		if err != nil {
			pw.errorsCount.Add(1)
			logging.Warn("Error getting info for %s: %v", path, err)
			return nil
		}

		select {
		case pw.jobs <- fileJob{path: path, info: info, relPath: relPath}:
		case <-pw.ctx.Done():
			return fs.SkipAll
		}
		return nil
	})
}

func (pw *ParallelWalker) worker(id int) {
	defer pw.wg.Done()

	logging.Debug("Walker worker %d started", id)

	for job := range pw.jobs {
		file, ok := processFile(job)
		if !ok {
			continue
		}
		pw.filesProcessed.Add(1)

		select {
		case pw.results <- file:
		case <-pw.ctx.Done():
			// Drain so the walker never blocks on a full jobs channel.
			for range pw.jobs {
			}
			return
		}
	}

	logging.Debug("Walker worker %d finished", id)
}

// processFile classifies a file and computes its identity.
func processFile(job fileJob) (MediaFile, bool) {
	fileType := mediatypes.Classify(job.info.Name())
	if fileType == mediatypes.FileTypeOther {
		return MediaFile{}, false
	}

	return MediaFile{
		Path:     job.path,
		RelPath:  job.relPath,
		Name:     job.info.Name(),
		Type:     fileType,
		Size:     job.info.Size(),
		ModTime:  job.info.ModTime(),
		Identity: mediatypes.NewFileIdentity(job.path, job.info),
	}, true
}

// Stop cancels the walk.
func (pw *ParallelWalker) Stop() {
	pw.cancel()
}

// Stats returns current processing statistics
func (pw *ParallelWalker) Stats() (files, folders, errors int64) {
	return pw.filesProcessed.Load(), pw.foldersProcessed.Load(), pw.errorsCount.Load()
}
