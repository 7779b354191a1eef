package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photoalbum/internal/backgroundtask"
	"photoalbum/internal/database"
	"photoalbum/internal/filesystem"
	"photoalbum/internal/handlers"
	"photoalbum/internal/imagemanager"
	"photoalbum/internal/indexer"
	"photoalbum/internal/logging"
	"photoalbum/internal/media"
	"photoalbum/internal/memory"
	"photoalbum/internal/metrics"
	"photoalbum/internal/middleware"
	"photoalbum/internal/startup"
	"photoalbum/internal/video"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
)

// app owns every long-lived component so shutdown can stop them in order.
type app struct {
	store     *database.ThumbnailStore
	cache     *imagemanager.ThumbnailCache
	extractor *video.Extractor
	jobs      *backgroundtask.Scheduler
	loader    *imagemanager.AsyncLoader
	monitor   *memory.Monitor
	collector *metrics.Collector
	scanner   *libraryScanner
	schedule  *cron.Cron
	watcher   *indexer.Watcher
	handlers  *handlers.Handlers
	cancel    context.CancelFunc
	vips      bool
}

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	startup.LogMemoryConfig(memory.ConfigureFromEnv())

	ctx, cancel := context.WithCancel(context.Background())
	a := &app{cancel: cancel}

	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.GoVersion).Set(1)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media": config.MediaDir,
		"cache": config.CacheDir,
	}))

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, decoding with imaging only: %v", err)
	} else {
		a.vips = true
	}

	a.monitor = memory.NewMonitor(memory.DefaultConfig())
	a.monitor.Start()

	// Thumbnail cache, persisted in SQLite when the cache dir allows it
	var store imagemanager.Store
	if config.PersistThumbnails {
		dbStart := time.Now()
		a.store, err = database.Open(ctx, config.DatabasePath, config.ThumbnailSize)
		if err != nil {
			logging.Warn("thumbnail store disabled: %v", err)
		} else {
			store = a.store
			entries, _ := a.store.Count(ctx)
			startup.LogThumbnailStoreInit(time.Since(dbStart), entries)
		}
	}
	a.cache = imagemanager.NewThumbnailCache(imagemanager.CacheConfig{
		ScreenWidth:   config.ScreenWidth,
		ScreenHeight:  config.ScreenHeight,
		Screens:       config.CacheScreens,
		ThumbnailSize: config.ThumbnailSize,
		Store:         store,
	})

	// Video frames through ffmpeg
	a.extractor = video.New(video.Config{
		FFmpegPath:  config.FFmpegPath,
		FFprobePath: config.FFprobePath,
		CacheDir:    config.VideoDir,
		Timeout:     config.VideoTimeout,
	})
	decoder := media.NewDecoder(a.vips, a.extractor.DecodeImage)

	startup.LogIndexerInit(config.MediaDir, config.VideoScanSchedule)
	idx := indexer.New(config.MediaDir, a.cache)

	var videos imagemanager.VideoJobs
	if a.extractor.Available() {
		a.jobs = backgroundtask.New(backgroundtask.Config{
			Workers:  config.JobWorkers,
			Tool:     a.extractor,
			Source:   idx,
			Decode:   decoder.Decode,
			Observer: metrics.NewJobObserver(),
		})
		a.jobs.Start(ctx)
		videos = a.jobs
		startup.LogVideoInit(true, config.JobWorkers)
	} else {
		startup.LogVideoInit(false, 0)
	}

	a.loader = imagemanager.NewAsyncLoader(imagemanager.LoaderConfig{
		Decoder: decoder,
		Cache:   a.cache,
		Videos:  videos,
		Workers: config.ThumbnailWorkers,
		Memory:  a.monitor,
	})
	startup.LogPipelineInit(a.loader.Workers(), a.cache.Budget(), a.vips)

	// The loader's owning goroutine: every client callback runs here.
	go func() {
		if err := a.loader.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, imagemanager.ErrClosed) {
			logging.Error("loader event loop stopped: %v", err)
		}
	}()

	a.collector = metrics.NewCollector(metrics.StatsFunc(a.stats), 15*time.Second)
	a.collector.Start()

	a.scanner = &libraryScanner{idx: idx, jobs: a.jobs, loader: a.loader}
	if config.BuildThumbnails {
		a.scanner.buildSize = config.ThumbnailSize
	}
	go func() {
		if err := a.scanner.Scan(ctx); err != nil {
			logging.Error("initial scan failed: %v", err)
		}
	}()
	if config.VideoScanSchedule != "" {
		a.schedule, err = scheduleScans(ctx, config.VideoScanSchedule, a.scanner)
		if err != nil {
			logging.Warn("periodic scans disabled: %v", err)
		}
	}

	if config.WatchMedia {
		a.watcher, err = indexer.NewWatcher(config.MediaDir, a.cache, func() {
			if err := a.scanner.Scan(ctx); err != nil && !errors.Is(err, indexer.ErrIndexing) {
				logging.Warn("rescan after change: %v", err)
			}
		})
		if err != nil {
			logging.Warn("media directory watching disabled: %v", err)
		} else {
			a.watcher.Start()
		}
	}

	a.handlers = handlers.New(handlers.Deps{
		Pipeline: a.loader,
		Cache:    a.cache,
		Jobs:     jobsOrIdle(a.jobs),
		Library:  idx,
		Scanner:  a.scanner,
		Memory:   a.monitor,
	})

	router := mux.NewRouter()
	a.handlers.Register(router, config.MetricsEnabled)
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go handleShutdown(srv, a)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
}

// stats samples the pipeline for the metrics collector and refreshes the
// store's size gauges on the way.
func (a *app) stats() metrics.Stats {
	s := metrics.Stats{
		QueueDepth:   a.loader.Pending(),
		InFlight:     a.loader.ActiveCount(),
		CacheEntries: a.cache.Len(),
		CacheBytes:   a.cache.Bytes(),
		CacheBudget:  a.cache.Budget(),
	}
	if a.jobs != nil {
		s.JobsQueued, s.JobsRunning, s.JobsWaiting = a.jobs.Stats()
	}
	if a.store != nil {
		a.store.UpdateDBMetrics()
	}
	return s
}

func handleShutdown(srv *http.Server, a *app) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}
	a.shutdown()
	startup.LogShutdownComplete()
}

// shutdown stops producers before consumers: scans, then jobs and video
// processes, then the loader, then the cache and its store.
func (a *app) shutdown() {
	if a.schedule != nil {
		<-a.schedule.Stop().Done()
	}
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			logging.Warn("watcher close: %v", err)
		}
	}
	a.handlers.Close()
	a.scanner.Stop()

	if a.jobs != nil {
		startup.LogShutdownStep("Stopping background jobs")
		a.jobs.Stop()
		startup.LogShutdownStepComplete("Background jobs stopped")
	}
	a.extractor.Cleanup()

	startup.LogShutdownStep("Stopping image loader")
	a.loader.Close()
	a.cancel()
	startup.LogShutdownStepComplete("Image loader stopped")

	a.collector.Stop()
	a.monitor.Stop()

	startup.LogShutdownStep("Flushing thumbnail cache")
	a.cache.Close()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.Warn("thumbnail store close: %v", err)
		}
	}
	startup.LogShutdownStepComplete("Thumbnail cache flushed")

	if a.vips {
		media.ShutdownVips()
	}
}

// idleJobs stands in for the scheduler when no video tools are installed.
type idleJobs struct{}

func (idleJobs) Stats() (int, int, int)             { return 0, 0, 0 }
func (idleJobs) Snapshot() []backgroundtask.JobInfo { return nil }
func (idleJobs) Pause()                             {}
func (idleJobs) Resume()                            {}
func (idleJobs) IsPaused() bool                     { return false }

func jobsOrIdle(s *backgroundtask.Scheduler) handlers.Jobs {
	if s == nil {
		return idleJobs{}
	}
	return s
}
