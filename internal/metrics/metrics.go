package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoalbum_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Loader metrics
var (
	LoaderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_loader_requests_total",
			Help: "Image load requests by path taken and outcome",
		},
		[]string{"path", "outcome"}, // path: image|video, outcome: queued|duplicate|missing|no_extractor|error
	)

	RequestQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photoalbum_request_queue_depth",
			Help: "Pending still-image requests per priority band",
		},
		[]string{"priority"},
	)

	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_requests_in_flight",
			Help: "Still-image requests currently being decoded",
		},
	)

	DecodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_decode_total",
			Help: "Still-image decodes by status",
		},
		[]string{"status"}, // success, error
	)

	DecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoalbum_decode_duration_seconds",
			Help:    "Time spent decoding and scaling a still image",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend"}, // vips, imaging
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_deliveries_total",
			Help: "Completion messages processed by the loader owner",
		},
		[]string{"result"}, // delivered, placeholder, discarded
	)

	CancelledRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoalbum_cancelled_requests_total",
			Help: "Pending requests removed by Stop",
		},
	)

	DecodeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_decode_workers",
			Help: "Number of decode worker goroutines",
		},
	)
)

// Thumbnail store (SQLite) metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_db_queries_total",
			Help: "Total number of thumbnail store queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoalbum_db_query_duration_seconds",
			Help:    "Thumbnail store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_db_connections_open",
			Help: "Number of open thumbnail store connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photoalbum_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Thumbnail cache metrics
var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_thumbnail_cache_lookups_total",
			Help: "Thumbnail cache lookups by result",
		},
		[]string{"result"}, // memory_hit, disk_hit, miss
	)

	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoalbum_thumbnail_cache_evictions_total",
			Help: "Entries evicted from the in-memory thumbnail cache",
		},
	)

	CacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_thumbnail_cache_bytes",
			Help: "Accounted bytes held by the in-memory thumbnail cache",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_thumbnail_cache_entries",
			Help: "Entries held by the in-memory thumbnail cache",
		},
	)

	CacheBudgetBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_thumbnail_cache_budget_bytes",
			Help: "Byte budget of the in-memory thumbnail cache",
		},
	)

	CacheStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_thumbnail_store_errors_total",
			Help: "Errors from the persistent thumbnail store",
		},
		[]string{"operation"}, // load, save, delete, reset
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoalbum_indexer_runs_total",
			Help: "Total number of media directory scans",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_indexer_last_run_timestamp",
			Help: "Timestamp of the last media directory scan",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_indexer_last_run_duration_seconds",
			Help: "Duration of the last media directory scan in seconds",
		},
	)

	IndexerFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photoalbum_indexer_files",
			Help: "Media files found by the last scan",
		},
		[]string{"type"}, // image, video
	)

	IndexerInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoalbum_indexer_invalidations_total",
			Help: "Files whose cached thumbnails were invalidated after a change or removal",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoalbum_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_indexer_running",
			Help: "Whether a scan is currently running (1 = running, 0 = idle)",
		},
	)

	IndexerParallelWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_indexer_parallel_workers",
			Help: "Number of parallel workers used by the last scan",
		},
	)

	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_watcher_events_total",
			Help: "Filesystem events seen under the media directory",
		},
		[]string{"op"}, // create, write, remove, rename, chmod
	)

	WatcherDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_watcher_directories",
			Help: "Directories currently watched for changes",
		},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoalbum_watcher_errors_total",
			Help: "Errors from the media directory watcher",
		},
	)
)

// Background job metrics
var (
	BackgroundJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_background_jobs_total",
			Help: "Completed background jobs by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	BackgroundJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoalbum_background_job_duration_seconds",
			Help:    "Background job run time by kind",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	BackgroundJobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_background_jobs_queued",
			Help: "Background jobs eligible and waiting for a worker",
		},
	)

	BackgroundJobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_background_jobs_running",
			Help: "Background jobs currently running",
		},
	)

	BackgroundJobsWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_background_jobs_waiting",
			Help: "Background jobs blocked on unfinished dependencies",
		},
	)
)

// Video extractor metrics
var (
	VideoToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoalbum_video_tool_duration_seconds",
			Help:    "Duration of ffprobe/ffmpeg invocations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"}, // length, frame
	)

	VideoToolErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_video_tool_errors_total",
			Help: "Failed ffprobe/ffmpeg invocations",
		},
		[]string{"operation", "reason"}, // reason: timeout, exit, parse
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoalbum_memory_paused",
			Help: "1 while decode workers are paused for memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoalbum_memory_gc_pauses_total",
			Help: "Times processing was paused and a GC forced",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after a stale NFS handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoalbum_filesystem_stale_errors_total",
			Help: "ESTALE errors seen on filesystem operations",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoalbum_filesystem_retry_duration_seconds",
			Help:    "Total time spent in a retried filesystem operation",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// App info
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "photoalbum_app_info",
		Help: "Application build information",
	},
	[]string{"version", "go_version"},
)
