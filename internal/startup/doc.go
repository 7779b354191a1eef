// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is loaded by [LoadConfig] through viper. Values come from
// environment variables, then an optional photoalbum.yaml (searched in the
// working directory and /etc/photoalbum, or named by PHOTOALBUM_CONFIG),
// then built-in defaults:
//
//   - MEDIA_DIR: Path to the photo collection (default: /media)
//   - CACHE_DIR: Thumbnail store and extracted video frames (default: /cache)
//   - PORT: HTTP status server port (default: 8080)
//   - THUMBNAIL_SIZE: Thumbnail edge in pixels (default: 256)
//   - SCREEN_WIDTH, SCREEN_HEIGHT: Screen size used for the cache budget (default: 1920x1080)
//   - THUMBNAIL_CACHE_SCREENS: Screenfuls of thumbnails held in memory (default: 3)
//   - THUMBNAIL_WORKERS: Decode workers, 0 for automatic sizing
//   - JOB_WORKERS: Background job workers, 0 for automatic sizing
//   - FFMPEG_PATH, FFPROBE_PATH: Video tool binaries (default: ffmpeg, ffprobe)
//   - VIDEO_TIMEOUT: Per-invocation video tool timeout (default: 30s)
//   - VIDEO_SCAN_SCHEDULE: Cron spec for video thumbnail scans, empty disables (default: @every 6h)
//   - BUILD_THUMBNAILS: Pre-generate image thumbnails after each scan (default: false)
//   - WATCH_MEDIA: Invalidate thumbnails and rescan when files change (default: true)
//   - PERSIST_THUMBNAILS: Keep thumbnails in SQLite across restarts (default: true)
//   - METRICS_ENABLED: Expose /metrics (default: true)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Invalid numeric or duration values are logged and replaced by defaults.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogThumbnailStoreInit]: Thumbnail store timing and size
//   - [LogPipelineInit]: Decode workers and cache budget
//   - [LogVideoInit]: ffmpeg availability
//   - [LogIndexerInit]: Media directory and scan schedule
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
