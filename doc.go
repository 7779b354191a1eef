// Package main provides the entry point of the photoalbum daemon.
//
// The daemon hosts the asynchronous image loading pipeline for a photo and
// video collection: a priority request queue feeding decode workers, a
// memory-budgeted thumbnail cache persisted in SQLite, and a background job
// scheduler that extracts video preview frames with ffmpeg.
//
// # Application Lifecycle
//
//  1. Configuration: environment and optional photoalbum.yaml via viper
//  2. Memory: GOMEMLIMIT from MEMORY_LIMIT, heap monitor for decode backpressure
//  3. Components:
//     - Thumbnail store (SQLite) and ThumbnailCache
//     - Video extractor and background job scheduler (when ffmpeg is installed)
//     - AsyncLoader and its event loop goroutine
//     - Indexer, media directory watcher and cron-driven rescans
//     - Metrics collector
//  4. HTTP status server with logging and metrics middleware
//  5. Graceful shutdown on SIGINT/SIGTERM, producers stopped before consumers
//
// # Background Services
//
//   - Loader event loop: delivers results to clients on one goroutine
//   - Scheduled scans: reindex and queue the video thumbnail search
//   - Watcher: invalidates thumbnails of edited files and triggers rescans
//   - Metrics collector: samples queue depth and cache occupancy
package main
