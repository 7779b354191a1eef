// Package metrics provides Prometheus instrumentation for the photoalbum
// image pipeline.
//
// All metrics are promauto globals prefixed with "photoalbum_" and grouped
// by subsystem:
//
//   - HTTP: request counts, durations and in-flight gauge for the daemon.
//   - Loader: requests by path and outcome, per-priority queue depth,
//     decode counts and durations, deliveries, cancellations.
//   - Thumbnail cache: lookups by result (memory_hit, disk_hit, miss),
//     evictions, accounted bytes, entries, budget, store errors.
//   - Background jobs: completions by kind and outcome, run time, and
//     queued/running/waiting gauges.
//   - Video extractor: ffprobe/ffmpeg durations and failures by reason.
//   - Memory: usage ratio and backpressure state from internal/memory.
//   - Filesystem: NFS stale-handle retry counters from internal/filesystem.
//
// Gauges that describe queue and cache sizes are not updated on the hot
// path. A Collector samples a StatsProvider on an interval instead.
//
// Packages that must not import Prometheus report through observers:
// NewFilesystemObserver for internal/filesystem and NewJobObserver for
// internal/backgroundtask.
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape.
package metrics
