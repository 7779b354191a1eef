package metrics

// Label values used by the pipeline. Pre-populated by InitializeMetrics.
var (
	priorityLabels   = []string{"viewer", "viewer_preload", "thumbnail_visible", "thumbnail_invisible", "batch_task"}
	jobKindLabels    = []string{"read_video_length", "extract_video_frame", "handle_video_thumbnail_request", "search_videos_without_thumbnails"}
	jobOutcomeLabels = []string{"succeeded", "failed", "cancelled"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, p := range priorityLabels {
		RequestQueueDepth.WithLabelValues(p)
	}

	for _, path := range []string{"image", "video"} {
		for _, outcome := range []string{"queued", "duplicate", "missing", "no_extractor", "error"} {
			LoaderRequestsTotal.WithLabelValues(path, outcome)
		}
	}

	for _, status := range []string{"success", "error"} {
		DecodeTotal.WithLabelValues(status)
	}
	for _, backend := range []string{"vips", "imaging"} {
		DecodeDuration.WithLabelValues(backend)
	}
	for _, result := range []string{"delivered", "placeholder", "discarded"} {
		DeliveriesTotal.WithLabelValues(result)
	}

	for _, op := range []string{"load", "save", "delete", "reset"} {
		DBQueryDuration.WithLabelValues(op)
		for _, status := range []string{"success", "error"} {
			DBQueryTotal.WithLabelValues(op, status)
		}
	}
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, ft := range []string{"image", "video"} {
		IndexerFiles.WithLabelValues(ft)
	}

	for _, op := range []string{"create", "write", "remove", "rename", "chmod"} {
		WatcherEventsTotal.WithLabelValues(op)
	}

	for _, result := range []string{"memory_hit", "disk_hit", "miss"} {
		CacheLookupsTotal.WithLabelValues(result)
	}
	for _, op := range []string{"load", "save", "delete", "reset"} {
		CacheStoreErrors.WithLabelValues(op)
	}

	for _, kind := range jobKindLabels {
		BackgroundJobDuration.WithLabelValues(kind)
		for _, outcome := range jobOutcomeLabels {
			BackgroundJobsTotal.WithLabelValues(kind, outcome)
		}
	}

	for _, op := range []string{"length", "frame"} {
		VideoToolDuration.WithLabelValues(op)
		for _, reason := range []string{"timeout", "exit", "parse"} {
			VideoToolErrors.WithLabelValues(op, reason)
		}
	}

	for _, op := range []string{"stat", "open"} {
		for _, vol := range []string{"media", "cache", "unknown"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
