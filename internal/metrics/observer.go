package metrics

import "photoalbum/internal/filesystem"

// filesystemObserver implements filesystem.Observer using the Prometheus
// metrics declared in this package.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer that records filesystem metrics
// into the Prometheus counters and histograms declared in metrics.go.
func NewFilesystemObserver() filesystem.Observer {
	return &filesystemObserver{}
}

func (o *filesystemObserver) ObserveRetryAttempt(retryOp, volume string) {
	FilesystemRetryAttempts.WithLabelValues(retryOp, volume).Inc()
}

func (o *filesystemObserver) ObserveRetrySuccess(retryOp, volume string) {
	FilesystemRetrySuccess.WithLabelValues(retryOp, volume).Inc()
}

func (o *filesystemObserver) ObserveRetryFailure(retryOp, volume string) {
	FilesystemRetryFailures.WithLabelValues(retryOp, volume).Inc()
}

func (o *filesystemObserver) ObserveRetryDuration(retryOp, volume string, durationSeconds float64) {
	FilesystemRetryDuration.WithLabelValues(retryOp, volume).Observe(durationSeconds)
}

func (o *filesystemObserver) ObserveStaleError(retryOp, volume string) {
	FilesystemStaleErrors.WithLabelValues(retryOp, volume).Inc()
}

// JobObserver records background job completions. It satisfies
// backgroundtask.Observer without this package importing the scheduler.
type JobObserver struct{}

// NewJobObserver creates an observer for the background job scheduler.
func NewJobObserver() *JobObserver {
	return &JobObserver{}
}

// JobFinished records one completed job.
func (o *JobObserver) JobFinished(kind, outcome string, durationSeconds float64) {
	BackgroundJobsTotal.WithLabelValues(kind, outcome).Inc()
	if outcome != "cancelled" {
		BackgroundJobDuration.WithLabelValues(kind).Observe(durationSeconds)
	}
}
