/*
Package workers sizes the worker pools of the image pipeline.

Two pools exist: the still-image decode pool and the background job pool
that runs video frame extraction. Both are deliberately kept below the
number of available cores. Decode workers are disk bound, and three
concurrent readers is already the point where a spinning disk starts to
thrash; background jobs mostly wait on external ffmpeg processes, which
bring their own threads.

Core counts come from runtime.GOMAXPROCS, which honours container CPU
limits (Go 1.19+), rather than runtime.NumCPU.

	decoders := workers.ForThumbnails()     // clamp(cores, 1, 3)
	jobs := workers.ForBackgroundJobs()     // clamp(cores, 1, 2)

Operators can override either value with THUMBNAIL_WORKERS or JOB_WORKERS;
overrides are still capped at the pool maximum.
*/
package workers
