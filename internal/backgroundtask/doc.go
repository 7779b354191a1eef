/*
Package backgroundtask runs the video thumbnail jobs: reading a video's
length, extracting preview frames, answering on-demand video thumbnail
requests and scanning the collection for videos that still lack frames.

Jobs form a dependency graph. A job with unfinished dependencies waits; when
its last dependency completes successfully it is queued automatically at its
own priority. If a dependency fails or is cancelled the dependent never runs:
it completes as Failed with ErrDependencyFailed, and so do its own
dependents.

	length := backgroundtask.NewReadVideoLengthJob(path)
	for i := 0; i < video.FrameCount; i++ {
	    frame := backgroundtask.NewExtractVideoFrameJob(length, path, i)
	    _ = scheduler.AddDependency(frame, length)
	}
	_ = scheduler.AddJob(length, backgroundtask.BackgroundVideoPreviewRequest)

Queued jobs run strictly by priority, FIFO within a priority, on a worker
pool separate from the still-image decoders. Running jobs are never
preempted; Cancel only affects jobs that have not started. Cancelling
running work happens through the context passed to Start, which is handed
to ffmpeg/ffprobe.
*/
package backgroundtask
