// Package imagemanager loads images asynchronously for display.
//
// Clients register with an AsyncLoader and submit ImageRequests. Still
// images are queued in a RequestQueue, banded by Priority, and decoded by a
// fixed pool of worker goroutines. Videos are handed to the background job
// scheduler, which extracts a frame with ffmpeg.
//
// Results never reach a client from a worker goroutine. Workers post a
// message to a mailbox that the owning goroutine drains with Run or
// ProcessEvents; only there are requests validated, failures replaced by a
// placeholder, thumbnails inserted into the ThumbnailCache and clients
// called.
//
// Stop withdraws a client's requests without interrupting decodes already
// running: their results are cached but not delivered.
package imagemanager
