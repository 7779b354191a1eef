/*
Package filesystem wraps the handful of filesystem calls made by the image
pipeline (os.Stat, os.Open) with retry logic for NFS stale file handle
errors.

Photo collections very often live on network mounts. A stale handle
(ESTALE) right after a file was replaced on the server is transient, and
retrying with a short exponential backoff nearly always succeeds. Any other
error, including "file does not exist", is returned immediately.

	info, ok, err := filesystem.StatRegular(path, filesystem.DefaultRetryConfig())
	if err != nil { ... }     // permission problem, I/O error, ...
	if !ok { ... }            // missing or not a regular file

Metrics are recorded through an Observer registered with SetObserver; with
no observer registered nothing is recorded, which keeps tests free of
global Prometheus state.
*/
package filesystem
