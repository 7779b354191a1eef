// Package video extracts still frames and durations from video files with
// the ffmpeg and ffprobe command line tools.
//
// Every invocation runs under exec.CommandContext with a wall-clock timeout
// (30s by default), and running processes are tracked so Cleanup can kill
// them on shutdown. Frames are written as JPEG files under
// <cache>/videoThumbnails, named after a hash of the video path:
//
//	FrameName(path, i)   <hash>-<i>.jpg   one of the ten preview frames
//	ThumbnailName(path)  <hash>.jpg       the frame used as the thumbnail
//
// When the tools are not installed Available reports false and every
// operation fails with ErrToolMissing.
package video
