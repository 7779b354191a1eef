package workers

import (
	"os"
	"runtime"
	"strconv"
)

const (
	// MaxThumbnailWorkers caps the decode pool. More than three readers
	// hitting the same disk makes thumbnail generation slower, not faster.
	MaxThumbnailWorkers = 3

	// MaxBackgroundWorkers caps the background job pool. Each job usually
	// owns an ffmpeg/ffprobe process.
	MaxBackgroundWorkers = 2

	// ThumbnailWorkersEnv overrides the decode pool size.
	ThumbnailWorkersEnv = "THUMBNAIL_WORKERS"

	// BackgroundWorkersEnv overrides the background job pool size.
	BackgroundWorkersEnv = "JOB_WORKERS"
)

// Clamp bounds n to [lo, hi]. A non-positive hi means no upper bound.
func Clamp(n, lo, hi int) int {
	if n < lo {
		n = lo
	}
	if hi > 0 && n > hi {
		n = hi
	}
	return n
}

// Count returns the number of workers for a pool whose size follows the
// available CPUs (GOMAXPROCS, which respects container limits) scaled by
// multiplier and clamped to [1, limit]. A positive integer in the envVar
// environment variable replaces the computed value; it is still capped by
// limit. Use limit 0 for no cap.
func Count(envVar string, multiplier float64, limit int) int {
	if envVar != "" {
		if override := os.Getenv(envVar); override != "" {
			if count, err := strconv.Atoi(override); err == nil && count > 0 {
				return Clamp(count, 1, limit)
			}
		}
	}

	available := runtime.GOMAXPROCS(0)
	return Clamp(int(float64(available)*multiplier), 1, limit)
}

// ForThumbnails returns the size of the still-image decode pool:
// clamp(cores, 1, 3).
func ForThumbnails() int {
	return Count(ThumbnailWorkersEnv, 1.0, MaxThumbnailWorkers)
}

// ForBackgroundJobs returns the size of the background job pool.
func ForBackgroundJobs() int {
	return Count(BackgroundWorkersEnv, 1.0, MaxBackgroundWorkers)
}
