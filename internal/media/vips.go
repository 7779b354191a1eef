package media

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"photoalbum/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsMu        sync.Mutex
	vipsStarted   bool
	vipsAvailable bool
)

// vipsLogLevel returns the most verbose libvips level worth forwarding at
// the current application log level.
func vipsLogLevel(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	case logging.LevelWarn:
		return vips.LogLevelError
	default:
		return vips.LogLevelCritical
	}
}

func vipsLogHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// InitVips starts libvips once for the process. Logging is configured
// before startup so LOG_LEVEL applies to libvips too.
func InitVips() error {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStarted {
		return nil
	}

	vips.LoggingSettings(vipsLogHandler, vipsLogLevel(logging.GetLevel()))

	// One decode at a time per call; parallelism comes from the worker pool.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsStarted = true
	vipsAvailable = true
	log.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips. It cannot be restarted afterwards.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStarted {
		vips.Shutdown()
		vipsStarted = false
		vipsAvailable = false
		log.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsAvailable
}

// LoadImageWithVips decodes path and fits it into maxWidth×maxHeight using
// libvips decode-time shrinking, which avoids materializing the full-size
// raster for JPEGs.
func LoadImageWithVips(path string, maxWidth, maxHeight int) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips autorotate failed: %w", err)
	}

	log.Debug("vips loaded %s: %dx%d, fitting into %dx%d",
		filepath.Base(path), ref.Width(), ref.Height(), maxWidth, maxHeight)

	if err := ref.Thumbnail(maxWidth, maxHeight, vips.InterestingNone); err != nil {
		return nil, fmt.Errorf("vips resize failed: %w", err)
	}

	// Round-trip through PNG to hand callers a plain image.Image.
	buf, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	return img, nil
}
