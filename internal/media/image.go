package media

import (
	"fmt"
	"image"
	"io"
	"math"

	"photoalbum/internal/filesystem"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImageDimension is the maximum width or height decoded for a
	// full-size (viewer) request. Larger images are downscaled first.
	MaxImageDimension = 4096

	// MaxImagePixels is the maximum total pixels held after decode.
	// 20MP in RGBA is about 80MB.
	MaxImagePixels = 20_000_000
)

// LoadImageConstrained loads an image with EXIF auto-orientation and
// downscales it when it exceeds maxDimension or maxPixels.
func LoadImageConstrained(path string, maxDimension, maxPixels int) (image.Image, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	w, h := constrainedSize(b.Dx(), b.Dy(), maxDimension, maxPixels)
	if w == b.Dx() && h == b.Dy() {
		return img, nil
	}

	log.Info("constraining large image %s from %dx%d to %dx%d", path, b.Dx(), b.Dy(), w, h)
	return imaging.Resize(img, w, h, imaging.Lanczos), nil
}

// constrainedSize scales width×height down, preserving aspect ratio, until
// it fits both limits. A limit <= 0 is ignored.
func constrainedSize(width, height, maxDimension, maxPixels int) (int, int) {
	w, h := width, height
	if maxDimension > 0 && (w > maxDimension || h > maxDimension) {
		if w > h {
			h = h * maxDimension / w
			w = maxDimension
		} else {
			w = w * maxDimension / h
			h = maxDimension
		}
	}
	if maxPixels > 0 && w*h > maxPixels {
		scale := float64(maxPixels) / float64(w*h)
		f := math.Sqrt(scale)
		w = int(float64(w) * f)
		h = int(float64(h) * f)
	}
	return max(w, 1), max(h, 1)
}

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns the displayed image dimensions without fully
// decoding the image. EXIF orientations 5-8 swap width and height.
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	dims := &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}
	if _, err := file.Seek(0, io.SeekStart); err == nil && exifOrientation(file) >= 5 {
		dims.Width, dims.Height = dims.Height, dims.Width
	}
	return dims, nil
}

// exifOrientation returns the EXIF orientation of r, or 1 when it has none.
func exifOrientation(r io.Reader) int {
	raw, err := exif.SearchAndExtractExifWithReader(r)
	if err != nil {
		return 1
	}
	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return 1
	}
	for _, tag := range entries {
		if tag.TagName != "Orientation" {
			continue
		}
		if v, ok := tag.Value.([]uint16); ok && len(v) > 0 && v[0] >= 1 && v[0] <= 8 {
			return int(v[0])
		}
	}
	return 1
}
