package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"photoalbum/internal/logging"
	"photoalbum/internal/metrics"

	"github.com/disintegration/imaging"
)

var log = logging.For("media")

// FallbackFunc decodes formats the Go decoders cannot read, typically by
// handing the file to ffmpeg.
type FallbackFunc func(ctx context.Context, path string) (image.Image, error)

// Decoder turns a still-image file into a scaled, rotated raster.
type Decoder struct {
	// UseVips enables libvips decode-time shrinking. InitVips must have
	// succeeded.
	UseVips bool

	// Fallback is tried when the regular decoders fail. Optional.
	Fallback FallbackFunc

	MaxDimension int
	MaxPixels    int
}

// NewDecoder returns a decoder with the default size limits.
func NewDecoder(useVips bool, fallback FallbackFunc) *Decoder {
	return &Decoder{
		UseVips:      useVips,
		Fallback:     fallback,
		MaxDimension: MaxImageDimension,
		MaxPixels:    MaxImagePixels,
	}
}

// Decode loads path, fits it into a size×size box (size <= 0 keeps the
// constrained full resolution) and rotates it clockwise by angle degrees.
// It returns the image and the full, unscaled size of the source in its
// displayed orientation.
func (d *Decoder) Decode(ctx context.Context, path string, size, angle int) (image.Image, image.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, image.Point{}, err
	}

	start := time.Now()
	backend := "imaging"
	var fullSize image.Point

	if dims, err := GetImageDimensions(path); err == nil {
		fullSize = image.Pt(dims.Width, dims.Height)
	}

	var img image.Image
	var err error
	if d.UseVips && size > 0 {
		backend = "vips"
		img, err = LoadImageWithVips(path, size, size)
		if err != nil {
			log.Debug("vips decode failed for %s: %v, falling back to imaging", path, err)
			backend = "imaging"
		}
	}
	if img == nil {
		img, err = LoadImageConstrained(path, d.MaxDimension, d.MaxPixels)
	}
	if err != nil && d.Fallback != nil {
		log.Debug("standard decode failed for %s: %v, trying fallback", path, err)
		backend = "fallback"
		img, err = d.Fallback(ctx, path)
	}
	if err != nil {
		return nil, fullSize, fmt.Errorf("decode %s: %w", path, err)
	}
	if img == nil {
		return nil, fullSize, errors.New("decoder returned no image")
	}
	if fullSize == (image.Point{}) {
		fullSize = image.Pt(img.Bounds().Dx(), img.Bounds().Dy())
	}

	if size > 0 {
		b := img.Bounds()
		if b.Dx() > size || b.Dy() > size {
			img = imaging.Fit(img, size, size, imaging.Lanczos)
		}
	}

	img = Rotate(img, angle)
	if angle%180 != 0 && (angle%90 == 0) {
		fullSize = image.Pt(fullSize.Y, fullSize.X)
	}

	metrics.DecodeDuration.WithLabelValues(metricBackend(backend)).Observe(time.Since(start).Seconds())
	return img, fullSize, nil
}

func metricBackend(b string) string {
	if b == "vips" {
		return b
	}
	return "imaging"
}

// Rotate turns img clockwise by angle degrees. Multiples of 90 are exact;
// other angles expand the canvas with a transparent background.
func Rotate(img image.Image, angle int) image.Image {
	a := ((angle % 360) + 360) % 360
	switch a {
	case 0:
		return img
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	}
	// imaging rotates counter-clockwise
	return imaging.Rotate(img, float64(360-a), color.Transparent)
}
