package media

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ThumbnailQuality is the JPEG quality used for persisted thumbnails.
const ThumbnailQuality = 85

// EncodeThumbnail serializes a thumbnail for persistent storage.
func EncodeThumbnail(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(ThumbnailQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeThumbnail is the inverse of EncodeThumbnail.
func DecodeThumbnail(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode thumbnail: %w", err)
	}
	return img, nil
}
