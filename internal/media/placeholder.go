package media

import (
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
)

var (
	placeholderMu    sync.Mutex
	placeholderCache = map[int]image.Image{}
)

var (
	placeholderBackground = color.NRGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xff}
	placeholderCross      = color.NRGBA{R: 0xd0, G: 0x30, B: 0x30, A: 0xff}
)

// BrokenImage returns the "broken image" placeholder for a size×size box.
// Placeholders are built once per size and shared; callers must not
// modify them.
func BrokenImage(size int) image.Image {
	if size <= 0 {
		size = 256
	}

	placeholderMu.Lock()
	defer placeholderMu.Unlock()

	if img, ok := placeholderCache[size]; ok {
		return img
	}
	img := drawBrokenImage(size)
	placeholderCache[size] = img
	return img
}

func drawBrokenImage(size int) image.Image {
	img := imaging.New(size, size, placeholderBackground)

	thickness := max(size/32, 1)
	margin := size / 4
	for i := margin; i < size-margin; i++ {
		for t := 0; t < thickness; t++ {
			img.SetNRGBA(i, min(i+t, size-1), placeholderCross)
			img.SetNRGBA(i, max(size-1-i-t, 0), placeholderCross)
		}
	}
	return img
}
