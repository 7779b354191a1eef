package media

import (
	"testing"
)

func TestBrokenImage(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{64, 64},
		{200, 200},
		{0, 256},
	}
	for _, tt := range tests {
		img := BrokenImage(tt.size)
		if img.Bounds().Dx() != tt.want || img.Bounds().Dy() != tt.want {
			t.Errorf("BrokenImage(%d) = %v, want %dx%d", tt.size, img.Bounds(), tt.want, tt.want)
		}
	}

	if BrokenImage(64) != BrokenImage(64) {
		t.Error("placeholder should be cached per size")
	}

	// The cross runs through the centre.
	img := BrokenImage(64)
	c := img.At(32, 32)
	if c == placeholderBackground {
		t.Error("expected cross pixel at the centre")
	}
}

func TestThumbnailCodec(t *testing.T) {
	img := BrokenImage(32)
	data, err := EncodeThumbnail(img)
	if err != nil {
		t.Fatalf("EncodeThumbnail() error = %v", err)
	}
	got, err := DecodeThumbnail(data)
	if err != nil {
		t.Fatalf("DecodeThumbnail() error = %v", err)
	}
	if got.Bounds().Dx() != 32 || got.Bounds().Dy() != 32 {
		t.Errorf("decoded bounds = %v, want 32x32", got.Bounds())
	}

	if _, err := DecodeThumbnail([]byte("junk")); err == nil {
		t.Error("DecodeThumbnail(junk) expected error")
	}
}
