package media

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
)

func TestDecoderFitsAndRotates(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "photo.jpg")
	createTestImage(t, path, 400, 200, "jpeg")

	d := NewDecoder(false, nil)

	tests := []struct {
		name         string
		size, angle  int
		wantW, wantH int
		wantFull     image.Point
	}{
		{"thumbnail", 200, 0, 200, 100, image.Pt(400, 200)},
		{"rotated 90", 200, 90, 100, 200, image.Pt(200, 400)},
		{"rotated 180", 200, 180, 200, 100, image.Pt(400, 200)},
		{"rotated -90", 100, -90, 50, 100, image.Pt(200, 400)},
		{"no upscale", 1000, 0, 400, 200, image.Pt(400, 200)},
		{"full size", 0, 0, 400, 200, image.Pt(400, 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, full, err := d.Decode(context.Background(), path, tt.size, tt.angle)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if w, h := img.Bounds().Dx(), img.Bounds().Dy(); w != tt.wantW || h != tt.wantH {
				t.Errorf("image = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
			if full != tt.wantFull {
				t.Errorf("full size = %v, want %v", full, tt.wantFull)
			}
		})
	}
}

func TestDecoderFullSizeFollowsExifOrientation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portrait.jpg")
	createOrientedJPEG(t, path, 400, 200, 6)

	img, full, err := NewDecoder(false, nil).Decode(context.Background(), path, 100, 0)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if w, h := img.Bounds().Dx(), img.Bounds().Dy(); w != 50 || h != 100 {
		t.Errorf("image = %dx%d, want 50x100", w, h)
	}
	if full != image.Pt(200, 400) {
		t.Errorf("full size = %v, want (200,400)", full)
	}
}

func TestDecoderErrors(t *testing.T) {
	tmpDir := t.TempDir()
	garbage := filepath.Join(tmpDir, "broken.jpg")
	if err := os.WriteFile(garbage, []byte("definitely not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(false, nil)
	if _, _, err := d.Decode(context.Background(), garbage, 100, 0); err == nil {
		t.Error("Decode(garbage) expected error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := d.Decode(ctx, garbage, 100, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Decode(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestDecoderFallback(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "photo.heic")
	if err := os.WriteFile(path, []byte("heic bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	called := false
	d := NewDecoder(false, func(_ context.Context, p string) (image.Image, error) {
		called = true
		if p != path {
			t.Errorf("fallback path = %s, want %s", p, path)
		}
		return image.NewNRGBA(image.Rect(0, 0, 640, 480)), nil
	})

	img, full, err := d.Decode(context.Background(), path, 64, 0)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !called {
		t.Fatal("fallback not used")
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("image = %v, want 64x48", img.Bounds())
	}
	if full != image.Pt(640, 480) {
		t.Errorf("full size = %v, want 640x480", full)
	}
}

func TestRotateArbitraryAngle(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	out := Rotate(src, 45)
	if out.Bounds().Dx() <= 100 {
		t.Errorf("45° rotation should expand the canvas, got %v", out.Bounds())
	}
	if Rotate(src, 360) != image.Image(src) {
		t.Error("360° rotation should return the source unchanged")
	}
}
