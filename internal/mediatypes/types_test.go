package mediatypes

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetFileType(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want FileType
	}{
		{name: "JPEG image", ext: ".jpg", want: FileTypeImage},
		{name: "PNG image", ext: ".png", want: FileTypeImage},
		{name: "MP4 video", ext: ".mp4", want: FileTypeVideo},
		{name: "MKV video", ext: ".mkv", want: FileTypeVideo},
		{name: "Ogg is treated as video", ext: ".ogg", want: FileTypeVideo},
		{name: "QuickTime VR", ext: ".qtvr", want: FileTypeVideo},
		{name: "Unknown extension", ext: ".xyz", want: FileTypeOther},
		{name: "Empty extension", ext: "", want: FileTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetFileType(tt.ext); got != tt.want {
				t.Errorf("GetFileType(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	tests := []struct {
		path string
		want FileType
	}{
		{"/photos/IMG_0001.JPG", FileTypeImage},
		{"/photos/clip.MOV", FileTypeVideo},
		{"/photos/holiday.Mp4", FileTypeVideo},
		{"/photos/notes.txt", FileTypeOther},
		{"/photos/noext", FileTypeOther},
	}
	for _, tt := range tests {
		if got := Classify(tt.path); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if !IsVideo("a/b/c.webm") {
		t.Error("IsVideo(.webm) = false, want true")
	}
	if IsVideo("a/b/c.jpeg") {
		t.Error("IsVideo(.jpeg) = true, want false")
	}
}

func TestIsMediaFile(t *testing.T) {
	if !IsMediaFile(".jpg") || !IsMediaFile(".avi") {
		t.Error("expected .jpg and .avi to be media files")
	}
	if IsMediaFile(".wpl") {
		t.Error("playlists are not media files for the image pipeline")
	}
}

func TestFingerprintDependsOnAllInputs(t *testing.T) {
	base := Fingerprint("/a.jpg", 100, 1)
	if base != Fingerprint("/a.jpg", 100, 1) {
		t.Fatal("Fingerprint is not deterministic")
	}
	variants := []uint64{
		Fingerprint("/b.jpg", 100, 1),
		Fingerprint("/a.jpg", 101, 1),
		Fingerprint("/a.jpg", 100, 2),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base fingerprint", i)
		}
	}
}

func TestNewFileIdentityChangesWithModification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	first := NewFileIdentity(path, info)
	if first.IsZero() {
		t.Fatal("identity should not be zero")
	}

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	info, err = os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	second := NewFileIdentity(path, info)

	if first == second {
		t.Error("identity did not change after modification time changed")
	}
	if first.Path != second.Path {
		t.Error("path component should be stable")
	}
}

func TestFileIdentityZero(t *testing.T) {
	var id FileIdentity
	if !id.IsZero() {
		t.Error("zero value should report IsZero")
	}
}
