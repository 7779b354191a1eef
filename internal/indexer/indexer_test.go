package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

func createFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

type recordingInvalidator struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingInvalidator) RemoveFile(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recordingInvalidator) removed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.paths...)
	sort.Strings(out)
	return out
}

func TestParallelWalkerClassifies(t *testing.T) {
	root := t.TempDir()
	createFiles(t, root,
		"a.jpg", "b.PNG", "notes.txt",
		"sub/c.mp4", "sub/deeper/d.mov",
		".hidden/e.jpg", ".f.jpg",
	)

	tests := []struct {
		name    string
		workers int
	}{
		{"single worker", 1},
		{"several workers", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultParallelWalkerConfig()
			cfg.NumWorkers = tt.workers
			files, err := NewParallelWalker(context.Background(), root, cfg).Walk()
			if err != nil {
				t.Fatalf("Walk: %v", err)
			}

			var rel []string
			for _, f := range files {
				rel = append(rel, f.RelPath)
				if f.Identity.Path != f.Path || f.Identity.Fingerprint == 0 {
					t.Errorf("%s has identity %v", f.RelPath, f.Identity)
				}
			}
			sort.Strings(rel)
			want := []string{"a.jpg", "b.PNG", "sub/c.mp4", "sub/deeper/d.mov"}
			if len(rel) != len(want) {
				t.Fatalf("found %v, want %v", rel, want)
			}
			for i := range want {
				if rel[i] != want[i] {
					t.Errorf("found %v, want %v", rel, want)
					break
				}
			}
		})
	}
}

func TestParallelWalkerMissingRoot(t *testing.T) {
	_, err := NewParallelWalker(context.Background(), filepath.Join(t.TempDir(), "nope"), DefaultParallelWalkerConfig()).Walk()
	if err == nil {
		t.Error("walking a missing directory succeeded")
	}
}

func TestParallelWalkerCancelled(t *testing.T) {
	root := t.TempDir()
	createFiles(t, root, "a.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewParallelWalker(ctx, root, DefaultParallelWalkerConfig()).Walk(); !errors.Is(err, context.Canceled) {
		t.Errorf("Walk with cancelled context = %v", err)
	}
}

func TestIndexDetectsChanges(t *testing.T) {
	root := t.TempDir()
	createFiles(t, root, "a.jpg", "b.jpg", "c.mp4")

	inv := &recordingInvalidator{}
	idx := New(root, inv)

	res, err := idx.Index(context.Background())
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if res.Files != 3 || res.Added != 3 || res.Changed != 0 || res.Removed != 0 {
		t.Errorf("first scan = %+v", res)
	}
	if len(inv.removed()) != 0 {
		t.Errorf("first scan invalidated %v", inv.removed())
	}

	// Change a.jpg, remove b.jpg, add d.png.
	a := filepath.Join(root, "a.jpg")
	if err := os.WriteFile(a, []byte("edited content"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(a, future, future); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(root, "b.jpg")); err != nil {
		t.Fatal(err)
	}
	createFiles(t, root, "d.png")

	res, err = idx.Index(context.Background())
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if res.Files != 3 || res.Added != 1 || res.Changed != 1 || res.Removed != 1 {
		t.Errorf("second scan = %+v", res)
	}
	got := inv.removed()
	want := []string{a, filepath.Join(root, "b.jpg")}
	sort.Strings(want)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("invalidated %v, want %v", got, want)
	}
}

func TestVideosScansOnFirstUse(t *testing.T) {
	root := t.TempDir()
	createFiles(t, root, "b.mp4", "a.mkv", "c.jpg")

	idx := New(root, nil)
	if idx.IsReady() {
		t.Fatal("ready before any scan")
	}
	videos, err := idx.Videos(context.Background())
	if err != nil {
		t.Fatalf("Videos: %v", err)
	}
	want := []string{filepath.Join(root, "a.mkv"), filepath.Join(root, "b.mp4")}
	if len(videos) != 2 || videos[0] != want[0] || videos[1] != want[1] {
		t.Errorf("Videos = %v, want %v", videos, want)
	}
	if images := idx.Images(); len(images) != 1 {
		t.Errorf("Images = %v", images)
	}
	if files := idx.Files(); len(files) != 3 || files[0].Name != "a.mkv" {
		t.Errorf("Files = %v", files)
	}

	p := idx.Progress()
	if p.Images != 1 || p.Videos != 2 || p.IsIndexing || p.LastIndex.IsZero() {
		t.Errorf("Progress = %+v", p)
	}
}

func TestOnIndexComplete(t *testing.T) {
	root := t.TempDir()
	createFiles(t, root, "a.jpg")

	var got Result
	idx := New(root, nil)
	idx.SetOnIndexComplete(func(r Result) { got = r })
	if _, err := idx.Index(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got.Files != 1 {
		t.Errorf("callback saw %+v", got)
	}
}
