package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

type countingObserver struct {
	attempts, successes, failures, stale, durations int
}

func (o *countingObserver) ObserveRetryAttempt(string, string)           { o.attempts++ }
func (o *countingObserver) ObserveRetrySuccess(string, string)           { o.successes++ }
func (o *countingObserver) ObserveRetryFailure(string, string)           { o.failures++ }
func (o *countingObserver) ObserveRetryDuration(string, string, float64) { o.durations++ }
func (o *countingObserver) ObserveStaleError(string, string)             { o.stale++ }

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	old := sleep
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { sleep = old })
	return &slept
}

func withObserver(t *testing.T) *countingObserver {
	t.Helper()
	o := &countingObserver{}
	old := defaultObserver
	SetObserver(o)
	t.Cleanup(func() { SetObserver(old) })
	return o
}

func staleErr() error {
	return &os.PathError{Op: "stat", Path: "x", Err: syscall.ESTALE}
}

func TestWithRetryRecoversFromStaleHandle(t *testing.T) {
	slept := noSleep(t)
	obs := withObserver(t)

	calls := 0
	got, err := withRetry("stat", "/media/a.jpg", DefaultRetryConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, staleErr()
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
	want := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("backoff = %v, want %v", *slept, want)
	}
	if obs.stale != 2 || obs.attempts != 2 || obs.successes != 1 || obs.failures != 0 {
		t.Errorf("unexpected observer counts: %+v", *obs)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	slept := noSleep(t)
	obs := withObserver(t)

	config := RetryConfig{MaxRetries: 4, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 250 * time.Millisecond}
	calls := 0
	_, err := withRetry("open", "/media/a.jpg", config, func() (struct{}, error) {
		calls++
		return struct{}{}, staleErr()
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("error = %v, want ESTALE", err)
	}
	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
	for _, d := range *slept {
		if d > config.MaxBackoff {
			t.Errorf("backoff %v exceeds max %v", d, config.MaxBackoff)
		}
	}
	if obs.failures != 1 {
		t.Errorf("failures = %d, want 1", obs.failures)
	}
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	slept := noSleep(t)
	calls := 0
	_, err := withRetry("stat", "/x", DefaultRetryConfig(), func() (int, error) {
		calls++
		return 0, os.ErrPermission
	})
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("error = %v, want ErrPermission", err)
	}
	if calls != 1 || len(*slept) != 0 {
		t.Errorf("calls = %d, sleeps = %d; want 1 and 0", calls, len(*slept))
	}
}

func TestStatRegular(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(file, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		wantOK bool
	}{
		{"regular file", file, true},
		{"directory", dir, false},
		{"missing file", filepath.Join(dir, "gone.jpg"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := StatRegular(tt.path, DefaultRetryConfig())
			if err != nil {
				t.Fatalf("StatRegular() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("StatRegular() ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestOpenWithRetry(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(file, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := OpenWithRetry(file, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	f.Close()

	if _, err := OpenWithRetry(file+".missing", DefaultRetryConfig()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("OpenWithRetry(missing) error = %v, want ErrNotExist", err)
	}
}

func TestVolumeResolver(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"media": "/photos",
		"raw":   "/photos/raw",
		"cache": "/var/cache/photoalbum",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/photos/2020/a.jpg", "media"},
		{"/photos/raw/a.nef", "raw"},
		{"/photos", "media"},
		{"/photosynth/a.jpg", "unknown"},
		{"/var/cache/photoalbum/thumbs.db", "cache"},
		{"/tmp/x", "unknown"},
	}
	for _, tt := range tests {
		if got := vr.Resolve(tt.path); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}

	var nilResolver *VolumeResolver
	if got := nilResolver.Resolve("/photos/a.jpg"); got != "unknown" {
		t.Errorf("nil resolver = %q, want unknown", got)
	}
}
