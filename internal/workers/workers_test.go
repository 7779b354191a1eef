package workers

import (
	"runtime"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name      string
		n, lo, hi int
		want      int
	}{
		{"below", 0, 1, 3, 1},
		{"inside", 2, 1, 3, 2},
		{"above", 16, 1, 3, 3},
		{"no upper bound", 64, 1, 0, 64},
		{"negative", -5, 1, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.n, tt.lo, tt.hi); got != tt.want {
				t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.n, tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

func TestCount(t *testing.T) {
	t.Setenv(ThumbnailWorkersEnv, "")
	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{"one per CPU", 1.0, 0, 1, availableCPU},
		{"two per CPU", 2.0, 0, 1, availableCPU * 2},
		{"limited to 2", 4.0, 2, 1, 2},
		{"tiny multiplier still yields one", 0.01, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(ThumbnailWorkersEnv, tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want between %d and %d",
					tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountEnvironmentOverride(t *testing.T) {
	tests := []struct {
		name  string
		value string
		limit int
		want  int
	}{
		{"valid override", "2", 3, 2},
		{"override capped by limit", "10", 3, 3},
		{"invalid override ignored", "lots", 0, Clamp(runtime.GOMAXPROCS(0), 1, 0)},
		{"zero override ignored", "0", 0, Clamp(runtime.GOMAXPROCS(0), 1, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ThumbnailWorkersEnv, tt.value)
			if got := Count(ThumbnailWorkersEnv, 1.0, tt.limit); got != tt.want {
				t.Errorf("Count with %s=%q = %d, want %d", ThumbnailWorkersEnv, tt.value, got, tt.want)
			}
		})
	}
}

func TestForThumbnailsIsBounded(t *testing.T) {
	t.Setenv(ThumbnailWorkersEnv, "")
	got := ForThumbnails()
	if got < 1 || got > MaxThumbnailWorkers {
		t.Errorf("ForThumbnails() = %d, want within [1, %d]", got, MaxThumbnailWorkers)
	}
	want := Clamp(runtime.GOMAXPROCS(0), 1, MaxThumbnailWorkers)
	if got != want {
		t.Errorf("ForThumbnails() = %d, want %d", got, want)
	}
}

func TestForBackgroundJobsIsBounded(t *testing.T) {
	t.Setenv(BackgroundWorkersEnv, "")
	got := ForBackgroundJobs()
	if got < 1 || got > MaxBackgroundWorkers {
		t.Errorf("ForBackgroundJobs() = %d, want within [1, %d]", got, MaxBackgroundWorkers)
	}

	t.Setenv(BackgroundWorkersEnv, "1")
	if got := ForBackgroundJobs(); got != 1 {
		t.Errorf("ForBackgroundJobs() with override = %d, want 1", got)
	}
}
