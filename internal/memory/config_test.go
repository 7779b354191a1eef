package memory

import (
	"runtime/debug"
	"testing"
)

func TestParseRatio(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", DefaultMemoryRatio},
		{"0.5", 0.5},
		{"1", 1},
		{"0", DefaultMemoryRatio},
		{"1.5", DefaultMemoryRatio},
		{"abc", DefaultMemoryRatio},
	}
	for _, tt := range tests {
		if got := parseRatio(tt.in); got != tt.want {
			t.Errorf("parseRatio(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigureFromEnv(t *testing.T) {
	original := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(original) })

	tests := []struct {
		name           string
		limit, ratio   string
		wantConfigured bool
		wantGoMemLimit int64
	}{
		{"unset", "", "", false, 0},
		{"invalid", "lots", "", false, 0},
		{"default ratio", "1000000000", "", true, 850000000},
		{"custom ratio", "1000000000", "0.5", true, 500000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			got := ConfigureFromEnv()
			if got.Configured != tt.wantConfigured {
				t.Errorf("Configured = %v, want %v", got.Configured, tt.wantConfigured)
			}
			if got.GoMemLimit != tt.wantGoMemLimit {
				t.Errorf("GoMemLimit = %d, want %d", got.GoMemLimit, tt.wantGoMemLimit)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536 * 1024, "1.5 MiB"},
		{4 * 1024 * 1024 * 1024, "4.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
