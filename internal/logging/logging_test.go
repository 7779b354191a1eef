package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOut, oldFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(oldOut)
		log.SetFlags(oldFlags)
	})
	return &buf
}

func withLevel(t *testing.T, level LogLevel) {
	t.Helper()
	old := GetLevel()
	SetLevel(level)
	t.Cleanup(func() { SetLevel(old) })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input  string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"DEBUG", LevelDebug, true},
		{"info", LevelInfo, true},
		{"warn", LevelWarn, true},
		{"warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"", LevelInfo, false},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	if LevelDebug >= LevelInfo {
		t.Error("LevelDebug should be less than LevelInfo")
	}
	if LevelInfo >= LevelWarn {
		t.Error("LevelInfo should be less than LevelWarn")
	}
	if LevelWarn >= LevelError {
		t.Error("LevelWarn should be less than LevelError")
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLog(t)
	withLevel(t, LevelWarn)

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown %s", "warn")
	Error("shown error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below the level were written: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown warn") {
		t.Errorf("missing warn line in %q", out)
	}
	if !strings.Contains(out, "[ERROR] shown error") {
		t.Errorf("missing error line in %q", out)
	}
}

func TestComponentLogger(t *testing.T) {
	buf := captureLog(t)
	withLevel(t, LevelDebug)

	For("loader").Info("%d workers", 3)
	For("").Debug("no prefix")

	out := buf.String()
	if !strings.Contains(out, "[INFO] loader: 3 workers") {
		t.Errorf("component prefix missing: %q", out)
	}
	if !strings.Contains(out, "[DEBUG] no prefix") {
		t.Errorf("empty component should not add a prefix: %q", out)
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(42), "unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}
