package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name     string
		minLevel Level
		logFn    func(l *Logger)
		wantLine bool
	}{
		{
			name:     "debug_suppressed_at_info",
			minLevel: LevelInfo,
			logFn:    func(l *Logger) { l.Debug(context.Background(), "hidden") },
			wantLine: false,
		},
		{
			name:     "info_emitted_at_info",
			minLevel: LevelInfo,
			logFn:    func(l *Logger) { l.Info(context.Background(), "shown") },
			wantLine: true,
		},
		{
			name:     "warn_suppressed_at_error",
			minLevel: LevelError,
			logFn:    func(l *Logger) { l.Warn(context.Background(), "hidden") },
			wantLine: false,
		},
		{
			name:     "errorc_emitted_at_error",
			minLevel: LevelError,
			logFn:    func(l *Logger) { l.Errorc(context.Background(), 1, "shown") },
			wantLine: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(&buf, tt.minLevel, "test", nil)
			tt.logFn(l)

			got := buf.Len() > 0
			if got != tt.wantLine {
				t.Errorf("wrote line = %v, want %v (output: %q)", got, tt.wantLine, buf.String())
			}
		})
	}
}

func TestLogger_RecordFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug, "spread-monitor", nil)

	l.Info(context.Background(), "tick complete", "instruments", 3, "fatal", false)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}

	if rec["msg"] != "tick complete" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["service"] != "spread-monitor" {
		t.Errorf("service = %v", rec["service"])
	}
	if rec["instruments"] != float64(3) {
		t.Errorf("instruments = %v", rec["instruments"])
	}

	src, ok := rec["source"].(map[string]any)
	if !ok {
		t.Fatalf("missing source: %v", rec)
	}
	if file, _ := src["file"].(string); !strings.HasSuffix(file, "logger_test.go") {
		t.Errorf("source file = %v, want caller file", src["file"])
	}
}

func TestLogger_OnEvent(t *testing.T) {
	var got []string
	l := New(&bytes.Buffer{}, LevelWarn, "test", func(_ context.Context, r slog.Record) {
		got = append(got, r.Message)
	})

	l.Info(context.Background(), "below level")
	l.Warn(context.Background(), "mirrored")

	if len(got) != 1 || got[0] != "mirrored" {
		t.Errorf("events = %v, want [mirrored]", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug": LevelDebug,
		"warn":  LevelWarn,
		"error": LevelError,
		"info":  LevelInfo,
		"":      LevelInfo,
		"loud":  LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
