package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestHandler(buf *bytes.Buffer, level slog.Level) *avHandler {
	return &avHandler{mu: &sync.Mutex{}, w: buf, level: level, runID: "run-1"}
}

func TestAvHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			level:   slog.LevelInfo,
			message: "file uploaded",
			want:    "2024-06-15T14:30:45Z\tINFO\trun-1\tfile uploaded\n",
		},
		{
			name:    "debug level",
			level:   slog.LevelDebug,
			message: "navigating",
			want:    "2024-06-15T14:30:45Z\tDEBUG\trun-1\tnavigating\n",
		},
		{
			name:    "with record attrs",
			level:   slog.LevelInfo,
			message: "folder created",
			attrs:   []slog.Attr{slog.String("title", "CS101"), slog.Int("size", 42)},
			want:    "2024-06-15T14:30:45Z\tINFO\trun-1\tfolder created\ttitle=CS101\tsize=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newTestHandler(&buf, slog.LevelDebug)

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestAvHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf, slog.LevelDebug)
	h.attrs = []slog.Attr{slog.String("a", "1")}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "auth")}).(*avHandler)
	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}

	r := slog.NewRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "signed in", 0)
	r.AddAttrs(slog.String("user", "u-1"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{"a=1", "component=auth", "user=u-1"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q: %q", want, got)
		}
	}
}

func TestAvHandler_Enabled(t *testing.T) {
	h := &avHandler{level: slog.LevelWarn}
	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, false},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestTeeHandler(t *testing.T) {
	var all, warnings bytes.Buffer
	logger := slog.New(teeHandler{
		newTestHandler(&all, slog.LevelDebug),
		newTestHandler(&warnings, slog.LevelWarn),
	}).With("session", "s-1")

	logger.Info("listing loaded")
	logger.Warn("ancestry fallback")

	if n := strings.Count(all.String(), "\n"); n != 2 {
		t.Errorf("debug handler got %d lines, want 2", n)
	}
	if n := strings.Count(warnings.String(), "\n"); n != 1 {
		t.Errorf("warn handler got %d lines, want 1", n)
	}
	if !strings.Contains(warnings.String(), "ancestry fallback\tsession=s-1") {
		t.Errorf("warn handler output = %q", warnings.String())
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-run")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello", "k", "v")

	data, err := os.ReadFile(filepath.Join(dir, "av.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\tINFO\ttest-run\thello\tk=v") {
		t.Errorf("log file = %q", data)
	}
}
