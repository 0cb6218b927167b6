package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gv-go/internal/config"
)

func TestGvHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "donation confirmed",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tdonation confirmed\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "request",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\trequest\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelWarn,
			message: "vote rolled back",
			attrs:   []slog.Attr{slog.Int64("post_id", 42), slog.String("choice", "upvote")},
			want:    "2024-06-15T14:30:45Z\tWARN\top-789\tvote rolled back\tpost_id=42\tchoice=upvote\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &gvHandler{w: &buf, opID: tt.opID, level: slog.LevelDebug}

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

func TestGvHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &gvHandler{w: &buf, opID: "op-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "feed")}).(*gvHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "page loaded", 0)
	r.AddAttrs(slog.Int("page", 2))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=feed") {
		t.Errorf("expected pre-set attr component=feed, got: %q", got)
	}
	if !strings.Contains(got, "page=2") {
		t.Errorf("expected record attr page=2, got: %q", got)
	}
}

func TestGvHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	h := &gvHandler{opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*gvHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestGvHandler_Enabled(t *testing.T) {
	h := &gvHandler{level: slog.LevelInfo}

	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, true},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerTo(&buf, "json", slog.LevelInfo, "op-json")

	logger.Debug("hidden")
	logger.Info("feed loaded", "added", 10, "error", errors.New("boom"), "took", 1500*time.Millisecond)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (debug filtered): %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["message"] != "feed loaded" {
		t.Errorf("message = %v, want %q", rec["message"], "feed loaded")
	}
	if rec["level"] != "info" {
		t.Errorf("level = %v, want %q", rec["level"], "info")
	}
	if rec["op"] != "op-json" {
		t.Errorf("op = %v, want %q", rec["op"], "op-json")
	}
	if rec["added"] != float64(10) {
		t.Errorf("added = %v, want 10", rec["added"])
	}
	if rec["error"] != "boom" {
		t.Errorf("error = %v, want %q", rec["error"], "boom")
	}
	if rec["took"] != "1.5s" {
		t.Errorf("took = %v, want %q", rec["took"], "1.5s")
	}
}

func TestFields(t *testing.T) {
	got := fields([]any{"a", 1, 2, "b", "dangling"})
	if got["a"] != 1 {
		t.Errorf("a = %v, want 1", got["a"])
	}
	if got["2"] != "b" {
		t.Errorf("non-string key not stringified: %v", got)
	}
	if got["dangling"] != "!MISSING" {
		t.Errorf("dangling = %v, want !MISSING", got["dangling"])
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	var stderr bytes.Buffer

	logger, f, err := newLogger(config.LogConfig{Dir: dir}, "test-op", &stderr)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello", "k", "v")

	data, err := os.ReadFile(filepath.Join(dir, "gv.log"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "\ttest-op\thello\tk=v") {
		t.Errorf("log file = %q, want a tab-separated hello line", data)
	}
	if stderr.String() != string(data) {
		t.Errorf("stderr = %q, want the same line as the log file", stderr.String())
	}
}
