package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gv-go/internal/config"
	"gv-go/internal/gv"
)

// gvHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
type gvHandler struct {
	w     io.Writer
	opID  string
	level slog.Level
	attrs []slog.Attr
}

func (h *gvHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *gvHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%s\t%s\t%s", r.Time.UTC().Format("2006-01-02T15:04:05Z"), r.Level, h.opID, r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')

	// One Write per record keeps lines whole when commands log concurrently.
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *gvHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &gvHandler{
		w:     h.w,
		opID:  h.opID,
		level: h.level,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *gvHandler) WithGroup(string) slog.Handler { return h }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l <= slog.LevelInfo:
		return zerolog.InfoLevel
	case l <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// newLogger creates the application logger writing to cfg.Dir/gv.log and
// stderr. Format "json" emits zerolog JSON lines; anything else emits the
// tab-separated text format. It returns the open log file for cleanup.
func newLogger(cfg config.LogConfig, opID string, stderr io.Writer) (gv.Logger, *os.File, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(cfg.Dir, "gv.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	w := io.MultiWriter(f, stderr)
	return newLoggerTo(w, cfg.Format, parseLevel(cfg.Level), opID), f, nil
}

func newLoggerTo(w io.Writer, format string, level slog.Level, opID string) gv.Logger {
	if format == "json" {
		zl := zerolog.New(w).
			Level(zerologLevel(level)).
			With().
			Timestamp().
			Str("op", opID).
			Logger()
		return &zerologAdapter{l: zl}
	}
	return &slogAdapter{l: slog.New(&gvHandler{w: w, opID: opID, level: level})}
}

// slogAdapter wraps *slog.Logger to satisfy the gv.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }

// zerologAdapter wraps zerolog.Logger to satisfy the gv.Logger interface.
// Key/value args are passed through Event.Fields.
type zerologAdapter struct {
	l zerolog.Logger
}

func (a *zerologAdapter) Debug(msg string, args ...any) { a.l.Debug().Fields(fields(args)).Msg(msg) }
func (a *zerologAdapter) Info(msg string, args ...any)  { a.l.Info().Fields(fields(args)).Msg(msg) }
func (a *zerologAdapter) Warn(msg string, args ...any)  { a.l.Warn().Fields(fields(args)).Msg(msg) }
func (a *zerologAdapter) Error(msg string, args ...any) { a.l.Error().Fields(fields(args)).Msg(msg) }

// fields turns slog-style alternating key/value args into a map. Errors and
// durations are rendered as strings; a dangling key gets "!MISSING".
func fields(args []any) map[string]any {
	m := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 >= len(args) {
			m[key] = "!MISSING"
			break
		}
		switch v := args[i+1].(type) {
		case error:
			m[key] = v.Error()
		case time.Duration:
			m[key] = v.String()
		default:
			m[key] = v
		}
	}
	return m
}
