// Package logger provides the two-sink structured logging the mount
// daemon uses: a console sink at the user-configured verbosity and a
// file sink that always runs at TRACE, mirroring the teacher's
// internal/logger package (severity-leveled slog records, with a
// TRACE level one rung below Debug) but adding the trace level and
// file-rotation behavior the original Rust program's simplelog setup
// had and the distilled spec keeps.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace sits one rung below slog.LevelDebug, matching the
// original's five-level verbosity scheme (Trace, Debug, Info, Warn,
// Error).
const LevelTrace = slog.Level(-8)

// Format selects the console sink's rendering.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseLevel maps the CLI's --verbosity values onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logger: unrecognized verbosity %q", s)
	}
}

func levelString(l slog.Level) string {
	switch {
	case l <= LevelTrace:
		return "TRACE"
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// replaceAttr is the slog ReplaceAttr hook that renders the level as a
// "severity" attribute carrying the custom severity names above,
// shared by both the text and JSON console sinks and the always-on
// file sink.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		a.Key = "severity"
		level := a.Value.Any().(slog.Level)
		a.Value = slog.StringValue(levelString(level))
	}
	return a
}

// Config selects verbosity, the console rendering, and whether the
// console sink is suppressed (--quiet skips the console sink only; the
// file sink, per spec.md §6, always runs at trace).
type Config struct {
	ConsoleLevel slog.Level
	ConsoleQuiet bool
	Format       Format
	FilePath     string // relative constant, e.g. "mirrorfs.log"
}

// New builds the dual-sink *slog.Logger described in SPEC_FULL.md §6.
func New(cfg Config) (*slog.Logger, func() error, error) {
	var handlers []slog.Handler

	if !cfg.ConsoleQuiet {
		handlers = append(handlers, newHandler(os.Stderr, cfg.ConsoleLevel, cfg.Format))
	}

	fileSink := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    64, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	handlers = append(handlers, newHandler(fileSink, LevelTrace, cfg.Format))

	h := &fanoutHandler{handlers: handlers}
	return slog.New(h), fileSink.Close, nil
}

func newHandler(w io.Writer, level slog.Level, format Format) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// fanoutHandler dispatches every record to both sinks, each filtering
// independently on its own configured level (console at the requested
// verbosity, file always at trace).
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

// Adapter narrows a *slog.Logger to the Tracef/Debugf/Warnf/Errorf
// surface the cache/registry/identity packages consult, so those
// packages do not need to import log/slog directly.
type Adapter struct {
	L *slog.Logger
}

func (a Adapter) Tracef(format string, args ...any) { a.logf(LevelTrace, format, args...) }
func (a Adapter) Debugf(format string, args ...any) { a.logf(slog.LevelDebug, format, args...) }
func (a Adapter) Warnf(format string, args ...any)  { a.logf(slog.LevelWarn, format, args...) }
func (a Adapter) Errorf(format string, args ...any) { a.logf(slog.LevelError, format, args...) }

func (a Adapter) logf(level slog.Level, format string, args ...any) {
	if a.L == nil {
		return
	}
	a.L.Log(context.Background(), level, fmt.Sprintf(format, args...))
}
