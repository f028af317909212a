// Package logging provides the process-wide structured logger.
//
// Components log through component-scoped loggers obtained from
// WithComponent. Console output is a single-line, journald-friendly
// format; a JSON mode exists for log shippers. In either mode every
// record is also retained in an in-memory ring buffer that the admin
// API serves for remote inspection.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Level aliases slog.Level. The zero value is Info.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Options configures a Logger. It mirrors the logging block of the
// config file; a nil Output means stderr.
type Options struct {
	Level       Level
	JSON        bool
	Output      io.Writer
	ProcessName string
}

// Logger is a thin wrapper over slog so call sites stay decoupled from
// the handler wiring.
type Logger struct {
	*slog.Logger
}

// New builds a Logger. Records are teed into the recent-log buffer on
// their way to the console or JSON output.
func New(o Options) *Logger {
	out := o.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: o.Level}

	var h slog.Handler
	if o.JSON {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		ch := NewConsoleHandler(out, hopts)
		if o.ProcessName != "" {
			ch.proc = o.ProcessName
		}
		h = ch
	}
	return &Logger{slog.New(&ringHandler{inner: h})}
}

var defaultLogger atomic.Pointer[Logger]

// Default returns the process logger, creating a stderr console logger
// on first use.
func Default() *Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := New(Options{})
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	return defaultLogger.Load()
}

// SetDefault replaces the process logger. Loggers already derived with
// WithComponent keep the handler they were built on.
func SetDefault(l *Logger) {
	defaultLogger.Store(l)
}

// ParseLevel converts a config-file level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// WithComponent returns a logger whose records carry a component field.
// The console handler promotes it into the line header.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{l.Logger.With(componentKey, name)}
}

// Package-level convenience functions using the process logger.

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// WithComponent returns a component-scoped logger derived from the
// process logger.
func WithComponent(name string) *Logger {
	return Default().WithComponent(name)
}
