package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// defaultProcessName is the line prefix when no instance name is
// configured. Offset-qualified deployments override it through
// Options.ProcessName so lines from multiple daemons on one host can
// be told apart.
const defaultProcessName = "portcullis"

// ConsoleHandler renders records as single journald-friendly lines:
//
//	2026-01-12T08:30:05Z portcullis[412]: [info] engine: whitelisted ip=203.0.113.9
type ConsoleHandler struct {
	opts      slog.HandlerOptions
	proc      string
	component string
	attrs     []slog.Attr

	// mu is shared across WithAttrs clones so component loggers never
	// interleave partial lines on the same writer.
	mu  *sync.Mutex
	out io.Writer
}

// NewConsoleHandler creates a handler writing to out. A nil opts logs
// at Info.
func NewConsoleHandler(out io.Writer, opts *slog.HandlerOptions) *ConsoleHandler {
	h := &ConsoleHandler{
		proc: defaultProcessName,
		mu:   &sync.Mutex{},
		out:  out,
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled reports whether the handler is enabled for this level.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

// Handle renders the record and writes it as one line.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	buf := make([]byte, 0, 256)
	buf = ts.AppendFormat(buf, time.RFC3339)
	buf = fmt.Appendf(buf, " %s[%d]: [%s] ", h.proc, os.Getpid(), strings.ToLower(r.Level.String()))

	// A component bound via WithAttrs becomes the header tag; one set
	// directly on the record overrides it.
	component := h.component
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == componentKey {
			component = a.Value.String()
			return false
		}
		return true
	})
	if component != "" {
		buf = append(buf, strings.ToLower(component)...)
		buf = append(buf, ": "...)
	}
	buf = append(buf, r.Message...)

	for _, a := range h.attrs {
		buf = appendAttr(buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != componentKey {
			buf = appendAttr(buf, a)
		}
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

// appendAttr renders one key=value pair, quoting values that would
// break whitespace-delimited parsing.
func appendAttr(buf []byte, a slog.Attr) []byte {
	buf = append(buf, ' ')
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	v := a.Value.String()
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		return strconv.AppendQuote(buf, v)
	}
	return append(buf, v...)
}

// WithAttrs returns a handler that prepends attrs to every record. A
// component attribute is captured for the line header instead of being
// kept as a trailing pair.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	bound := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	bound = append(bound, h.attrs...)
	for _, a := range attrs {
		if a.Key == componentKey {
			nh.component = a.Value.String()
			continue
		}
		bound = append(bound, a)
	}
	nh.attrs = bound
	return &nh
}

// WithGroup returns the handler unchanged; the flat console format
// does not render groups.
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	return h
}
