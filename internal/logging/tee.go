package logging

import (
	"context"
	"log/slog"
	"time"
)

// componentKey is the attribute naming the subsystem a record came
// from. WithComponent binds it; the console header and the ring buffer
// lift it out of the ordinary attributes.
const componentKey = "component"

// ringHandler tees every record into the recent-log buffer before
// delegating to the real output handler, so the admin API sees the
// same stream in console and JSON modes.
type ringHandler struct {
	inner slog.Handler
	attrs []slog.Attr
}

func (h *ringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ringHandler) Handle(ctx context.Context, r slog.Record) error {
	Recent().Add(newEntry(r, h.attrs))
	return h.inner.Handle(ctx, r)
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	bound = append(bound, h.attrs...)
	bound = append(bound, attrs...)
	return &ringHandler{inner: h.inner.WithAttrs(attrs), attrs: bound}
}

func (h *ringHandler) WithGroup(name string) slog.Handler {
	return &ringHandler{inner: h.inner.WithGroup(name), attrs: h.attrs}
}

// newEntry flattens a record and its pre-bound attributes into a ring
// buffer Entry, lifting the component out of Extra.
func newEntry(r slog.Record, bound []slog.Attr) Entry {
	e := Entry{
		Timestamp: r.Time,
		Level:     levelString(r.Level),
		Message:   r.Message,
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	collect := func(a slog.Attr) {
		if a.Key == componentKey {
			e.Component = a.Value.String()
			return
		}
		if e.Extra == nil {
			e.Extra = make(map[string]string)
		}
		e.Extra[a.Key] = a.Value.String()
	}
	for _, a := range bound {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})
	return e
}
