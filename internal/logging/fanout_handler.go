package logging

import (
	"context"
	"log/slog"
)

// fanoutHandler writes each record to a primary handler and to secondary
// sinks such as the daily JSON file. Only the primary's error is returned; a
// failing sink never hides console output.
type fanoutHandler struct {
	primary slog.Handler
	sinks   []slog.Handler
}

func newFanoutHandler(primary slog.Handler, sinks ...slog.Handler) slog.Handler {
	var kept []slog.Handler
	for _, h := range sinks {
		if h != nil {
			kept = append(kept, h)
		}
	}
	switch {
	case primary == nil && len(kept) == 0:
		return NoopHandler{}
	case primary == nil:
		primary, kept = kept[0], kept[1:]
	}
	if len(kept) == 0 {
		return primary
	}
	return &fanoutHandler{primary: primary, sinks: kept}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.primary.Enabled(ctx, level) {
		return true
	}
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, record.Level) {
			_ = sink.Handle(ctx, record.Clone())
		}
	}
	if !h.primary.Enabled(ctx, record.Level) {
		return nil
	}
	return h.primary.Handle(ctx, record)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(handler slog.Handler) slog.Handler { return handler.WithAttrs(attrs) })
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	return h.each(func(handler slog.Handler) slog.Handler { return handler.WithGroup(name) })
}

func (h *fanoutHandler) each(fn func(slog.Handler) slog.Handler) slog.Handler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		sinks[i] = fn(sink)
	}
	return &fanoutHandler{primary: fn(h.primary), sinks: sinks}
}
