package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultHubCapacity = 512

// LogEvent is one record as served by /v1/logs. The JSON names match the
// daily log file so either source decodes into it.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	VideoID       string            `json:"video_id,omitempty"`
	RequestID     string            `json:"request_id,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// StreamHub keeps the most recent events in a ring and lets readers block
// until newer ones arrive.
type StreamHub struct {
	mu      sync.Mutex
	ring    []LogEvent
	start   int
	size    int
	nextSeq uint64
	// changed is closed and replaced on every Publish.
	changed chan struct{}
}

// NewStreamHub builds a hub holding up to capacity events.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = defaultHubCapacity
	}
	return &StreamHub{
		ring:    make([]LogEvent, capacity),
		changed: make(chan struct{}),
	}
}

// Publish stores evt, evicting the oldest event when full, and wakes waiters.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	capacity := len(h.ring)
	if h.size < capacity {
		h.ring[(h.start+h.size)%capacity] = evt
		h.size++
	} else {
		h.ring[h.start] = evt
		h.start = (h.start + 1) % capacity
	}
	close(h.changed)
	h.changed = make(chan struct{})
	h.mu.Unlock()
}

// Fetch returns up to limit events newer than since, oldest first, plus the
// latest sequence number. With wait set it blocks until an event arrives or
// ctx ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	for {
		h.mu.Lock()
		events := h.collectLocked(func(evt LogEvent) bool { return evt.Sequence > since }, limit, false)
		next, changed := h.nextSeq, h.changed
		h.mu.Unlock()

		if len(events) > 0 || !wait {
			return events, next, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return nil, next, ctx.Err()
		case <-changed:
		}
	}
}

// Tail returns the newest limit events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.collectLocked(func(LogEvent) bool { return true }, limit, true), h.nextSeq
}

// collectLocked copies matching events in order. With newest set the limit
// keeps the end of the ring instead of the start.
func (h *StreamHub) collectLocked(match func(LogEvent) bool, limit int, newest bool) []LogEvent {
	if limit <= 0 || limit > len(h.ring) {
		limit = len(h.ring)
	}
	var out []LogEvent
	for i := 0; i < h.size; i++ {
		evt := h.ring[(h.start+i)%len(h.ring)]
		if match(evt) {
			out = append(out, evt)
		}
	}
	if len(out) > limit {
		if newest {
			out = out[len(out)-limit:]
		} else {
			out = out[:limit]
		}
	}
	return out
}

// Filter keeps events for videoID and component; empty values match all.
func Filter(events []LogEvent, videoID, component string) []LogEvent {
	if videoID == "" && component == "" {
		return events
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		if videoID != "" && evt.VideoID != videoID {
			continue
		}
		if component != "" && !strings.EqualFold(evt.Component, component) {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// streamHandler publishes every record it passes on to the hub.
type streamHandler struct {
	next  slog.Handler
	hub   *StreamHub
	bound []slog.Attr
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &streamHandler{next: next, hub: hub}
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	h.hub.Publish(toEvent(record, h.bound))
	return h.next.Handle(ctx, record)
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &streamHandler{
		next:  h.next.WithAttrs(attrs),
		hub:   h.hub,
		bound: append(append([]slog.Attr(nil), h.bound...), attrs...),
	}
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{next: h.next.WithGroup(name), hub: h.hub, bound: h.bound}
}

// toEvent applies logger-bound attrs before record attrs so call sites win.
func toEvent(record slog.Record, bound []slog.Attr) LogEvent {
	evt := LogEvent{
		Timestamp: record.Time.UTC(),
		Level:     strings.ToLower(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
	}
	set := func(attr slog.Attr) bool {
		key := strings.TrimSpace(attr.Key)
		if key == "" {
			return true
		}
		value := attrString(attr.Value)
		switch key {
		case FieldComponent:
			evt.Component = value
		case FieldVideoID:
			evt.VideoID = value
		case FieldRequestID:
			evt.RequestID = value
		case FieldCorrelationID:
			evt.CorrelationID = value
		default:
			if evt.Fields == nil {
				evt.Fields = make(map[string]string)
			}
			evt.Fields[key] = value
		}
		return true
	}
	for _, attr := range bound {
		set(attr)
	}
	record.Attrs(set)
	return evt
}
