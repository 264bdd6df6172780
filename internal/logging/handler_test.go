package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func debugLevel() *slog.LevelVar {
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	return lvl
}

func TestPrettyHandlerInfoBullets(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false, false)).
		With(String(FieldComponent, "acquire"), String(FieldVideoID, "dQw4w9WgXcQ"))

	logger.Info("transcript acquired",
		String(FieldStrategy, "relay"),
		String(FieldRequestID, "req-1"),
		Int("segments", 42),
	)

	out := buf.String()
	for _, want := range []string{"INFO  acquire: transcript acquired [dQw4w9WgXcQ]", "    - Strategy: relay", "    - Segments: 42"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "req-1") {
		t.Fatalf("request id should be debug-only:\n%s", out)
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("source should be omitted without addSource:\n%s", out)
	}
}

func TestPrettyHandlerDebugInlineAndOverride(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newPrettyHandler(&buf, debugLevel(), true, false)).With(String(FieldModel, "old"))

	logger.Debug("model attempt", String(FieldModel, "gemini-2.5-flash"), String("note", "two words"))

	out := buf.String()
	if !strings.Contains(out, `model=gemini-2.5-flash note="two words"`) {
		t.Fatalf("expected inline attrs with override, got %q", out)
	}
	if strings.Contains(out, "model=old") {
		t.Fatalf("call-site attr should replace logger attr: %q", out)
	}
	if !strings.Contains(out, "handler_test.go:") {
		t.Fatalf("expected source location in debug output: %q", out)
	}
}

func TestPrettyHandlerLimitsInfoFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newPrettyHandler(&buf, new(slog.LevelVar), false, false))
	attrs := make([]any, 0, infoFieldLimit+2)
	for i := 0; i < infoFieldLimit+2; i++ {
		attrs = append(attrs, Int(string(rune('a'+i)), i))
	}
	logger.Info("many", attrs...)
	if !strings.Contains(buf.String(), "    + 2 more") {
		t.Fatalf("expected hidden field count:\n%s", buf.String())
	}
}

func TestFanoutHandler(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for nil handlers")
	}
	var single bytes.Buffer
	inner := slog.NewJSONHandler(&single, nil)
	if newFanoutHandler(nil, inner) != inner {
		t.Fatal("single handler should be returned unwrapped")
	}

	var infoBuf, debugBuf bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h).With("component", "classify").WithGroup("req")
	logger.Debug("debug only", "k", "v")
	logger.Info("both")

	if strings.Contains(infoBuf.String(), "debug only") {
		t.Fatalf("info handler received debug record: %s", infoBuf.String())
	}
	if !strings.Contains(debugBuf.String(), "debug only") || !strings.Contains(debugBuf.String(), `"req":{"k":"v"}`) {
		t.Fatalf("debug handler missing grouped record: %s", debugBuf.String())
	}
	if !strings.Contains(infoBuf.String(), `"component":"classify"`) {
		t.Fatalf("attrs not propagated: %s", infoBuf.String())
	}
}

func TestSessionIDReachesHub(t *testing.T) {
	hub := NewStreamHub(4)
	logger, err := New(Options{Format: "json", OutputPaths: []string{filepath.Join(t.TempDir(), "out.log")}, Hub: hub, SessionID: "session-abc"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.With("extra", "value").Info("test message")

	events, _ := hub.Tail(1)
	if len(events) != 1 || events[0].Fields[FieldSessionID] != "session-abc" || events[0].Fields["extra"] != "value" {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[0].Level != "info" {
		t.Fatalf("hub levels should match the file format, got %q", events[0].Level)
	}
}

func TestStreamHandlerPublishesEvents(t *testing.T) {
	hub := NewStreamHub(10)
	base := slog.NewTextHandler(discardWriter{}, nil)
	if newStreamHandler(base, nil) != base {
		t.Fatal("nil hub should return the base handler")
	}

	logger := slog.New(newStreamHandler(base, hub)).
		With(String(FieldComponent, "pipeline")).
		With(String(FieldVideoID, "old"))
	logger.Info("analysis completed", String(FieldVideoID, "vid00000001"), String(FieldModel, "m"))

	events, next := hub.Tail(10)
	if len(events) != 1 || next != 1 {
		t.Fatalf("expected one event, got %d (next %d)", len(events), next)
	}
	evt := events[0]
	if evt.Component != "pipeline" || evt.VideoID != "vid00000001" || evt.Fields[FieldModel] != "m" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestStreamHubRingAndFetch(t *testing.T) {
	hub := NewStreamHub(3)
	for i := 0; i < 5; i++ {
		hub.Publish(LogEvent{Message: string(rune('a' + i)), VideoID: map[bool]string{true: "x", false: "y"}[i%2 == 0]})
	}
	events, next := hub.Tail(10)
	if len(events) != 3 || events[0].Message != "c" || next != 5 {
		t.Fatalf("unexpected ring contents %+v next=%d", events, next)
	}

	since, _, err := hub.Fetch(context.Background(), 3, 10, false)
	if err != nil || len(since) != 2 || since[0].Sequence != 4 {
		t.Fatalf("unexpected fetch %+v err=%v", since, err)
	}
	if got := Filter(events, "x", ""); len(got) != 2 {
		t.Fatalf("expected two events for video x, got %+v", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := hub.Fetch(ctx, 5, 10, true); err == nil {
		t.Fatal("expected deadline error while waiting for new events")
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestFanoutHandlerIgnoresSinkErrors(t *testing.T) {
	var console bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&console, nil),
		failingHandler{slog.NewJSONHandler(discardWriter{}, nil)},
	)
	if err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still visible", 0)); err != nil {
		t.Fatalf("sink error leaked: %v", err)
	}
	if !strings.Contains(console.String(), "still visible") {
		t.Fatalf("primary missed record: %s", console.String())
	}
}
