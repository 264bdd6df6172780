package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidseg/internal/config"
	"vidseg/internal/logging"
)

func TestNewFromConfigWritesDailyJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "debug"

	hub := logging.NewStreamHub(16)
	logger, err := logging.NewFromConfig(&cfg, hub)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello", logging.String(logging.FieldVideoID, "vid00000001"))

	content, err := os.ReadFile(logging.DailyLogPath(cfg.Paths.LogDir, time.Now()))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{`"msg":"hello"`, `"video_id":"vid00000001"`, `"session_id":`, `"level":"info"`} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("log file missing %s: %s", want, content)
		}
	}
	if events, _ := hub.Tail(5); len(events) != 1 {
		t.Fatalf("expected hub to receive the record, got %d", len(events))
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerSourceOnlyAtDebug(t *testing.T) {
	tests := []struct {
		level      string
		wantSource bool
	}{
		{level: "info", wantSource: false},
		{level: "debug", wantSource: true},
		{level: "bogus", wantSource: false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "console.log")
			logger, err := logging.New(logging.Options{Format: "console", Level: tt.level, OutputPaths: []string{path}})
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			logger.Info("message")
			content, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read log file: %v", err)
			}
			if got := strings.Contains(string(content), ".go:"); got != tt.wantSource {
				t.Fatalf("source present=%v, want %v: %q", got, tt.wantSource, content)
			}
		})
	}
}

func TestWithContextAddsFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := logging.ContextWithVideoID(context.Background(), "vid00000002")
	ctx = logging.ContextWithRequestID(ctx, "req-xyz")
	logging.WithContext(ctx, logger).Info("contextual log")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"video_id":"vid00000002"`) || !strings.Contains(string(content), `"correlation_id":"req-xyz"`) {
		t.Fatalf("context fields missing: %s", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "ground truth lookup failed", "ground_truth_failed",
		logging.String(logging.FieldImpact, "no verified segments"))

	content, _ := os.ReadFile(path)
	for _, want := range []string{`"event_type":"ground_truth_failed"`, `"error_hint":"rerun with --log-level debug for details"`, `"impact":"no verified segments"`} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("warn line missing %s: %s", want, content)
		}
	}
}

func TestPruneDailyLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 20, 9, 0, 0, 0, time.Local)
	old := filepath.Join(dir, "vidseg-2026-04-01.log")
	recent := filepath.Join(dir, "vidseg-2026-05-10.log")
	today := logging.DailyLogPath(dir, now)
	undated := filepath.Join(dir, "vidseg-manual.log")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, recent, today, undated, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	past := now.AddDate(0, 0, -90)
	for _, p := range []string{undated, other} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	// named days win over fresh modification times
	fresh := time.Now()
	if err := os.Chtimes(old, fresh, fresh); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if n := logging.PruneDailyLogs(nil, dir, 0, now); n != 0 {
		t.Fatalf("zero retention must not prune, removed %d", n)
	}
	if n := logging.PruneDailyLogs(nil, dir, 30, now); n != 2 {
		t.Fatalf("expected two removals, got %d", n)
	}
	for _, p := range []string{old, undated} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("%s should be removed: %v", p, err)
		}
	}
	for _, p := range []string{recent, today, other} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s should remain: %v", p, err)
		}
	}
}
