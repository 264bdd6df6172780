package models

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vidseg/internal/genai"
)

type fakeLister struct {
	mu     sync.Mutex
	models []genai.ModelInfo
	err    error
	calls  atomic.Int32
	gate   chan struct{}
}

func (f *fakeLister) ListModels(ctx context.Context) ([]genai.ModelInfo, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.models, f.err
}

func gen(name string, in, out int) genai.ModelInfo {
	return genai.ModelInfo{Name: "models/" + name, InputTokenLimit: in, OutputTokenLimit: out, SupportedOperations: []string{"generateContent"}}
}

func TestRankOrdersByCapability(t *testing.T) {
	infos := []genai.ModelInfo{
		gen("small", 1000, 500),
		gen("large", 2000, 1000),
		gen("medium", 1000, 2000),
		{Name: "models/embedder", InputTokenLimit: 9000, SupportedOperations: []string{"embedContent"}},
	}
	ranked := Rank(infos, nil)
	var ids []string
	for _, c := range ranked {
		ids = append(ids, c.Identifier)
	}
	if strings.Join(ids, ",") != "large,medium,small" {
		t.Fatalf("unexpected order %v", ids)
	}
}

func TestRankTieBreaksOnIdentifier(t *testing.T) {
	ranked := Rank([]genai.ModelInfo{gen("b", 10, 10), gen("a", 10, 10)}, nil)
	if ranked[0].Identifier != "a" {
		t.Fatalf("expected lexicographic tie break, got %+v", ranked)
	}
}

func TestOrderedIdentifiersStaticBeforeRefresh(t *testing.T) {
	l := New(&fakeLister{err: errors.New("offline")}, Options{Static: []string{"s1", "s2"}}, nil)
	if got := l.OrderedIdentifiers(); strings.Join(got, ",") != "s1,s2" {
		t.Fatalf("expected static list, got %v", got)
	}
	if _, err := l.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if got := l.OrderedIdentifiers(); strings.Join(got, ",") != "s1,s2" {
		t.Fatalf("failed refresh must keep static list, got %v", got)
	}
}

func TestOrderedIdentifiersPreferredFirst(t *testing.T) {
	lister := &fakeLister{models: []genai.ModelInfo{gen("small", 1000, 500), gen("large", 2000, 1000), gen("medium", 1000, 2000)}}
	l := New(lister, Options{Preferred: []string{"models/small", "missing"}}, nil)
	if _, err := l.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if got := l.OrderedIdentifiers(); strings.Join(got, ",") != "small,large,medium" {
		t.Fatalf("unexpected order %v", got)
	}
	if def, ok := l.Default(); !ok || def != "large" {
		t.Fatalf("expected default large, got %q", def)
	}
}

func TestOrderedIdentifiersForced(t *testing.T) {
	l := New(&fakeLister{models: []genai.ModelInfo{gen("large", 2000, 1000)}}, Options{Forced: "models/pinned"}, nil)
	_, _ = l.Refresh(context.Background())
	if got := l.OrderedIdentifiers(); len(got) != 1 || got[0] != "pinned" {
		t.Fatalf("expected forced model only, got %v", got)
	}
}

func TestRefreshCollapsesConcurrentCalls(t *testing.T) {
	lister := &fakeLister{models: []genai.ModelInfo{gen("a", 1, 1)}, gate: make(chan struct{})}
	l := New(lister, Options{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Refresh(context.Background())
		}()
	}
	// Readers are not blocked while the refresh is parked on the gate.
	deadline := time.Now().Add(time.Second)
	for lister.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := l.OrderedIdentifiers(); strings.Join(got, ",") != strings.Join(DefaultStatic, ",") {
		t.Fatalf("expected static list during refresh, got %v", got)
	}
	close(lister.gate)
	wg.Wait()
	if calls := lister.calls.Load(); calls < 1 || calls > 5 {
		t.Fatalf("unexpected call count %d", calls)
	}
	if got := l.OrderedIdentifiers(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected refreshed list, got %v", got)
	}
}

func TestRefreshSurvivesCanceledCaller(t *testing.T) {
	lister := &fakeLister{models: []genai.ModelInfo{gen("a", 1, 1)}, gate: make(chan struct{})}
	l := New(lister, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Refresh(ctx)
		firstErr <- err
	}()
	deadline := time.Now().Add(time.Second)
	for lister.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	secondErr := make(chan error, 1)
	go func() {
		_, err := l.Refresh(context.Background())
		secondErr <- err
	}()
	close(lister.gate)
	if err := <-secondErr; err != nil {
		t.Fatalf("Refresh after another caller canceled: %v", err)
	}
	if got := l.OrderedIdentifiers(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected refreshed list, got %v", got)
	}
	if calls := lister.calls.Load(); calls < 1 || calls > 2 {
		t.Fatalf("unexpected call count %d", calls)
	}
}

func TestStaleAndEnsureFresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lister := &fakeLister{models: []genai.ModelInfo{gen("a", 1, 1)}}
	l := New(lister, Options{Now: func() time.Time { return now }}, nil)
	if !l.Stale(time.Hour) {
		t.Fatal("expected stale before first refresh")
	}
	l.EnsureFresh(context.Background(), time.Hour)
	if l.Stale(time.Hour) || lister.calls.Load() != 1 {
		t.Fatalf("expected one refresh, got %d", lister.calls.Load())
	}
	l.EnsureFresh(context.Background(), time.Hour)
	if lister.calls.Load() != 1 {
		t.Fatal("fresh list should not refresh again")
	}
	now = now.Add(2 * time.Hour)
	if !l.Stale(time.Hour) {
		t.Fatal("expected stale after max age")
	}
}
