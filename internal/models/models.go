// Package models ranks generation-capable model identifiers for the
// classification fallback loop.
//
// A List is refreshed wholesale from the capability listing and published
// through an atomic pointer, so readers always see either the previous or the
// new ranking and never wait on a refresh in flight. Concurrent Refresh calls
// share one listing request.
package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"vidseg/internal/genai"
	"vidseg/internal/logging"
)

// refreshTimeout bounds one shared listing request.
const refreshTimeout = time.Minute

// GenerateOperation is the capability a model must advertise to be ranked.
const GenerateOperation = "generateContent"

// DefaultStatic is used until a capability refresh succeeds.
var DefaultStatic = []string{
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash",
	"gemini-1.5-flash",
}

// Candidate is one ranked model.
type Candidate struct {
	Identifier  string `json:"identifier"`
	InputLimit  int    `json:"input_limit"`
	OutputLimit int    `json:"output_limit"`
}

// Lister queries the capability listing.
type Lister interface {
	ListModels(ctx context.Context) ([]genai.ModelInfo, error)
}

// Options configures a List.
type Options struct {
	// Forced, when set, is the only identifier ever returned.
	Forced string
	// Preferred identifiers are emitted first, in this order, when present in
	// the live listing.
	Preferred []string
	// Static replaces DefaultStatic.
	Static []string
	// Exclude drops identifiers containing any of these substrings.
	Exclude []string
	Now     func() time.Time
}

type snapshot struct {
	candidates []Candidate
	refreshed  time.Time
}

// List is the ranked model fallback list. The zero value is not usable; use
// New.
type List struct {
	lister  Lister
	opts    Options
	logger  *slog.Logger
	current atomic.Pointer[snapshot]
	group   singleflight.Group
}

// New builds a List. lister may be nil, in which case only forced and static
// identifiers are available.
func New(lister Lister, opts Options, logger *slog.Logger) *List {
	if len(opts.Static) == 0 {
		opts.Static = DefaultStatic
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Forced = strings.TrimPrefix(strings.TrimSpace(opts.Forced), "models/")
	return &List{
		lister: lister,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "models"),
	}
}

// Refresh queries the listing, ranks generation-capable models and publishes
// the result. On failure the previous ranking stays in place.
func (l *List) Refresh(ctx context.Context) ([]Candidate, error) {
	if l.lister == nil {
		return nil, errors.New("models refresh: no capability lister configured")
	}
	ch := l.group.DoChan("refresh", func() (any, error) {
		listCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		infos, err := l.lister.ListModels(listCtx)
		if err != nil {
			return nil, fmt.Errorf("models refresh: %w", err)
		}
		ranked := Rank(infos, l.opts.Exclude)
		if len(ranked) == 0 {
			return nil, errors.New("models refresh: listing contained no generation-capable models")
		}
		l.current.Store(&snapshot{candidates: ranked, refreshed: l.opts.Now()})
		l.logger.Info("model list refreshed",
			logging.Int("candidates", len(ranked)),
			logging.String("default_model", ranked[0].Identifier),
		)
		return ranked, nil
	})
	var r singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("models refresh: %w", ctx.Err())
	case r = <-ch:
	}
	if r.Err != nil {
		return nil, r.Err
	}
	ranked := r.Val.([]Candidate)
	if r.Shared {
		ranked = append([]Candidate(nil), ranked...)
	}
	return ranked, nil
}

// Rank filters infos to generation-capable models, strips the "models/"
// prefix and sorts by input limit desc, output limit desc, identifier asc.
func Rank(infos []genai.ModelInfo, exclude []string) []Candidate {
	out := make([]Candidate, 0, len(infos))
	seen := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		if !info.Supports(GenerateOperation) {
			continue
		}
		id := strings.TrimPrefix(strings.TrimSpace(info.Name), "models/")
		if id == "" || excluded(id, exclude) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, Candidate{Identifier: id, InputLimit: info.InputTokenLimit, OutputLimit: info.OutputTokenLimit})
	}
	SortCandidates(out)
	return out
}

// SortCandidates orders candidates by capability.
func SortCandidates(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].InputLimit != c[j].InputLimit {
			return c[i].InputLimit > c[j].InputLimit
		}
		if c[i].OutputLimit != c[j].OutputLimit {
			return c[i].OutputLimit > c[j].OutputLimit
		}
		return c[i].Identifier < c[j].Identifier
	})
}

func excluded(id string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(id, p) {
			return true
		}
	}
	return false
}

// Candidates returns the last published ranking, or nil.
func (l *List) Candidates() []Candidate {
	snap := l.current.Load()
	if snap == nil {
		return nil
	}
	return append([]Candidate(nil), snap.candidates...)
}

// Default returns the top-ranked identifier of the last refresh.
func (l *List) Default() (string, bool) {
	snap := l.current.Load()
	if snap == nil || len(snap.candidates) == 0 {
		return "", false
	}
	return snap.candidates[0].Identifier, true
}

// OrderedIdentifiers returns the identifiers to try, best first.
func (l *List) OrderedIdentifiers() []string {
	if l.opts.Forced != "" {
		return []string{l.opts.Forced}
	}
	snap := l.current.Load()
	if snap == nil {
		return append([]string(nil), l.opts.Static...)
	}
	return order(snap.candidates, l.opts.Preferred)
}

func order(ranked []Candidate, preferred []string) []string {
	live := make(map[string]struct{}, len(ranked))
	for _, c := range ranked {
		live[c.Identifier] = struct{}{}
	}
	out := make([]string, 0, len(ranked))
	used := make(map[string]struct{}, len(ranked))
	for _, p := range preferred {
		p = strings.TrimPrefix(strings.TrimSpace(p), "models/")
		if _, ok := live[p]; !ok {
			continue
		}
		if _, dup := used[p]; dup {
			continue
		}
		used[p] = struct{}{}
		out = append(out, p)
	}
	for _, c := range ranked {
		if _, dup := used[c.Identifier]; dup {
			continue
		}
		out = append(out, c.Identifier)
	}
	return out
}

// RefreshedAt returns when the ranking was last published.
func (l *List) RefreshedAt() (time.Time, bool) {
	snap := l.current.Load()
	if snap == nil {
		return time.Time{}, false
	}
	return snap.refreshed, true
}

// Stale reports whether the ranking is missing or older than maxAge. A
// non-positive maxAge only checks for a missing ranking.
func (l *List) Stale(maxAge time.Duration) bool {
	at, ok := l.RefreshedAt()
	if !ok {
		return true
	}
	return maxAge > 0 && l.opts.Now().Sub(at) > maxAge
}

// EnsureFresh refreshes a stale ranking. Failures are logged and the previous
// ranking, or the static list, stays in use.
func (l *List) EnsureFresh(ctx context.Context, maxAge time.Duration) {
	if l.opts.Forced != "" || l.lister == nil || !l.Stale(maxAge) {
		return
	}
	if _, err := l.Refresh(ctx); err != nil {
		logging.WarnWithContext(l.logger, "model list refresh failed", "model_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm.api_key and network access"),
			logging.String(logging.FieldImpact, "using previous or static model list"),
		)
	}
}
