package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"vidseg/internal/fallback"
	"vidseg/internal/logging"
	"vidseg/internal/transcript"
)

// ErrEmpty marks a strategy that ran but produced no segments.
var ErrEmpty = errors.New("no transcript segments")

// Strategy is one way of acquiring a transcript.
type Strategy struct {
	Name     string
	Priority int
	Execute  func(ctx context.Context, videoID, lang string) (transcript.Transcript, error)
}

// Result is a successful extraction.
type Result struct {
	Segments transcript.Transcript `json:"segments"`
	Method   string                `json:"method"`
	Attempts []fallback.Attempt    `json:"attempts,omitempty"`
}

// ExhaustedError is returned when every strategy failed.
type ExhaustedError struct {
	VideoID   string
	LastError string
	Attempts  []fallback.Attempt
	Err       error
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		var agg *fallback.AggregateError
		if e.Err == nil || (errors.As(e.Err, &agg) && agg.Cause == nil) {
			return fmt.Sprintf("acquire %s: no strategies available", e.VideoID)
		}
	}
	return fmt.Sprintf("acquire %s: %v", e.VideoID, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Chain runs strategies in priority order.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain sorts strategies by priority (stable for equal priorities) and
// freezes the order.
func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	sorted := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s.Execute != nil {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &Chain{
		strategies: sorted,
		logger:     logging.NewComponentLogger(logger, "acquire"),
	}
}

// Names lists strategy names in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name
	}
	return names
}

// Extract returns the first non-empty transcript.
func (c *Chain) Extract(ctx context.Context, videoID, lang string) (Result, error) {
	logger := c.logger.With(logging.String(logging.FieldVideoID, videoID), logging.Stage("acquire"))
	failures := 0
	segs, attempts, err := fallback.TryInOrder(ctx, c.strategies,
		func(s Strategy) string { return s.Name },
		func(ctx context.Context, s Strategy) (transcript.Transcript, error) {
			tr, err := s.Execute(ctx, videoID, lang)
			if err != nil {
				return nil, err
			}
			if len(tr) == 0 {
				return nil, ErrEmpty
			}
			return tr, nil
		},
		fallback.Options{
			Noun: "strategies",
			OnFailure: func(a fallback.Attempt) {
				failures++
				logger.Debug("strategy failed",
					logging.String(logging.FieldStrategy, a.Name),
					logging.Attempt(failures),
					logging.Error(a.Err),
					logging.Duration("elapsed", a.Duration),
				)
			},
		},
	)
	if err != nil {
		exhausted := &ExhaustedError{VideoID: videoID, Attempts: attempts, Err: err}
		var agg *fallback.AggregateError
		if errors.As(err, &agg) {
			if last := agg.Last(); last != nil {
				exhausted.LastError = last.Error()
			}
			exhausted.Attempts = agg.Attempts
		}
		logging.WarnWithContext(logger, "transcript unavailable", "transcript_exhausted",
			logging.Int("strategies", len(c.strategies)),
			logging.String("last_error", exhausted.LastError),
			logging.String(logging.FieldErrorHint, "check captions exist for the video or configure a relay"),
			logging.String(logging.FieldImpact, "video cannot be segmented"),
		)
		return Result{Attempts: attempts}, exhausted
	}
	method := attempts[len(attempts)-1].Name
	logger.Info("transcript acquired",
		logging.String(logging.FieldStrategy, method),
		logging.Int("segments", len(segs)),
		logging.Int("attempts", len(attempts)),
	)
	return Result{Segments: segs, Method: method, Attempts: attempts}, nil
}
