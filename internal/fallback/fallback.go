// Package fallback runs an ordered list of candidates until one succeeds.
//
// Both the transcript acquisition chain and the model loop of the
// classification orchestrator are "first success wins" loops with
// per-attempt error capture. TryInOrder implements that loop once; when every
// candidate fails it returns an *AggregateError listing each failure in order.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Attempt records one candidate invocation.
type Attempt struct {
	Name     string        `json:"name"`
	Err      error         `json:"-"`
	Message  string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the attempt returned without error.
func (a Attempt) Succeeded() bool { return a.Err == nil }

// AggregateError is returned when every candidate failed.
type AggregateError struct {
	// Noun names the candidate kind in messages ("models", "strategies").
	Noun     string
	Attempts []Attempt
	// Cause is set when the loop stopped because the context ended.
	Cause error
}

func (e *AggregateError) Error() string {
	noun := e.Noun
	if noun == "" {
		noun = "candidates"
	}
	if len(e.Attempts) == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("no %s tried: %v", noun, e.Cause)
		}
		return fmt.Sprintf("no %s available", noun)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Name, a.Message))
	}
	msg := fmt.Sprintf("all %d %s failed: %s", len(e.Attempts), noun, strings.Join(parts, "; "))
	if e.Cause != nil {
		msg += fmt.Sprintf(" (stopped: %v)", e.Cause)
	}
	return msg
}

// Unwrap exposes every attempt error plus the stop cause to errors.Is/As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Last returns the most recent attempt error, or nil.
func (e *AggregateError) Last() error {
	for i := len(e.Attempts) - 1; i >= 0; i-- {
		if e.Attempts[i].Err != nil {
			return e.Attempts[i].Err
		}
	}
	return e.Cause
}

// Options tunes TryInOrder. The zero value tries every candidate back to back.
type Options struct {
	Noun string
	// Backoff is waited between a failed attempt and the next candidate.
	Backoff time.Duration
	// Sleep overrides the context-aware wait, mainly for tests.
	Sleep func(context.Context, time.Duration) error
	// OnFailure observes each failed attempt as it happens.
	OnFailure func(Attempt)
}

// TryInOrder calls attempt for each candidate in order and returns the first
// successful result together with every attempt made. name labels candidates
// in attempts and error messages.
func TryInOrder[C, R any](
	ctx context.Context,
	candidates []C,
	name func(C) string,
	attempt func(context.Context, C) (R, error),
	opts Options,
) (R, []Attempt, error) {
	var zero R
	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}
	attempts := make([]Attempt, 0, len(candidates))
	fail := func(cause error) (R, []Attempt, error) {
		failed := make([]Attempt, 0, len(attempts))
		for _, a := range attempts {
			if a.Err != nil {
				failed = append(failed, a)
			}
		}
		return zero, attempts, &AggregateError{Noun: opts.Noun, Attempts: failed, Cause: cause}
	}

	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if i > 0 && opts.Backoff > 0 {
			if err := sleep(ctx, opts.Backoff); err != nil {
				return fail(err)
			}
		}
		started := time.Now()
		result, err := attempt(ctx, candidate)
		rec := Attempt{Name: name(candidate), Err: err, Duration: time.Since(started)}
		if err == nil {
			attempts = append(attempts, rec)
			return result, attempts, nil
		}
		rec.Message = err.Error()
		attempts = append(attempts, rec)
		if opts.OnFailure != nil {
			opts.OnFailure(rec)
		}
	}
	return fail(nil)
}

// SleepWithContext waits for d or until ctx is done.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsExhausted reports whether err is an AggregateError.
func IsExhausted(err error) bool {
	var agg *AggregateError
	return errors.As(err, &agg)
}
