// Package rules annotates transcript lines with advisory category hints and
// validates classified segments after generation.
//
// Each Detector is a capability record: a category, a pure Detect predicate,
// and an optional Validate pass over the final classified set. The Engine
// composes whatever detectors it is given; DefaultDetectors returns the stock
// set. Detector errors and panics count as "no match" so annotation never
// aborts.
package rules

import (
	"fmt"
	"log/slog"
	"strings"

	"vidseg/internal/logging"
	"vidseg/internal/segment"
	"vidseg/internal/transcript"
)

// Context is passed to Detect for one transcript segment.
type Context struct {
	Segment       transcript.Segment
	Metadata      segment.Metadata
	VideoDuration float64
}

// ValidateContext is passed to Validate for the final segment set.
type ValidateContext struct {
	Metadata      segment.Metadata
	VideoDuration float64
}

// Detector is one rule capability.
type Detector struct {
	Category segment.Category
	Detect   func(text string, ctx Context) (bool, error)
	Validate func(segs []segment.Classified, ctx ValidateContext) []segment.Classified
}

// Engine runs detectors and validators in registration order.
type Engine struct {
	detectors []Detector
	logger    *slog.Logger
}

// New builds an engine over a private copy of detectors.
func New(detectors []Detector, logger *slog.Logger) *Engine {
	copied := make([]Detector, len(detectors))
	copy(copied, detectors)
	return &Engine{
		detectors: copied,
		logger:    logging.NewComponentLogger(logger, "rules"),
	}
}

// Detectors returns a copy of the registered detectors.
func (e *Engine) Detectors() []Detector {
	out := make([]Detector, len(e.detectors))
	copy(out, e.detectors)
	return out
}

// Hints returns the categories whose detectors fire for ctx.Segment.
func (e *Engine) Hints(ctx Context) []segment.Category {
	text := strings.ToLower(ctx.Segment.Text)
	var hits []segment.Category
	for _, d := range e.detectors {
		if d.Detect == nil {
			continue
		}
		if e.safeDetect(d, text, ctx) {
			hits = append(hits, d.Category)
		}
	}
	return hits
}

func (e *Engine) safeDetect(d Detector, text string, ctx Context) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("detector panicked",
				logging.String("category", string(d.Category)),
				logging.String("panic", fmt.Sprint(r)),
			)
			matched = false
		}
	}()
	ok, err := d.Detect(text, ctx)
	if err != nil {
		e.logger.Debug("detector failed",
			logging.String("category", string(d.Category)),
			logging.Error(err),
		)
		return false
	}
	return ok
}

// Annotate renders one "[m:ss] text [hints: a, b]" line per segment.
func (e *Engine) Annotate(tr transcript.Transcript, md segment.Metadata) string {
	duration := md.Duration
	if end := tr.End(); end > duration {
		duration = end
	}
	lines := make([]string, 0, len(tr))
	for _, seg := range tr {
		line := fmt.Sprintf("[%s] %s", transcript.FormatClock(seg.Start), seg.Text)
		hints := e.Hints(Context{Segment: seg, Metadata: md, VideoDuration: duration})
		if len(hints) > 0 {
			names := make([]string, len(hints))
			for i, h := range hints {
				names[i] = string(h)
			}
			line += " [hints: " + strings.Join(names, ", ") + "]"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Validate applies every detector's validator to a copy of segs.
func (e *Engine) Validate(segs []segment.Classified, ctx ValidateContext) []segment.Classified {
	out := make([]segment.Classified, len(segs))
	copy(out, segs)
	if ctx.VideoDuration <= 0 {
		for _, s := range out {
			ctx.VideoDuration = max(ctx.VideoDuration, s.End)
		}
	}
	for _, d := range e.detectors {
		if d.Validate == nil {
			continue
		}
		out = d.Validate(out, ctx)
	}
	return out
}
