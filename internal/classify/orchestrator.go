// Package classify turns a transcript into labeled segments with the help of
// a generative service.
//
// Classify annotates the transcript with rule hints, builds a prompt, walks
// the ranked model list until one model answers, parses the structured
// response and applies the rule validators to the final candidate set. A
// failed call moves on to the next model after a fixed backoff; when every
// model fails the caller gets a *fallback.AggregateError naming each failure.
// A call that succeeds but returns unparseable text is not an error: the
// result carries no segments and keeps the raw text.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vidseg/internal/chunk"
	"vidseg/internal/fallback"
	"vidseg/internal/logging"
	"vidseg/internal/rules"
	"vidseg/internal/segment"
	"vidseg/internal/transcript"
)

// Generator is the generative service.
type Generator interface {
	Call(ctx context.Context, prompt, model string) (string, error)
	CallStreaming(ctx context.Context, prompt, model string, onChunk func(fragment, accumulated string)) (string, error)
}

// ModelSource yields the identifiers to try, best first.
type ModelSource interface {
	OrderedIdentifiers() []string
}

// Config tunes the orchestrator.
type Config struct {
	RoleText string
	// Backoff is waited between a failed model and the next one.
	Backoff time.Duration
	// MinContentPerTenMinutes scales the content segment floor.
	MinContentPerTenMinutes int
	// FullVideoRatio is the coverage above which itemized segments of the
	// full-video category are dropped.
	FullVideoRatio float64
	// ChunkChars bounds one prompt's transcript in ClassifyChunked.
	ChunkChars int
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		RoleText:                DefaultRoleText,
		Backoff:                 time.Second,
		MinContentPerTenMinutes: 2,
		FullVideoRatio:          0.5,
		ChunkChars:              30000,
	}
}

// Options are per-call settings.
type Options struct {
	// Stream selects CallStreaming; OnChunk receives its fragments.
	Stream  bool
	OnChunk func(fragment, accumulated string)
	// References are verified segments passed to the prompt.
	References []segment.Reference
	// Model pins a single model for this call.
	Model string
}

// Result is the outcome of a classification.
type Result struct {
	Segments       []segment.Classified `json:"segments"`
	FullVideoLabel *segment.Category    `json:"full_video_label,omitempty"`
	Model          string               `json:"model"`
	Raw            string               `json:"raw,omitempty"`
	Attempts       []fallback.Attempt   `json:"attempts,omitempty"`
	// ParseFailed is set when the model answered with unusable text.
	ParseFailed bool `json:"parse_failed,omitempty"`
}

// Orchestrator drives one classification at a time; it holds no per-call
// state and is safe for concurrent use.
type Orchestrator struct {
	gen    Generator
	models ModelSource
	rules  *rules.Engine
	cfg    Config
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithSleeper overrides the backoff wait, mainly for tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

// New builds an orchestrator.
func New(gen Generator, models ModelSource, engine *rules.Engine, cfg Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	defaults := DefaultConfig()
	if cfg.FullVideoRatio <= 0 {
		cfg.FullVideoRatio = defaults.FullVideoRatio
	}
	if cfg.MinContentPerTenMinutes <= 0 {
		cfg.MinContentPerTenMinutes = defaults.MinContentPerTenMinutes
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if engine == nil {
		engine = rules.New(rules.DefaultDetectors(rules.DefaultThresholds()), logger)
	}
	o := &Orchestrator{
		gen:    gen,
		models: models,
		rules:  engine,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "classify"),
		sleep:  fallback.SleepWithContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Classify labels tr in a single prompt.
func (o *Orchestrator) Classify(ctx context.Context, tr transcript.Transcript, md segment.Metadata, opts Options) (Result, error) {
	if len(tr) == 0 {
		return Result{}, errors.New("classify: empty transcript")
	}
	duration := videoDuration(tr, md)
	res, err := o.classifyOnce(ctx, tr, md, duration, nil, opts)
	if err != nil {
		return res, err
	}
	res.Segments = o.finalize(res.Segments, res.FullVideoLabel, md, duration)
	return res, nil
}

// ClassifyChunked splits long transcripts into blocks of at most
// Config.ChunkChars and classifies them in order. Segments are concatenated
// without merging; the full-video label comes from the first block that sets
// one. Validators run once over the combined set.
func (o *Orchestrator) ClassifyChunked(ctx context.Context, tr transcript.Transcript, md segment.Metadata, opts Options) (Result, error) {
	if len(tr) == 0 {
		return Result{}, errors.New("classify: empty transcript")
	}
	blocks := chunk.Segments(tr, o.cfg.ChunkChars)
	if len(blocks) <= 1 {
		return o.Classify(ctx, tr, md, opts)
	}
	duration := videoDuration(tr, md)
	var (
		combined Result
		raws     []string
		models   []string
	)
	for i, block := range blocks {
		window := [2]float64{block.Start, block.End}
		res, err := o.classifyOnce(ctx, block.Segments, md, duration, &window, opts)
		combined.Attempts = append(combined.Attempts, res.Attempts...)
		if err != nil {
			return combined, fmt.Errorf("classify block %d/%d: %w", i+1, len(blocks), err)
		}
		combined.Segments = append(combined.Segments, res.Segments...)
		if combined.FullVideoLabel == nil && res.FullVideoLabel != nil {
			combined.FullVideoLabel = res.FullVideoLabel
		}
		combined.ParseFailed = combined.ParseFailed || res.ParseFailed
		raws = append(raws, res.Raw)
		if len(models) == 0 || models[len(models)-1] != res.Model {
			models = append(models, res.Model)
		}
		o.logger.Debug("block classified",
			logging.Int("block", i+1),
			logging.Int("blocks", len(blocks)),
			logging.Int("segments", len(res.Segments)),
		)
	}
	combined.Raw = strings.Join(raws, "\n")
	combined.Model = strings.Join(models, ",")
	combined.Segments = o.finalize(combined.Segments, combined.FullVideoLabel, md, duration)
	return combined, nil
}

func (o *Orchestrator) classifyOnce(ctx context.Context, tr transcript.Transcript, md segment.Metadata, duration float64, window *[2]float64, opts Options) (Result, error) {
	mdFull := md
	mdFull.Duration = duration
	prompt := BuildPrompt(PromptInput{
		RoleText:           o.cfg.RoleText,
		Metadata:           mdFull,
		Annotated:          o.rules.Annotate(tr, mdFull),
		References:         opts.References,
		Duration:           duration,
		MinContentSegments: o.minContent(duration, window),
		Window:             window,
	})

	ids := o.modelIDs(opts)
	if len(ids) == 0 {
		return Result{}, errors.New("classify: no models available")
	}

	failures := 0
	text, attempts, err := fallback.TryInOrder(ctx, ids,
		func(id string) string { return id },
		func(ctx context.Context, model string) (string, error) {
			if opts.Stream {
				return o.gen.CallStreaming(ctx, prompt, model, opts.OnChunk)
			}
			return o.gen.Call(ctx, prompt, model)
		},
		fallback.Options{
			Noun:    "models",
			Backoff: o.cfg.Backoff,
			Sleep:   o.sleep,
			OnFailure: func(a fallback.Attempt) {
				failures++
				logging.WarnWithContext(o.logger, "model attempt failed", "model_attempt_failed",
					logging.String(logging.FieldModel, a.Name),
					logging.Attempt(failures),
					logging.Error(a.Err),
					logging.String(logging.FieldErrorHint, "next model in the fallback list will be tried"),
					logging.String(logging.FieldImpact, "classification latency increases"),
				)
			},
		},
	)
	res := Result{Attempts: attempts}
	if err != nil {
		return res, fmt.Errorf("classify: %w", err)
	}
	res.Model = attempts[len(attempts)-1].Name
	res.Raw = text

	out, perr := ParseOutput(text)
	if perr != nil {
		logging.WarnWithContext(o.logger, "classification response unparseable", "classification_parse_failed",
			logging.String(logging.FieldModel, res.Model),
			logging.Error(perr),
			logging.String(logging.FieldErrorHint, "inspect the raw response"),
			logging.String(logging.FieldImpact, "no segments from this response"),
		)
		res.ParseFailed = true
		return res, nil
	}
	if out.Dropped > 0 {
		o.logger.Debug("dropped unusable segments",
			logging.Int("dropped", out.Dropped),
			logging.String(logging.FieldModel, res.Model),
		)
	}
	res.Segments = out.Segments
	res.FullVideoLabel = out.FullVideoLabel
	o.logger.Info("classification completed",
		logging.String(logging.FieldModel, res.Model),
		logging.Int("segments", len(res.Segments)),
		logging.Int("attempts", len(attempts)),
	)
	return res, nil
}

func (o *Orchestrator) modelIDs(opts Options) []string {
	if m := strings.TrimSpace(opts.Model); m != "" {
		return []string{m}
	}
	if o.models == nil {
		return nil
	}
	return o.models.OrderedIdentifiers()
}

func (o *Orchestrator) minContent(duration float64, window *[2]float64) int {
	span := duration
	if window != nil {
		span = window[1] - window[0]
	}
	return MinContentSegments(span, o.cfg.MinContentPerTenMinutes)
}

func (o *Orchestrator) finalize(segs []segment.Classified, label *segment.Category, md segment.Metadata, duration float64) []segment.Classified {
	segs = o.rules.Validate(segs, rules.ValidateContext{Metadata: md, VideoDuration: duration})
	segs = FullVideoLabelGuard(segs, label, duration, o.cfg.FullVideoRatio)
	return Normalize(segs, duration)
}

func videoDuration(tr transcript.Transcript, md segment.Metadata) float64 {
	return max(md.Duration, tr.End())
}
