package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidseg/internal/acquire"
	"vidseg/internal/classify"
	"vidseg/internal/fallback"
	"vidseg/internal/language"
	"vidseg/internal/logging"
	"vidseg/internal/segment"
	"vidseg/internal/store"
	"vidseg/internal/timeline"
	"vidseg/internal/transcript"
)

// MethodSupplied marks transcripts handed in by the caller.
const MethodSupplied = "supplied"

// ErrUnconfigured is returned when the generative service has no credentials.
var ErrUnconfigured = errors.New("generative service not configured")

// Request describes one analysis.
type Request struct {
	VideoID  string
	Language string
	// Refresh ignores a stored analysis and a stored transcript.
	Refresh bool
	// Transcript skips acquisition when set.
	Transcript transcript.Transcript
	Stream     bool
	OnChunk    func(fragment, accumulated string)
	Model      string
}

// Result is the outcome of Analyze.
type Result struct {
	RunID    string           `json:"run_id"`
	Analysis segment.Analysis `json:"analysis"`
	Metadata segment.Metadata `json:"metadata"`
	// Cached is set when the stored analysis was returned.
	Cached            bool               `json:"cached"`
	ReferenceCount    int                `json:"reference_count"`
	TranscriptTries   []fallback.Attempt `json:"transcript_attempts,omitempty"`
	ModelAttempts     []fallback.Attempt `json:"model_attempts,omitempty"`
	ParseFailed       bool               `json:"parse_failed,omitempty"`
	TranscriptSegment int                `json:"transcript_segments"`
	Elapsed           time.Duration      `json:"elapsed"`
}

// sharedRunTimeout bounds a collapsed run once it no longer follows any
// caller's context.
const sharedRunTimeout = 15 * time.Minute

// Analyze produces the segment timeline for a video. Identical concurrent
// requests share one run; each caller stops waiting when its own context ends.
func (s *Service) Analyze(ctx context.Context, req Request) (Result, error) {
	req.VideoID = strings.TrimSpace(req.VideoID)
	if req.VideoID == "" {
		return Result{}, errors.New("analyze: video id is required")
	}
	req.Language = language.Normalize(req.Language)
	if req.Language == "" {
		req.Language = s.cfg.Acquisition.Language
	}
	if req.Stream || req.OnChunk != nil || len(req.Transcript) > 0 {
		return s.analyze(ctx, req)
	}
	key := strings.Join([]string{req.VideoID, req.Language, req.Model, fmt.Sprint(req.Refresh)}, "|")
	ch := s.runs.DoChan(key, func() (any, error) {
		// Shared by every caller on key, so one caller leaving must not
		// cancel it for the rest.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedRunTimeout)
		defer cancel()
		return s.analyze(runCtx, req)
	})
	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("analyze %s: %w", req.VideoID, ctx.Err())
	case r := <-ch:
		res, _ := r.Val.(Result)
		return res, r.Err
	}
}

func (s *Service) analyze(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	res := Result{RunID: uuid.NewString()}
	ctx = logging.ContextWithVideoID(ctx, req.VideoID)
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldRequestID, res.RunID))

	if !req.Refresh && s.store != nil {
		stored, err := s.store.LoadAnalysis(ctx, req.VideoID)
		if err != nil {
			logging.WarnWithContext(logger, "stored analysis unreadable", "store_read_failed",
				logging.Stage("persist"),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the store backend"),
				logging.String(logging.FieldImpact, "analysis is recomputed"),
			)
		} else if stored != nil && (req.Model == "" || stored.Model == req.Model) {
			logger.Info("returning stored analysis", logging.Args(append(
				logging.DecisionAttrs("analysis_reuse", "stored", "refresh not requested"),
				logging.String(logging.FieldModel, stored.Model),
			)...)...)
			res.Analysis = stored.Analysis
			res.Metadata = segment.Metadata{VideoID: req.VideoID}
			res.Cached = true
			res.Elapsed = time.Since(started)
			return res, nil
		}
	}
	if err := s.llmReady(); err != nil {
		return res, fmt.Errorf("analyze %s: %w: %w", req.VideoID, ErrUnconfigured, err)
	}

	tr, method, tries, err := s.transcriptFor(ctx, req)
	res.TranscriptTries = tries
	if err != nil {
		return res, fmt.Errorf("analyze %s: %w", req.VideoID, err)
	}
	if collapsed := transcript.CollapseRepeats(tr, transcript.DefaultRepeatSimilarity); len(collapsed) < len(tr) {
		logger.Debug("rolling captions collapsed",
			logging.Stage("acquire"),
			logging.Int("before", len(tr)),
			logging.Int("after", len(collapsed)),
		)
		tr = collapsed
	}
	res.TranscriptSegment = len(tr)

	md := s.lookupMetadata(ctx, req.VideoID, logger)
	refs := s.lookupReferences(ctx, req.VideoID, logger)
	res.Metadata = md
	res.ReferenceCount = len(refs)

	s.models.EnsureFresh(ctx, s.cfg.ModelRefreshInterval())
	classified, err := s.classifier.ClassifyChunked(ctx, tr, md, classify.Options{
		Stream:     req.Stream,
		OnChunk:    req.OnChunk,
		References: refs,
		Model:      req.Model,
	})
	res.ModelAttempts = classified.Attempts
	if err != nil {
		return res, fmt.Errorf("analyze %s: %w", req.VideoID, err)
	}
	res.ParseFailed = classified.ParseFailed

	res.Analysis = segment.Analysis{
		VideoID:        req.VideoID,
		Timeline:       timeline.FillWithTolerance(classified.Segments, tr, s.tolerance),
		Segments:       classified.Segments,
		FullVideoLabel: classified.FullVideoLabel,
		Model:          classified.Model,
		TranscriptFrom: method,
		Raw:            classified.Raw,
	}
	if s.store != nil && !classified.ParseFailed {
		if err := s.store.SaveAnalysis(ctx, res.Analysis); err != nil {
			logging.WarnWithContext(logger, "analysis not persisted", "store_write_failed",
				logging.Stage("persist"),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the store backend"),
				logging.String(logging.FieldImpact, "next request recomputes the analysis"),
			)
		}
	}
	res.Elapsed = time.Since(started)
	logger.Info("analysis completed",
		logging.String(logging.FieldModel, classified.Model),
		logging.String(logging.FieldStrategy, method),
		logging.Int("segments", len(classified.Segments)),
		logging.Int("timeline_entries", len(res.Analysis.Timeline)),
		logging.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// Transcript runs the acquisition chain and persists a fresh transcript.
func (s *Service) Transcript(ctx context.Context, videoID, lang string) (acquire.Result, error) {
	lang = language.Normalize(lang)
	if lang == "" {
		lang = s.cfg.Acquisition.Language
	}
	res, err := s.chain.Extract(ctx, videoID, lang)
	if err != nil {
		return res, err
	}
	s.persistTranscript(ctx, videoID, lang, res)
	return res, nil
}

func (s *Service) transcriptFor(ctx context.Context, req Request) (transcript.Transcript, string, []fallback.Attempt, error) {
	if len(req.Transcript) > 0 {
		return req.Transcript.Sorted(), MethodSupplied, nil, nil
	}
	chain := s.chain
	if req.Refresh {
		chain = s.chainWithout("store")
	}
	res, err := chain.Extract(ctx, req.VideoID, req.Language)
	if err != nil {
		return nil, "", res.Attempts, err
	}
	s.persistTranscript(ctx, req.VideoID, req.Language, res)
	return res.Segments, res.Method, res.Attempts, nil
}

func (s *Service) persistTranscript(ctx context.Context, videoID, lang string, res acquire.Result) {
	if s.store == nil || res.Method == "store" {
		return
	}
	err := s.store.SaveTranscript(ctx, store.StoredTranscript{
		VideoID:  videoID,
		Language: lang,
		Method:   res.Method,
		Segments: res.Segments,
	})
	if err != nil {
		logging.WarnWithContext(s.logger, "transcript not persisted", "store_write_failed",
			logging.String(logging.FieldVideoID, videoID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the store backend"),
			logging.String(logging.FieldImpact, "next request acquires the transcript again"),
		)
	}
}

func (s *Service) chainWithout(name string) *acquire.Chain {
	disabled := append([]string{name}, s.cfg.Acquisition.DisabledStrategies...)
	return acquire.NewChain(s.logger, acquire.StandardStrategies(acquire.Sources{
		Captures:               s.captures,
		HTTPClient:             s.httpClient,
		UserAgent:              s.cfg.Acquisition.UserAgent,
		Timeout:                s.cfg.AcquisitionTimeout(),
		PlatformURL:            s.cfg.Acquisition.PlatformURL,
		InnertubeKey:           s.cfg.Acquisition.InnertubeKey,
		InnertubeClientVersion: s.cfg.Acquisition.InnertubeClientVersion,
		RelayURL:               s.cfg.Acquisition.RelayURL,
		InvidiousInstances:     s.cfg.Acquisition.InvidiousInstances,
		PipedInstances:         s.cfg.Acquisition.PipedInstances,
		Disabled:               disabled,
	}, s.logger)...)
}

func (s *Service) lookupMetadata(ctx context.Context, videoID string, logger *slog.Logger) segment.Metadata {
	md := segment.Metadata{VideoID: videoID}
	if s.metadata == nil {
		return md
	}
	fetched, err := s.metadata.Fetch(ctx, videoID)
	if err != nil {
		logging.WarnWithContext(logger, "metadata lookup failed", "metadata_failed",
			logging.Stage("metadata"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "video may be private or unembeddable"),
			logging.String(logging.FieldImpact, "title-based highlight hints are unavailable"),
		)
		return md
	}
	fetched.VideoID = videoID
	return fetched
}

func (s *Service) lookupReferences(ctx context.Context, videoID string, logger *slog.Logger) []segment.Reference {
	if s.references == nil {
		return nil
	}
	refs, err := s.references.Fetch(ctx, videoID)
	if err != nil {
		logging.WarnWithContext(logger, "ground truth lookup failed", "ground_truth_failed",
			logging.Stage("ground_truth"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set ground_truth.enabled = false to skip the lookup"),
			logging.String(logging.FieldImpact, "classification runs without verified segments"),
		)
		return nil
	}
	if len(refs) > 0 {
		logger.Debug("verified segments found", logging.Int("references", len(refs)))
	}
	return refs
}
