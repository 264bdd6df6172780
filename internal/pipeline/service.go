package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"vidseg/internal/acquire"
	"vidseg/internal/classify"
	"vidseg/internal/config"
	"vidseg/internal/genai"
	"vidseg/internal/groundtruth"
	"vidseg/internal/logging"
	"vidseg/internal/metadata"
	"vidseg/internal/models"
	"vidseg/internal/rules"
	"vidseg/internal/segment"
	"vidseg/internal/store"
)

// MetadataSource looks up title and channel.
type MetadataSource interface {
	Fetch(ctx context.Context, videoID string) (segment.Metadata, error)
}

// ReferenceSource looks up verified segments.
type ReferenceSource interface {
	Fetch(ctx context.Context, videoID string) ([]segment.Reference, error)
}

// ModelSource orders models and can refresh its ranking.
type ModelSource interface {
	classify.ModelSource
	EnsureFresh(ctx context.Context, maxAge time.Duration)
	Refresh(ctx context.Context) ([]models.Candidate, error)
	Candidates() []models.Candidate
}

// Service runs the end-to-end pipeline.
type Service struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpClient *http.Client

	captures   *acquire.CaptureBuffer
	chain      *acquire.Chain
	store      store.Store
	ownsStore  bool
	metadata   MetadataSource
	references ReferenceSource
	generator  classify.Generator
	models     ModelSource
	classifier *classify.Orchestrator
	tolerance  float64

	runs singleflight.Group
}

// Option customizes a Service.
type Option func(*Service)

// WithHTTPClient overrides the HTTP client of every outbound integration.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) { s.httpClient = client }
}

// WithStore replaces the configured store. The caller keeps ownership.
func WithStore(st store.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithCaptureBuffer shares a capture buffer with another component.
func WithCaptureBuffer(buf *acquire.CaptureBuffer) Option {
	return func(s *Service) { s.captures = buf }
}

// WithMetadataSource replaces the oEmbed client.
func WithMetadataSource(src MetadataSource) Option {
	return func(s *Service) { s.metadata = src }
}

// WithReferenceSource replaces the ground truth client.
func WithReferenceSource(src ReferenceSource) Option {
	return func(s *Service) { s.references = src }
}

// WithGenerator replaces the generative client.
func WithGenerator(gen classify.Generator) Option {
	return func(s *Service) { s.generator = gen }
}

// WithModelSource replaces the model list.
func WithModelSource(src ModelSource) Option {
	return func(s *Service) { s.models = src }
}

// New builds a Service from cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	s := &Service{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		tolerance: cfg.Classification.GapToleranceSeconds,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.captures == nil {
		s.captures = acquire.NewCaptureBuffer(cfg.CaptureTTL())
	}

	if s.store == nil {
		st, err := store.Open(ctx, store.Config{
			Backend:   cfg.Store.Backend,
			StateDir:  cfg.Paths.StateDir,
			RedisURL:  cfg.Store.RedisURL,
			KeyPrefix: cfg.Store.KeyPrefix,
			TTL:       cfg.StoreTTL(),
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: open store: %w", err)
		}
		s.store = st
		s.ownsStore = st != nil
	}

	if err := s.buildClients(logger); err != nil {
		_ = s.Close()
		return nil, err
	}

	var loader acquire.TranscriptLoader
	if s.store != nil {
		loader = s.store
	}
	s.chain = acquire.NewChain(logger, acquire.StandardStrategies(acquire.Sources{
		Store:                  loader,
		Captures:               s.captures,
		HTTPClient:             s.httpClient,
		UserAgent:              cfg.Acquisition.UserAgent,
		Timeout:                cfg.AcquisitionTimeout(),
		PlatformURL:            cfg.Acquisition.PlatformURL,
		InnertubeKey:           cfg.Acquisition.InnertubeKey,
		InnertubeClientVersion: cfg.Acquisition.InnertubeClientVersion,
		RelayURL:               cfg.Acquisition.RelayURL,
		InvidiousInstances:     cfg.Acquisition.InvidiousInstances,
		PipedInstances:         cfg.Acquisition.PipedInstances,
		Disabled:               cfg.Acquisition.DisabledStrategies,
	}, logger)...)

	cl := cfg.Classification
	engine := rules.New(rules.DefaultDetectors(rules.Thresholds{
		IntroWindow:       cl.IntroWindowSeconds,
		IntroMaxDuration:  cl.IntroMaxDuration,
		OutroWindow:       cl.OutroWindowSeconds,
		SponsorMaxRatio:   cl.SponsorMaxRatio,
		HighlightMinWords: cl.HighlightMinWords,
	}), logger)
	s.classifier = classify.New(s.generator, s.models, engine, classify.Config{
		RoleText:                cl.RoleText,
		Backoff:                 cfg.ClassificationBackoff(),
		MinContentPerTenMinutes: cl.MinContentPerTenMinutes,
		FullVideoRatio:          cl.FullVideoRatio,
		ChunkChars:              cl.ChunkChars,
	}, logger)
	return s, nil
}

func (s *Service) buildClients(logger *slog.Logger) error {
	cfg := s.cfg
	if s.generator == nil || s.models == nil {
		gen, err := genai.NewClient(genai.Config{
			APIKey:          cfg.LLM.APIKey,
			BaseURL:         cfg.LLM.BaseURL,
			TimeoutSeconds:  cfg.LLM.TimeoutSeconds,
			Temperature:     cfg.LLM.Temperature,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		}, genai.WithHTTPClient(s.httpClient), genai.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		if s.generator == nil {
			s.generator = gen
		}
		if s.models == nil {
			var lister models.Lister
			if len(cfg.LLM.StaticModels) == 0 && gen.Configured() {
				lister = gen
			}
			s.models = models.New(lister, models.Options{
				Forced:    cfg.LLM.Model,
				Preferred: cfg.LLM.PreferredModels,
				Static:    cfg.LLM.StaticModels,
				Exclude:   cfg.LLM.ExcludeModels,
			}, logger)
		}
	}
	if s.metadata == nil && cfg.Metadata.Enabled {
		client, err := metadata.New(metadata.Config{
			BaseURL:    cfg.Metadata.BaseURL,
			UserAgent:  cfg.Acquisition.UserAgent,
			HTTPClient: s.httpClient,
		})
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		s.metadata = client
	}
	if s.references == nil && cfg.GroundTruth.Enabled {
		httpClient := s.httpClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: time.Duration(cfg.GroundTruth.TimeoutSeconds) * time.Second}
		}
		client, err := groundtruth.New(groundtruth.Config{
			BaseURL:    cfg.GroundTruth.BaseURL,
			MinVotes:   cfg.GroundTruth.MinVotes,
			HashPrefix: cfg.GroundTruth.HashPrefix,
			UserAgent:  cfg.Acquisition.UserAgent,
			HTTPClient: httpClient,
		})
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		s.references = client
	}
	return nil
}

// llmReady fails when the built-in client has no credentials. Injected
// generators are trusted.
func (s *Service) llmReady() error {
	if client, ok := s.generator.(*genai.Client); ok && !client.Configured() {
		return s.cfg.RequireLLM()
	}
	return nil
}

// Captures is the buffer fed by POST /v1/captures.
func (s *Service) Captures() *acquire.CaptureBuffer { return s.captures }

// Store is the configured store, or nil when persistence is off.
func (s *Service) Store() store.Store { return s.store }

// Strategies lists acquisition strategies in execution order.
func (s *Service) Strategies() []string { return s.chain.Names() }

// Models returns the ranked models, refreshing the listing when refresh is
// set or the ranking is stale.
func (s *Service) Models(ctx context.Context, refresh bool) ([]models.Candidate, []string, error) {
	if refresh {
		if _, err := s.models.Refresh(ctx); err != nil {
			return nil, s.models.OrderedIdentifiers(), fmt.Errorf("pipeline models: %w", err)
		}
	} else {
		s.models.EnsureFresh(ctx, s.cfg.ModelRefreshInterval())
	}
	return s.models.Candidates(), s.models.OrderedIdentifiers(), nil
}

// Close releases the store when the service opened it.
func (s *Service) Close() error {
	if s.ownsStore && s.store != nil {
		return s.store.Close()
	}
	return nil
}
