package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vidseg/internal/acquire"
	"vidseg/internal/logging"
	"vidseg/internal/models"
	"vidseg/internal/pipeline"
	"vidseg/internal/store"
)

// Backend is the pipeline surface the server needs.
type Backend interface {
	Analyze(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	Transcript(ctx context.Context, videoID, lang string) (acquire.Result, error)
	Captures() *acquire.CaptureBuffer
	Models(ctx context.Context, refresh bool) ([]models.Candidate, []string, error)
	Strategies() []string
	Store() store.Store
}

// Config describes the listener.
type Config struct {
	Bind string
	// Token enables bearer authentication on /v1 routes.
	Token string
	// Hub backs GET /v1/logs; nil disables the route.
	Hub *logging.StreamHub
	// DefaultLanguage is used when a request names none.
	DefaultLanguage string
}

// Server serves the HTTP API.
type Server struct {
	cfg     Config
	backend Backend
	logger  *slog.Logger
	started time.Time

	router   chi.Router
	listener net.Listener
	server   *http.Server
}

// NewServer builds the router; call Start to listen.
func NewServer(cfg Config, backend Backend, logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("api: backend is required")
	}
	cfg.Bind = strings.TrimSpace(cfg.Bind)
	cfg.Token = strings.TrimSpace(cfg.Token)
	s := &Server{
		cfg:     cfg,
		backend: backend,
		logger:  logging.NewComponentLogger(logger, "api"),
		started: time.Now(),
	}
	s.router = s.routes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Classification walks several models; streaming responses stay open.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoveryMiddleware(s.logger))
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware(s.cfg.Token))
		r.Get("/segments/{video}", s.handleSegments)
		r.Get("/transcripts/{video}", s.handleTranscript)
		r.Post("/captures", s.handleCapture)
		r.Get("/models", s.handleModels)
		if s.cfg.Hub != nil {
			r.Get("/logs", s.handleLogs)
		}
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found", "NOT_FOUND")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
	})
	return r
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on Config.Bind and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Bind == "" {
		return errors.New("api: bind address is required")
	}
	listener, err := net.Listen("tcp", s.cfg.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_serve_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart vidseg serve"),
			)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.cfg.Token != ""),
	)
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Bind
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting up to five seconds for requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
