package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"vidseg/internal/language"
	"vidseg/internal/segment"
	"vidseg/internal/transcript"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("store: unknown backend")

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// StoredTranscript is a persisted transcript with its provenance.
type StoredTranscript struct {
	VideoID   string                `json:"video_id"`
	Language  string                `json:"language"`
	Method    string                `json:"method"`
	Segments  transcript.Transcript `json:"segments"`
	CreatedAt time.Time             `json:"created_at"`
}

// StoredAnalysis is a persisted analysis.
type StoredAnalysis struct {
	segment.Analysis
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats summarizes store contents.
type Stats struct {
	Backend     string `json:"backend"`
	Location    string `json:"location,omitempty"`
	Transcripts int    `json:"transcripts"`
	Analyses    int    `json:"analyses"`
}

// Store persists transcripts and analyses. Load methods report a miss with
// ok=false and a nil error.
type Store interface {
	LoadTranscript(ctx context.Context, videoID, lang string) (transcript.Transcript, bool, error)
	GetTranscript(ctx context.Context, videoID, lang string) (*StoredTranscript, error)
	SaveTranscript(ctx context.Context, rec StoredTranscript) error
	LoadAnalysis(ctx context.Context, videoID string) (*StoredAnalysis, error)
	SaveAnalysis(ctx context.Context, analysis segment.Analysis) error
	Delete(ctx context.Context, videoID string) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Config selects and addresses a backend.
type Config struct {
	Backend   string
	StateDir  string
	RedisURL  string
	KeyPrefix string
	TTL       time.Duration
}

// Open builds the configured backend. BackendNone yields a nil Store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendSQLite:
		s, err := OpenSQLite(filepath.Join(cfg.StateDir, "vidseg.db"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendRedis:
		r, err := OpenRedis(ctx, cfg.RedisURL, cfg.KeyPrefix, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
	}
}

func normalizeLang(lang string) string {
	return language.Key(lang)
}
