package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"vidseg/internal/segment"
	"vidseg/internal/transcript"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates a database written by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// SQLite is the file-backed Store.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: ensure directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLite{db: db, path: path}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path is the database file location.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("store: check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLite) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("store: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit schema: %w", err)
	}
	return nil
}

// LoadTranscript returns the persisted segments for a video and language.
func (s *SQLite) LoadTranscript(ctx context.Context, videoID, lang string) (transcript.Transcript, bool, error) {
	rec, err := s.GetTranscript(ctx, videoID, lang)
	if err != nil || rec == nil {
		return nil, false, err
	}
	return rec.Segments, true, nil
}

// GetTranscript returns the full record, or nil on a miss.
func (s *SQLite) GetTranscript(ctx context.Context, videoID, lang string) (*StoredTranscript, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT video_id, language, method, segments_json, created_at
         FROM transcripts WHERE video_id = ? AND language = ?`,
		videoID, normalizeLang(lang),
	)
	var (
		rec      StoredTranscript
		segsJSON string
		created  string
	)
	err := row.Scan(&rec.VideoID, &rec.Language, &rec.Method, &segsJSON, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(segsJSON), &rec.Segments); err != nil {
		return nil, fmt.Errorf("store: decode transcript %s: %w", videoID, err)
	}
	rec.CreatedAt = parseTime(created)
	return &rec, nil
}

// SaveTranscript inserts or replaces a transcript.
func (s *SQLite) SaveTranscript(ctx context.Context, rec StoredTranscript) error {
	if rec.VideoID == "" {
		return errors.New("store: transcript video id is required")
	}
	payload, err := json.Marshal(rec.Segments)
	if err != nil {
		return fmt.Errorf("store: encode transcript: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcripts (video_id, language, method, segments_json, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(video_id, language) DO UPDATE SET
             method = excluded.method,
             segments_json = excluded.segments_json,
             created_at = excluded.created_at`,
		rec.VideoID, normalizeLang(rec.Language), rec.Method, string(payload),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: save transcript: %w", err)
	}
	return nil
}

// LoadAnalysis returns the analysis for a video, or nil on a miss.
func (s *SQLite) LoadAnalysis(ctx context.Context, videoID string) (*StoredAnalysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT analysis_json, updated_at FROM analyses WHERE video_id = ?`, videoID)
	var payload, updated string
	err := row.Scan(&payload, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get analysis: %w", err)
	}
	var rec StoredAnalysis
	if err := json.Unmarshal([]byte(payload), &rec.Analysis); err != nil {
		return nil, fmt.Errorf("store: decode analysis %s: %w", videoID, err)
	}
	rec.UpdatedAt = parseTime(updated)
	return &rec, nil
}

// SaveAnalysis inserts or replaces the analysis for its video.
func (s *SQLite) SaveAnalysis(ctx context.Context, analysis segment.Analysis) error {
	if analysis.VideoID == "" {
		return errors.New("store: analysis video id is required")
	}
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("store: encode analysis: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (video_id, model, transcript_method, analysis_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(video_id) DO UPDATE SET
             model = excluded.model,
             transcript_method = excluded.transcript_method,
             analysis_json = excluded.analysis_json,
             updated_at = excluded.updated_at`,
		analysis.VideoID, nullableString(analysis.Model), nullableString(analysis.TranscriptFrom),
		string(payload), now, now,
	)
	if err != nil {
		return fmt.Errorf("store: save analysis: %w", err)
	}
	return nil
}

// Delete removes every record of a video.
func (s *SQLite) Delete(ctx context.Context, videoID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, table := range []string{"transcripts", "analyses"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE video_id = ?", videoID); err != nil {
			return fmt.Errorf("store: delete from %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit delete: %w", err)
	}
	return nil
}

// Stats counts stored records.
func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Backend: BackendSQLite, Location: s.path}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM transcripts").Scan(&stats.Transcripts); err != nil {
		return stats, fmt.Errorf("store: count transcripts: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM analyses").Scan(&stats.Analyses); err != nil {
		return stats, fmt.Errorf("store: count analyses: %w", err)
	}
	return stats, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
