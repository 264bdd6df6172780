package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vidseg/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// LLM contains generative service settings.
type LLM struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	// Model forces a single model and disables fallback.
	Model           string   `toml:"model"`
	PreferredModels []string `toml:"preferred_models"`
	// StaticModels replaces discovery with a fixed ordered list.
	StaticModels        []string `toml:"static_models"`
	ExcludeModels       []string `toml:"exclude_models"`
	TimeoutSeconds      int      `toml:"timeout_seconds"`
	Temperature         float64  `toml:"temperature"`
	MaxOutputTokens     int      `toml:"max_output_tokens"`
	Stream              bool     `toml:"stream"`
	ModelRefreshMinutes int      `toml:"model_refresh_minutes"`
}

// Acquisition contains transcript retrieval settings.
type Acquisition struct {
	Language               string   `toml:"language"`
	PlatformURL            string   `toml:"platform_url"`
	UserAgent              string   `toml:"user_agent"`
	TimeoutSeconds         int      `toml:"timeout_seconds"`
	InnertubeKey           string   `toml:"innertube_key"`
	InnertubeClientVersion string   `toml:"innertube_client_version"`
	RelayURL               string   `toml:"relay_url"`
	InvidiousInstances     []string `toml:"invidious_instances"`
	PipedInstances         []string `toml:"piped_instances"`
	DisabledStrategies     []string `toml:"disabled_strategies"`
	CaptureTTLMinutes      int      `toml:"capture_ttl_minutes"`
}

// Classification contains rule thresholds and orchestrator tuning.
type Classification struct {
	RoleText                string  `toml:"role_text"`
	IntroWindowSeconds      float64 `toml:"intro_window_seconds"`
	IntroMaxDuration        float64 `toml:"intro_max_duration"`
	OutroWindowSeconds      float64 `toml:"outro_window_seconds"`
	SponsorMaxRatio         float64 `toml:"sponsor_max_ratio"`
	HighlightMinWords       int     `toml:"highlight_min_words"`
	GapToleranceSeconds     float64 `toml:"gap_tolerance_seconds"`
	MinContentPerTenMinutes int     `toml:"min_content_per_ten_minutes"`
	FullVideoRatio          float64 `toml:"full_video_ratio"`
	ChunkChars              int     `toml:"chunk_chars"`
	BackoffSeconds          float64 `toml:"backoff_seconds"`
}

// GroundTruth contains community segment lookup settings.
type GroundTruth struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	MinVotes       int    `toml:"min_votes"`
	HashPrefix     bool   `toml:"hash_prefix"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Metadata contains oEmbed lookup settings.
type Metadata struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
}

// Store contains persistence settings.
type Store struct {
	Backend   string `toml:"backend"`
	RedisURL  string `toml:"redis_url"`
	KeyPrefix string `toml:"key_prefix"`
	TTLHours  int    `toml:"ttl_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for vidseg.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories, API bind address
//   - LLM: generative service connection and model selection
//   - Acquisition: transcript strategies and their endpoints
//   - Classification: rule thresholds and orchestrator tuning
//   - GroundTruth: community segment lookup
//   - Metadata: title and channel lookup
//   - Store: persistence backend
//   - Logging: log format, level, and retention
type Config struct {
	Paths          Paths          `toml:"paths"`
	LLM            LLM            `toml:"llm"`
	Acquisition    Acquisition    `toml:"acquisition"`
	Classification Classification `toml:"classification"`
	GroundTruth    GroundTruth    `toml:"ground_truth"`
	Metadata       Metadata       `toml:"metadata"`
	Store          Store          `toml:"store"`
	Logging        Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidseg.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Sample returns the embedded sample configuration.
func Sample() string {
	return sampleConfig
}

// LLMTimeout is the per-call deadline of the generative service.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// AcquisitionTimeout is the per-request deadline of transcript strategies.
func (c *Config) AcquisitionTimeout() time.Duration {
	return time.Duration(c.Acquisition.TimeoutSeconds) * time.Second
}

// CaptureTTL bounds how long intercepted transcripts stay usable.
func (c *Config) CaptureTTL() time.Duration {
	return time.Duration(c.Acquisition.CaptureTTLMinutes) * time.Minute
}

// ModelRefreshInterval is the maximum age of the discovered model list.
func (c *Config) ModelRefreshInterval() time.Duration {
	return time.Duration(c.LLM.ModelRefreshMinutes) * time.Minute
}

// ClassificationBackoff is waited between failed models.
func (c *Config) ClassificationBackoff() time.Duration {
	return time.Duration(c.Classification.BackoffSeconds * float64(time.Second))
}

// StoreTTL bounds record lifetime in Redis.
func (c *Config) StoreTTL() time.Duration {
	return time.Duration(c.Store.TTLHours) * time.Hour
}
