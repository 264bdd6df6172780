package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vidseg/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "VIDSEG_RELAY_URL", "REDIS_URL", "VIDSEG_API_TOKEN"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "vidseg", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "vidseg") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Logging.Format != "console" {
		t.Fatalf("unexpected defaults: store=%q log=%q", cfg.Store.Backend, cfg.Logging.Format)
	}
	if cfg.ClassificationBackoff() != time.Second {
		t.Fatalf("unexpected backoff %v", cfg.ClassificationBackoff())
	}
	if err := cfg.RequireLLM(); err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected missing key hint, got %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "vidseg.toml")

	type payload struct {
		LLM struct {
			APIKey       string   `toml:"api_key"`
			StaticModels []string `toml:"static_models"`
		} `toml:"llm"`
		Acquisition struct {
			Language           string   `toml:"language"`
			DisabledStrategies []string `toml:"disabled_strategies"`
		} `toml:"acquisition"`
		Classification struct {
			SponsorMaxRatio float64 `toml:"sponsor_max_ratio"`
		} `toml:"classification"`
	}
	custom := payload{}
	custom.LLM.APIKey = "file-key"
	custom.LLM.StaticModels = []string{" gemini-a ", "gemini-a", "gemini-b"}
	custom.Acquisition.Language = "DE"
	custom.Acquisition.DisabledStrategies = []string{"WatchPage"}
	custom.Classification.SponsorMaxRatio = 0.6
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution %q exists=%v", resolved, exists)
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Fatalf("expected key from file, got %q", cfg.LLM.APIKey)
	}
	if strings.Join(cfg.LLM.StaticModels, ",") != "gemini-a,gemini-b" {
		t.Fatalf("expected deduplicated models, got %v", cfg.LLM.StaticModels)
	}
	if cfg.Acquisition.Language != "de" || cfg.Acquisition.DisabledStrategies[0] != "watchpage" {
		t.Fatalf("unexpected acquisition %+v", cfg.Acquisition)
	}
	if cfg.Classification.SponsorMaxRatio != 0.6 || cfg.Classification.IntroWindowSeconds != 30 {
		t.Fatalf("unexpected classification %+v", cfg.Classification)
	}
}

func TestEnvVarOverridesConfigFile(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "vidseg.toml")
	contents := "[llm]\napi_key = \"file-key\"\n[store]\nbackend = \"redis\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GOOGLE_API_KEY", "env-key")
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("VIDSEG_RELAY_URL", "https://relay.example.com/t")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Store.RedisURL != "redis://cache:6379/2" {
		t.Errorf("expected redis url from env, got %q", cfg.Store.RedisURL)
	}
	if cfg.Acquisition.RelayURL != "https://relay.example.com/t" {
		t.Errorf("expected relay url from env, got %q", cfg.Acquisition.RelayURL)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_gemini_api_key_here") {
		t.Fatalf("sample config missing placeholder key: %s", contents)
	}
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StateDir, "vidseg") {
		t.Fatalf("expected state dir to contain vidseg, got %q", cfg.Paths.StateDir)
	}
	if cfg.Classification.ChunkChars != config.Default().Classification.ChunkChars {
		t.Fatalf("sample chunk size drifted from defaults: %d", cfg.Classification.ChunkChars)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "sponsor ratio", mutate: func(c *config.Config) { c.Classification.SponsorMaxRatio = 1.5 }},
		{name: "full video ratio", mutate: func(c *config.Config) { c.Classification.FullVideoRatio = 0 }},
		{name: "tiny chunks", mutate: func(c *config.Config) { c.Classification.ChunkChars = 10 }},
		{name: "redis without url", mutate: func(c *config.Config) { c.Store.Backend = "redis" }},
		{name: "unknown backend", mutate: func(c *config.Config) { c.Store.Backend = "mongo" }},
		{name: "unknown strategy", mutate: func(c *config.Config) { c.Acquisition.DisabledStrategies = []string{"carrier-pigeon"} }},
		{name: "relative relay", mutate: func(c *config.Config) { c.Acquisition.RelayURL = "/relay" }},
		{name: "temperature", mutate: func(c *config.Config) { c.LLM.Temperature = 3 }},
		{name: "log level", mutate: func(c *config.Config) { c.Logging.Level = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
