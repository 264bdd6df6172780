package testsupport

import (
	"path/filepath"
	"testing"

	"vidseg/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Network lookups that tests do not stub (ground truth, metadata, mirrors)
// are disabled, and the model list is static.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.LLM.APIKey = "test"
	cfgVal.LLM.StaticModels = []string{"test-model"}
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.GroundTruth.Enabled = false
	cfgVal.Metadata.Enabled = false
	cfgVal.Classification.BackoffSeconds = 0
	cfgVal.Acquisition.DisabledStrategies = []string{"innertube", "timedtext", "watchpage"}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLMEndpoint points the generative client at a test server.
func WithLLMEndpoint(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = baseURL
	}
}

// WithStaticModels overrides the model list.
func WithStaticModels(models ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.StaticModels = models
	}
}

// WithRelay enables the relay strategy against a test server.
func WithRelay(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Acquisition.RelayURL = url
	}
}

// WithPlatform enables the platform strategies against a test server.
func WithPlatform(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Acquisition.PlatformURL = url
		b.cfg.Acquisition.DisabledStrategies = nil
	}
}

// WithStoreBackend selects the persistence backend.
func WithStoreBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Backend = backend
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
