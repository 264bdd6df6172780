package config

import (
	"fmt"
	"os"
	"strings"

	"vidseg/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeAcquisition()
	c.normalizeClassification()
	c.normalizeGroundTruth()
	c.normalizeStore()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("VIDSEG_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeLLM() {
	if value, ok := lookupFirstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"); ok {
		c.LLM.APIKey = value
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.LLM.PreferredModels = normalizeList(c.LLM.PreferredModels, false)
	c.LLM.StaticModels = normalizeList(c.LLM.StaticModels, false)
	c.LLM.ExcludeModels = normalizeList(c.LLM.ExcludeModels, false)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxOutputTokens <= 0 {
		c.LLM.MaxOutputTokens = defaultLLMMaxOutputTokens
	}
	if c.LLM.ModelRefreshMinutes <= 0 {
		c.LLM.ModelRefreshMinutes = defaultModelRefreshMinutes
	}
}

func (c *Config) normalizeAcquisition() {
	a := &c.Acquisition
	a.Language = language.Normalize(a.Language)
	if a.Language == "" {
		a.Language = defaultLanguage
	}
	a.PlatformURL = strings.TrimRight(strings.TrimSpace(a.PlatformURL), "/")
	if a.PlatformURL == "" {
		a.PlatformURL = defaultPlatformURL
	}
	a.UserAgent = strings.TrimSpace(a.UserAgent)
	if a.TimeoutSeconds <= 0 {
		a.TimeoutSeconds = defaultAcquisitionTimeout
	}
	if value, ok := os.LookupEnv("VIDSEG_RELAY_URL"); ok && strings.TrimSpace(value) != "" {
		a.RelayURL = value
	}
	a.RelayURL = strings.TrimSpace(a.RelayURL)
	a.InnertubeKey = strings.TrimSpace(a.InnertubeKey)
	a.InnertubeClientVersion = strings.TrimSpace(a.InnertubeClientVersion)
	a.InvidiousInstances = normalizeList(a.InvidiousInstances, false)
	a.PipedInstances = normalizeList(a.PipedInstances, false)
	a.DisabledStrategies = normalizeList(a.DisabledStrategies, true)
	if a.CaptureTTLMinutes <= 0 {
		a.CaptureTTLMinutes = defaultCaptureTTLMinutes
	}
}

func (c *Config) normalizeClassification() {
	d := Default().Classification
	cl := &c.Classification
	cl.RoleText = strings.TrimSpace(cl.RoleText)
	if cl.IntroWindowSeconds <= 0 {
		cl.IntroWindowSeconds = d.IntroWindowSeconds
	}
	if cl.IntroMaxDuration <= 0 {
		cl.IntroMaxDuration = d.IntroMaxDuration
	}
	if cl.OutroWindowSeconds <= 0 {
		cl.OutroWindowSeconds = d.OutroWindowSeconds
	}
	if cl.HighlightMinWords <= 0 {
		cl.HighlightMinWords = d.HighlightMinWords
	}
	if cl.MinContentPerTenMinutes <= 0 {
		cl.MinContentPerTenMinutes = d.MinContentPerTenMinutes
	}
	if cl.ChunkChars <= 0 {
		cl.ChunkChars = d.ChunkChars
	}
	if cl.BackoffSeconds < 0 {
		cl.BackoffSeconds = 0
	}
	if cl.GapToleranceSeconds < 0 {
		cl.GapToleranceSeconds = 0
	}
}

func (c *Config) normalizeGroundTruth() {
	c.GroundTruth.BaseURL = strings.TrimRight(strings.TrimSpace(c.GroundTruth.BaseURL), "/")
	if c.GroundTruth.BaseURL == "" {
		c.GroundTruth.BaseURL = defaultGroundTruthBaseURL
	}
	if c.GroundTruth.TimeoutSeconds <= 0 {
		c.GroundTruth.TimeoutSeconds = defaultGroundTruthTimeout
	}
	c.Metadata.BaseURL = strings.TrimSpace(c.Metadata.BaseURL)
	if c.Metadata.BaseURL == "" {
		c.Metadata.BaseURL = defaultMetadataBaseURL
	}
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	if value, ok := os.LookupEnv("REDIS_URL"); ok && strings.TrimSpace(value) != "" {
		c.Store.RedisURL = value
	}
	c.Store.RedisURL = strings.TrimSpace(c.Store.RedisURL)
	c.Store.KeyPrefix = strings.TrimSpace(c.Store.KeyPrefix)
	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = defaultStoreKeyPrefix
	}
	if c.Store.TTLHours <= 0 {
		c.Store.TTLHours = defaultStoreTTLHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func lookupFirstEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

func normalizeList(values []string, lower bool) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, exists := seen[v]; exists {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
