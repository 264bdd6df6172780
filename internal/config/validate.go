package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var knownStrategies = map[string]struct{}{
	"store": {}, "intercepted": {}, "innertube": {}, "timedtext": {},
	"relay": {}, "watchpage": {}, "mirrors": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateAcquisition(); err != nil {
		return err
	}
	if err := c.validateClassification(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	return c.validateLogging()
}

// RequireLLM reports a missing API key. Commands that never classify skip it.
func (c *Config) RequireLLM() error {
	if strings.TrimSpace(c.LLM.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("llm.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'vidseg config init')", defaultPath)
}

func (c *Config) validateLLM() error {
	if err := validateURL("llm.base_url", c.LLM.BaseURL); err != nil {
		return err
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateAcquisition() error {
	a := c.Acquisition
	if err := validateURL("acquisition.platform_url", a.PlatformURL); err != nil {
		return err
	}
	if a.RelayURL != "" {
		if err := validateURL("acquisition.relay_url", a.RelayURL); err != nil {
			return err
		}
	}
	for _, inst := range append(append([]string{}, a.InvidiousInstances...), a.PipedInstances...) {
		if err := validateURL("acquisition mirror instance", inst); err != nil {
			return err
		}
	}
	for _, name := range a.DisabledStrategies {
		if _, ok := knownStrategies[name]; !ok {
			return fmt.Errorf("acquisition.disabled_strategies: unknown strategy %q", name)
		}
	}
	return nil
}

func (c *Config) validateClassification() error {
	cl := c.Classification
	if cl.SponsorMaxRatio <= 0 || cl.SponsorMaxRatio > 1 {
		return errors.New("classification.sponsor_max_ratio must be between 0 and 1")
	}
	if cl.FullVideoRatio <= 0 || cl.FullVideoRatio > 1 {
		return errors.New("classification.full_video_ratio must be between 0 and 1")
	}
	if cl.ChunkChars < 1000 {
		return errors.New("classification.chunk_chars must be at least 1000")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "sqlite", "none":
	case "redis":
		if c.Store.RedisURL == "" {
			return errors.New("store.redis_url must be set when store.backend is redis (or set REDIS_URL)")
		}
	default:
		return fmt.Errorf("store.backend must be sqlite, redis or none, got %q", c.Store.Backend)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
}

func validateURL(key, value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url, got %q", key, value)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host: %q", key, value)
	}
	return nil
}
