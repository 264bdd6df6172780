package config

const (
	defaultConfigPath          = "~/.config/vidseg/config.toml"
	defaultStateDir            = "~/.local/share/vidseg"
	defaultLogDir              = "~/.local/share/vidseg/logs"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultLLMBaseURL          = "https://generativelanguage.googleapis.com/v1beta"
	defaultLLMTimeoutSeconds   = 120
	defaultLLMTemperature      = 0.2
	defaultLLMMaxOutputTokens  = 8192
	defaultModelRefreshMinutes = 360
	defaultLanguage            = "en"
	defaultPlatformURL         = "https://www.youtube.com"
	defaultAcquisitionTimeout  = 30
	defaultCaptureTTLMinutes   = 30
	defaultGroundTruthBaseURL  = "https://sponsor.ajay.app/api"
	defaultGroundTruthTimeout  = 10
	defaultMetadataBaseURL     = "https://www.youtube.com/oembed"
	defaultStoreBackend        = "sqlite"
	defaultStoreKeyPrefix      = "vidseg"
	defaultStoreTTLHours       = 168
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:             defaultLLMBaseURL,
			TimeoutSeconds:      defaultLLMTimeoutSeconds,
			Temperature:         defaultLLMTemperature,
			MaxOutputTokens:     defaultLLMMaxOutputTokens,
			ModelRefreshMinutes: defaultModelRefreshMinutes,
		},
		Acquisition: Acquisition{
			Language:          defaultLanguage,
			PlatformURL:       defaultPlatformURL,
			TimeoutSeconds:    defaultAcquisitionTimeout,
			CaptureTTLMinutes: defaultCaptureTTLMinutes,
		},
		Classification: Classification{
			IntroWindowSeconds:      30,
			IntroMaxDuration:        20,
			OutroWindowSeconds:      30,
			SponsorMaxRatio:         0.8,
			HighlightMinWords:       2,
			GapToleranceSeconds:     1,
			MinContentPerTenMinutes: 2,
			FullVideoRatio:          0.5,
			ChunkChars:              30000,
			BackoffSeconds:          1,
		},
		GroundTruth: GroundTruth{
			Enabled:        true,
			BaseURL:        defaultGroundTruthBaseURL,
			TimeoutSeconds: defaultGroundTruthTimeout,
		},
		Metadata: Metadata{
			Enabled: true,
			BaseURL: defaultMetadataBaseURL,
		},
		Store: Store{
			Backend:   defaultStoreBackend,
			KeyPrefix: defaultStoreKeyPrefix,
			TTLHours:  defaultStoreTTLHours,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
