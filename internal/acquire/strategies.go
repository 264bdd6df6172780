package acquire

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vidseg/internal/transcript"
)

// Strategy priorities, lowest first.
const (
	PriorityStore = iota
	PriorityIntercepted
	PriorityInnertube
	PriorityTimedText
	PriorityRelay
	PriorityWatchPage
	PriorityMirrors
)

// TranscriptLoader reads previously persisted transcripts.
type TranscriptLoader interface {
	LoadTranscript(ctx context.Context, videoID, lang string) (transcript.Transcript, bool, error)
}

// ErrNotStored is returned by the store strategy on a miss.
var ErrNotStored = errors.New("transcript not stored")

// Stored reads transcripts persisted by earlier runs.
func Stored(loader TranscriptLoader) Strategy {
	return Strategy{
		Name:     "store",
		Priority: PriorityStore,
		Execute: func(ctx context.Context, videoID, lang string) (transcript.Transcript, error) {
			if loader == nil {
				return nil, ErrNotStored
			}
			segs, ok, err := loader.LoadTranscript(ctx, videoID, lang)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrNotStored
			}
			return segs, nil
		},
	}
}

// Sources configures StandardStrategies.
type Sources struct {
	Store    TranscriptLoader
	Captures *CaptureBuffer

	HTTPClient *http.Client
	UserAgent  string
	Timeout    time.Duration

	// PlatformURL is the video platform origin.
	PlatformURL string
	// InnertubeKey and InnertubeClientVersion identify the player client.
	InnertubeKey           string
	InnertubeClientVersion string
	RelayURL               string
	InvidiousInstances     []string
	PipedInstances         []string

	// Disabled names strategies to leave out.
	Disabled []string
}

// DefaultPlatformURL is the video platform origin.
const DefaultPlatformURL = "https://www.youtube.com"

// StandardStrategies assembles every strategy that Sources can serve.
// Strategies missing their configuration (no relay URL, no mirror
// instances) are left out.
func StandardStrategies(src Sources, logger *slog.Logger) []Strategy {
	client := src.HTTPClient
	if client == nil {
		timeout := src.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	f := newFetcher(client, src.UserAgent)
	platform := strings.TrimRight(strings.TrimSpace(src.PlatformURL), "/")
	if platform == "" {
		platform = DefaultPlatformURL
	}

	all := []Strategy{
		Stored(src.Store),
		Intercepted(src.Captures),
		innertubeStrategy(f, InnertubeConfig{
			BaseURL:       platform,
			APIKey:        src.InnertubeKey,
			ClientVersion: src.InnertubeClientVersion,
		}),
		timedTextStrategy(f, platform),
		watchPageStrategy(f, platform),
	}
	if strings.TrimSpace(src.RelayURL) != "" {
		all = append(all, relayStrategy(f, src.RelayURL))
	}
	if len(src.InvidiousInstances) > 0 || len(src.PipedInstances) > 0 {
		all = append(all, mirrorsStrategy(f, src.InvidiousInstances, src.PipedInstances, logger))
	}

	disabled := make(map[string]bool, len(src.Disabled))
	for _, name := range src.Disabled {
		disabled[strings.ToLower(strings.TrimSpace(name))] = true
	}
	out := all[:0]
	for _, s := range all {
		if !disabled[s.Name] {
			out = append(out, s)
		}
	}
	return out
}
