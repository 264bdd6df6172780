package acquire

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"vidseg/internal/transcript"
)

const (
	defaultInnertubeClient  = "WEB"
	defaultInnertubeVersion = "2.20250101.00.00"
)

// InnertubeConfig addresses the player endpoint.
type InnertubeConfig struct {
	BaseURL       string
	APIKey        string
	ClientName    string
	ClientVersion string
}

type innertubeRequest struct {
	Context struct {
		Client struct {
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
			HL            string `json:"hl,omitempty"`
		} `json:"client"`
	} `json:"context"`
	VideoID string `json:"videoId"`
}

// innertubeStrategy asks the player endpoint for caption tracks and downloads the
// selected track as json3.
func innertubeStrategy(f fetcher, cfg InnertubeConfig) Strategy {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultPlatformURL
	}
	if cfg.ClientName == "" {
		cfg.ClientName = defaultInnertubeClient
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = defaultInnertubeVersion
	}
	return Strategy{
		Name:     "innertube",
		Priority: PriorityInnertube,
		Execute: func(ctx context.Context, videoID, lang string) (transcript.Transcript, error) {
			var req innertubeRequest
			req.Context.Client.ClientName = cfg.ClientName
			req.Context.Client.ClientVersion = cfg.ClientVersion
			req.Context.Client.HL = lang
			req.VideoID = videoID

			endpoint := base + "/youtubei/v1/player"
			params := url.Values{}
			params.Set("prettyPrint", "false")
			if cfg.APIKey != "" {
				params.Set("key", cfg.APIKey)
			}
			var player playerResponse
			if err := f.postJSON(ctx, endpoint+"?"+params.Encode(), req, &player); err != nil {
				return nil, fmt.Errorf("innertube player: %w", err)
			}
			segs, err := f.fetchTrack(ctx, player, lang, transcript.FormatJSON3)
			if err != nil {
				return nil, fmt.Errorf("innertube captions: %w", err)
			}
			return segs, nil
		},
	}
}

// timedTextStrategy requests the caption endpoint directly. Manual captions are tried
// first, then the ASR track.
func timedTextStrategy(f fetcher, base string) Strategy {
	base = strings.TrimRight(base, "/")
	return Strategy{
		Name:     "timedtext",
		Priority: PriorityTimedText,
		Execute: func(ctx context.Context, videoID, lang string) (transcript.Transcript, error) {
			if lang == "" {
				lang = "en"
			}
			var lastErr error
			for _, kind := range []string{"", "asr"} {
				params := url.Values{}
				params.Set("v", videoID)
				params.Set("lang", lang)
				if kind != "" {
					params.Set("kind", kind)
				}
				body, err := f.get(ctx, base+"/api/timedtext?"+params.Encode(), nil)
				if err != nil {
					if ctx.Err() != nil {
						return nil, fmt.Errorf("timedtext: %w", err)
					}
					lastErr = err
					continue
				}
				if len(strings.TrimSpace(string(body))) == 0 {
					lastErr = ErrEmpty
					continue
				}
				segs, err := transcript.Parse(body)
				if err != nil {
					lastErr = err
					continue
				}
				if len(segs) > 0 {
					return segs, nil
				}
				lastErr = ErrEmpty
			}
			return nil, fmt.Errorf("timedtext: %w", lastErr)
		},
	}
}
