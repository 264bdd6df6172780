package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"vidseg/internal/fallback"
	"vidseg/internal/logging"
	"vidseg/internal/transcript"
)

type mirror struct {
	kind string
	base string
}

type invidiousCaptions struct {
	Captions []struct {
		Label        string `json:"label"`
		LanguageCode string `json:"languageCode"`
		URL          string `json:"url"`
	} `json:"captions"`
}

type pipedStreams struct {
	Subtitles []struct {
		URL           string `json:"url"`
		MimeType      string `json:"mimeType"`
		Name          string `json:"name"`
		Code          string `json:"code"`
		AutoGenerated bool   `json:"autoGenerated"`
	} `json:"subtitles"`
}

// mirrorsStrategy walks Invidious and Piped instances in order and returns the first
// instance that yields captions.
func mirrorsStrategy(f fetcher, invidious, piped []string, logger *slog.Logger) Strategy {
	var mirrors []mirror
	for _, base := range invidious {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			mirrors = append(mirrors, mirror{kind: "invidious", base: base})
		}
	}
	for _, base := range piped {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			mirrors = append(mirrors, mirror{kind: "piped", base: base})
		}
	}
	logger = logging.NewComponentLogger(logger, "acquire.mirrors")
	return Strategy{
		Name:     "mirrors",
		Priority: PriorityMirrors,
		Execute: func(ctx context.Context, videoID, lang string) (transcript.Transcript, error) {
			segs, _, err := fallback.TryInOrder(ctx, mirrors,
				func(m mirror) string { return m.base },
				func(ctx context.Context, m mirror) (transcript.Transcript, error) {
					var (
						segs transcript.Transcript
						err  error
					)
					if m.kind == "piped" {
						segs, err = f.piped(ctx, m.base, videoID, lang)
					} else {
						segs, err = f.invidious(ctx, m.base, videoID, lang)
					}
					if err == nil && len(segs) == 0 {
						err = ErrEmpty
					}
					return segs, err
				},
				fallback.Options{
					Noun: "mirror instances",
					OnFailure: func(a fallback.Attempt) {
						logger.Debug("mirror failed",
							logging.String("instance", a.Name),
							logging.Error(a.Err),
						)
					},
				},
			)
			if err != nil {
				return nil, fmt.Errorf("mirrors: %w", err)
			}
			return segs, nil
		},
	}
}

func (f fetcher) invidious(ctx context.Context, base, videoID, lang string) (transcript.Transcript, error) {
	var list invidiousCaptions
	if err := f.getJSON(ctx, base+"/api/v1/captions/"+url.PathEscape(videoID), &list); err != nil {
		return nil, err
	}
	tracks := make([]CaptionTrack, 0, len(list.Captions))
	for _, c := range list.Captions {
		kind := ""
		if strings.Contains(strings.ToLower(c.Label), "auto-generated") {
			kind = "asr"
		}
		tracks = append(tracks, CaptionTrack{BaseURL: c.URL, LanguageCode: c.LanguageCode, Kind: kind, Name: c.Label})
	}
	track, ok := SelectTrack(tracks, lang)
	if !ok {
		return nil, fmt.Errorf("no caption tracks")
	}
	target, err := resolve(base, track.BaseURL)
	if err != nil {
		return nil, err
	}
	body, err := f.get(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	return transcript.ParseVTT(string(body))
}

func (f fetcher) piped(ctx context.Context, base, videoID, lang string) (transcript.Transcript, error) {
	var streams pipedStreams
	if err := f.getJSON(ctx, base+"/streams/"+url.PathEscape(videoID), &streams); err != nil {
		return nil, err
	}
	var tracks []CaptionTrack
	for _, s := range streams.Subtitles {
		if !strings.Contains(strings.ToLower(s.MimeType), "vtt") {
			continue
		}
		kind := ""
		if s.AutoGenerated {
			kind = "asr"
		}
		tracks = append(tracks, CaptionTrack{BaseURL: s.URL, LanguageCode: s.Code, Kind: kind, Name: s.Name})
	}
	track, ok := SelectTrack(tracks, lang)
	if !ok {
		return nil, fmt.Errorf("no vtt subtitles")
	}
	target, err := resolve(base, track.BaseURL)
	if err != nil {
		return nil, err
	}
	body, err := f.get(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	return transcript.ParseVTT(string(body))
}

// resolve turns an instance-relative caption path into an absolute URL.
func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse instance url: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse caption url: %w", err)
	}
	return b.ResolveReference(r).String(), nil
}
