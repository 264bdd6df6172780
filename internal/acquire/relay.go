package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"vidseg/internal/transcript"
)

type relaySegment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Dur      float64 `json:"dur"`
	End      float64 `json:"end"`
	Text     string  `json:"text"`
}

type relayEnvelope struct {
	Segments   []relaySegment `json:"segments"`
	Transcript []relaySegment `json:"transcript"`
	Error      string         `json:"error"`
}

// relayStrategy calls a relay service that answers with JSON segments, either as a
// bare array or wrapped in {"segments": [...]}.
func relayStrategy(f fetcher, relayURL string) Strategy {
	return Strategy{
		Name:     "relay",
		Priority: PriorityRelay,
		Execute: func(ctx context.Context, videoID, lang string) (transcript.Transcript, error) {
			u, err := url.Parse(strings.TrimSpace(relayURL))
			if err != nil {
				return nil, fmt.Errorf("relay: parse url: %w", err)
			}
			q := u.Query()
			q.Set("videoId", videoID)
			if lang != "" {
				q.Set("lang", lang)
			}
			u.RawQuery = q.Encode()
			body, err := f.get(ctx, u.String(), nil)
			if err != nil {
				return nil, fmt.Errorf("relay: %w", err)
			}
			segs, err := decodeRelay(body)
			if err != nil {
				return nil, fmt.Errorf("relay: %w", err)
			}
			return segs, nil
		},
	}
}

func decodeRelay(body []byte) (transcript.Transcript, error) {
	trimmed := strings.TrimSpace(string(body))
	var raw []relaySegment
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
			return nil, fmt.Errorf("decode segments: %w", err)
		}
	case strings.HasPrefix(trimmed, "{"):
		var env relayEnvelope
		if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
			return nil, fmt.Errorf("decode segments: %w", err)
		}
		if env.Error != "" {
			return nil, errors.New(env.Error)
		}
		raw = env.Segments
		if len(raw) == 0 {
			raw = env.Transcript
		}
	default:
		return nil, errors.New("unexpected response body")
	}
	out := make(transcript.Transcript, 0, len(raw))
	for _, r := range raw {
		text := transcript.CleanText(r.Text)
		if text == "" {
			continue
		}
		dur := r.Duration
		if dur == 0 {
			dur = r.Dur
		}
		if dur == 0 && r.End > r.Start {
			dur = r.End - r.Start
		}
		out = append(out, transcript.Segment{Start: r.Start, Duration: max(dur, 0), Text: text})
	}
	return out.Sorted(), nil
}
