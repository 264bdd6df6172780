package acquire

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"vidseg/internal/language"
	"vidseg/internal/transcript"
)

// CaptionTrack is one caption track advertised by a player response.
type CaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind,omitempty"`
	Name         string `json:"-"`
}

// Generated reports an automatic speech recognition track.
func (t CaptionTrack) Generated() bool {
	return strings.EqualFold(t.Kind, "asr")
}

// SelectTrack picks the track for lang: an exact language match, then a
// language prefix match ("en" for "en-GB"), manual tracks before ASR tracks
// within each tier, then any manual track, then the first track.
func SelectTrack(tracks []CaptionTrack, lang string) (CaptionTrack, bool) {
	if len(tracks) == 0 {
		return CaptionTrack{}, false
	}
	lang = language.Normalize(lang)
	base := language.Base(lang)

	tiers := []func(CaptionTrack) bool{
		func(t CaptionTrack) bool { return lang != "" && language.Normalize(t.LanguageCode) == lang },
		func(t CaptionTrack) bool { return base != "" && language.Base(t.LanguageCode) == base },
		func(CaptionTrack) bool { return true },
	}
	for _, match := range tiers {
		var asr *CaptionTrack
		for i := range tracks {
			if !match(tracks[i]) {
				continue
			}
			if !tracks[i].Generated() {
				return tracks[i], true
			}
			if asr == nil {
				asr = &tracks[i]
			}
		}
		if asr != nil {
			return *asr, true
		}
	}
	return tracks[0], true
}

// playerResponse is the subset of the platform player payload used here.
type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions struct {
		Renderer struct {
			CaptionTracks []struct {
				BaseURL      string `json:"baseUrl"`
				LanguageCode string `json:"languageCode"`
				Kind         string `json:"kind"`
				Name         struct {
					SimpleText string `json:"simpleText"`
					Runs       []struct {
						Text string `json:"text"`
					} `json:"runs"`
				} `json:"name"`
			} `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	VideoDetails struct {
		VideoID          string `json:"videoId"`
		Title            string `json:"title"`
		Author           string `json:"author"`
		LengthSeconds    string `json:"lengthSeconds"`
		ShortDescription string `json:"shortDescription"`
	} `json:"videoDetails"`
}

func (p playerResponse) tracks() []CaptionTrack {
	raw := p.Captions.Renderer.CaptionTracks
	out := make([]CaptionTrack, 0, len(raw))
	for _, t := range raw {
		name := t.Name.SimpleText
		if name == "" {
			var parts []string
			for _, r := range t.Name.Runs {
				parts = append(parts, r.Text)
			}
			name = strings.Join(parts, "")
		}
		out = append(out, CaptionTrack{
			BaseURL:      t.BaseURL,
			LanguageCode: t.LanguageCode,
			Kind:         t.Kind,
			Name:         name,
		})
	}
	return out
}

// playable returns an error describing why the player refused the video.
func (p playerResponse) playable() error {
	status := strings.ToUpper(p.PlayabilityStatus.Status)
	if status == "" || status == "OK" {
		return nil
	}
	if p.PlayabilityStatus.Reason != "" {
		return fmt.Errorf("video not playable (%s): %s", status, p.PlayabilityStatus.Reason)
	}
	return fmt.Errorf("video not playable (%s)", status)
}

// fetchTrack downloads and parses the selected track of a player response.
func (f fetcher) fetchTrack(ctx context.Context, player playerResponse, lang string, format transcript.Format) (transcript.Transcript, error) {
	if err := player.playable(); err != nil {
		return nil, err
	}
	track, ok := SelectTrack(player.tracks(), lang)
	if !ok {
		return nil, fmt.Errorf("no caption tracks")
	}
	if track.BaseURL == "" {
		return nil, fmt.Errorf("caption track %s has no url", track.LanguageCode)
	}
	target, err := withFormat(track.BaseURL, format)
	if err != nil {
		return nil, err
	}
	body, err := f.get(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	return transcript.Parse(body)
}

// withFormat sets the fmt query parameter of a caption URL. An empty format
// strips it, which yields the XML payload.
func withFormat(raw string, format transcript.Format) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse caption url: %w", err)
	}
	q := u.Query()
	switch format {
	case transcript.FormatJSON3:
		q.Set("fmt", "json3")
	case transcript.FormatVTT:
		q.Set("fmt", "vtt")
	case "", transcript.FormatXML:
		q.Del("fmt")
	default:
		q.Set("fmt", string(format))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
