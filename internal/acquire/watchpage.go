package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"vidseg/internal/transcript"
)

var playerMarkers = [][]byte{
	[]byte("var ytInitialPlayerResponse = "),
	[]byte("ytInitialPlayerResponse = "),
	[]byte(`window["ytInitialPlayerResponse"] = `),
}

// watchPageStrategy scrapes the player response embedded in the watch page and
// follows its caption tracks.
func watchPageStrategy(f fetcher, base string) Strategy {
	base = strings.TrimRight(base, "/")
	return Strategy{
		Name:     "watchpage",
		Priority: PriorityWatchPage,
		Execute: func(ctx context.Context, videoID, lang string) (transcript.Transcript, error) {
			params := url.Values{}
			params.Set("v", videoID)
			if lang != "" {
				params.Set("hl", lang)
			}
			page, err := f.get(ctx, base+"/watch?"+params.Encode(), nil)
			if err != nil {
				return nil, fmt.Errorf("watchpage: %w", err)
			}
			player, err := extractPlayerResponse(page)
			if err != nil {
				return nil, fmt.Errorf("watchpage: %w", err)
			}
			segs, err := f.fetchTrack(ctx, player, lang, transcript.FormatXML)
			if err != nil {
				return nil, fmt.Errorf("watchpage captions: %w", err)
			}
			return segs, nil
		},
	}
}

func extractPlayerResponse(page []byte) (playerResponse, error) {
	var player playerResponse
	for _, marker := range playerMarkers {
		idx := bytes.Index(page, marker)
		if idx < 0 {
			continue
		}
		obj, ok := balancedObject(page[idx+len(marker):])
		if !ok {
			continue
		}
		if err := json.Unmarshal(obj, &player); err != nil {
			return player, fmt.Errorf("decode player response: %w", err)
		}
		return player, nil
	}
	return player, errors.New("player response not found in page")
}

// balancedObject returns the JSON object at the start of data, honoring
// string literals and escapes.
func balancedObject(data []byte) ([]byte, bool) {
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	depth := 0
	inString := false
	escaped := false
	for i, c := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return data[:i+1], true
			}
		}
	}
	return nil, false
}
