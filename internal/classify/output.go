package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vidseg/internal/genai"
	"vidseg/internal/segment"
)

// Output is the decoded structured response.
type Output struct {
	Segments       []segment.Classified
	FullVideoLabel *segment.Category
	// Dropped counts entries discarded for unknown labels or unusable times.
	Dropped int
}

type wireOutput struct {
	Segments       []json.RawMessage `json:"segments"`
	FullVideoLabel *string           `json:"fullVideoLabel"`
}

type wireSegment struct {
	S timeValue       `json:"s"`
	E timeValue       `json:"e"`
	L string          `json:"l"`
	T string          `json:"t"`
	D string          `json:"d"`
	C json.RawMessage `json:"c"`
	I string          `json:"i"`
}

// timeValue accepts seconds as a number, a numeric string, or a clock string
// such as "1:05" or "01:02:03.5". Other JSON types leave it invalid.
type timeValue struct {
	Seconds float64
	Valid   bool
}

func (t *timeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch {
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if v, ok := parseClockValue(s); ok {
			t.Seconds, t.Valid = v, true
		}
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		t.Seconds, t.Valid = f, true
	}
	return nil
}

func parseClockValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 {
			return 0, false
		}
		total = total*60 + v
	}
	return total, true
}

var confidenceWords = map[string]float64{
	"very high": 0.95,
	"high":      0.9,
	"medium":    0.6,
	"moderate":  0.6,
	"low":       0.3,
}

func decodeConfidence(raw json.RawMessage) (float64, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ""
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f > 1 && f <= 100 {
			f /= 100
		}
		return clamp01(f), ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.ToLower(strings.TrimSpace(s))
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return clamp01(v), ""
		}
		return confidenceWords[s], s
	}
	return 0, ""
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// ErrNoSegments is wrapped by ParseOutput when the payload decodes but has no
// segment list.
var ErrNoSegments = errors.New("response has no segments field")

// ParseOutput decodes the service's structured response. Code fences and
// surrounding prose are tolerated; a bare array is accepted as the segment
// list. Entries with unknown labels, missing times or mistyped fields are
// dropped one at a time.
func ParseOutput(text string) (Output, error) {
	body := genai.StripCodeFences(text)
	if body == "" {
		return Output{}, errors.New("classify parse: empty response")
	}
	var wire wireOutput
	objErr := genai.DecodeJSON(body, &wire)
	if objErr != nil || wire.Segments == nil {
		var list []json.RawMessage
		if arrErr := genai.DecodeJSON(body, &list); arrErr == nil && list != nil {
			wire = wireOutput{Segments: list}
		} else if objErr != nil {
			return Output{}, fmt.Errorf("classify parse: %w", objErr)
		} else if wire.FullVideoLabel == nil {
			return Output{}, fmt.Errorf("classify parse: %w", ErrNoSegments)
		}
	}

	var out Output
	for _, raw := range wire.Segments {
		var w wireSegment
		if err := json.Unmarshal(raw, &w); err != nil {
			out.Dropped++
			continue
		}
		cat, ok := segment.ParseCategory(w.L)
		if !ok || !w.S.Valid {
			out.Dropped++
			continue
		}
		end := w.E.Seconds
		if !w.E.Valid {
			end = w.S.Seconds
		}
		conf, importance := decodeConfidence(w.C)
		if importance == "" {
			importance = strings.TrimSpace(w.I)
		}
		out.Segments = append(out.Segments, segment.Classified{
			Start:       w.S.Seconds,
			End:         end,
			Category:    cat,
			Title:       strings.TrimSpace(w.T),
			Description: strings.TrimSpace(w.D),
			Confidence:  conf,
			Importance:  importance,
		})
	}
	if wire.FullVideoLabel != nil {
		if cat, ok := segment.ParseCategory(*wire.FullVideoLabel); ok && cat != segment.Content {
			out.FullVideoLabel = &cat
		}
	}
	return out, nil
}
