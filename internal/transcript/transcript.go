package transcript

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Segment is one timestamped caption cue. Times are seconds.
type Segment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// End returns Start+Duration.
func (s Segment) End() float64 {
	return s.Start + s.Duration
}

// Transcript is an ordered list of segments.
type Transcript []Segment

// End returns the end of the last segment, or zero when empty.
func (t Transcript) End() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].End()
}

// Text joins the segment texts with single spaces.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t))
	for _, s := range t {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Sorted returns a copy ordered by start time with negative values clamped.
func (t Transcript) Sorted() Transcript {
	out := make(Transcript, len(t))
	copy(out, t)
	for i := range out {
		if out[i].Start < 0 {
			out[i].Start = 0
		}
		if out[i].Duration < 0 {
			out[i].Duration = 0
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

var (
	tagRE        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// CleanText decodes entities, strips inline markup, applies NFKC and
// collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = tagRE.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\u200b", "")
	s = whitespaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FormatClock renders seconds as m:ss or h:mm:ss.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, m, sec := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
