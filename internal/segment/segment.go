package segment

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category labels a span of video.
type Category string

const (
	Sponsor         Category = "sponsor"
	SelfPromo       Category = "selfpromo"
	Interaction     Category = "interaction"
	Intro           Category = "intro"
	Outro           Category = "outro"
	Preview         Category = "preview"
	Hook            Category = "hook"
	Filler          Category = "filler"
	MusicOffTopic   Category = "music_offtopic"
	Highlight       Category = "poi_highlight"
	ExclusiveAccess Category = "exclusive_access"
	Chapter         Category = "chapter"
	Content         Category = "content"
)

// Categories lists every category in prompt order: special categories first,
// generic content last.
var Categories = []Category{
	Sponsor, SelfPromo, Interaction, Intro, Outro, Preview, Hook,
	Filler, MusicOffTopic, Highlight, ExclusiveAccess, Chapter, Content,
}

var categoryAliases = map[string]Category{
	"self-promotion":   SelfPromo,
	"self_promotion":   SelfPromo,
	"selfpromotion":    SelfPromo,
	"self-promo":       SelfPromo,
	"intermission":     Filler,
	"tangent":          Filler,
	"music-offtopic":   MusicOffTopic,
	"music_off_topic":  MusicOffTopic,
	"musicofftopic":    MusicOffTopic,
	"highlight":        Highlight,
	"poi":              Highlight,
	"poi-highlight":    Highlight,
	"exclusive-access": ExclusiveAccess,
	"exclusiveaccess":  ExclusiveAccess,
	"ad":               Sponsor,
	"advertisement":    Sponsor,
	"main":             Content,
	"main_content":     Content,
}

// ParseCategory normalizes a label into a Category.
func ParseCategory(value string) (Category, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return "", false
	}
	for _, c := range Categories {
		if string(c) == v {
			return c, true
		}
	}
	if c, ok := categoryAliases[v]; ok {
		return c, true
	}
	return "", false
}

// Valid reports whether c is part of the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns a human-readable form ("Music Offtopic").
func (c Category) Label() string {
	return cases.Title(language.Und).String(strings.ReplaceAll(string(c), "_", " "))
}

// Classified is a labeled span produced by the generative service.
type Classified struct {
	Start       float64  `json:"start"`
	End         float64  `json:"end"`
	Category    Category `json:"category"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	// Confidence is in [0,1]; zero means unknown.
	Confidence float64 `json:"confidence,omitempty"`
	Importance string  `json:"importance,omitempty"`
}

// Duration returns End-Start, or zero for inverted spans.
func (s Classified) Duration() float64 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

func (s Classified) String() string {
	return fmt.Sprintf("%s[%.1f-%.1f]", s.Category, s.Start, s.End)
}

// SortByStart orders segments by start, then end.
func SortByStart(segs []Classified) {
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].Start == segs[j].Start {
			return segs[i].End < segs[j].End
		}
		return segs[i].Start < segs[j].Start
	})
}

// Entry is one element of a reconciled timeline.
type Entry struct {
	Start    float64  `json:"start"`
	End      float64  `json:"end"`
	Category Category `json:"category"`
	Text     string   `json:"text"`
	// Synthetic marks content entries inserted to close gaps.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Timeline is the ordered, gap-free result handed to callers.
type Timeline []Entry

// End returns the end of the last entry.
func (t Timeline) End() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].End
}

// MaxGap returns the largest uncovered hole between entries, measured from
// the furthest end seen so far so overlays do not count as gaps.
func (t Timeline) MaxGap() float64 {
	if len(t) == 0 {
		return 0
	}
	var gap float64
	reach := t[0].End
	for i := 1; i < len(t); i++ {
		if d := t[i].Start - reach; d > gap {
			gap = d
		}
		reach = max(reach, t[i].End)
	}
	return gap
}

// Analysis bundles a timeline with the full-video label that produced it.
type Analysis struct {
	VideoID        string       `json:"video_id"`
	Timeline       Timeline     `json:"timeline"`
	Segments       []Classified `json:"segments"`
	FullVideoLabel *Category    `json:"full_video_label,omitempty"`
	Model          string       `json:"model,omitempty"`
	TranscriptFrom string       `json:"transcript_method,omitempty"`
	Raw            string       `json:"raw,omitempty"`
}

// Metadata describes the video being classified.
type Metadata struct {
	VideoID     string  `json:"video_id"`
	Title       string  `json:"title,omitempty"`
	Author      string  `json:"author,omitempty"`
	Description string  `json:"description,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
}

// Reference is a community-verified segment used as an authoritative hint.
type Reference struct {
	Start    float64  `json:"start"`
	End      float64  `json:"end"`
	Category Category `json:"category"`
	Votes    int      `json:"votes,omitempty"`
}
