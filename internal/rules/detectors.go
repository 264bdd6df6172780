package rules

import (
	"regexp"
	"strings"
	"unicode"

	"vidseg/internal/segment"
)

// Thresholds tunes positional gating and validators.
type Thresholds struct {
	// IntroWindow limits intro matching to segments starting before it.
	IntroWindow float64
	// IntroMaxDuration skips intro matching on long segments.
	IntroMaxDuration float64
	// OutroWindow limits outro matching to the trailing span of the video.
	OutroWindow float64
	// SponsorMaxRatio demotes sponsor segments longer than this share of
	// the video.
	SponsorMaxRatio float64
	// HighlightMinWords is the number of distinct title words required.
	HighlightMinWords int
}

// DefaultThresholds returns the stock tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		IntroWindow:       30,
		IntroMaxDuration:  20,
		OutroWindow:       30,
		SponsorMaxRatio:   0.8,
		HighlightMinWords: 2,
	}
}

var (
	sponsorPhrases = []string{
		"sponsored by", "this video is sponsored", "today's sponsor", "our sponsor",
		"thanks to our sponsor", "brought to you by", "use code", "promo code",
		"discount code", "coupon code", "free trial", "affiliate link",
		"link in the description", "first 100 people", "% off", "percent off",
		"partnered with", "in partnership with",
	}
	selfPromoPhrases = []string{
		"my merch", "merch store", "merch link", "patreon", "my course",
		"my book", "my other channel", "my second channel", "my podcast",
		"support the channel", "channel membership", "join the membership",
		"become a member", "my newsletter",
	}
	interactionPhrases = []string{
		"subscribe", "like this video", "hit the like", "smash that like",
		"hit the bell", "notification bell", "leave a comment", "comment below",
		"let me know in the comments", "share this video", "like and subscribe",
	}
	introPhrases = []string{
		"welcome back", "welcome to", "hey guys", "hey everyone", "hi everyone",
		"hello everyone", "what's up", "in this video", "today we're",
		"today we are", "today i'm", "today i am",
	}
	outroPhrases = []string{
		"thanks for watching", "thank you for watching", "see you next time",
		"see you in the next", "until next time", "that's all for", "that's it for",
		"catch you later", "bye for now", "see you soon",
	}
	previewPhrases = []string{
		"coming up", "later in this video", "later in the video", "stay tuned",
		"before we get started", "before we begin", "in a moment", "but first",
		"we'll get to that",
	}
	fillerRE = regexp.MustCompile(`\b(um+|uh+|erm+|hmm+|you know|i mean|like i said|anyway|so yeah)\b`)
)

// DefaultDetectors returns the stock detector set in hint order.
func DefaultDetectors(th Thresholds) []Detector {
	return []Detector{
		{
			Category: segment.Sponsor,
			Detect:   phraseDetector(sponsorPhrases),
			Validate: SponsorDurationGuard(th.SponsorMaxRatio),
		},
		{
			Category: segment.SelfPromo,
			Detect:   phraseDetector(selfPromoPhrases),
		},
		{
			Category: segment.Interaction,
			Detect:   phraseDetector(interactionPhrases),
		},
		{
			Category: segment.Intro,
			Detect: func(text string, ctx Context) (bool, error) {
				if ctx.Segment.Start >= th.IntroWindow || ctx.Segment.Duration >= th.IntroMaxDuration {
					return false, nil
				}
				return containsAny(text, introPhrases), nil
			},
		},
		{
			Category: segment.Outro,
			Detect: func(text string, ctx Context) (bool, error) {
				if ctx.VideoDuration <= 0 || ctx.Segment.Start < ctx.VideoDuration-th.OutroWindow {
					return false, nil
				}
				return containsAny(text, outroPhrases), nil
			},
		},
		{
			Category: segment.Preview,
			Detect:   phraseDetector(previewPhrases),
		},
		{
			Category: segment.Filler,
			Detect: func(text string, _ Context) (bool, error) {
				return len(fillerRE.FindAllStringIndex(text, -1)) >= 2, nil
			},
		},
		{
			Category: segment.Highlight,
			Detect: func(text string, ctx Context) (bool, error) {
				return titleWordMatches(text, ctx.Metadata.Title) >= th.HighlightMinWords, nil
			},
			Validate: SingleHighlight,
		},
	}
}

func phraseDetector(phrases []string) func(string, Context) (bool, error) {
	return func(text string, _ Context) (bool, error) {
		return containsAny(text, phrases), nil
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// words lowercases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// titleWordMatches counts distinct title words longer than three runes that
// occur as whole words in text.
func titleWordMatches(text, title string) int {
	if strings.TrimSpace(title) == "" {
		return 0
	}
	present := make(map[string]struct{})
	for _, w := range words(text) {
		present[w] = struct{}{}
	}
	seen := make(map[string]struct{})
	count := 0
	for _, w := range words(title) {
		if len([]rune(w)) <= 3 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := present[w]; ok {
			count++
		}
	}
	return count
}

// SponsorDurationGuard demotes sponsor segments covering more than maxRatio
// of the video to content.
func SponsorDurationGuard(maxRatio float64) func([]segment.Classified, ValidateContext) []segment.Classified {
	return func(segs []segment.Classified, ctx ValidateContext) []segment.Classified {
		if ctx.VideoDuration <= 0 || maxRatio <= 0 {
			return segs
		}
		for i := range segs {
			if segs[i].Category != segment.Sponsor {
				continue
			}
			if segs[i].Duration()/ctx.VideoDuration > maxRatio {
				segs[i].Category = segment.Content
			}
		}
		return segs
	}
}

// SingleHighlight keeps the highest-confidence highlight, earliest on ties,
// and demotes the others to content.
func SingleHighlight(segs []segment.Classified, _ ValidateContext) []segment.Classified {
	best := -1
	for i, s := range segs {
		if s.Category != segment.Highlight {
			continue
		}
		if best < 0 ||
			s.Confidence > segs[best].Confidence ||
			(s.Confidence == segs[best].Confidence && s.Start < segs[best].Start) {
			best = i
		}
	}
	if best < 0 {
		return segs
	}
	for i := range segs {
		if i != best && segs[i].Category == segment.Highlight {
			segs[i].Category = segment.Content
		}
	}
	return segs
}
