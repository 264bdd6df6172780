package classify

import (
	"fmt"
	"math"
	"strings"

	"vidseg/internal/segment"
	"vidseg/internal/transcript"
)

// DefaultRoleText opens every prompt unless configured otherwise.
const DefaultRoleText = "You are an expert video editor who splits video transcripts into labeled segments so viewers can skip or jump to the parts they care about."

var categoryGuide = map[segment.Category]string{
	segment.Sponsor:         "paid promotion, paid referral or direct advertisement for a third party",
	segment.SelfPromo:       "unpaid promotion of the creator's own merch, channels, courses or memberships",
	segment.Interaction:     "short reminder to like, subscribe, comment or follow",
	segment.Intro:           "opening animation, greeting or agenda with no main content",
	segment.Outro:           "closing remarks, end cards and credits",
	segment.Preview:         "recap of earlier content or a teaser of what comes later",
	segment.Hook:            "attention-grabbing opener meant to keep the viewer watching",
	segment.Filler:          "tangent, joke or pause that can be skipped without missing content",
	segment.MusicOffTopic:   "non-music section in a music video",
	segment.Highlight:       "the single most important moment of the video",
	segment.ExclusiveAccess: "content only possible because the creator received free or early access",
	segment.Chapter:         "a named topic boundary inside the main content",
	segment.Content:         "the main content of the video",
}

// PromptInput is everything the prompt embeds.
type PromptInput struct {
	RoleText   string
	Metadata   segment.Metadata
	Annotated  string
	References []segment.Reference
	Duration   float64
	// MinContentSegments is the floor on itemized content segments.
	MinContentSegments int
	// Window is set when the transcript is one block of a longer video.
	Window *[2]float64
}

// MinContentSegments scales the content floor with duration: perTenMinutes
// segments for every started ten minutes, at least one.
func MinContentSegments(duration float64, perTenMinutes int) int {
	if perTenMinutes <= 0 {
		perTenMinutes = 1
	}
	blocks := int(math.Ceil(duration / 600))
	if blocks < 1 {
		blocks = 1
	}
	return blocks * perTenMinutes
}

// BuildPrompt renders the classification prompt.
func BuildPrompt(in PromptInput) string {
	role := strings.TrimSpace(in.RoleText)
	if role == "" {
		role = DefaultRoleText
	}
	var b strings.Builder
	b.WriteString(role)
	b.WriteString("\n\n## Video\n")
	if in.Metadata.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", in.Metadata.Title)
	}
	if in.Metadata.Author != "" {
		fmt.Fprintf(&b, "Channel: %s\n", in.Metadata.Author)
	}
	if d := strings.TrimSpace(in.Metadata.Description); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", truncate(d, 1500))
	}
	fmt.Fprintf(&b, "Duration: %s (%.0f seconds)\n", transcript.FormatClock(in.Duration), in.Duration)
	if in.Window != nil {
		fmt.Fprintf(&b, "This transcript covers only %s to %s of the video. Label only that span.\n",
			transcript.FormatClock(in.Window[0]), transcript.FormatClock(in.Window[1]))
	}

	if len(in.References) > 0 {
		b.WriteString("\n## Verified segments\n")
		b.WriteString("These segments were verified by the community. Treat them as authoritative: align your boundaries with them and do not relabel them.\n")
		for _, r := range in.References {
			fmt.Fprintf(&b, "- %s from %.1f to %.1f\n", r.Category, r.Start, r.End)
		}
	}

	b.WriteString("\n## Categories\n")
	for _, c := range segment.Categories {
		fmt.Fprintf(&b, "- %s: %s\n", c, categoryGuide[c])
	}

	b.WriteString("\n## Rules\n")
	b.WriteString("1. Identify the special categories first; everything else is content.\n")
	fmt.Fprintf(&b, "2. Split the main content into at least %d content segments at natural topic changes, each with a short title.\n", max(in.MinContentSegments, 1))
	b.WriteString("3. You may merge adjacent segments of the same category.\n")
	b.WriteString("4. Mark at most one poi_highlight.\n")
	b.WriteString("5. Set fullVideoLabel only when one category covers more than half of the video; in that case do not list segments of that category. Otherwise use null.\n")
	b.WriteString("6. Lines end with [hints: ...] when a keyword rule matched. Hints are advisory, not labels.\n")
	b.WriteString("7. Times are seconds from the start of the video.\n")

	b.WriteString("\n## Output\n")
	b.WriteString("Respond with JSON only, matching this schema:\n")
	b.WriteString(`{"segments":[{"s":<start seconds>,"e":<end seconds>,"l":"<category>","t":"<title>","d":"<one sentence description>","c":<confidence 0-1>}],"fullVideoLabel":"<category>"|null}`)
	b.WriteString("\n\n## Transcript\n")
	b.WriteString(in.Annotated)
	b.WriteString("\n")
	return b.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
