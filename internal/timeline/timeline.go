// Package timeline reconciles sparse classified segments into a gap-free
// timeline covering the whole transcript.
package timeline

import (
	"vidseg/internal/segment"
	"vidseg/internal/transcript"
)

// GapTolerance is the largest hole left unfilled, in seconds.
const GapTolerance = 1.0

// Fill walks classified segments in start order and inserts synthetic content
// entries wherever the cursor trails the next segment by more than
// GapTolerance, then closes the span up to the transcript end. Real entries
// display their description, falling back to the category name. An empty
// transcript yields an empty timeline.
//
// Synthetic entries are not merged with adjacent content segments.
func Fill(classified []segment.Classified, source transcript.Transcript) segment.Timeline {
	return FillWithTolerance(classified, source, GapTolerance)
}

// FillWithTolerance is Fill with a configurable gap tolerance.
func FillWithTolerance(classified []segment.Classified, source transcript.Transcript, tolerance float64) segment.Timeline {
	if len(source) == 0 {
		return segment.Timeline{}
	}
	if tolerance < 0 {
		tolerance = 0
	}
	end := source.End()

	sorted := make([]segment.Classified, len(classified))
	copy(sorted, classified)
	segment.SortByStart(sorted)

	out := make(segment.Timeline, 0, len(sorted)*2+1)
	var cursor float64
	for _, s := range sorted {
		if s.Start > cursor+tolerance {
			out = append(out, synthetic(cursor, s.Start))
		}
		out = append(out, segment.Entry{
			Start:    s.Start,
			End:      s.End,
			Category: s.Category,
			Text:     displayText(s),
		})
		cursor = max(cursor, s.End)
	}
	if cursor < end-tolerance {
		out = append(out, synthetic(cursor, end))
	}
	return out
}

func synthetic(start, end float64) segment.Entry {
	return segment.Entry{
		Start:     start,
		End:       end,
		Category:  segment.Content,
		Text:      string(segment.Content),
		Synthetic: true,
	}
}

func displayText(s segment.Classified) string {
	if s.Description != "" {
		return s.Description
	}
	return string(s.Category)
}
