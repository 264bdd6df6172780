package api

import (
	"vidseg/internal/acquire"
	"vidseg/internal/fallback"
	"vidseg/internal/models"
	"vidseg/internal/pipeline"
	"vidseg/internal/segment"
	"vidseg/internal/store"
	"vidseg/internal/transcript"
)

// FromResult converts a pipeline result into its transport form.
func FromResult(res pipeline.Result) SegmentsResponse {
	a := res.Analysis
	out := SegmentsResponse{
		RunID:              res.RunID,
		VideoID:            a.VideoID,
		Cached:             res.Cached,
		Model:              a.Model,
		TranscriptMethod:   a.TranscriptFrom,
		ParseFailed:        res.ParseFailed,
		Timeline:           FromTimeline(a.Timeline),
		Segments:           make([]Segment, 0, len(a.Segments)),
		References:         res.ReferenceCount,
		TranscriptAttempts: FromAttempts(res.TranscriptTries),
		ModelAttempts:      FromAttempts(res.ModelAttempts),
		ElapsedMs:          res.Elapsed.Milliseconds(),
	}
	if a.FullVideoLabel != nil {
		out.FullVideoLabel = string(*a.FullVideoLabel)
	}
	for _, s := range a.Segments {
		out.Segments = append(out.Segments, Segment{
			Start:       s.Start,
			End:         s.End,
			Category:    string(s.Category),
			Title:       s.Title,
			Description: s.Description,
			Confidence:  s.Confidence,
			Importance:  s.Importance,
		})
	}
	if res.Metadata.Title != "" || res.Metadata.Author != "" {
		out.Metadata = &VideoMetadata{Title: res.Metadata.Title, Author: res.Metadata.Author}
	}
	return out
}

// FromTimeline converts timeline entries, adding display labels.
func FromTimeline(tl segment.Timeline) []TimelineEntry {
	out := make([]TimelineEntry, 0, len(tl))
	for _, e := range tl {
		out = append(out, TimelineEntry{
			Start:     e.Start,
			End:       e.End,
			Category:  string(e.Category),
			Label:     e.Category.Label(),
			Text:      e.Text,
			Synthetic: e.Synthetic,
		})
	}
	return out
}

// FromAttempts flattens attempts; nil in, nil out.
func FromAttempts(attempts []fallback.Attempt) []Attempt {
	if len(attempts) == 0 {
		return nil
	}
	out := make([]Attempt, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, Attempt{
			Name:       a.Name,
			Error:      a.Message,
			DurationMs: a.Duration.Milliseconds(),
		})
	}
	return out
}

// FromAcquisition converts a chain result.
func FromAcquisition(videoID, lang string, res acquire.Result) TranscriptResponse {
	return TranscriptResponse{
		VideoID:  videoID,
		Language: lang,
		Method:   res.Method,
		Segments: FromTranscript(res.Segments),
		Attempts: FromAttempts(res.Attempts),
	}
}

// FromTranscript converts transcript segments.
func FromTranscript(tr transcript.Transcript) []TranscriptSegment {
	out := make([]TranscriptSegment, 0, len(tr))
	for _, s := range tr {
		out = append(out, TranscriptSegment{Start: s.Start, Duration: s.Duration, Text: s.Text})
	}
	return out
}

// ToTranscript converts pushed segments, dropping blank lines and clamping
// negative durations.
func ToTranscript(in []TranscriptSegment) transcript.Transcript {
	out := make(transcript.Transcript, 0, len(in))
	for _, s := range in {
		text := transcript.CleanText(s.Text)
		if text == "" || s.Start < 0 {
			continue
		}
		out = append(out, transcript.Segment{Start: s.Start, Duration: max(s.Duration, 0), Text: text})
	}
	return out.Sorted()
}

// FromModels converts the ranked candidate list.
func FromModels(candidates []models.Candidate, order []string) ModelsResponse {
	out := ModelsResponse{Models: make([]Model, 0, len(candidates)), Order: order}
	for _, c := range candidates {
		out.Models = append(out.Models, Model{ID: c.Identifier, InputLimit: c.InputLimit, OutputLimit: c.OutputLimit})
	}
	if out.Order == nil {
		out.Order = []string{}
	}
	return out
}

// FromStats converts store statistics.
func FromStats(stats store.Stats) *StoreStatus {
	return &StoreStatus{
		Backend:     stats.Backend,
		Location:    stats.Location,
		Transcripts: stats.Transcripts,
		Analyses:    stats.Analyses,
	}
}
