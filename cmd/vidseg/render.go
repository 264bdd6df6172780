package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"vidseg/internal/acquire"
	"vidseg/internal/language"
	"vidseg/internal/models"
	"vidseg/internal/pipeline"
	"vidseg/internal/transcript"
)

func renderAnalysis(out io.Writer, res pipeline.Result) {
	a := res.Analysis
	title := a.VideoID
	if res.Metadata.Title != "" {
		title = fmt.Sprintf("%s (%s)", a.VideoID, res.Metadata.Title)
		if res.Metadata.Author != "" {
			title = fmt.Sprintf("%s (%s by %s)", a.VideoID, res.Metadata.Title, res.Metadata.Author)
		}
	}
	fmt.Fprintf(out, "Video:       %s\n", title)
	if a.Model != "" {
		fmt.Fprintf(out, "Model:       %s\n", a.Model)
	}
	if a.TranscriptFrom != "" {
		fmt.Fprintf(out, "Transcript:  %s\n", a.TranscriptFrom)
	}
	fmt.Fprintf(out, "Cached:      %s\n", yesNo(res.Cached))
	if a.FullVideoLabel != nil {
		fmt.Fprintf(out, "Full video:  %s\n", a.FullVideoLabel.Label())
	}
	if res.ReferenceCount > 0 {
		fmt.Fprintf(out, "References:  %d\n", res.ReferenceCount)
	}
	if res.ParseFailed {
		fmt.Fprintln(out, "Model output could not be parsed; the timeline is transcript-only.")
	}

	if len(a.Timeline) == 0 {
		fmt.Fprintln(out, "No timeline entries")
		return
	}
	rows := make([][]string, 0, len(a.Timeline))
	for i, e := range a.Timeline {
		category := e.Category.Label()
		if e.Synthetic {
			category += " *"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			transcript.FormatClock(e.Start),
			transcript.FormatClock(e.End),
			category,
			oneLine(e.Text),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Start", "End", "Category", "Text"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft},
	))
}

func renderTranscript(out io.Writer, videoID, lang string, res acquire.Result) {
	fmt.Fprintf(out, "Video:     %s\n", videoID)
	fmt.Fprintf(out, "Language:  %s (%s)\n", language.DisplayName(lang), lang)
	fmt.Fprintf(out, "Method:    %s\n", res.Method)
	rows := make([][]string, 0, len(res.Segments))
	for _, seg := range res.Segments {
		rows = append(rows, []string{
			transcript.FormatClock(seg.Start),
			strconv.FormatFloat(seg.Duration, 'f', 1, 64),
			oneLine(seg.Text),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Start", "Duration", "Text"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft},
	))
}

func renderModels(out io.Writer, candidates []models.Candidate, order []string) {
	if len(order) == 0 {
		fmt.Fprintln(out, "No models available")
		return
	}
	limits := make(map[string]models.Candidate, len(candidates))
	for _, c := range candidates {
		limits[c.Identifier] = c
	}
	rows := make([][]string, 0, len(order))
	for i, id := range order {
		c := limits[id]
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			formatLimit(c.InputLimit),
			formatLimit(c.OutputLimit),
			id,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Rank", "Input", "Output", "Model"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
	))
}

func formatLimit(n int) string {
	if n <= 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
