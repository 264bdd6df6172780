package transcript

import "testing"

func TestCollapseRepeats(t *testing.T) {
	in := Transcript{
		{Start: 0, Duration: 2, Text: "so today we are going to look at the new parser"},
		{Start: 2, Duration: 2, Text: "so today we are going to look at the new parser and the lexer"},
		{Start: 4, Duration: 3, Text: "this video is sponsored by acme"},
		{Start: 7, Duration: 1, Text: "ok"},
		{Start: 8, Duration: 1, Text: "ok"},
	}
	got := CollapseRepeats(in, DefaultRepeatSimilarity)
	if len(got) != 4 {
		t.Fatalf("expected rolling pair merged, got %+v", got)
	}
	if got[0].Start != 0 || got[0].Duration != 4 || got[0].Text != in[1].Text {
		t.Fatalf("unexpected merged cue %+v", got[0])
	}
	if got[1].Text != "this video is sponsored by acme" {
		t.Fatalf("unrelated cue should survive, got %+v", got[1])
	}
	if in[0].Duration != 2 {
		t.Fatal("input must not be modified")
	}
}

func TestCollapseRepeatsDisabled(t *testing.T) {
	in := Transcript{{Start: 0, Duration: 1, Text: "same words here"}, {Start: 1, Duration: 1, Text: "same words here"}}
	if got := CollapseRepeats(in, 0); len(got) != 2 {
		t.Fatalf("zero threshold should disable collapsing, got %+v", got)
	}
}

func TestCollapseRepeatsRollingExtension(t *testing.T) {
	in := Transcript{
		{Start: 0, Duration: 1.5, Text: "welcome back to the channel"},
		{Start: 1.5, Duration: 3, Text: "welcome back to the channel today we are looking at rust macros"},
		{Start: 4.5, Duration: 1, Text: "yeah right"},
		{Start: 5.5, Duration: 2, Text: "yeah right so macros expand at compile time"},
	}
	got := CollapseRepeats(in, DefaultRepeatSimilarity)
	if len(got) != 3 {
		t.Fatalf("expected extension merged and short interjection kept, got %+v", got)
	}
	if got[0].Duration != 4.5 || got[0].Text != in[1].Text {
		t.Fatalf("unexpected merged cue %+v", got[0])
	}
	if got[1].Text != "yeah right" {
		t.Fatalf("short cue should survive, got %+v", got[1])
	}
}
