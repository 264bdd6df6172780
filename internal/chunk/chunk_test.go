package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"vidseg/internal/transcript"
)

func squash(s string) string { return strings.Join(strings.Fields(s), "") }

func TestTextShortInputReturnedExactly(t *testing.T) {
	in := "  short text  "
	got := Text(in, 100, 10)
	if len(got) != 1 || got[0] != in {
		t.Fatalf("expected input unchanged, got %q", got)
	}
	if got := Text("anything", 0, 0); len(got) != 1 || got[0] != "anything" {
		t.Fatalf("expected single chunk for non-positive max, got %q", got)
	}
}

func TestTextRoundTripWithoutOverlap(t *testing.T) {
	in := strings.Repeat("The quick brown fox jumps over the lazy dog. Then it naps! ", 20)
	for _, size := range []int{17, 40, 64, 101} {
		chunks := Text(in, size, 0)
		if len(chunks) < 2 {
			t.Fatalf("size %d: expected multiple chunks, got %d", size, len(chunks))
		}
		for _, c := range chunks {
			if len(c) > size {
				t.Fatalf("size %d: chunk exceeds limit: %q", size, c)
			}
			if strings.TrimSpace(c) == "" {
				t.Fatalf("size %d: empty chunk emitted", size)
			}
		}
		if squash(strings.Join(chunks, " ")) != squash(in) {
			t.Fatalf("size %d: round trip mismatch", size)
		}
	}
}

func TestTextPrefersSentenceBoundary(t *testing.T) {
	in := "First sentence is long enough. Second part follows here"
	chunks := Text(in, 40, 0)
	if chunks[0] != "First sentence is long enough." {
		t.Fatalf("expected cut at sentence end, got %q", chunks[0])
	}
}

func TestTextOverlapMakesProgress(t *testing.T) {
	in := strings.Repeat("abcdefghij", 10)
	chunks := Text(in, 10, 9)
	if len(chunks) == 0 || len(chunks) > len(in) {
		t.Fatalf("unexpected chunk count %d", len(chunks))
	}
	if !strings.HasSuffix(in, chunks[len(chunks)-1]) {
		t.Fatalf("last chunk should close the text, got %q", chunks[len(chunks)-1])
	}
}

func TestTextRespectsRuneBoundaries(t *testing.T) {
	in := strings.Repeat("ééééé", 10)
	for _, c := range Text(in, 7, 2) {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk split a rune: %q", c)
		}
	}
}

func TestSegmentsGroupsWithinLimit(t *testing.T) {
	segs := transcript.Transcript{
		{Start: 0, Duration: 2, Text: "aaaa"},
		{Start: 2, Duration: 2, Text: "bbbb"},
		{Start: 4, Duration: 2, Text: "cccccccccccccccccccc"},
		{Start: 6, Duration: 3, Text: "dd"},
	}
	blocks := Segments(segs, 10)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %+v", blocks)
	}
	if blocks[0].Text != "aaaa bbbb" || blocks[0].Start != 0 || blocks[0].End != 4 {
		t.Fatalf("unexpected first block %+v", blocks[0])
	}
	if blocks[1].Text != "cccccccccccccccccccc" {
		t.Fatalf("oversized segment should stand alone, got %+v", blocks[1])
	}
	if blocks[2].Start != 6 || blocks[2].End != 9 {
		t.Fatalf("unexpected last block %+v", blocks[2])
	}
	if Segments(nil, 10) != nil {
		t.Fatal("expected no blocks for empty input")
	}
}
