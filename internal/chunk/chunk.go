// Package chunk splits long transcripts into bounded windows for services
// with limited input capacity.
package chunk

import (
	"strings"
	"unicode/utf8"

	"vidseg/internal/transcript"
)

// Block is a run of consecutive transcript segments that still maps back to
// video time.
type Block struct {
	Text     string                `json:"text"`
	Start    float64               `json:"start"`
	End      float64               `json:"end"`
	Segments transcript.Transcript `json:"-"`
}

var sentenceTerminators = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// Text splits text into windows of at most maxSize bytes. Cuts prefer the
// last sentence terminator past the window midpoint, then the last space,
// then the raw boundary. Consecutive windows share overlap bytes. Empty
// windows are dropped.
func Text(text string, maxSize, overlap int) []string {
	if maxSize <= 0 || len(text) <= maxSize {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize - 1
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + maxSize
		if end >= len(text) {
			if piece := strings.TrimSpace(text[start:]); piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}
		cut := cutPoint(text, start, end, maxSize)
		if piece := strings.TrimSpace(text[start:cut]); piece != "" {
			chunks = append(chunks, piece)
		}
		next := snapBack(text, cut-overlap, start)
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

func cutPoint(text string, start, end, maxSize int) int {
	window := text[start:end]
	sentence := -1
	for _, term := range sentenceTerminators {
		if idx := strings.LastIndex(window, term); idx > sentence {
			sentence = idx
		}
	}
	cut := end
	switch {
	case sentence > maxSize/2:
		cut = start + sentence + 1
	default:
		if space := strings.LastIndexByte(window, ' '); space > 0 {
			cut = start + space
		}
	}
	if snapped := snapBack(text, cut, start); snapped > start {
		return snapped
	}
	// Window narrower than one rune: move forward to the next boundary.
	for cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut++
	}
	return cut
}

// snapBack moves pos back to a rune boundary without crossing floor.
func snapBack(text string, pos, floor int) int {
	for pos > floor && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

// Segments groups consecutive segments into blocks whose joined text stays
// within maxSize. A single segment longer than maxSize forms its own block.
func Segments(segments transcript.Transcript, maxSize int) []Block {
	var (
		blocks []Block
		cur    Block
		parts  []string
		size   int
	)
	flush := func() {
		if len(cur.Segments) == 0 {
			return
		}
		cur.Text = strings.Join(parts, " ")
		cur.End = cur.Segments[len(cur.Segments)-1].End()
		blocks = append(blocks, cur)
		cur, parts, size = Block{}, nil, 0
	}
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		added := len(text)
		if len(parts) > 0 {
			added++
		}
		if maxSize > 0 && len(cur.Segments) > 0 && size+added > maxSize {
			flush()
			added = len(text)
		}
		if len(cur.Segments) == 0 {
			cur.Start = seg.Start
		}
		cur.Segments = append(cur.Segments, seg)
		parts = append(parts, text)
		size += added
	}
	flush()
	return blocks
}
