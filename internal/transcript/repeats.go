package transcript

import (
	"vidseg/internal/textutil"
)

// DefaultRepeatSimilarity is the cosine similarity above which consecutive
// cues count as one rolling caption.
const DefaultRepeatSimilarity = 0.8

// minContainedTokens keeps short interjections ("yeah right") from being
// swallowed by whatever line follows them.
const minContainedTokens = 3

// CollapseRepeats merges consecutive segments that repeat each other, as
// auto-captions do when each cue re-emits the previous line or extends it
// with a few words. Two cues merge when their cosine similarity reaches
// threshold, or when every token of the shorter one (at least three) occurs
// in the longer one. The merged segment spans both cues and keeps the longer
// text. Segments with too few words to fingerprint are never merged, and
// threshold <= 0 disables collapsing.
func CollapseRepeats(t Transcript, threshold float64) Transcript {
	if len(t) < 2 || threshold <= 0 {
		return t
	}
	out := make(Transcript, 0, len(t))
	out = append(out, t[0])
	prev := textutil.NewFingerprint(t[0].Text)
	for _, seg := range t[1:] {
		fp := textutil.NewFingerprint(seg.Text)
		if !repeats(prev, fp, threshold) {
			out = append(out, seg)
			prev = fp
			continue
		}
		last := &out[len(out)-1]
		end := max(last.End(), seg.End())
		if len(seg.Text) > len(last.Text) {
			last.Text = seg.Text
			prev = fp
		}
		last.Duration = end - last.Start
	}
	return out
}

func repeats(prev, next *textutil.Fingerprint, threshold float64) bool {
	if prev == nil || next == nil {
		return false
	}
	if prev.Cosine(next) >= threshold {
		return true
	}
	return min(prev.TokenCount(), next.TokenCount()) >= minContainedTokens && prev.Containment(next) >= 1
}
