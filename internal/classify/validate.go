package classify

import (
	"vidseg/internal/segment"
)

// FullVideoLabelGuard drops itemized segments of the full-video category when
// together they cover more than ratio of the video; the label already states
// it. Without a label segs is returned unchanged.
func FullVideoLabelGuard(segs []segment.Classified, label *segment.Category, duration, ratio float64) []segment.Classified {
	if label == nil || duration <= 0 {
		return segs
	}
	var covered float64
	for _, s := range segs {
		if s.Category == *label {
			covered += s.Duration()
		}
	}
	if covered/duration <= ratio {
		return segs
	}
	out := segs[:0:0]
	for _, s := range segs {
		if s.Category != *label {
			out = append(out, s)
		}
	}
	return out
}

// Normalize clamps segments to [0, duration], drops inverted spans and sorts
// by start. A non-positive duration skips the upper clamp.
func Normalize(segs []segment.Classified, duration float64) []segment.Classified {
	out := make([]segment.Classified, 0, len(segs))
	for _, s := range segs {
		if s.Start < 0 {
			s.Start = 0
		}
		if duration > 0 {
			if s.End > duration {
				s.End = duration
			}
			if s.Start > duration {
				continue
			}
		}
		if s.End < s.Start {
			continue
		}
		out = append(out, s)
	}
	segment.SortByStart(out)
	return out
}
