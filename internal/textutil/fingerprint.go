package textutil

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTokenRunes drops articles and fillers that carry no signal.
const minTokenRunes = 3

// Fingerprint is a term frequency vector of one caption line.
type Fingerprint struct {
	counts map[string]int
	total  int
	norm   float64
}

// NewFingerprint returns nil when text has no usable tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	f := &Fingerprint{counts: make(map[string]int, len(tokens)), total: len(tokens)}
	for _, token := range tokens {
		f.counts[token]++
	}
	var sum float64
	for _, c := range f.counts {
		sum += float64(c * c)
	}
	f.norm = math.Sqrt(sum)
	return f
}

// Tokenize lowercases text and splits it on anything that is not a letter or
// digit, dropping short tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, token := range fields {
		if utf8.RuneCountInString(token) >= minTokenRunes {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// TokenCount is the number of distinct tokens.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.counts)
}

// Cosine compares term frequencies; 0 when either side is nil.
func (f *Fingerprint) Cosine(other *Fingerprint) float64 {
	if f == nil || other == nil {
		return 0
	}
	small, large := f, other
	if len(small.counts) > len(large.counts) {
		small, large = large, small
	}
	var dot float64
	for token, c := range small.counts {
		dot += float64(c * large.counts[token])
	}
	return dot / (f.norm * other.norm)
}

// Containment is the share of the shorter line's tokens that also occur in
// the longer one. A rolling caption that appends words to the previous cue
// scores 1 even when Cosine is low.
func (f *Fingerprint) Containment(other *Fingerprint) float64 {
	if f == nil || other == nil {
		return 0
	}
	small, large := f, other
	if small.total > large.total {
		small, large = large, small
	}
	shared := 0
	for token, c := range small.counts {
		shared += min(c, large.counts[token])
	}
	return float64(shared) / float64(small.total)
}

// Similarity fingerprints both strings and returns their cosine.
func Similarity(a, b string) float64 {
	return NewFingerprint(a).Cosine(NewFingerprint(b))
}
