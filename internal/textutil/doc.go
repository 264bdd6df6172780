// Package textutil fingerprints short caption lines for near-duplicate
// detection.
//
// Tokens are lowercase runs of letters or digits of at least three runes.
// Cosine catches re-emitted cues; Containment catches rolling auto-captions
// that repeat the previous line and append a few words.
package textutil
