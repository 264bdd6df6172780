// Package segment defines the labeled-timeline data model shared by the
// classification, validation, and reconciliation stages.
//
// Categories form a closed set. ParseCategory accepts the canonical names plus
// the aliases generative models tend to emit ("self-promotion", "highlight",
// "music-offtopic"), so callers never have to guess at spelling.
package segment
