// Package pipeline runs one video through acquisition, classification, gap
// filling and persistence.
//
// # Entry Points
//
// New assembles a Service from configuration. Analyze produces a segment
// timeline for a video, reusing a stored analysis unless asked to refresh.
// Transcript runs only the acquisition chain. Both are safe for concurrent
// use; concurrent non-streaming Analyze calls for the same video and language
// share one run.
package pipeline
