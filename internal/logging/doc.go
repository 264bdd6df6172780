// Package logging assembles structured slog loggers and formatting helpers used
// across vidseg.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so request handlers and pipeline runs
// tag their lines with request and video IDs. StreamHub keeps the most recent
// events in memory for the HTTP API. NewNop serves tests and wiring code that
// cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits the same keys (see the Field constants).
package logging
