// Package main hosts the vidseg CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the segmentation pipeline in-process
// for one-off lookups (segments, transcript, models), scaffolds and prints
// configuration, and starts the HTTP API with `vidseg serve`. It centralizes
// configuration resolution and logger setup so subcommands only deal with
// flags and output.
//
// Keep this package lean: add behavior to the internal packages first, then
// surface it here through a command or flag.
package main
