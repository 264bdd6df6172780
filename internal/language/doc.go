// Package language normalizes caption language codes.
//
// Callers, caption tracks, capture uploads and store keys name languages in
// different ways ("en", "en_US", "eng", "English"). Normalize folds them into
// one lowercase BCP 47 form so transcripts captured or stored under one
// spelling are found under another.
package language
