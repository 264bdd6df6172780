// Package store persists transcripts and analyses by video ID.
//
// Two backends implement Store: SQLite (default, a single file under the
// state directory) and Redis (shared deployments, entries expire after a
// TTL). Transcripts are keyed by video and language; analyses by video.
//
// # Entry Points
//
// Open selects a backend from Config. OpenSQLite and OpenRedis construct a
// backend directly.
package store
