// Package api exposes the segmentation pipeline over HTTP.
//
// # Routes
//
//	GET  /healthz                  liveness, strategy order and store stats
//	GET  /v1/segments/{video}      analyze a video (lang, refresh, model, stream)
//	GET  /v1/transcripts/{video}   acquire a transcript without classifying it
//	POST /v1/captures              push a transcript captured by a client
//	GET  /v1/models                ranked model list (refresh)
//
// {video} accepts a bare identifier or any supported watch URL, URL-escaped.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for browser consumers and are converted from
// the domain types in convert.go. Errors are {"error","code"} envelopes.
// When Config.Token is set every /v1 route requires "Authorization: Bearer".
// With stream=1 the segments route answers with server-sent events: one
// "chunk" event per generated fragment and a final "result" or "error".
package api
