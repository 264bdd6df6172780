// Package transcript defines timestamped transcript segments and the parsers
// that turn caption payloads into them.
//
// Supported payloads:
//   - timedtext XML, both the srv3 <p t= d=> form and the legacy
//     <text start= dur=> form
//   - json3 event streams
//   - WebVTT
//   - SRT
//
// Parse sniffs the payload and dispatches to the matching parser. Every parser
// normalizes cue text the same way (entity decoding, NFKC, whitespace
// collapsing) and drops cues whose text ends up empty.
package transcript
