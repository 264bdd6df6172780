// Package genai provides a client for the Generative Language REST API used to
// classify transcripts.
//
// # Entry Points
//
// NewClient: construct a client from Config.
// Client.Call: one generateContent request, returns the concatenated text.
// Client.CallStreaming: streamGenerateContent over SSE, reporting each
// fragment and the accumulated text to a callback.
// Client.ListModels: page through the model capability listing.
// ParseResponse: the single place that knows the response envelope shape.
//
// # Failure Model
//
// Every failure is one of three typed errors:
//
//   - *TransportError: the request never produced an HTTP response (DNS,
//     connection reset, timeout, cancelled context).
//   - *ServiceError: the service answered with a non-2xx status. Message is
//     taken from the {"error":{"message"}} envelope when present and has the
//     API key redacted.
//   - *ParseError: a 2xx body that does not decode into the expected shape or
//     carries no text.
//
// The client never retries. Callers move on to the next model instead, which
// is what the classification orchestrator does.
//
// # Streaming
//
// The SSE reader buffers bytes until a full line is available, parses each
// "data:" line independently and skips lines that fail to decode, so one bad
// event never aborts the stream.
package genai
