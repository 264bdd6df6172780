package api

import "vidseg/internal/logging"

// TranscriptSegment is one timed line of a transcript.
type TranscriptSegment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// TimelineEntry is one element of the gap-free timeline.
type TimelineEntry struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Category  string  `json:"category"`
	Label     string  `json:"label"`
	Text      string  `json:"text"`
	Synthetic bool    `json:"synthetic,omitempty"`
}

// Segment is a classified span as returned by the model.
type Segment struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Category    string  `json:"category"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Importance  string  `json:"importance,omitempty"`
}

// Attempt records one strategy or model try.
type Attempt struct {
	Name       string `json:"name"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// VideoMetadata describes the analyzed video.
type VideoMetadata struct {
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
}

// SegmentsResponse is the payload of GET /v1/segments/{video}.
type SegmentsResponse struct {
	RunID              string          `json:"runId"`
	VideoID            string          `json:"videoId"`
	Cached             bool            `json:"cached"`
	Model              string          `json:"model,omitempty"`
	TranscriptMethod   string          `json:"transcriptMethod,omitempty"`
	FullVideoLabel     string          `json:"fullVideoLabel,omitempty"`
	ParseFailed        bool            `json:"parseFailed,omitempty"`
	Timeline           []TimelineEntry `json:"timeline"`
	Segments           []Segment       `json:"segments"`
	Metadata           *VideoMetadata  `json:"metadata,omitempty"`
	References         int             `json:"references"`
	TranscriptAttempts []Attempt       `json:"transcriptAttempts,omitempty"`
	ModelAttempts      []Attempt       `json:"modelAttempts,omitempty"`
	ElapsedMs          int64           `json:"elapsedMs"`
}

// TranscriptResponse is the payload of GET /v1/transcripts/{video}.
type TranscriptResponse struct {
	VideoID  string              `json:"videoId"`
	Language string              `json:"language"`
	Method   string              `json:"method"`
	Segments []TranscriptSegment `json:"segments"`
	Attempts []Attempt           `json:"attempts,omitempty"`
}

// CaptureRequest is the body of POST /v1/captures. Either Segments or a raw
// caption Payload (timedtext XML, json3, WebVTT or SRT) must be present.
type CaptureRequest struct {
	VideoID  string              `json:"videoId"`
	Language string              `json:"lang"`
	Segments []TranscriptSegment `json:"segments,omitempty"`
	Payload  string              `json:"payload,omitempty"`
	Format   string              `json:"format,omitempty"`
}

// CaptureResponse acknowledges a capture.
type CaptureResponse struct {
	VideoID  string `json:"videoId"`
	Language string `json:"lang"`
	Segments int    `json:"segments"`
	Buffered int    `json:"buffered"`
}

// Model is one ranked generation model.
type Model struct {
	ID          string `json:"id"`
	InputLimit  int    `json:"inputLimit,omitempty"`
	OutputLimit int    `json:"outputLimit,omitempty"`
}

// ModelsResponse is the payload of GET /v1/models.
type ModelsResponse struct {
	Models []Model  `json:"models"`
	Order  []string `json:"order"`
	Error  string   `json:"error,omitempty"`
}

// StoreStatus summarizes persistence.
type StoreStatus struct {
	Backend     string `json:"backend"`
	Location    string `json:"location,omitempty"`
	Transcripts int    `json:"transcripts"`
	Analyses    int    `json:"analyses"`
}

// HealthResponse is the payload of GET /healthz.
type HealthResponse struct {
	Status     string       `json:"status"`
	UptimeS    int64        `json:"uptimeSeconds"`
	Strategies []string     `json:"strategies"`
	Store      *StoreStatus `json:"store,omitempty"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ChunkEvent is streamed while the model generates.
type ChunkEvent struct {
	Fragment string `json:"fragment"`
	Length   int    `json:"length"`
}

// LogStreamResponse is the payload of GET /v1/logs. Next is the cursor for
// the following ?since= request.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}
