package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"vidseg/internal/acquire"
	"vidseg/internal/fallback"
	"vidseg/internal/language"
	"vidseg/internal/logging"
	"vidseg/internal/pipeline"
	"vidseg/internal/transcript"
)

const maxCaptureBytes = 16 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		UptimeS:    int64(time.Since(s.started).Seconds()),
		Strategies: s.backend.Strategies(),
	}
	if st := s.backend.Store(); st != nil {
		stats, err := st.Stats(r.Context())
		if err != nil {
			logging.WarnWithContext(s.logger, "store stats unavailable", "store_stats_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the store backend"),
				logging.String(logging.FieldImpact, "health omits store counters"),
			)
			resp.Status = "degraded"
		} else {
			resp.Store = FromStats(stats)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	videoID, ok := s.videoParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	req := pipeline.Request{
		VideoID:  videoID,
		Language: s.language(q.Get("lang")),
		Refresh:  queryBool(q.Get("refresh")),
		Model:    strings.TrimSpace(q.Get("model")),
	}
	if queryBool(q.Get("stream")) {
		s.streamSegments(w, r, req)
		return
	}
	res, err := s.backend.Analyze(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromResult(res))
}

func (s *Server) streamSegments(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "STREAMING_UNSUPPORTED")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var mu sync.Mutex
	send := func(event string, payload any) {
		mu.Lock()
		defer mu.Unlock()
		if err := writeEvent(w, event, payload); err != nil {
			return
		}
		flusher.Flush()
	}
	req.Stream = true
	req.OnChunk = func(fragment, accumulated string) {
		send("chunk", ChunkEvent{Fragment: fragment, Length: len(accumulated)})
	}
	res, err := s.backend.Analyze(r.Context(), req)
	if err != nil {
		_, code := statusFor(err)
		send("error", ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	send("result", FromResult(res))
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	videoID, ok := s.videoParam(w, r)
	if !ok {
		return
	}
	lang := s.language(r.URL.Query().Get("lang"))
	res, err := s.backend.Transcript(r.Context(), videoID, lang)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAcquisition(videoID, lang, res))
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCaptureBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	videoID, err := acquire.VideoID(req.VideoID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_VIDEO")
		return
	}
	lang := s.language(req.Language)

	var segs transcript.Transcript
	switch {
	case len(req.Segments) > 0:
		segs = ToTranscript(req.Segments)
	case strings.TrimSpace(req.Payload) != "":
		if format := strings.ToLower(strings.TrimSpace(req.Format)); format != "" {
			segs, err = transcript.ParseFormat(transcript.Format(format), []byte(req.Payload))
		} else {
			segs, err = transcript.Parse([]byte(req.Payload))
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_PAYLOAD")
			return
		}
	}
	if len(segs) == 0 {
		writeError(w, http.StatusBadRequest, "capture contains no transcript lines", "EMPTY_TRANSCRIPT")
		return
	}

	buf := s.backend.Captures()
	buf.Put(videoID, lang, segs)
	s.logger.Debug("transcript captured",
		logging.String(logging.FieldVideoID, videoID),
		logging.String("lang", lang),
		logging.Int("segments", len(segs)),
	)
	writeJSON(w, http.StatusAccepted, CaptureResponse{
		VideoID:  videoID,
		Language: lang,
		Segments: len(segs),
		Buffered: buf.Len(),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	candidates, order, err := s.backend.Models(r.Context(), queryBool(r.URL.Query().Get("refresh")))
	resp := FromModels(candidates, order)
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since, _ := strconv.ParseUint(q.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	var (
		events []logging.LogEvent
		next   uint64
		err    error
	)
	if queryBool(q.Get("tail")) && since == 0 {
		events, next = s.cfg.Hub.Tail(limit)
	} else {
		events, next, err = s.cfg.Hub.Fetch(r.Context(), since, limit, queryBool(q.Get("follow")))
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
	}
	events = logging.Filter(events, strings.TrimSpace(q.Get("video")), strings.TrimSpace(q.Get("component")))
	if events == nil {
		events = []logging.LogEvent{}
	}
	writeJSON(w, http.StatusOK, LogStreamResponse{Events: events, Next: next})
}

func (s *Server) videoParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "video")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	id, err := acquire.VideoID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_VIDEO")
		return "", false
	}
	return id, true
}

func (s *Server) language(value string) string {
	if v := language.Normalize(value); v != "" {
		return v
	}
	return s.cfg.DefaultLanguage
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.String("code", code),
			logging.Error(err),
			logging.String(logging.FieldImpact, "client receives an error response"),
		)
	}
	writeError(w, status, err.Error(), code)
}

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) (int, string) {
	var (
		exhausted *acquire.ExhaustedError
		agg       *fallback.AggregateError
	)
	switch {
	case stoppedBy(err, context.Canceled):
		return 499, "CANCELED"
	case stoppedBy(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, pipeline.ErrUnconfigured):
		return http.StatusServiceUnavailable, "NOT_CONFIGURED"
	case errors.As(err, &exhausted):
		return http.StatusNotFound, "TRANSCRIPT_UNAVAILABLE"
	case errors.As(err, &agg):
		return http.StatusBadGateway, "GENERATION_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// stoppedBy reports whether the request itself ended with target. Inside a
// fallback loop only the stop cause counts; a single attempt timing out is a
// failed attempt.
func stoppedBy(err, target error) bool {
	var agg *fallback.AggregateError
	if errors.As(err, &agg) {
		return agg.Cause != nil && errors.Is(agg.Cause, target)
	}
	return errors.Is(err, target)
}

func queryBool(value string) bool {
	v := strings.TrimSpace(value)
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}
