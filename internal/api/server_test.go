package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"vidseg/internal/acquire"
	"vidseg/internal/api"
	"vidseg/internal/fallback"
	"vidseg/internal/logging"
	"vidseg/internal/models"
	"vidseg/internal/pipeline"
	"vidseg/internal/segment"
	"vidseg/internal/store"
	"vidseg/internal/testsupport"
)

const classifiedJSON = `{"segments":[{"s":5,"e":15,"l":"sponsor","d":"Acme read"},{"s":15,"e":65,"l":"content","t":"Main"}],"fullVideoLabel":null}`

func newPipelineServer(t *testing.T, token string, opts ...testsupport.ConfigOption) (*httptest.Server, *pipeline.Service) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	svc, err := pipeline.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	srv, err := api.NewServer(api.Config{Token: token, DefaultLanguage: "en"}, svc, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

func getJSON(t *testing.T, url string, headers map[string]string, dst any) int {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthReportsStrategiesAndStore(t *testing.T) {
	ts, _ := newPipelineServer(t, "secret")
	var health api.HealthResponse
	if status := getJSON(t, ts.URL+"/healthz", nil, &health); status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if health.Status != "ok" || strings.Join(health.Strategies, ",") != "store,intercepted" {
		t.Fatalf("unexpected health %+v", health)
	}
	if health.Store == nil || health.Store.Backend != "sqlite" {
		t.Fatalf("expected sqlite store stats, got %+v", health.Store)
	}
}

func TestSegmentsEndToEnd(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"segments":[{"start":0,"duration":5,"text":"Welcome"},{"start":5,"duration":10,"text":"sponsored by Acme"},{"start":15,"duration":50,"text":"main"}]}`))
	}))
	defer relay.Close()
	gen := testsupport.NewGenAIServer(t, classifiedJSON)
	ts, _ := newPipelineServer(t, "", testsupport.WithRelay(relay.URL), testsupport.WithLLMEndpoint(gen.URL))

	target := ts.URL + "/v1/segments/" + url.PathEscape("https://youtu.be/vid00000001?t=3")
	var resp api.SegmentsResponse
	if status := getJSON(t, target, nil, &resp); status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if resp.VideoID != "vid00000001" || resp.TranscriptMethod != "relay" || resp.Cached {
		t.Fatalf("unexpected response meta %+v", resp)
	}
	if len(resp.Timeline) == 0 || resp.Timeline[0].Start != 0 || resp.Timeline[len(resp.Timeline)-1].End != 65 {
		t.Fatalf("unexpected timeline %+v", resp.Timeline)
	}
	var sawSponsor bool
	for _, e := range resp.Timeline {
		if e.Category == "sponsor" && e.Label == "Sponsor" {
			sawSponsor = true
		}
	}
	if !sawSponsor {
		t.Fatalf("sponsor entry missing %+v", resp.Timeline)
	}

	var again api.SegmentsResponse
	getJSON(t, ts.URL+"/v1/segments/vid00000001", nil, &again)
	if !again.Cached {
		t.Fatalf("second request should be served from the store")
	}
}

func TestAuthRequiredOnV1Routes(t *testing.T) {
	ts, _ := newPipelineServer(t, "secret")
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer secret", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			var body map[string]any
			if status := getJSON(t, ts.URL+"/v1/models", headers, &body); status != tt.want {
				t.Fatalf("status %d, want %d (%v)", status, tt.want, body)
			}
		})
	}
}

func TestCaptureThenTranscript(t *testing.T) {
	ts, svc := newPipelineServer(t, "")

	body, _ := json.Marshal(api.CaptureRequest{VideoID: "https://www.youtube.com/watch?v=vid00000009", Payload: testsupport.SampleSRT})
	resp, err := http.Post(ts.URL+"/v1/captures", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST captures: %v", err)
	}
	var ack api.CaptureResponse
	_ = json.NewDecoder(resp.Body).Decode(&ack)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || ack.VideoID != "vid00000009" || ack.Segments != 3 || ack.Language != "en" {
		t.Fatalf("unexpected ack %d %+v", resp.StatusCode, ack)
	}

	var tr api.TranscriptResponse
	if status := getJSON(t, ts.URL+"/v1/transcripts/vid00000009", nil, &tr); status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if tr.Method != "intercepted" || len(tr.Segments) != 3 || !strings.Contains(tr.Segments[1].Text, "Acme") {
		t.Fatalf("unexpected transcript %+v", tr)
	}
	if _, ok, _ := svc.Store().LoadTranscript(context.Background(), "vid00000009", "en"); !ok {
		t.Fatal("captured transcript should be persisted after acquisition")
	}
}

func TestCaptureRejectsBadInput(t *testing.T) {
	ts, _ := newPipelineServer(t, "")
	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "malformed", body: `{`, code: "BAD_REQUEST"},
		{name: "bad video", body: `{"videoId":"nope","segments":[{"start":0,"duration":1,"text":"x"}]}`, code: "INVALID_VIDEO"},
		{name: "empty", body: `{"videoId":"vid00000009","segments":[{"start":0,"duration":1,"text":"  "}]}`, code: "EMPTY_TRANSCRIPT"},
		{name: "unknown payload", body: `{"videoId":"vid00000009","payload":"hello"}`, code: "INVALID_PAYLOAD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/captures", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			var e api.ErrorResponse
			_ = json.NewDecoder(resp.Body).Decode(&e)
			if resp.StatusCode != http.StatusBadRequest || e.Code != tt.code {
				t.Fatalf("got %d %+v, want 400 %s", resp.StatusCode, e, tt.code)
			}
		})
	}
}

func TestTranscriptUnavailableIs404(t *testing.T) {
	ts, _ := newPipelineServer(t, "")
	var e api.ErrorResponse
	if status := getJSON(t, ts.URL+"/v1/transcripts/vid00000010", nil, &e); status != http.StatusNotFound {
		t.Fatalf("unexpected status %d", status)
	}
	if e.Code != "TRANSCRIPT_UNAVAILABLE" || !strings.Contains(e.Error, "store") {
		t.Fatalf("unexpected error %+v", e)
	}
}

func TestModelsRoute(t *testing.T) {
	ts, _ := newPipelineServer(t, "", testsupport.WithStaticModels("a", "b"))
	var resp api.ModelsResponse
	if status := getJSON(t, ts.URL+"/v1/models", nil, &resp); status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if strings.Join(resp.Order, ",") != "a,b" {
		t.Fatalf("unexpected order %+v", resp)
	}
}

type fakeBackend struct {
	err    error
	chunks []string
}

func (f *fakeBackend) Analyze(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
	if f.err != nil {
		return pipeline.Result{}, f.err
	}
	acc := ""
	for _, c := range f.chunks {
		acc += c
		if req.OnChunk != nil {
			req.OnChunk(c, acc)
		}
	}
	return pipeline.Result{
		RunID: "run-1",
		Analysis: segment.Analysis{
			VideoID:  req.VideoID,
			Timeline: segment.Timeline{{Start: 0, End: 10, Category: segment.Content, Text: "Main"}},
		},
		Elapsed: time.Second,
	}, nil
}

func (f *fakeBackend) Transcript(context.Context, string, string) (acquire.Result, error) {
	return acquire.Result{}, f.err
}

func (f *fakeBackend) Captures() *acquire.CaptureBuffer { return acquire.NewCaptureBuffer(time.Minute) }

func (f *fakeBackend) Models(context.Context, bool) ([]models.Candidate, []string, error) {
	return nil, nil, f.err
}

func (f *fakeBackend) Strategies() []string { return nil }

func (f *fakeBackend) Store() store.Store { return nil }

func newFakeServer(t *testing.T, backend api.Backend, hub *logging.StreamHub) *httptest.Server {
	t.Helper()
	srv, err := api.NewServer(api.Config{Hub: hub}, backend, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestSegmentsErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "unconfigured", err: fmt.Errorf("analyze x: %w", pipeline.ErrUnconfigured), status: http.StatusServiceUnavailable, code: "NOT_CONFIGURED"},
		{name: "no transcript", err: &acquire.ExhaustedError{VideoID: "x", Err: errors.New("all failed")}, status: http.StatusNotFound, code: "TRANSCRIPT_UNAVAILABLE"},
		{name: "models", err: fmt.Errorf("classify: %w", &fallback.AggregateError{Noun: "models"}), status: http.StatusBadGateway, code: "GENERATION_FAILED"},
		{name: "canceled acquisition", err: &acquire.ExhaustedError{VideoID: "x", Err: &fallback.AggregateError{Noun: "strategies", Cause: context.Canceled}}, status: 499, code: "CANCELED"},
		{name: "caller gone", err: fmt.Errorf("analyze x: %w", context.Canceled), status: 499, code: "CANCELED"},
		{name: "deadline", err: fmt.Errorf("analyze x: %w", context.DeadlineExceeded), status: http.StatusGatewayTimeout, code: "TIMEOUT"},
		{name: "model timed out", err: &fallback.AggregateError{Noun: "models", Attempts: []fallback.Attempt{{Name: "m", Err: fmt.Errorf("call: %w", context.DeadlineExceeded), Message: "timeout"}}}, status: http.StatusBadGateway, code: "GENERATION_FAILED"},
		{name: "other", err: errors.New("boom"), status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newFakeServer(t, &fakeBackend{err: tt.err}, nil)
			var e api.ErrorResponse
			if status := getJSON(t, ts.URL+"/v1/segments/vid00000001", nil, &e); status != tt.status || e.Code != tt.code {
				t.Fatalf("got %d %+v, want %d %s", status, e, tt.status, tt.code)
			}
		})
	}
}

func TestSegmentsRejectsInvalidVideo(t *testing.T) {
	ts := newFakeServer(t, &fakeBackend{}, nil)
	var e api.ErrorResponse
	if status := getJSON(t, ts.URL+"/v1/segments/short", nil, &e); status != http.StatusBadRequest || e.Code != "INVALID_VIDEO" {
		t.Fatalf("got %d %+v", status, e)
	}
}

func TestSegmentsStreaming(t *testing.T) {
	ts := newFakeServer(t, &fakeBackend{chunks: []string{`{"segments":`, `[]}`}}, nil)
	resp, err := http.Get(ts.URL + "/v1/segments/vid00000001?stream=1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	if strings.Count(text, "event: chunk\n") != 2 || !strings.Contains(text, "event: result\n") {
		t.Fatalf("unexpected event stream:\n%s", text)
	}
	if !strings.Contains(text, `"length":15`) || !strings.Contains(text, `"runId":"run-1"`) {
		t.Fatalf("unexpected event payloads:\n%s", text)
	}
}

func TestLogsRoute(t *testing.T) {
	hub := logging.NewStreamHub(8)
	hub.Publish(logging.LogEvent{Message: "a", VideoID: "vid00000001"})
	hub.Publish(logging.LogEvent{Message: "b", VideoID: "vid00000002"})
	ts := newFakeServer(t, &fakeBackend{}, hub)

	var out api.LogStreamResponse
	if status := getJSON(t, ts.URL+"/v1/logs?tail=1&video=vid00000002", nil, &out); status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if len(out.Events) != 1 || out.Events[0].Message != "b" || out.Next != 2 {
		t.Fatalf("unexpected logs %+v", out)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newFakeServer(t, &fakeBackend{}, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}
