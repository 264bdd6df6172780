package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vidseg/internal/transcript"
)

const srv3Body = `<?xml version="1.0" encoding="utf-8" ?><timedtext format="3"><body>
<p t="0" d="4000">hello there</p>
<p t="4000" d="3000">general kenobi</p>
</body></timedtext>`

const json3Body = `{"events":[{"tStartMs":0,"dDurationMs":2000,"segs":[{"utf8":"first"}]},{"tStartMs":2000,"dDurationMs":2000,"segs":[{"utf8":"second"}]}]}`

const vttBody = "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\nmirror line\n\n00:00:02.000 --> 00:00:04.000\nanother line\n"

func TestInnertubeStrategy(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtubei/v1/player":
			if r.Method != http.MethodPost {
				t.Fatalf("expected POST, got %s", r.Method)
			}
			var req innertubeRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.VideoID != "vid00000001" || req.Context.Client.ClientName == "" {
				t.Fatalf("unexpected request %+v", req)
			}
			fmt.Fprintf(w, `{"playabilityStatus":{"status":"OK"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[
				{"baseUrl":"%[1]s/api/timedtext?v=vid00000001&lang=en&kind=asr&fmt=srv3","languageCode":"en","kind":"asr"},
				{"baseUrl":"%[1]s/api/timedtext?v=vid00000001&lang=en&fmt=srv3","languageCode":"en","name":{"simpleText":"English"}}
			]}}}`, srv.URL)
		case "/api/timedtext":
			q := r.URL.Query()
			if q.Get("kind") == "asr" {
				t.Fatal("manual track should win over ASR")
			}
			if q.Get("fmt") != "json3" {
				t.Fatalf("expected json3 format, got %q", q.Get("fmt"))
			}
			io.WriteString(w, json3Body)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := innertubeStrategy(newFetcher(srv.Client(), ""), InnertubeConfig{BaseURL: srv.URL})
	segs, err := s.Execute(context.Background(), "vid00000001", "en")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(segs) != 2 || segs[1].Text != "second" || segs[1].Start != 2 {
		t.Fatalf("unexpected segments %+v", segs)
	}
}

func TestInnertubeUnplayable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"playabilityStatus":{"status":"LOGIN_REQUIRED","reason":"Sign in to confirm you're not a bot"}}`)
	}))
	defer srv.Close()
	s := innertubeStrategy(newFetcher(srv.Client(), ""), InnertubeConfig{BaseURL: srv.URL})
	_, err := s.Execute(context.Background(), "vid00000001", "en")
	if err == nil || !strings.Contains(err.Error(), "LOGIN_REQUIRED") {
		t.Fatalf("expected playability error, got %v", err)
	}
}

func TestTimedTextFallsBackToASR(t *testing.T) {
	var kinds []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		kinds = append(kinds, kind)
		if kind == "" {
			return
		}
		io.WriteString(w, srv3Body)
	}))
	defer srv.Close()
	s := timedTextStrategy(newFetcher(srv.Client(), ""), srv.URL)
	segs, err := s.Execute(context.Background(), "vid00000001", "en")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(segs) != 2 || strings.Join(kinds, ",") != ",asr" {
		t.Fatalf("unexpected outcome segs=%+v kinds=%v", segs, kinds)
	}
}

func TestTimedTextTriesASRAfterManualStatusError(t *testing.T) {
	var kinds []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		kinds = append(kinds, kind)
		if kind == "" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, srv3Body)
	}))
	defer srv.Close()
	s := timedTextStrategy(newFetcher(srv.Client(), ""), srv.URL)
	segs, err := s.Execute(context.Background(), "vid00000001", "en")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(segs) != 2 || strings.Join(kinds, ",") != ",asr" {
		t.Fatalf("unexpected outcome segs=%+v kinds=%v", segs, kinds)
	}
}

func TestTimedTextStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	s := timedTextStrategy(newFetcher(srv.Client(), ""), srv.URL)
	_, err := s.Execute(context.Background(), "vid00000001", "en")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
	if strings.Contains(err.Error(), "lang=en") {
		t.Fatalf("query string should be redacted: %v", err)
	}
}

func TestRelayShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{name: "array", body: `[{"start":0,"duration":2,"text":"a"},{"start":2,"dur":2,"text":"b"}]`, want: 2},
		{name: "envelope", body: `{"segments":[{"start":1,"end":3,"text":"x &amp; y"}]}`, want: 1},
		{name: "transcript key", body: `{"transcript":[{"start":1,"duration":1,"text":"z"}]}`, want: 1},
		{name: "error", body: `{"error":"captions disabled"}`, wantErr: true},
		{name: "html", body: `<html>blocked</html>`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("videoId") != "vid00000001" {
					t.Fatalf("missing videoId in %s", r.URL)
				}
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()
			segs, err := relayStrategy(newFetcher(srv.Client(), ""), srv.URL+"/relay?token=x").Execute(context.Background(), "vid00000001", "en")
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if len(segs) != tt.want {
				t.Fatalf("expected %d segments, got %+v", tt.want, segs)
			}
		})
	}
}

func TestRelayDerivesDurationFromEnd(t *testing.T) {
	segs, err := decodeRelay([]byte(`{"segments":[{"start":1,"end":3,"text":"x &amp; y"}]}`))
	if err != nil {
		t.Fatalf("decodeRelay returned error: %v", err)
	}
	if segs[0].Duration != 2 || segs[0].Text != "x & y" {
		t.Fatalf("unexpected segment %+v", segs[0])
	}
}

func TestWatchPageStrategy(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			fmt.Fprintf(w, `<html><script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/captions?id=1","languageCode":"en"}]}},"videoDetails":{"title":"Brace } in \"title\""}};var meta = {};</script></html>`, srv.URL)
		case "/captions":
			if r.URL.Query().Has("fmt") {
				t.Fatal("watch page captions should use the XML payload")
			}
			io.WriteString(w, srv3Body)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	segs, err := watchPageStrategy(newFetcher(srv.Client(), ""), srv.URL).Execute(context.Background(), "vid00000001", "en")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(segs) != 2 || segs[0].Text != "hello there" {
		t.Fatalf("unexpected segments %+v", segs)
	}
}

func TestExtractPlayerResponseMissing(t *testing.T) {
	if _, err := extractPlayerResponse([]byte("<html>consent wall</html>")); err == nil {
		t.Fatal("expected error without player response")
	}
}

func TestMirrorsWalkInstances(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer dead.Close()
	piped := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/streams/vid00000001":
			io.WriteString(w, `{"subtitles":[
				{"url":"/subs/ttml","mimeType":"application/ttml+xml","code":"en"},
				{"url":"/subs/vtt","mimeType":"text/vtt","code":"en","autoGenerated":false}
			]}`)
		case r.URL.Path == "/subs/vtt":
			io.WriteString(w, vttBody)
		default:
			http.NotFound(w, r)
		}
	}))
	defer piped.Close()

	s := mirrorsStrategy(newFetcher(http.DefaultClient, ""), []string{dead.URL}, []string{piped.URL + "/"}, nil)
	segs, err := s.Execute(context.Background(), "vid00000001", "en")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(segs) != 2 || segs[0].Text != "mirror line" {
		t.Fatalf("unexpected segments %+v", segs)
	}
}

func TestMirrorsInvidious(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/captions/vid00000001":
			if r.URL.Query().Get("label") != "" {
				io.WriteString(w, vttBody)
				return
			}
			io.WriteString(w, `{"captions":[
				{"label":"English (auto-generated)","languageCode":"en","url":"/api/v1/captions/vid00000001?label=English+%28auto-generated%29"},
				{"label":"English","languageCode":"en","url":"/api/v1/captions/vid00000001?label=English"}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	s := mirrorsStrategy(newFetcher(srv.Client(), ""), []string{srv.URL}, nil, nil)
	segs, err := s.Execute(context.Background(), "vid00000001", "en")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("unexpected segments %+v", segs)
	}
}

func TestMirrorsAllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()
	_, err := mirrorsStrategy(newFetcher(srv.Client(), ""), []string{srv.URL}, []string{srv.URL}, nil).
		Execute(context.Background(), "vid00000001", "en")
	if err == nil || !strings.Contains(err.Error(), "all 2 mirror instances failed") {
		t.Fatalf("expected aggregated mirror failure, got %v", err)
	}
}

type fakeLoader struct {
	segs transcript.Transcript
}

func (f fakeLoader) LoadTranscript(context.Context, string, string) (transcript.Transcript, bool, error) {
	return f.segs, f.segs != nil, nil
}

func TestStandardStrategiesOrderAndDisable(t *testing.T) {
	strategies := StandardStrategies(Sources{
		Store:              fakeLoader{segs: segmentsOf(1)},
		Captures:           NewCaptureBuffer(0),
		RelayURL:           "http://relay.invalid/t",
		InvidiousInstances: []string{"http://inv.invalid"},
		Disabled:           []string{"WatchPage"},
	}, nil)
	chain := NewChain(nil, strategies...)
	got := strings.Join(chain.Names(), ",")
	if got != "store,intercepted,innertube,timedtext,relay,mirrors" {
		t.Fatalf("unexpected order %s", got)
	}
	res, err := chain.Extract(context.Background(), "vid00000001", "en")
	if err != nil || res.Method != "store" {
		t.Fatalf("expected store hit, got %+v err=%v", res, err)
	}
}
