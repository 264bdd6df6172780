package acquire

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vidseg/internal/transcript"
)

func segmentsOf(n int) transcript.Transcript {
	out := make(transcript.Transcript, n)
	for i := range out {
		out[i] = transcript.Segment{Start: float64(i), Duration: 1, Text: "line"}
	}
	return out
}

func TestExtractReturnsFirstUsableStrategy(t *testing.T) {
	var calls []string
	mk := func(name string, priority int, segs transcript.Transcript, err error) Strategy {
		return Strategy{Name: name, Priority: priority, Execute: func(context.Context, string, string) (transcript.Transcript, error) {
			calls = append(calls, name)
			return segs, err
		}}
	}
	// Registered out of order on purpose; priority decides.
	chain := NewChain(nil,
		mk("d", 3, segmentsOf(5), nil),
		mk("c", 2, segmentsOf(3), nil),
		mk("a", 0, nil, errors.New("blocked")),
		mk("b", 1, nil, errors.New("timeout")),
	)
	res, err := chain.Extract(context.Background(), "abcdefghijk", "en")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if res.Method != "c" || len(res.Segments) != 3 {
		t.Fatalf("unexpected result method=%s segments=%d", res.Method, len(res.Segments))
	}
	if strings.Join(calls, ",") != "a,b,c" {
		t.Fatalf("fourth strategy must not run, calls=%v", calls)
	}
	if len(res.Attempts) != 3 || res.Attempts[0].Message != "blocked" {
		t.Fatalf("unexpected attempts %+v", res.Attempts)
	}
}

func TestExtractTreatsEmptyAsFailure(t *testing.T) {
	chain := NewChain(nil,
		Strategy{Name: "empty", Priority: 0, Execute: func(context.Context, string, string) (transcript.Transcript, error) {
			return transcript.Transcript{}, nil
		}},
		Strategy{Name: "good", Priority: 1, Execute: func(context.Context, string, string) (transcript.Transcript, error) {
			return segmentsOf(1), nil
		}},
	)
	res, err := chain.Extract(context.Background(), "abcdefghijk", "en")
	if err != nil || res.Method != "good" {
		t.Fatalf("expected fallthrough to good, got %+v err=%v", res, err)
	}
	if !errors.Is(res.Attempts[0].Err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty on first attempt, got %v", res.Attempts[0].Err)
	}
}

func TestExtractExhausted(t *testing.T) {
	chain := NewChain(nil,
		Strategy{Name: "one", Execute: func(context.Context, string, string) (transcript.Transcript, error) {
			return nil, errors.New("404")
		}},
		Strategy{Name: "two", Priority: 1, Execute: func(context.Context, string, string) (transcript.Transcript, error) {
			return nil, errors.New("captions disabled")
		}},
	)
	_, err := chain.Extract(context.Background(), "abcdefghijk", "en")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.LastError != "captions disabled" || len(exhausted.Attempts) != 2 {
		t.Fatalf("unexpected exhaustion detail %+v", exhausted)
	}
	if !strings.Contains(err.Error(), "one: 404; two: captions disabled") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestExtractNoStrategies(t *testing.T) {
	_, err := NewChain(nil).Extract(context.Background(), "abcdefghijk", "en")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || len(exhausted.Attempts) != 0 {
		t.Fatalf("expected empty exhaustion, got %v", err)
	}
}

func TestExtractStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := 0
	chain := NewChain(nil,
		Strategy{Name: "cancel", Execute: func(context.Context, string, string) (transcript.Transcript, error) {
			ran++
			cancel()
			return nil, context.Canceled
		}},
		Strategy{Name: "never", Priority: 1, Execute: func(context.Context, string, string) (transcript.Transcript, error) {
			ran++
			return segmentsOf(1), nil
		}},
	)
	if _, err := chain.Extract(ctx, "abcdefghijk", "en"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if ran != 1 {
		t.Fatalf("expected one strategy run, got %d", ran)
	}
}

func TestExtractCanceledBeforeFirstStrategy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chain := NewChain(nil, Strategy{Name: "one", Execute: func(context.Context, string, string) (transcript.Transcript, error) {
		t.Fatal("strategy must not run after cancellation")
		return nil, nil
	}})
	_, err := chain.Extract(ctx, "abcdefghijk", "en")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if msg := err.Error(); strings.Contains(msg, "no strategies available") || !strings.Contains(msg, "context canceled") {
		t.Fatalf("message should name the cancellation, got %q", msg)
	}
}

func TestCaptureBufferTTLAndLanguageFallback(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	buf := NewCaptureBuffer(time.Minute)
	buf.now = func() time.Time { return now }

	buf.Put("vid00000001", "EN", segmentsOf(2))
	if segs, ok := buf.Get("vid00000001", "en"); !ok || len(segs) != 2 {
		t.Fatalf("expected capture, got %v %v", segs, ok)
	}
	if _, ok := buf.Get("vid00000001", "de"); !ok {
		t.Fatal("expected fallback to another language")
	}
	if _, ok := buf.Get("other000000", "en"); ok {
		t.Fatal("unexpected capture for unknown video")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := buf.Get("vid00000001", "en"); ok {
		t.Fatal("expired capture should be gone")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d", buf.Len())
	}

	segs, err := Intercepted(buf).Execute(context.Background(), "vid00000001", "en")
	if !errors.Is(err, ErrNoCapture) || segs != nil {
		t.Fatalf("expected ErrNoCapture, got %v", err)
	}
}

func TestSelectTrack(t *testing.T) {
	tracks := []CaptionTrack{
		{LanguageCode: "de", BaseURL: "de"},
		{LanguageCode: "en", Kind: "asr", BaseURL: "en-asr"},
		{LanguageCode: "en-GB", BaseURL: "en-gb"},
		{LanguageCode: "en", BaseURL: "en-manual"},
	}
	tests := []struct {
		lang string
		want string
	}{
		{lang: "en", want: "en-manual"},
		{lang: "en-GB", want: "en-gb"},
		{lang: "en-US", want: "en-gb"},
		{lang: "fr", want: "de"},
		{lang: "", want: "de"},
	}
	for _, tt := range tests {
		got, ok := SelectTrack(tracks, tt.lang)
		if !ok || got.BaseURL != tt.want {
			t.Fatalf("lang %q: expected %s, got %+v", tt.lang, tt.want, got)
		}
	}
	if got, _ := SelectTrack([]CaptionTrack{{LanguageCode: "en", Kind: "asr", BaseURL: "asr"}}, "en"); got.BaseURL != "asr" {
		t.Fatalf("ASR track should be used when it is the only match, got %+v", got)
	}
	if _, ok := SelectTrack(nil, "en"); ok {
		t.Fatal("expected no track")
	}
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", want: "dQw4w9WgXcQ"},
		{in: "youtu.be/dQw4w9WgXcQ?si=x", want: "dQw4w9WgXcQ"},
		{in: "https://youtube.com/shorts/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "https://m.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "https://example.com/watch?v=dQw4w9WgXcQ", wantErr: true},
		{in: "not a video", wantErr: true},
	}
	for _, tt := range tests {
		got, err := VideoID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%q: unexpected error state %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
