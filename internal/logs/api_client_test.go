package logs_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"vidseg/internal/api"
	"vidseg/internal/logging"
	"vidseg/internal/logs"
)

func TestNewStreamClientEmptyBind(t *testing.T) {
	client, err := logs.NewStreamClient("  ", "")
	if err != nil {
		t.Fatalf("NewStreamClient: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
}

func TestStreamClientFetchBuildsQueryAndDecodes(t *testing.T) {
	var (
		gotQuery url.Values
		gotAuth  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/logs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []logging.LogEvent{{Timestamp: time.Now().UTC(), Level: "info", Message: "hello"}},
			Next:   42,
		})
	}))
	defer srv.Close()

	client, err := logs.NewStreamClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewStreamClient: %v", err)
	}
	resp, err := client.Fetch(context.Background(), logs.StreamQuery{
		Since:     3,
		Limit:     50,
		Follow:    true,
		Tail:      true,
		VideoID:   "vid00000001",
		Component: "classify",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Message != "hello" || resp.Next != 42 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	for key, want := range map[string]string{
		"since":     "3",
		"limit":     "50",
		"follow":    "1",
		"tail":      "1",
		"video":     "vid00000001",
		"component": "classify",
	} {
		if got := gotQuery.Get(key); got != want {
			t.Fatalf("query %s = %q, want %q", key, got, want)
		}
	}
}

func TestStreamClientFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("video") == "missing" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "invalid token", Code: "UNAUTHORIZED"})
	}))
	defer srv.Close()

	client, err := logs.NewStreamClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewStreamClient: %v", err)
	}
	_, err = client.Fetch(context.Background(), logs.StreamQuery{})
	if err == nil || logs.IsAPIUnavailable(err) {
		t.Fatalf("auth failure should surface, got %v", err)
	}
	if _, err := client.Fetch(context.Background(), logs.StreamQuery{VideoID: "missing"}); !logs.IsAPIUnavailable(err) {
		t.Fatalf("404 should mean unavailable, got %v", err)
	}
}

func TestStreamClientConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()

	client, err := logs.NewStreamClient(addr, "")
	if err != nil {
		t.Fatalf("NewStreamClient: %v", err)
	}
	if _, err := client.Fetch(context.Background(), logs.StreamQuery{Tail: true}); !logs.IsAPIUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
