package groundtruth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vidseg/internal/segment"
)

func TestFetchByVideoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/skipSegments" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("videoID") != "vid00000001" {
			t.Fatalf("missing videoID")
		}
		var cats []string
		if err := json.Unmarshal([]byte(r.URL.Query().Get("categories")), &cats); err != nil {
			t.Fatalf("categories not a JSON array: %v", err)
		}
		for _, c := range cats {
			if c == "content" || c == "hook" {
				t.Fatalf("unexpected category %q requested", c)
			}
		}
		io.WriteString(w, `[
			{"segment":[120.5,150],"category":"selfpromo","votes":3},
			{"segment":[10,40],"category":"sponsor","votes":0,"locked":1},
			{"segment":[60,70],"category":"interaction","votes":-1},
			{"segment":[80,90],"category":"mystery","votes":9}
		]`)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL + "/api", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	refs, err := client.Fetch(context.Background(), "vid00000001")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %+v", refs)
	}
	if refs[0].Category != segment.Sponsor || refs[0].Start != 10 || refs[1].Category != segment.SelfPromo {
		t.Fatalf("unexpected references %+v", refs)
	}
}

func TestFetchNoSubmissions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	}))
	defer srv.Close()
	client, _ := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	refs, err := client.Fetch(context.Background(), "vid00000001")
	if err != nil || refs == nil || len(refs) != 0 {
		t.Fatalf("expected empty references, got %v err=%v", refs, err)
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	client, _ := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := client.Fetch(context.Background(), "vid00000001")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected lookup failure, got %v", err)
	}
}

func TestFetchHashPrefix(t *testing.T) {
	prefix := hashPrefix("vid00000001")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/skipSegments/"+prefix {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Has("videoID") {
			t.Fatal("video id must not be sent in hash prefix mode")
		}
		fmt.Fprint(w, `[
			{"videoID":"other000000","segments":[{"segment":[0,5],"category":"intro","votes":5}]},
			{"videoID":"vid00000001","segments":[{"segment":[200,230],"category":"outro","votes":5}]}
		]`)
	}))
	defer srv.Close()
	client, _ := New(Config{BaseURL: srv.URL, HashPrefix: true, HTTPClient: srv.Client()})
	refs, err := client.Fetch(context.Background(), "vid00000001")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(refs) != 1 || refs[0].Category != segment.Outro {
		t.Fatalf("unexpected references %+v", refs)
	}
	if len(prefix) != 4 {
		t.Fatalf("unexpected prefix %q", prefix)
	}
}
