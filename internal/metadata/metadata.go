// Package metadata looks up video title and channel through oEmbed.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vidseg/internal/segment"
)

const (
	defaultBaseURL     = "https://www.youtube.com/oembed"
	defaultWatchURL    = "https://www.youtube.com/watch"
	defaultHTTPTimeout = 15 * time.Second
)

// ErrNotFound is returned for private, removed or unembeddable videos.
var ErrNotFound = errors.New("metadata: video not found")

// Config describes the oEmbed client.
type Config struct {
	BaseURL    string
	WatchURL   string
	UserAgent  string
	HTTPClient *http.Client
}

// Client wraps the oEmbed endpoint.
type Client struct {
	baseURL   *url.URL
	watchURL  string
	userAgent string
	http      *http.Client
}

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
	ProviderName string `json:"provider_name"`
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("metadata: parse base url: %w", err)
	}
	watch := strings.TrimSpace(cfg.WatchURL)
	if watch == "" {
		watch = defaultWatchURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		baseURL:   baseURL,
		watchURL:  watch,
		userAgent: strings.TrimSpace(cfg.UserAgent),
		http:      client,
	}, nil
}

// Fetch returns title and author for videoID. Duration and description are
// not part of oEmbed and stay empty.
func (c *Client) Fetch(ctx context.Context, videoID string) (segment.Metadata, error) {
	md := segment.Metadata{VideoID: videoID}
	if strings.TrimSpace(videoID) == "" {
		return md, errors.New("metadata: video id is required")
	}
	params := url.Values{}
	params.Set("url", c.watchURL+"?v="+url.QueryEscape(videoID))
	params.Set("format", "json")
	endpoint := *c.baseURL
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return md, fmt.Errorf("metadata: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return md, fmt.Errorf("metadata: request: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return md, ErrNotFound
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return md, fmt.Errorf("metadata: lookup failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var payload oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return md, fmt.Errorf("metadata: decode response: %w", err)
	}
	md.Title = strings.TrimSpace(payload.Title)
	md.Author = strings.TrimSpace(payload.AuthorName)
	return md, nil
}
