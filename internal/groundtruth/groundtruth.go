// Package groundtruth fetches community-submitted skip segments for a video.
//
// The references are passed to the classifier as authoritative boundaries.
// A video without submissions is not an error: Fetch returns an empty slice.
package groundtruth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"vidseg/internal/segment"
)

const (
	defaultBaseURL     = "https://sponsor.ajay.app/api"
	defaultHTTPTimeout = 10 * time.Second
	hashPrefixLength   = 4
)

// Config describes the skip segment client.
type Config struct {
	BaseURL string
	// Categories limits the request; empty asks for every category the
	// service knows.
	Categories []segment.Category
	// MinVotes drops references below this vote count.
	MinVotes int
	// HashPrefix queries by a sha256 prefix of the video ID instead of the ID.
	HashPrefix bool
	UserAgent  string
	HTTPClient *http.Client
}

// Client wraps the skip segment API.
type Client struct {
	baseURL    *url.URL
	categories []string
	minVotes   int
	hashPrefix bool
	userAgent  string
	http       *http.Client
}

type skipSegment struct {
	Segment    [2]float64 `json:"segment"`
	Category   string     `json:"category"`
	ActionType string     `json:"actionType"`
	Votes      int        `json:"votes"`
	Locked     int        `json:"locked"`
}

type hashedVideo struct {
	VideoID  string        `json:"videoID"`
	Segments []skipSegment `json:"segments"`
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("groundtruth: parse base url: %w", err)
	}
	cats := cfg.Categories
	if len(cats) == 0 {
		cats = segment.Categories
	}
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		if c == segment.Content || c == segment.Hook {
			continue
		}
		names = append(names, string(c))
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		baseURL:    baseURL,
		categories: names,
		minVotes:   cfg.MinVotes,
		hashPrefix: cfg.HashPrefix,
		userAgent:  strings.TrimSpace(cfg.UserAgent),
		http:       client,
	}, nil
}

// Fetch returns the references for videoID sorted by start.
func (c *Client) Fetch(ctx context.Context, videoID string) ([]segment.Reference, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, errors.New("groundtruth: video id is required")
	}
	cats, err := json.Marshal(c.categories)
	if err != nil {
		return nil, fmt.Errorf("groundtruth: encode categories: %w", err)
	}
	params := url.Values{}
	params.Set("categories", string(cats))

	var endpoint *url.URL
	if c.hashPrefix {
		endpoint = c.baseURL.JoinPath("skipSegments", hashPrefix(videoID))
	} else {
		endpoint = c.baseURL.JoinPath("skipSegments")
		params.Set("videoID", videoID)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("groundtruth: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groundtruth: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return []segment.Reference{}, nil
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("groundtruth: lookup failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var raw []skipSegment
	if c.hashPrefix {
		var videos []hashedVideo
		if err := json.NewDecoder(resp.Body).Decode(&videos); err != nil {
			return nil, fmt.Errorf("groundtruth: decode response: %w", err)
		}
		for _, v := range videos {
			if v.VideoID == videoID {
				raw = v.Segments
				break
			}
		}
	} else if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("groundtruth: decode response: %w", err)
	}
	return c.references(raw), nil
}

func (c *Client) references(raw []skipSegment) []segment.Reference {
	out := make([]segment.Reference, 0, len(raw))
	for _, s := range raw {
		cat, ok := segment.ParseCategory(s.Category)
		if !ok {
			continue
		}
		if s.Locked == 0 && s.Votes < c.minVotes {
			continue
		}
		start, end := s.Segment[0], s.Segment[1]
		if end < start {
			continue
		}
		out = append(out, segment.Reference{Start: start, End: end, Category: cat, Votes: s.Votes})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func hashPrefix(videoID string) string {
	sum := sha256.Sum256([]byte(videoID))
	return hex.EncodeToString(sum[:])[:hashPrefixLength]
}
