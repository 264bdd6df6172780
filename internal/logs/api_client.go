package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"vidseg/internal/api"
)

// ErrAPIUnavailable reports that no server answered.
var ErrAPIUnavailable = errors.New("log API unavailable")

// StreamClient reads /v1/logs from a running server.
type StreamClient struct {
	base  *url.URL
	http  *http.Client
	token string
}

// StreamQuery mirrors the /v1/logs query parameters.
type StreamQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	VideoID   string
	Component string
}

// NewStreamClient targets the server listening on bind. An empty bind yields
// a nil client; wildcard hosts are dialed on loopback.
func NewStreamClient(bind, token string) (*StreamClient, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	switch host := base.Hostname(); host {
	case "", "0.0.0.0", "::":
		base.Host = net.JoinHostPort("127.0.0.1", base.Port())
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &StreamClient{
		base: base,
		// No timeout - follow mode blocks waiting for events until caller cancels.
		http:  &http.Client{},
		token: strings.TrimSpace(token),
	}, nil
}

// Fetch performs one /v1/logs request.
func (c *StreamClient) Fetch(ctx context.Context, q StreamQuery) (api.LogStreamResponse, error) {
	if c == nil {
		return api.LogStreamResponse{}, ErrAPIUnavailable
	}

	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if v := strings.TrimSpace(q.VideoID); v != "" {
		values.Set("video", v)
	}
	if v := strings.TrimSpace(q.Component); v != "" {
		values.Set("component", v)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: "/v1/logs", RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// server runs without a log hub
		return api.LogStreamResponse{}, fmt.Errorf("%w: /v1/logs not served", ErrAPIUnavailable)
	case resp.StatusCode >= 400:
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return api.LogStreamResponse{}, fmt.Errorf("api logs returned status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return api.LogStreamResponse{}, fmt.Errorf("api logs returned status %d", resp.StatusCode)
	}

	var payload api.LogStreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return api.LogStreamResponse{}, err
	}
	return payload, nil
}

// IsAPIUnavailable reports whether err means nothing is listening.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
