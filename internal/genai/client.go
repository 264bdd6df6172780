package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vidseg/internal/logging"
)

const (
	// DefaultBaseURL is the public Generative Language endpoint.
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultHTTPTimeout = 60 * time.Second
	jsonMIMEType       = "application/json"
	maxErrorBody       = 1 << 20
	maxListPages       = 20
)

// Config captures the runtime settings required to talk to the service.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
	Temperature    float64
	// ResponseMIMEType defaults to application/json; set to "text/plain" to
	// disable JSON mode.
	ResponseMIMEType string
	MaxOutputTokens  int
	UserAgent        string
}

// DefaultHTTPTimeout returns the default per-call timeout.
func DefaultHTTPTimeout() time.Duration {
	return defaultHTTPTimeout
}

// Client talks to the generateContent family of endpoints.
type Client struct {
	cfg        Config
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ResponseMIMEType == "" {
		cfg.ResponseMIMEType = jsonMIMEType
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "vidseg"
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("genai: parse base url: %w", err)
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "genai")
	return client, nil
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text    string `json:"text"`
	Thought bool   `json:"thought,omitempty"`
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
}

func (c *Client) buildRequest(prompt string) generateRequest {
	temp := c.cfg.Temperature
	return generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:      &temp,
			ResponseMIMEType: c.cfg.ResponseMIMEType,
			MaxOutputTokens:  c.cfg.MaxOutputTokens,
		},
	}
}

func (c *Client) validate(op, prompt, model string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%s: prompt required", op)
	}
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("%s: model required", op)
	}
	if !c.Configured() {
		return fmt.Errorf("%s: api key required", op)
	}
	return nil
}

// Call issues one generateContent request and returns the response text.
func (c *Client) Call(ctx context.Context, prompt, model string) (string, error) {
	const op = "genai generate"
	if err := c.validate(op, prompt, model); err != nil {
		return "", err
	}
	endpoint := c.modelEndpoint(model, "generateContent")
	resp, err := c.post(ctx, op, endpoint, c.buildRequest(prompt))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: op, Err: fmt.Errorf("read body (timeout=%s): %w", c.timeoutDuration(), err)}
	}
	text, err := ParseResponse(body)
	if err != nil {
		return "", err
	}
	c.logger.Debug("generate completed",
		logging.String(logging.FieldModel, model),
		logging.Int("response_chars", len(text)),
	)
	return text, nil
}

// CallStreaming issues a streamGenerateContent request. onChunk, when set,
// receives every non-empty fragment along with the text accumulated so far.
func (c *Client) CallStreaming(ctx context.Context, prompt, model string, onChunk func(fragment, accumulated string)) (string, error) {
	const op = "genai stream"
	if err := c.validate(op, prompt, model); err != nil {
		return "", err
	}
	endpoint := c.modelEndpoint(model, "streamGenerateContent")
	q := endpoint.Query()
	q.Set("alt", "sse")
	endpoint.RawQuery = q.Encode()

	resp, err := c.post(ctx, op, endpoint, c.buildRequest(prompt))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, events, err := readStream(resp.Body, onChunk)
	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			svcErr.Op = op
			return "", svcErr
		}
		return "", &TransportError{Op: op, Err: fmt.Errorf("read stream: %w", err)}
	}
	if strings.TrimSpace(text) == "" {
		return "", &ParseError{Reason: fmt.Sprintf("stream produced no text (%d events)", events)}
	}
	c.logger.Debug("stream completed",
		logging.String(logging.FieldModel, model),
		logging.Int("events", events),
		logging.Int("response_chars", len(text)),
	)
	return text, nil
}

// ModelInfo is one entry of the capability listing.
type ModelInfo struct {
	Name                string   `json:"name"`
	DisplayName         string   `json:"displayName"`
	InputTokenLimit     int      `json:"inputTokenLimit"`
	OutputTokenLimit    int      `json:"outputTokenLimit"`
	SupportedOperations []string `json:"supportedGenerationMethods"`
}

// Supports reports whether the model lists op among its operations.
func (m ModelInfo) Supports(op string) bool {
	for _, s := range m.SupportedOperations {
		if s == op {
			return true
		}
	}
	return false
}

type listModelsResponse struct {
	Models        []ModelInfo `json:"models"`
	NextPageToken string      `json:"nextPageToken"`
}

// ListModels returns every model visible to the API key.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	const op = "genai list models"
	if !c.Configured() {
		return nil, fmt.Errorf("%s: api key required", op)
	}
	var (
		models []ModelInfo
		token  string
	)
	for page := 0; page < maxListPages; page++ {
		endpoint := c.baseURL.JoinPath("models")
		q := endpoint.Query()
		q.Set("pageSize", "100")
		if token != "" {
			q.Set("pageToken", token)
		}
		endpoint.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("%s: new request: %w", op, err)
		}
		c.applyHeaders(req)
		resp, err := c.do(op, req)
		if err != nil {
			return nil, err
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("read body: %w", readErr)}
		}
		var decoded listModelsResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, &ParseError{Reason: "decode model listing", Snippet: summarizePayloadSnippet(string(body)), Err: err}
		}
		models = append(models, decoded.Models...)
		token = decoded.NextPageToken
		if token == "" {
			return models, nil
		}
	}
	c.logger.Warn("model listing truncated",
		logging.Int("pages", maxListPages),
		logging.String(logging.FieldEventType, "model_listing_truncated"),
		logging.String(logging.FieldErrorHint, "listing has more pages than expected"),
		logging.String(logging.FieldImpact, "some models are not considered"),
	)
	return models, nil
}

func (c *Client) modelEndpoint(model, method string) *url.URL {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	return c.baseURL.JoinPath("models", model+":"+method)
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", jsonMIMEType)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
}

func (c *Client) post(ctx context.Context, op string, endpoint *url.URL, payload generateRequest) (*http.Response, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%s: new request: %w", op, err)
	}
	c.applyHeaders(req)
	req.Header.Set("Content-Type", jsonMIMEType)
	return c.do(op, req)
}

// do sends req and converts non-2xx responses into *ServiceError. The caller
// owns the body of a successful response.
func (c *Client) do(op string, req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("http error (timeout=%s): %w", c.timeoutDuration(), err)}
	}
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
	svcErr := serviceErrorFromBody(resp.StatusCode, body, c.cfg.APIKey)
	svcErr.Op = op
	svcErr.RetryAfter = retryAfter
	return nil, svcErr
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
