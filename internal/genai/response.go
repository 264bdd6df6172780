package genai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *apiError `json:"error"`
}

// text concatenates the non-thought parts of the first candidate.
func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		if p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// ParseResponse extracts the text payload at candidates[0].content.parts[*].text
// from a generateContent response body.
func ParseResponse(body []byte) (string, error) {
	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", &ParseError{Reason: "decode response", Snippet: summarizePayloadSnippet(string(body)), Err: err}
	}
	if decoded.Error != nil {
		return "", &ServiceError{
			Op:      "genai generate",
			Status:  decoded.Error.Code,
			Code:    decoded.Error.Status,
			Message: decoded.Error.Message,
		}
	}
	if len(decoded.Candidates) == 0 {
		reason := "no candidates"
		if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
			reason += " (block_reason=" + decoded.PromptFeedback.BlockReason + ")"
		}
		return "", &ParseError{Reason: reason, Snippet: summarizePayloadSnippet(string(body))}
	}
	text := decoded.text()
	if strings.TrimSpace(text) == "" {
		return "", &ParseError{
			Reason:  fmt.Sprintf("empty content (finish_reason=%q)", decoded.Candidates[0].FinishReason),
			Snippet: summarizePayloadSnippet(string(body)),
		}
	}
	return text, nil
}

func serviceErrorFromBody(status int, body []byte, apiKey string) *ServiceError {
	svcErr := &ServiceError{Status: status}
	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		svcErr.Message = redactSecrets(envelope.Error.Message, apiKey)
		svcErr.Code = envelope.Error.Status
		return svcErr
	}
	msg := summarizePayloadSnippet(string(body))
	if msg == "<empty>" {
		msg = http.StatusText(status)
	}
	svcErr.Message = redactSecrets(msg, apiKey)
	return svcErr
}

var (
	apiKeyParamRE = regexp.MustCompile(`(?i)(key=)[A-Za-z0-9_\-]+`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)("?(?:api[_-]?key|x-goog-api-key)"?\s*[:=]\s*"?)[^"\s,}]+`)
	bearerTokenRE = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]+`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = apiKeyParamRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}

// DecodeJSON decodes JSON from a model response, tolerating code fences and
// prose around the payload.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, summarizePayloadSnippet(sanitized))
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(StripCodeFences(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

// StripCodeFences removes a surrounding ``` or ```json fence.
func StripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
