package genai

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// TransportError wraps failures that happened before an HTTP response arrived.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying failure was a timeout.
func (e *TransportError) Timeout() bool {
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(e.Err.Error()), "deadline exceeded")
}

// ServiceError reports a non-success HTTP status.
type ServiceError struct {
	Op         string
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: http %d (%s): %s", e.Op, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Message)
}

// ParseError reports a successful response whose body could not be decoded.
type ParseError struct {
	Reason  string
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	msg := "genai parse: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Snippet != "" {
		msg += " (response_snippet=" + e.Snippet + ")"
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a *TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// StatusOf returns the HTTP status of a *ServiceError in err's chain, or 0.
func StatusOf(err error) int {
	var target *ServiceError
	if errors.As(err, &target) {
		return target.Status
	}
	return 0
}
