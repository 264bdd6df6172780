package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent names the emitting component.
	FieldComponent = "component"
	// FieldVideoID is the platform video identifier being processed.
	FieldVideoID = "video_id"
	// FieldStage is the pipeline step (acquire, classify, fill, persist).
	FieldStage = "stage"
	// FieldStrategy names a transcript acquisition strategy.
	FieldStrategy = "strategy"
	// FieldModel is a generative model identifier.
	FieldModel = "model"
	// FieldAttempt is a 1-based attempt counter.
	FieldAttempt = "attempt"
	// FieldRequestID identifies one API request or pipeline run.
	FieldRequestID = "request_id"
	// FieldCorrelationID links work triggered on behalf of a request.
	FieldCorrelationID = "correlation_id"
	// FieldEventType is a stable, machine-friendly event name.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact states the consequence of a warning for the caller.
	FieldImpact = "impact"
	// FieldDecisionType names the decision recorded by DecisionAttrs.
	FieldDecisionType = "decision_type"
	// FieldSessionID tags every record of one process run.
	FieldSessionID = "session_id"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	videoIDKey
)

// ContextWithRequestID stores a request identifier on ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the identifier stored by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// ContextWithVideoID stores the video being processed on ctx.
func ContextWithVideoID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, videoIDKey, id)
}

// VideoIDFromContext returns the identifier stored by ContextWithVideoID.
func VideoIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(videoIDKey).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := VideoIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldVideoID, id))
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	return fields
}

// WithContext returns a logger augmented with fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
