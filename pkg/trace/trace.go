package trace

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const TraceIDKey = "trace_id"

type ctxKey struct{}

// GenerateTraceID returns a new random trace ID.
func GenerateTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// FromContext returns the trace ID stored in ctx, if any.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(ctxKey{}).(string); ok {
		return traceID
	}
	return ""
}

// WithContext returns a copy of ctx carrying traceID.
func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// FromHeaders picks the trace ID from X-Trace-ID, falling back to X-Request-ID.
func FromHeaders(traceHeader, requestIDHeader string) string {
	if traceHeader != "" {
		return traceHeader
	}
	return requestIDHeader
}

// HeaderName is the HTTP header that carries the trace ID.
func HeaderName() string {
	return "X-Trace-ID"
}
