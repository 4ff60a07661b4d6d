// Package reqcontext carries request identity and timing through
// context.Context for log correlation.
package reqcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextKey is unexported so keys cannot collide with other packages
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	startTimeKey contextKey = "start_time"
)

// WithRequestID adds a request ID to the context
func WithRequestID(parent context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = GenerateRequestID()
	}
	return context.WithValue(parent, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown-request"
}

// WithStartTime adds the request start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetDuration calculates the elapsed time since the start time in
// context; zero when no start time was recorded.
func GetDuration(ctx context.Context) time.Duration {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return time.Since(t)
	}
	return 0
}

// GenerateRequestID creates a new unique request ID
func GenerateRequestID() string {
	return "req_" + uuid.New().String()
}

// Enrich stamps a context with a request ID and start time if absent
func Enrich(parent context.Context) context.Context {
	ctx := parent
	if GetRequestID(ctx) == "unknown-request" {
		ctx = WithRequestID(ctx, GenerateRequestID())
	}
	ctx = WithStartTime(ctx, time.Now())
	return ctx
}
