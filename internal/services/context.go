package services

import "context"

type contextKey string

const captureIDKey contextKey = "capture_id"

// WithCaptureID annotates context with the capture identifier being processed.
func WithCaptureID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, captureIDKey, id)
}

// CaptureIDFromContext extracts the capture identifier if present.
func CaptureIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(captureIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}
