package instrument

import (
	"context"
	"log/slog"
)

type correlationIDKey struct{}

// SetCorrelationID returns a copy of ctx carrying the request correlation id.
func SetCorrelationID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, cid)
}

// GetCorrelationID returns the correlation id stored in ctx, or "".
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	cid, _ := ctx.Value(correlationIDKey{}).(string)
	return cid
}

// SecurityEvent logs a security-relevant event at warn level under a stable
// "security" message so it can be filtered downstream.
func SecurityEvent(ctx context.Context, event string, args ...any) {
	slog.WarnContext(ctx, "security", append([]any{"event", event}, args...)...)
}
