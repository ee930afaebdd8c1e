// Package requestctx carries per-invocation host facts through a context.
package requestctx

import "context"

type identityKey struct{}
type requestIDKey struct{}
type logicalClockKey struct{}

// WithIdentity stores the authenticated caller identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the caller identity or "".
func IdentityFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(identityKey{}).(string)
	return value
}

// WithRequestID stores the request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request correlation ID or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithLogicalClock stores a host-supplied logical clock value.
func WithLogicalClock(ctx context.Context, clock uint64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, logicalClockKey{}, clock)
}

// LogicalClockFromContext returns the host clock and whether one was set.
func LogicalClockFromContext(ctx context.Context) (uint64, bool) {
	if ctx == nil {
		return 0, false
	}
	value, ok := ctx.Value(logicalClockKey{}).(uint64)
	return value, ok
}
