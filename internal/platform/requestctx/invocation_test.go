package requestctx

import (
	"context"
	"testing"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), "alice")
	if got := IdentityFromContext(ctx); got != "alice" {
		t.Fatalf("IdentityFromContext = %q, want %q", got, "alice")
	}
	if got := IdentityFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty identity, got %q", got)
	}
	if got := IdentityFromContext(nil); got != "" {
		t.Fatalf("expected empty identity for nil context, got %q", got)
	}
}

func TestWithIdentityNilContext(t *testing.T) {
	ctx := WithIdentity(nil, "bob")
	if got := IdentityFromContext(ctx); got != "bob" {
		t.Fatalf("IdentityFromContext = %q, want %q", got, "bob")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("RequestIDFromContext = %q, want %q", got, "req-1")
	}
	if got := RequestIDFromContext(nil); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}

func TestLogicalClockRoundTrip(t *testing.T) {
	if _, ok := LogicalClockFromContext(context.Background()); ok {
		t.Fatal("expected no clock")
	}
	ctx := WithLogicalClock(context.Background(), 1000)
	got, ok := LogicalClockFromContext(ctx)
	if !ok || got != 1000 {
		t.Fatalf("LogicalClockFromContext = %d, %v", got, ok)
	}
	zero, ok := LogicalClockFromContext(WithLogicalClock(nil, 0))
	if !ok || zero != 0 {
		t.Fatalf("expected explicit zero clock, got %d, %v", zero, ok)
	}
}
