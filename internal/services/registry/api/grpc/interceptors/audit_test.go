package interceptors

import (
	"context"
	"testing"

	"github.com/louisbranch/recordkeep/internal/platform/requestctx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAuditInterceptorRecordsCall(t *testing.T) {
	var got AuditEntry
	interceptor := AuditInterceptor(func(e AuditEntry) { got = e })

	ctx := requestctx.WithIdentity(requestctx.WithRequestID(context.Background(), "req-1"), "alice")
	info := &grpc.UnaryServerInfo{FullMethod: "/recordkeep.registry.v1.RecordRegistry/UpdateRecord"}
	_, err := interceptor(ctx, nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.PermissionDenied, "not owner")
	})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("interceptor changed error: %v", err)
	}
	if got.Method != info.FullMethod || got.MethodKind != "write" || got.Code != "PermissionDenied" {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.Identity != "alice" || got.RequestID != "req-1" {
		t.Fatalf("missing caller context: %+v", got)
	}
	if got.TraceID != "" {
		t.Fatalf("expected no trace id without a span, got %q", got.TraceID)
	}
}

func TestClassifyMethodKind(t *testing.T) {
	tests := map[string]string{
		"/recordkeep.registry.v1.RecordRegistry/CreateRecord":      "write",
		"/recordkeep.registry.v1.RecordRegistry/TransferOwnership": "write",
		"/recordkeep.registry.v1.RecordRegistry/FetchFullRecord":   "read",
		"/grpc.health.v1.Health/Check":                             "read",
	}
	for method, want := range tests {
		if got := classifyMethodKind(method); got != want {
			t.Fatalf("classifyMethodKind(%q) = %q, want %q", method, got, want)
		}
	}
}
