// Package interceptors holds cross-cutting gRPC interceptors for the registry.
package interceptors

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/recordkeep/internal/platform/requestctx"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// AuditEntry is one logged unary call.
type AuditEntry struct {
	Method     string
	MethodKind string
	Code       string
	Identity   string
	RequestID  string
	TraceID    string
	SpanID     string
	Duration   time.Duration
}

// AuditInterceptor reports every unary call to sink. A nil sink writes one
// log line per call.
func AuditInterceptor(sink func(AuditEntry)) grpc.UnaryServerInterceptor {
	if sink == nil {
		sink = logEntry
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		entry := AuditEntry{
			Method:     info.FullMethod,
			MethodKind: classifyMethodKind(info.FullMethod),
			Code:       status.Code(err).String(),
			Identity:   requestctx.IdentityFromContext(ctx),
			RequestID:  requestctx.RequestIDFromContext(ctx),
			Duration:   time.Since(start),
		}
		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
			entry.TraceID = sc.TraceID().String()
			entry.SpanID = sc.SpanID().String()
		}
		sink(entry)
		return resp, err
	}
}

func logEntry(e AuditEntry) {
	log.Printf("grpc %s method=%s code=%s identity=%q request_id=%s trace_id=%s span_id=%s duration=%s",
		e.MethodKind, e.Method, e.Code, e.Identity, e.RequestID, e.TraceID, e.SpanID, e.Duration)
}

// Mutations are the only write methods; everything else is a read.
func classifyMethodKind(fullMethod string) string {
	method := fullMethod[strings.LastIndex(fullMethod, "/")+1:]
	switch method {
	case "CreateRecord", "UpdateRecord", "TransferOwnership":
		return "write"
	default:
		return "read"
	}
}
