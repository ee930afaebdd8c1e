// Package metadata defines the registry gRPC headers and the interceptor that
// turns them into per-invocation context.
package metadata

import (
	"context"
	"strconv"
	"strings"

	"github.com/louisbranch/recordkeep/internal/platform/id"
	"github.com/louisbranch/recordkeep/internal/platform/requestctx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	// RequestIDHeader carries the request correlation ID.
	RequestIDHeader = "x-recordkeep-request-id"
	// IdentityHeader carries the host-authenticated caller identity.
	IdentityHeader = "x-recordkeep-identity"
	// LogicalClockHeader carries a host logical clock reading as a decimal uint64.
	LogicalClockHeader = "x-recordkeep-logical-clock"
	// LocaleHeader selects the language of error messages.
	LocaleHeader = "x-recordkeep-locale"
)

// IsPrintableASCII reports whether a string contains only printable ASCII characters.
func IsPrintableASCII(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

// FirstMetadataValue returns the first printable ASCII value for key.
func FirstMetadataValue(md metadata.MD, key string) string {
	for _, value := range md.Get(key) {
		if IsPrintableASCII(value) {
			return value
		}
	}
	return ""
}

func incomingValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	return strings.TrimSpace(FirstMetadataValue(md, key))
}

// LocaleFromContext returns the requested error locale, or "".
func LocaleFromContext(ctx context.Context) string {
	return incomingValue(ctx, LocaleHeader)
}

// UnaryServerInterceptor guarantees a request ID on every call and lifts the
// identity and logical clock headers into requestctx.
func UnaryServerInterceptor(idGenerator func() (string, error)) grpc.UnaryServerInterceptor {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := incomingValue(ctx, RequestIDHeader)
		if requestID == "" {
			generated, err := idGenerator()
			if err != nil {
				return nil, status.Errorf(codes.Internal, "generate request id: %v", err)
			}
			requestID = generated
		}
		if err := grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		ctx = requestctx.WithRequestID(ctx, requestID)

		if identity := incomingValue(ctx, IdentityHeader); identity != "" {
			ctx = requestctx.WithIdentity(ctx, identity)
		}
		if raw := incomingValue(ctx, LogicalClockHeader); raw != "" {
			value, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "%s must be a decimal uint64", LogicalClockHeader)
			}
			ctx = requestctx.WithLogicalClock(ctx, value)
		}
		return handler(ctx, req)
	}
}

// OutgoingContext attaches caller headers for a registry client call. Empty
// values are omitted.
func OutgoingContext(ctx context.Context, identity string, clock *uint64, locale string) context.Context {
	var pairs []string
	if identity != "" {
		pairs = append(pairs, IdentityHeader, identity)
	}
	if clock != nil {
		pairs = append(pairs, LogicalClockHeader, strconv.FormatUint(*clock, 10))
	}
	if locale != "" {
		pairs = append(pairs, LocaleHeader, locale)
	}
	if len(pairs) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}
