package metadata

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestFirstMetadataValueSkipsNonPrintable(t *testing.T) {
	md := metadata.MD{IdentityHeader: []string{"bad\x01", "alice"}}
	if got := FirstMetadataValue(md, IdentityHeader); got != "alice" {
		t.Fatalf("FirstMetadataValue = %q, want alice", got)
	}
	if got := FirstMetadataValue(nil, IdentityHeader); got != "" {
		t.Fatalf("expected empty value for nil metadata, got %q", got)
	}
}

func TestUnaryServerInterceptorGeneratorFailure(t *testing.T) {
	failing := func() (string, error) { return "", errors.New("entropy") }
	_, err := UnaryServerInterceptor(failing)(context.Background(), nil, &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
		t.Fatal("handler must not run")
		return nil, nil
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %s, want Internal", status.Code(err))
	}
}

func TestOutgoingContext(t *testing.T) {
	clock := uint64(99)
	ctx := OutgoingContext(context.Background(), "alice", &clock, "pt-BR")
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	if md.Get(IdentityHeader)[0] != "alice" || md.Get(LogicalClockHeader)[0] != "99" || md.Get(LocaleHeader)[0] != "pt-BR" {
		t.Fatalf("unexpected metadata: %v", md)
	}

	bare := context.Background()
	if OutgoingContext(bare, "", nil, "") != bare {
		t.Fatal("expected context unchanged without values")
	}
}
