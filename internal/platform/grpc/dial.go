// Package grpc holds client-side gRPC helpers shared by registry clients.
package grpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Connector opens a client connection to addr.
type Connector interface {
	Connect(addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)

// Connect implements Connector.
func (fn ConnectorFunc) Connect(addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	return fn(addr, opts...)
}

// DialStage describes where a dial attempt failed.
type DialStage string

const (
	DialStageConnect DialStage = "connect"
	DialStageHealth  DialStage = "health"
)

// DialError wraps connect and health failures with the stage that failed.
type DialError struct {
	Addr  string
	Stage DialStage
	Err   error
}

func (e *DialError) Error() string {
	if e == nil {
		return "gRPC dial error"
	}
	if e.Addr == "" {
		return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("gRPC %s error for %s: %v", e.Stage, e.Addr, e.Err)
}

func (e *DialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ClientOptions configures Dial.
type ClientOptions struct {
	// Connector defaults to grpc.NewClient.
	Connector Connector
	// Timeout bounds the health wait. Zero relies on ctx alone.
	Timeout time.Duration
	// HealthService is the service name probed; empty probes the server.
	HealthService string
	Logf          func(string, ...any)
	DialOptions   []gogrpc.DialOption
}

// DefaultDialOptions returns insecure transport credentials plus the otel
// client stats handler.
func DefaultDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Dial opens a client connection and waits until the peer reports SERVING.
// The connection is closed when the health wait fails.
func Dial(ctx context.Context, addr string, opts ClientOptions) (*gogrpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	connector := opts.Connector
	if connector == nil {
		connector = ConnectorFunc(gogrpc.NewClient)
	}
	dialOpts := opts.DialOptions
	if len(dialOpts) == 0 {
		dialOpts = DefaultDialOptions()
	}

	conn, err := connector.Connect(addr, dialOpts...)
	if err != nil {
		return nil, &DialError{Addr: addr, Stage: DialStageConnect, Err: err}
	}

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if err := WaitForHealth(waitCtx, conn, opts.HealthService, opts.Logf); err != nil {
		_ = conn.Close()
		return nil, &DialError{Addr: addr, Stage: DialStageHealth, Err: err}
	}
	return conn, nil
}
