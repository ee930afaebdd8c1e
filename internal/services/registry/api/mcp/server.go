package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/louisbranch/recordkeep/internal/platform/timeouts"
	"github.com/louisbranch/recordkeep/internal/services/registry/clock"
	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "recordkeep-registry"
	serverVersion = "0.1.0"

	// IdentityHeader binds an HTTP session to a caller identity.
	IdentityHeader = "X-Recordkeep-Identity"
)

// TransportKind selects how MCP messages reach the server.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP uses the streamable HTTP transport.
	TransportHTTP TransportKind = "http"
)

// Config holds MCP runtime settings.
type Config struct {
	Transport TransportKind
	HTTPAddr  string
	// Identity binds the stdio session.
	Identity string
	// AllowedHosts extends the loopback hosts accepted by the HTTP transport.
	AllowedHosts []string
	Clock        clock.Source
}

// NewServer builds an MCP server whose tools act as identity. Surrounding
// whitespace from the env or header carrier is dropped; a blank or non UTF-8
// identity yields a read-only session.
func NewServer(registry Registry, identity string, src clock.Source) *mcp.Server {
	if src == nil {
		src = clock.NewMonotonic()
	}
	caller, _ := domain.ParseIdentity(strings.TrimSpace(identity))
	s := session{registry: registry, identity: caller, clock: src}

	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(server, RecordCreateTool(), s.recordCreate)
	mcp.AddTool(server, RecordUpdateTool(), s.recordUpdate)
	mcp.AddTool(server, RecordTransferTool(), s.recordTransfer)
	mcp.AddTool(server, RecordGetTool(), s.recordGet)
	mcp.AddTool(server, RecordCountTool(), s.recordCount)
	mcp.AddTool(server, RecordListTool(), s.recordList)
	mcp.AddTool(server, AccessCheckTool(), s.accessCheck)
	mcp.AddTool(server, AuthorityVerifyTool(), s.authorityVerify)
	mcp.AddTool(server, OwnershipVerifyTool(), s.ownershipVerify)
	mcp.AddTool(server, RecordEventsTool(), s.recordEvents)
	return server
}

// Run serves the registry over the configured transport until ctx ends.
func Run(ctx context.Context, registry Registry, cfg Config) error {
	if registry == nil {
		return errors.New("registry is required")
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	switch cfg.Transport {
	case TransportStdio:
		if strings.TrimSpace(cfg.Identity) == "" {
			log.Printf("no MCP identity configured; mutating tools are disabled")
		}
		return serveWithTransport(ctx, NewServer(registry, cfg.Identity, cfg.Clock), &mcp.StdioTransport{})
	case TransportHTTP:
		return runHTTP(ctx, registry, cfg)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

func serveWithTransport(ctx context.Context, server *mcp.Server, transport mcp.Transport) error {
	err := server.Run(ctx, transport)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// NewHTTPHandler serves streamable HTTP. Each new session gets a server
// bound to the identity header of the request that opened it.
func NewHTTPHandler(registry Registry, cfg Config) http.Handler {
	src := cfg.Clock
	if src == nil {
		src = clock.NewMonotonic()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedHosts))
	for _, host := range cfg.AllowedHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			allowed[host] = struct{}{}
		}
	}
	streamable := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return NewServer(registry, r.Header.Get(IdentityHeader), src)
	}, nil)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := validateLocalRequest(r, allowed); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		streamable.ServeHTTP(w, r)
	})
}

func runHTTP(ctx context.Context, registry Registry, cfg Config) error {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = "localhost:8096"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	httpServer := &http.Server{
		Handler:           NewHTTPHandler(registry, cfg),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("MCP HTTP listening at %v", listener.Addr())
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown MCP HTTP: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve MCP HTTP: %w", err)
	}
}

// validateLocalRequest enforces Host and Origin against the allowed hosts to
// block DNS rebinding. Loopback is always allowed.
func validateLocalRequest(r *http.Request, allowed map[string]struct{}) error {
	if !isAllowedHost(r.Host, allowed) {
		return errors.New("invalid host")
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return nil
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return errors.New("invalid origin")
	}
	if !isAllowedHost(parsed.Host, allowed) {
		return errors.New("invalid origin")
	}
	return nil
}

func isAllowedHost(hostport string, allowed map[string]struct{}) bool {
	host := strings.TrimSpace(hostport)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "" {
		return false
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	_, ok := allowed[host]
	return ok
}
