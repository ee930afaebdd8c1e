package server

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	platformgrpc "github.com/louisbranch/recordkeep/internal/platform/grpc"
	grpcmeta "github.com/louisbranch/recordkeep/internal/services/registry/api/grpc/metadata"
	registryservice "github.com/louisbranch/recordkeep/internal/services/registry/api/grpc/registry"
	"github.com/louisbranch/recordkeep/internal/services/registry/core"
	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
)

func startServer(t *testing.T, cfg StorageConfig) *Server {
	t.Helper()
	srv, err := NewWithConfig(context.Background(), "127.0.0.1:0", cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})
	return srv
}

func dial(t *testing.T, srv *Server) *registryservice.Client {
	t.Helper()
	conn, err := platformgrpc.Dial(context.Background(), srv.Addr(), platformgrpc.ClientOptions{
		Timeout:       2 * time.Second,
		HealthService: registryservice.ServiceName,
		Logf:          t.Logf,
	})
	if err != nil {
		t.Fatalf("dial registry server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return registryservice.NewClient(conn)
}

func TestServerRoundTripPerEngine(t *testing.T) {
	for _, engine := range []string{EngineSQLite, EngineBBolt, EngineMemory} {
		t.Run(engine, func(t *testing.T) {
			srv := startServer(t, StorageConfig{
				Engine:            engine,
				DBPath:            filepath.Join(t.TempDir(), "registry.data"),
				ProtocolAuthority: "root",
			})
			client := dial(t, srv)
			ctx := grpcmeta.OutgoingContext(context.Background(), "alice", nil, "")

			key, err := client.CreateRecord(ctx, domain.Fields{
				Metadata: "doc-1",
				Metric:   10,
				Notes:    "first draft",
				Taxonomy: []string{"a"},
			})
			if err != nil {
				t.Fatalf("create record: %v", err)
			}
			owner, err := client.FetchOperator(ctx, key)
			if err != nil || owner != "alice" {
				t.Fatalf("owner = %q, %v; want alice", owner, err)
			}
			isAuthority, err := client.VerifyProtocolAuthority(ctx, "root")
			if err != nil || !isAuthority {
				t.Fatalf("authority = %v, %v; want true", isAuthority, err)
			}
		})
	}
}

func TestServerStatePersistsAcrossRestart(t *testing.T) {
	cfg := StorageConfig{
		Engine:            EngineSQLite,
		DBPath:            filepath.Join(t.TempDir(), "registry.db"),
		ProtocolAuthority: "root",
	}

	first, err := OpenRegistry(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	if _, err := first.CreateRecord(context.Background(), coreInvocation("alice"), domain.Fields{
		Metadata: "doc-1", Metric: 10, Notes: "first draft", Taxonomy: []string{"a"},
	}); err != nil {
		t.Fatalf("create record: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close registry: %v", err)
	}

	cfg.ProtocolAuthority = "someone-else"
	srv := startServer(t, cfg)
	client := dial(t, srv)
	count, err := client.TotalRecordCount(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("count = %d, %v; want 1", count, err)
	}
	isAuthority, err := client.VerifyProtocolAuthority(context.Background(), "root")
	if err != nil || !isAuthority {
		t.Fatalf("persisted authority = %v, %v; want true", isAuthority, err)
	}
}

func TestOpenRegistryRejectsUnknownEngine(t *testing.T) {
	_, err := OpenRegistry(context.Background(), StorageConfig{Engine: "postgres"})
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected unsupported engine error, got %v", err)
	}
}

func TestLoadStorageConfigFromEnv(t *testing.T) {
	t.Setenv("RECORDKEEP_REGISTRY_STORAGE", "bbolt")
	t.Setenv("RECORDKEEP_REGISTRY_CACHE_TTL", "0s")
	t.Setenv("RECORDKEEP_PROTOCOL_AUTHORITY", "root")

	cfg, err := LoadStorageConfig()
	if err != nil {
		t.Fatalf("load storage config: %v", err)
	}
	if cfg.Engine != EngineBBolt || cfg.CacheTTL != 0 || cfg.ProtocolAuthority != "root" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if got := cfg.dbPath(); got != filepath.Join("data", "registry.bolt") {
		t.Fatalf("db path = %q", got)
	}
}

func coreInvocation(identity string) core.Invocation {
	return core.Invocation{Identity: domain.MustIdentity(identity), Clock: 1}
}
