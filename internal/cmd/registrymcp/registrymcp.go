// Package registrymcp parses MCP command flags and serves the registry as
// MCP tools over stdio or HTTP.
package registrymcp

import (
	"context"
	"flag"
	"log"

	entrypoint "github.com/louisbranch/recordkeep/internal/platform/cmd"
	mcpapi "github.com/louisbranch/recordkeep/internal/services/registry/api/mcp"
	server "github.com/louisbranch/recordkeep/internal/services/registry/app"
)

// Config holds MCP command configuration.
type Config struct {
	Transport    string   `env:"RECORDKEEP_MCP_TRANSPORT"     envDefault:"stdio"`
	HTTPAddr     string   `env:"RECORDKEEP_MCP_HTTP_ADDR"     envDefault:"localhost:8096"`
	Identity     string   `env:"RECORDKEEP_MCP_IDENTITY"`
	AllowedHosts []string `env:"RECORDKEEP_MCP_ALLOWED_HOSTS" envSeparator:","`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Identity, "identity", cfg.Identity, "Caller identity for the stdio session")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run opens the registry storage and serves MCP until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRegistryMCP, func(ctx context.Context) error {
		storageCfg, err := server.LoadStorageConfig()
		if err != nil {
			return err
		}
		registry, err := server.OpenRegistry(ctx, storageCfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := registry.Close(); err != nil {
				log.Printf("close registry store: %v", err)
			}
		}()
		return mcpapi.Run(ctx, registry, mcpapi.Config{
			Transport:    mcpapi.TransportKind(cfg.Transport),
			HTTPAddr:     cfg.HTTPAddr,
			Identity:     cfg.Identity,
			AllowedHosts: cfg.AllowedHosts,
		})
	})
}
