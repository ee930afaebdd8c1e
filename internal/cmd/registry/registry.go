// Package registry parses registry service flags and launches the service.
package registry

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/recordkeep/internal/platform/cmd"
	server "github.com/louisbranch/recordkeep/internal/services/registry/app"
)

// Config holds registry command configuration.
type Config struct {
	Port int `env:"RECORDKEEP_REGISTRY_PORT" envDefault:"8095"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The registry gRPC server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the registry gRPC API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRegistry, func(ctx context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
