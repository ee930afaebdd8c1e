package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/recordkeep/internal/platform/config"
	"github.com/louisbranch/recordkeep/internal/services/registry/core"
	"github.com/louisbranch/recordkeep/internal/services/registry/storage"
	regbbolt "github.com/louisbranch/recordkeep/internal/services/registry/storage/bbolt"
	"github.com/louisbranch/recordkeep/internal/services/registry/storage/memory"
	regsqlite "github.com/louisbranch/recordkeep/internal/services/registry/storage/sqlite"
)

// Storage engines.
const (
	EngineSQLite = "sqlite"
	EngineBBolt  = "bbolt"
	EngineMemory = "memory"
)

// StorageConfig selects and configures the registry storage engine.
type StorageConfig struct {
	Engine            string        `env:"RECORDKEEP_REGISTRY_STORAGE"   envDefault:"sqlite"`
	DBPath            string        `env:"RECORDKEEP_REGISTRY_DB_PATH"`
	ProtocolAuthority string        `env:"RECORDKEEP_PROTOCOL_AUTHORITY"`
	CacheTTL          time.Duration `env:"RECORDKEEP_REGISTRY_CACHE_TTL" envDefault:"1m"`
}

// LoadStorageConfig reads StorageConfig from the environment.
func LoadStorageConfig() (StorageConfig, error) {
	var cfg StorageConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return StorageConfig{}, err
	}
	return cfg, nil
}

func (c StorageConfig) dbPath() string {
	if path := strings.TrimSpace(c.DBPath); path != "" {
		return path
	}
	if c.engine() == EngineBBolt {
		return filepath.Join("data", "registry.bolt")
	}
	return filepath.Join("data", "registry.db")
}

func (c StorageConfig) engine() string {
	engine := strings.ToLower(strings.TrimSpace(c.Engine))
	if engine == "" {
		return EngineSQLite
	}
	return engine
}

// OpenRegistry opens the configured storage engine and loads a registry
// over it. The registry owns the store.
func OpenRegistry(ctx context.Context, cfg StorageConfig) (*core.Registry, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	registry, err := core.New(ctx, store, core.Options{
		ProtocolAuthority: strings.TrimSpace(cfg.ProtocolAuthority),
		CacheTTL:          cfg.CacheTTL,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return registry, nil
}

func openStore(ctx context.Context, cfg StorageConfig) (storage.Store, error) {
	engine := cfg.engine()
	if engine == EngineMemory {
		return memory.New(), nil
	}
	if engine != EngineSQLite && engine != EngineBBolt {
		return nil, fmt.Errorf("storage engine %q is not supported", cfg.Engine)
	}

	path := cfg.dbPath()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	switch engine {
	case EngineBBolt:
		store, err := regbbolt.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open registry bbolt store: %w", err)
		}
		return store, nil
	default:
		store, err := regsqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open registry sqlite store: %w", err)
		}
		return store, nil
	}
}
