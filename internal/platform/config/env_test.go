package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port int `env:"RECORDKEEP_TEST_PORT" envDefault:"123"`
}

type prefixedTestConfig struct {
	Path string        `env:"DB_PATH" envDefault:"data/test.db"`
	TTL  time.Duration `env:"CACHE_TTL" envDefault:"1m"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("RECORDKEEP_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvPrefixedAddsSeparator(t *testing.T) {
	t.Setenv("RECORDKEEP_TESTSVC_DB_PATH", "/tmp/registry.db")
	t.Setenv("RECORDKEEP_TESTSVC_CACHE_TTL", "5s")

	var cfg prefixedTestConfig
	if err := ParseEnvPrefixed(&cfg, EnvPrefix+"TESTSVC"); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Path != "/tmp/registry.db" {
		t.Fatalf("path = %q, want /tmp/registry.db", cfg.Path)
	}
	if cfg.TTL != 5*time.Second {
		t.Fatalf("ttl = %v, want 5s", cfg.TTL)
	}
}

func TestParseEnvPrefixedDefaults(t *testing.T) {
	var cfg prefixedTestConfig
	if err := ParseEnvPrefixed(&cfg, "RECORDKEEP_UNSET_"); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Path != "data/test.db" || cfg.TTL != time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
