package registrymcp

import (
	"flag"
	"slices"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("registry-mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Transport != "stdio" {
		t.Fatalf("expected default transport stdio, got %q", cfg.Transport)
	}
	if cfg.HTTPAddr != "localhost:8096" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Identity != "" {
		t.Fatalf("expected empty identity, got %q", cfg.Identity)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("RECORDKEEP_MCP_IDENTITY", "env-identity")
	t.Setenv("RECORDKEEP_MCP_ALLOWED_HOSTS", "registry.internal,mcp.internal")
	fs := flag.NewFlagSet("registry-mcp", flag.ContinueOnError)
	args := []string{"-transport", "http", "-http-addr", "0.0.0.0:9000", "-identity", "flag-identity"}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Transport != "http" || cfg.HTTPAddr != "0.0.0.0:9000" {
		t.Fatalf("unexpected transport config: %+v", cfg)
	}
	if cfg.Identity != "flag-identity" {
		t.Fatalf("expected flag identity, got %q", cfg.Identity)
	}
	if !slices.Equal(cfg.AllowedHosts, []string{"registry.internal", "mcp.internal"}) {
		t.Fatalf("allowed hosts = %v", cfg.AllowedHosts)
	}
}
