// Package main runs the registry client CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/recordkeep/internal/cmd/registryctl"
	"github.com/louisbranch/recordkeep/internal/platform/config"
)

func main() {
	cfg, err := registryctl.LoadConfig()
	if err != nil {
		config.Exitf("load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := registryctl.NewRootCommand(cfg, os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
