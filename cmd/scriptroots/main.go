// Package main is the entry point for the scriptroots command.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/scriptroots/internal/cli"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Interrupts cancel the context so watch can flush ledgers before exit.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	info := cli.BuildInfo{Version: version, Commit: commit, Date: date}
	return cli.Execute(ctx, info, os.Args[1:], os.Stdout, os.Stderr)
}
