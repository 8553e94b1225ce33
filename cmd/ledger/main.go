// Package main starts the ledger service process lifecycle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	ledgercmd "github.com/paywire/paywire/internal/cmd/ledger"
	"github.com/paywire/paywire/internal/platform/config"
)

func main() {
	cfg, err := ledgercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// Run has already logged the failure.
	err = ledgercmd.Run(ctx, cfg)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
