// Package main probes the ledger's ops gRPC health endpoint.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/paywire/paywire/internal/platform/config"
	"github.com/paywire/paywire/internal/tools/healthcheck"
)

func main() {
	cfg, err := healthcheck.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[HEALTHCHECK] ")
	if err := healthcheck.Run(context.Background(), cfg, log.Printf); err != nil {
		config.Exitf("unhealthy: %v", err)
	}
}
