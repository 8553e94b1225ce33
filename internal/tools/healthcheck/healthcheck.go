// Package healthcheck probes the ledger's ops gRPC endpoint and exits non-zero
// unless it reports SERVING. Container health probes run it.
package healthcheck

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/paywire/paywire/internal/platform/cmd"
	platformgrpc "github.com/paywire/paywire/internal/platform/grpc"
	"github.com/paywire/paywire/internal/platform/timeouts"
)

// Config holds healthcheck configuration.
type Config struct {
	Addr    string        `env:"PAYWIRE_HEALTHCHECK_ADDR"    envDefault:"localhost:8091"`
	Service string        `env:"PAYWIRE_HEALTHCHECK_SERVICE" envDefault:"paywire.ledger"`
	Timeout time.Duration `env:"PAYWIRE_HEALTHCHECK_TIMEOUT"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.GRPCDial
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The ops gRPC address to probe")
	fs.StringVar(&cfg.Service, "service", cfg.Service, "The health service name to check")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "How long to wait for SERVING")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run probes the endpoint and returns nil once it reports SERVING.
func Run(ctx context.Context, cfg Config, logf func(string, ...any)) error {
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceHealthcheck, func(ctx context.Context) error {
		return platformgrpc.Probe(ctx, cfg.Addr, cfg.Service, cfg.Timeout, logf)
	})
}
