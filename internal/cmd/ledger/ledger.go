// Package ledger parses ledger service configuration and launches the service.
package ledger

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	entrypoint "github.com/paywire/paywire/internal/platform/cmd"
	"github.com/paywire/paywire/internal/platform/logging"
	"github.com/paywire/paywire/internal/services/ledger/account"
	server "github.com/paywire/paywire/internal/services/ledger/app"
	"github.com/paywire/paywire/internal/services/ledger/auth"
)

// Config holds ledger command configuration.
type Config struct {
	HTTPAddr    string        `env:"PAYWIRE_HTTP_ADDR"     envDefault:":3000"`
	GRPCPort    int           `env:"PAYWIRE_GRPC_PORT"     envDefault:"8091"`
	Store       string        `env:"PAYWIRE_STORE"         envDefault:"sqlite"`
	DBPath      string        `env:"PAYWIRE_DB_PATH"       envDefault:"data/ledger.db"`
	PostgresDSN string        `env:"PAYWIRE_POSTGRES_DSN"`
	TokenSecret string        `env:"PAYWIRE_TOKEN_SECRET"`
	TokenIssuer string        `env:"PAYWIRE_TOKEN_ISSUER"  envDefault:"paywire-ledger"`
	TokenTTL    time.Duration `env:"PAYWIRE_TOKEN_TTL"     envDefault:"24h"`
	MaxConns    int           `env:"PAYWIRE_MAX_CONNS"     envDefault:"256"`
	SeedMin     int64         `env:"PAYWIRE_SEED_MIN"      envDefault:"1"`
	SeedMax     int64         `env:"PAYWIRE_SEED_MAX"      envDefault:"10000"`

	Logging logging.Config
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The ledger HTTP server address")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The ops gRPC health port (0 disables)")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Storage backend: sqlite, postgres or memory")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(strings.TrimSpace(c.TokenSecret)) < auth.MinSecretBytes {
		return fmt.Errorf("PAYWIRE_TOKEN_SECRET must be at least %d bytes", auth.MinSecretBytes)
	}
	if err := (account.Seeder{MinUnits: c.SeedMin, MaxUnits: c.SeedMax}).Validate(); err != nil {
		return fmt.Errorf("PAYWIRE_SEED_MIN/PAYWIRE_SEED_MAX: %w", err)
	}
	switch server.StoreKind(c.Store) {
	case server.StoreSQLite, server.StoreMemory:
	case server.StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("PAYWIRE_POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	return nil
}

func (c Config) serverConfig(logger *logging.Logger) server.Config {
	grpcAddr := ""
	if c.GRPCPort > 0 {
		grpcAddr = fmt.Sprintf(":%d", c.GRPCPort)
	}
	return server.Config{
		HTTPAddr: c.HTTPAddr,
		GRPCAddr: grpcAddr,
		MaxConns: c.MaxConns,
		Store: server.StoreConfig{
			Kind:        server.StoreKind(c.Store),
			Path:        c.DBPath,
			PostgresDSN: c.PostgresDSN,
		},
		Token: auth.TokenConfig{
			Secret: []byte(strings.TrimSpace(c.TokenSecret)),
			Issuer: c.TokenIssuer,
			TTL:    c.TokenTTL,
		},
		Seeder: account.Seeder{MinUnits: c.SeedMin, MaxUnits: c.SeedMax},
		Logger: logger,
	}
}

// Run starts the ledger service. Every failure is written through the
// service logger before it is returned, so callers only set the exit status.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logger = logging.FromZap(zap.Must(zap.NewProduction()))
		defer func() { _ = logger.Sync() }()
		return reportFailure(ctx, logger, fmt.Errorf("init logging: %w", err))
	}
	defer func() { _ = logger.Sync() }()
	return run(ctx, cfg, logger)
}

func run(ctx context.Context, cfg Config, logger *logging.Logger) error {
	if err := cfg.validate(); err != nil {
		return reportFailure(ctx, logger, err)
	}

	logger.Info(ctx, "starting ledger", zap.String("store", cfg.Store), zap.String("http_addr", cfg.HTTPAddr))
	err := entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLedger, func(ctx context.Context) error {
		return server.Run(ctx, cfg.serverConfig(logger))
	})
	if err != nil {
		return reportFailure(ctx, logger, err)
	}
	return nil
}

func reportFailure(ctx context.Context, logger *logging.Logger, err error) error {
	logger.Error(ctx, "ledger stopped", zap.Error(err))
	return err
}
