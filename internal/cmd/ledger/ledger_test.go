package ledger

import (
	"context"
	"flag"
	"math"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/paywire/paywire/internal/platform/logging"
	server "github.com/paywire/paywire/internal/services/ledger/app"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Fatalf("expected default http addr :3000, got %q", cfg.HTTPAddr)
	}
	if cfg.GRPCPort != 8091 {
		t.Fatalf("expected default grpc port 8091, got %d", cfg.GRPCPort)
	}
	if cfg.Store != "sqlite" || cfg.DBPath != "data/ledger.db" {
		t.Fatalf("unexpected store defaults: %q %q", cfg.Store, cfg.DBPath)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("expected default token ttl 24h, got %v", cfg.TokenTTL)
	}
	if cfg.SeedMin != 1 || cfg.SeedMax != 10000 {
		t.Fatalf("unexpected seed range [%d, %d]", cfg.SeedMin, cfg.SeedMax)
	}
	if cfg.Logging.Environment != "production" {
		t.Fatalf("expected production logging, got %q", cfg.Logging.Environment)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("PAYWIRE_HTTP_ADDR", "env-http")
	t.Setenv("PAYWIRE_STORE", "postgres")
	t.Setenv("PAYWIRE_TOKEN_TTL", "15m")
	t.Setenv("PAYWIRE_LOG_LEVEL", "debug")

	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-http-addr", "flag-http", "-grpc-port", "0", "-store", "memory"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-http" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.GRPCPort != 0 {
		t.Fatalf("expected grpc port 0, got %d", cfg.GRPCPort)
	}
	if cfg.Store != "memory" {
		t.Fatalf("expected flag store, got %q", cfg.Store)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Fatalf("expected env token ttl, got %v", cfg.TokenTTL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env log level, got %q", cfg.Logging.Level)
	}
}

func TestParseConfigRejectsBadEnv(t *testing.T) {
	t.Setenv("PAYWIRE_GRPC_PORT", "not-a-number")

	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{Store: "memory", TokenSecret: strings.Repeat("a", 32), SeedMin: 1, SeedMax: 10}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "short secret", mutate: func(c *Config) { c.TokenSecret = "short" }, wantErr: true},
		{name: "inverted seed", mutate: func(c *Config) { c.SeedMin, c.SeedMax = 10, 1 }, wantErr: true},
		{name: "seed beyond storable range", mutate: func(c *Config) { c.SeedMax = 100_000_000_000_000_000 }, wantErr: true},
		{name: "seed max int64", mutate: func(c *Config) { c.SeedMin, c.SeedMax = 0, math.MaxInt64 }, wantErr: true},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "mongo" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store = "postgres" }, wantErr: true},
		{name: "postgres with dsn", mutate: func(c *Config) { c.Store = "postgres"; c.PostgresDSN = "postgres://localhost/ledger" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig(t *testing.T) {
	cfg := Config{
		HTTPAddr:    ":3000",
		GRPCPort:    8091,
		Store:       "sqlite",
		DBPath:      "data/ledger.db",
		TokenSecret: " " + strings.Repeat("a", 32) + " ",
		TokenTTL:    time.Hour,
		MaxConns:    16,
		SeedMin:     1,
		SeedMax:     5,
	}
	got := cfg.serverConfig(nil)
	if got.GRPCAddr != ":8091" {
		t.Fatalf("grpc addr = %q, want :8091", got.GRPCAddr)
	}
	if got.Store.Kind != server.StoreSQLite || got.Store.Path != "data/ledger.db" {
		t.Fatalf("store config = %+v", got.Store)
	}
	if string(got.Token.Secret) != strings.Repeat("a", 32) {
		t.Fatalf("token secret not trimmed: %q", got.Token.Secret)
	}
	if got.Seeder.MaxUnits != 5 || got.MaxConns != 16 {
		t.Fatalf("unexpected server config %+v", got)
	}

	cfg.GRPCPort = 0
	if got := cfg.serverConfig(nil); got.GRPCAddr != "" {
		t.Fatalf("grpc addr = %q, want disabled", got.GRPCAddr)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	if err := Run(context.Background(), Config{Store: "memory"}); err == nil {
		t.Fatal("expected error for missing token secret")
	}
}

func TestRunLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := logging.FromZap(zap.New(core))

	err := run(context.Background(), Config{Store: "memory"}, logger)
	if err == nil {
		t.Fatal("expected error for missing token secret")
	}

	entries := logs.FilterMessage("ledger stopped").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 failure entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("level = %s, want error", entries[0].Level)
	}
	logged, _ := entries[0].ContextMap()["error"].(string)
	if !strings.Contains(logged, "PAYWIRE_TOKEN_SECRET") {
		t.Fatalf("logged error = %q", logged)
	}
}
