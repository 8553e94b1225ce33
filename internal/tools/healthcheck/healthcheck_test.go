package healthcheck

import (
	"context"
	"flag"
	"net"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"

	platformgrpc "github.com/paywire/paywire/internal/platform/grpc"
	"github.com/paywire/paywire/internal/platform/timeouts"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("healthcheck", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "localhost:8091" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.Service != "paywire.ledger" {
		t.Fatalf("expected default service, got %q", cfg.Service)
	}
	if cfg.Timeout != timeouts.GRPCDial {
		t.Fatalf("expected default timeout %v, got %v", timeouts.GRPCDial, cfg.Timeout)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("PAYWIRE_HEALTHCHECK_ADDR", "env-addr:1")
	t.Setenv("PAYWIRE_HEALTHCHECK_TIMEOUT", "7s")

	fs := flag.NewFlagSet("healthcheck", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", "flag-addr:2", "-service", ""})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "flag-addr:2" {
		t.Fatalf("expected flag addr, got %q", cfg.Addr)
	}
	if cfg.Service != "" {
		t.Fatalf("expected overall service, got %q", cfg.Service)
	}
	if cfg.Timeout != 7*time.Second {
		t.Fatalf("expected env timeout, got %v", cfg.Timeout)
	}
}

func TestRunServingAndNotServing(t *testing.T) {
	t.Setenv("PAYWIRE_OTEL_ENABLED", "false")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := gogrpc.NewServer()
	reporter := platformgrpc.NewReporter("paywire.ledger")
	reporter.Register(server)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	cfg := Config{Addr: listener.Addr().String(), Service: "paywire.ledger", Timeout: 300 * time.Millisecond}
	if err := Run(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected failure while NOT_SERVING")
	}

	reporter.SetServing(true)
	cfg.Timeout = 2 * time.Second
	if err := Run(context.Background(), cfg, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunRejectsZeroTimeout(t *testing.T) {
	if err := Run(context.Background(), Config{Addr: "localhost:1"}, nil); err == nil {
		t.Fatal("expected error for zero timeout")
	}
}
