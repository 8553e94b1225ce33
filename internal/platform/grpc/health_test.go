package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func startReporter(t *testing.T, services ...string) (string, *Reporter) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := gogrpc.NewServer(ServerOptions()...)
	reporter := NewReporter(services...)
	reporter.Register(server)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	t.Cleanup(func() {
		server.GracefulStop()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
		}
	})
	return listener.Addr().String(), reporter
}

func dial(t *testing.T, addr string) *gogrpc.ClientConn {
	t.Helper()

	conn, err := gogrpc.NewClient(addr, gogrpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestReporterStartsNotServing(t *testing.T) {
	addr, _ := startReporter(t, "ledger")
	conn := dial(t, addr)

	for _, service := range []string{"", "ledger"} {
		resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("check %q: %v", service, err)
		}
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
			t.Fatalf("status %q = %s, want NOT_SERVING", service, resp.GetStatus())
		}
	}
}

func TestWaitForServingAfterTransition(t *testing.T) {
	addr, reporter := startReporter(t, "ledger")
	conn := dial(t, addr)

	go func() {
		time.Sleep(200 * time.Millisecond)
		reporter.SetServing(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := WaitForServing(ctx, conn, "ledger", nil); err != nil {
		t.Fatalf("wait for serving: %v", err)
	}
}

func TestWaitForServingRespectsContext(t *testing.T) {
	addr, _ := startReporter(t)
	conn := dial(t, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := WaitForServing(ctx, conn, "", nil); err == nil {
		t.Fatal("expected context error")
	}
}

func TestWaitForServingRequiresConn(t *testing.T) {
	if err := WaitForServing(context.Background(), nil, "", nil); err == nil {
		t.Fatal("expected error for nil connection")
	}
}

func TestReporterShutdownSticks(t *testing.T) {
	addr, reporter := startReporter(t)
	conn := dial(t, addr)

	reporter.Shutdown()
	reporter.SetServing(true)

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %s, want NOT_SERVING", resp.GetStatus())
	}
}
