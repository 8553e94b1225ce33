// Package grpc holds the ops gRPC plumbing shared by the ledger binaries: a
// health reporter for the server side and a readiness probe for clients.
package grpc

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	initialProbeBackoff = 200 * time.Millisecond
	maxProbeBackoff     = time.Second
	probeCallTimeout    = time.Second
)

// Reporter publishes a single serving status under the overall ("") health
// name and every named service it was built with.
type Reporter struct {
	server   *health.Server
	services []string
}

// NewReporter returns a reporter that starts NOT_SERVING.
func NewReporter(services ...string) *Reporter {
	names := []string{""}
	for _, name := range services {
		name = strings.TrimSpace(name)
		if name != "" && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	r := &Reporter{server: health.NewServer(), services: names}
	r.SetServing(false)
	return r
}

// Register exposes the health service on registrar.
func (r *Reporter) Register(registrar gogrpc.ServiceRegistrar) {
	grpc_health_v1.RegisterHealthServer(registrar, r.server)
}

// SetServing flips every reported name between SERVING and NOT_SERVING.
func (r *Reporter) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	for _, name := range r.services {
		r.server.SetServingStatus(name, status)
	}
}

// Shutdown reports NOT_SERVING permanently; later SetServing calls are
// ignored.
func (r *Reporter) Shutdown() {
	r.server.Shutdown()
}

// WaitForServing polls the health service on conn until service reports
// SERVING or ctx ends.
func WaitForServing(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}

	client := grpc_health_v1.NewHealthClient(conn)
	backoff := initialProbeBackoff
	for {
		callCtx, cancel := context.WithTimeout(ctx, probeCallTimeout)
		response, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil && response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("waiting for gRPC health: %v", err)
			} else {
				logf("waiting for gRPC health: status %s", response.GetStatus())
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxProbeBackoff)
	}
}
