package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	gogrpc "google.golang.org/grpc"

	platformgrpc "github.com/paywire/paywire/internal/platform/grpc"
	"github.com/paywire/paywire/internal/platform/logging"
	"github.com/paywire/paywire/internal/platform/timeouts"
	"github.com/paywire/paywire/internal/services/ledger/account"
	"github.com/paywire/paywire/internal/services/ledger/api/httpapi"
	"github.com/paywire/paywire/internal/services/ledger/auth"
	"github.com/paywire/paywire/internal/services/ledger/storage"
	"github.com/paywire/paywire/internal/services/ledger/transfer"
)

// HealthService is the gRPC health name reported alongside the overall status.
const HealthService = "paywire.ledger"

const (
	defaultMaxConns      = 256
	defaultProbeInterval = 10 * time.Second
)

// Config holds everything New needs.
type Config struct {
	HTTPAddr string
	GRPCAddr string
	// MaxConns caps concurrently accepted HTTP connections.
	MaxConns int
	// ProbeInterval is how often the store is pinged to drive gRPC health.
	ProbeInterval time.Duration
	Store         StoreConfig
	Token         auth.TokenConfig
	Seeder        account.Seeder
	Logger        *logging.Logger
}

// Server hosts the ledger HTTP API and the ops gRPC health endpoint.
type Server struct {
	httpListener  net.Listener
	httpServer    *http.Server
	grpcListener  net.Listener
	grpcServer    *gogrpc.Server
	health        *platformgrpc.Reporter
	store         storage.Store
	logger        *logging.Logger
	probeInterval time.Duration
}

// New opens the store, builds the services and binds both listeners.
func New(ctx context.Context, cfg Config) (*Server, error) {
	tokens, err := auth.NewTokens(cfg.Token)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	identity, err := auth.NewService(store, tokens, auth.WithSeeder(cfg.Seeder), auth.WithLogger(cfg.Logger))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	engine, err := transfer.NewEngine(store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	api, err := httpapi.NewServer(httpapi.Config{
		Identity:  identity,
		Transfers: engine,
		Accounts:  store,
		Health:    store,
		Logger:    cfg.Logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}

	var grpcListener net.Listener
	if strings.TrimSpace(cfg.GRPCAddr) != "" {
		grpcListener, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			_ = httpListener.Close()
			_ = store.Close()
			return nil, fmt.Errorf("listen on grpc addr %s: %w", cfg.GRPCAddr, err)
		}
	}

	grpcServer := gogrpc.NewServer(platformgrpc.ServerOptions()...)
	reporter := platformgrpc.NewReporter(HealthService)
	reporter.Register(grpcServer)

	probeInterval := cfg.ProbeInterval
	if probeInterval <= 0 {
		probeInterval = defaultProbeInterval
	}

	return &Server{
		httpListener: netutil.LimitListener(httpListener, maxConns),
		httpServer: &http.Server{
			Handler:           api.Handler(),
			ReadHeaderTimeout: timeouts.ReadHeader,
			ErrorLog:          zap.NewStdLog(cfg.Logger.Zap()),
		},
		grpcListener:  grpcListener,
		grpcServer:    grpcServer,
		health:        reporter,
		store:         store,
		logger:        cfg.Logger,
		probeInterval: probeInterval,
	}, nil
}

// HTTPAddr returns the bound HTTP address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC address, or "" when gRPC is disabled.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves a ledger server until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve blocks until ctx ends or a listener fails, then shuts both servers
// down. In-flight requests get timeouts.Shutdown to finish.
func (s *Server) Serve(ctx context.Context) error {
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore()

	s.logger.Info(ctx, "ledger HTTP server listening", zap.String("addr", s.HTTPAddr()))
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()

	grpcErr := make(chan error, 1)
	if s.grpcListener != nil {
		s.logger.Info(ctx, "ledger gRPC health listening", zap.String("addr", s.GRPCAddr()))
		go func() {
			grpcErr <- s.grpcServer.Serve(s.grpcListener)
		}()
	}

	s.updateHealth(serverCtx)
	go s.watchStore(serverCtx)

	handleGRPCErr := func(err error) error {
		if err == nil || errors.Is(err, gogrpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
	shutdownGRPC := func() {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}
	shutdownHTTP := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(ctx, "http shutdown", zap.Error(err))
		}
	}

	select {
	case <-ctx.Done():
		shutdownGRPC()
		shutdownHTTP()
		if err := <-httpErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		if s.grpcListener != nil {
			return handleGRPCErr(<-grpcErr)
		}
		return nil
	case err := <-grpcErr:
		shutdownHTTP()
		<-httpErr
		return handleGRPCErr(err)
	case err := <-httpErr:
		shutdownGRPC()
		if s.grpcListener != nil {
			if handled := handleGRPCErr(<-grpcErr); handled != nil {
				return handled
			}
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// watchStore keeps gRPC health in step with store reachability.
func (s *Server) watchStore(ctx context.Context) {
	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateHealth(ctx)
		}
	}
}

func (s *Server) updateHealth(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, s.probeInterval)
	defer cancel()
	err := s.store.Ping(pingCtx)
	if err != nil && ctx.Err() == nil {
		s.logger.Warn(ctx, "store ping failed", zap.Error(err))
	}
	s.health.SetServing(err == nil)
}

func (s *Server) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(context.Background(), "close ledger store", zap.Error(err))
	}
}
