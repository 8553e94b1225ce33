package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/paywire/paywire/internal/platform/logging"
	"github.com/paywire/paywire/internal/services/ledger/account"
	"github.com/paywire/paywire/internal/services/ledger/auth"
	"github.com/paywire/paywire/internal/services/ledger/transfer"
)

// Identity is the auth surface the handlers call.
type Identity interface {
	SignUp(ctx context.Context, input auth.SignUpInput) (auth.SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (string, error)
	Authenticate(ctx context.Context, token string) (string, error)
}

// Transferer applies transfer intents.
type Transferer interface {
	Transfer(ctx context.Context, intent transfer.Intent) error
}

// AccountReader reads committed balances.
type AccountReader interface {
	GetAccount(ctx context.Context, ownerID string) (account.Account, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires handler dependencies.
type Config struct {
	Identity  Identity
	Transfers Transferer
	Accounts  AccountReader
	Health    Pinger
	Logger    *logging.Logger
}

// Server hosts the ledger HTTP routes.
type Server struct {
	identity  Identity
	transfers Transferer
	accounts  AccountReader
	health    Pinger
	logger    *logging.Logger
	validate  *validator.Validate
}

// NewServer validates cfg and builds a Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Identity == nil {
		return nil, fmt.Errorf("identity service is required")
	}
	if cfg.Transfers == nil {
		return nil, fmt.Errorf("transfer engine is required")
	}
	if cfg.Accounts == nil {
		return nil, fmt.Errorf("account reader is required")
	}
	return &Server{
		identity:  cfg.Identity,
		transfers: cfg.Transfers,
		accounts:  cfg.Accounts,
		health:    cfg.Health,
		logger:    cfg.Logger,
		validate:  newValidator(),
	}, nil
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return withRequestID(withRequestLog(s.logger, withRecovery(s.logger, withCORS(mux))))
}

// RegisterRoutes registers ledger endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("POST /api/v1/user/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/v1/user/signin", s.handleSignIn)
	mux.Handle("GET /api/v1/account/balance", s.requireBearer(http.HandlerFunc(s.handleBalance)))
	mux.Handle("POST /api/v1/account/transfer", s.requireBearer(http.HandlerFunc(s.handleTransfer)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
}
