package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
	"github.com/paywire/paywire/internal/platform/id"
	"github.com/paywire/paywire/internal/platform/logging"
	"github.com/paywire/paywire/internal/services/ledger/account"
	"github.com/paywire/paywire/internal/services/ledger/storage"
	"github.com/paywire/paywire/internal/services/ledger/user"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72
)

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = apperrors.New(apperrors.CodeInvalidCredentials, "email or password does not match")
	// ErrInvalidPassword rejects passwords outside the accepted length.
	ErrInvalidPassword = apperrors.New(apperrors.CodeInvalidInput,
		fmt.Sprintf("password must be between %d and %d bytes", MinPasswordLength, MaxPasswordBytes))
)

// Store is the persistence the service needs.
type Store interface {
	storage.UserStore
	storage.SignupStore
}

// SignUpInput carries the signup form.
type SignUpInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// SignUpResult identifies the new user and carries their first token.
type SignUpResult struct {
	UserID string
	Token  string
}

// Service implements signup, signin and token authentication.
type Service struct {
	store     Store
	tokens    *Tokens
	seeder    account.Seeder
	hashCost  int
	now       func() time.Time
	idGen     func() (string, error)
	logger    *logging.Logger
	dummyHash []byte
}

// Option configures a Service.
type Option func(*Service)

// WithSeeder overrides the opening balance range.
func WithSeeder(seeder account.Seeder) Option {
	return func(s *Service) { s.seeder = seeder }
}

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// WithClock overrides the time source for records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides user ID generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		if gen != nil {
			s.idGen = gen
		}
	}
}

// WithLogger sets the logger for credential failures.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds a Service over store and tokens.
func NewService(store Store, tokens *Tokens, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("auth store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	s := &Service{
		store:    store,
		tokens:   tokens,
		seeder:   account.DefaultSeeder(),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		idGen:    id.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hashCost < bcrypt.MinCost || s.hashCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", s.hashCost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("paywire-unknown-user"), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

// SignUp creates a user and their account with a seeded opening balance,
// then issues a token. An existing email yields EMAIL_TAKEN and writes
// nothing.
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (SignUpResult, error) {
	if err := validatePassword(input.Password); err != nil {
		return SignUpResult{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := user.CreateUser(user.CreateUserInput{
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: string(hash),
	}, s.now, s.idGen)
	if err != nil {
		return SignUpResult{}, err
	}

	balance, err := s.seeder.Next()
	if err != nil {
		return SignUpResult{}, err
	}
	opened, err := account.New(created.ID, balance, created.CreatedAt)
	if err != nil {
		return SignUpResult{}, err
	}

	if err := s.store.CreateUserWithAccount(ctx, created, opened); err != nil {
		return SignUpResult{}, err
	}

	token, err := s.tokens.Issue(created.ID)
	if err != nil {
		return SignUpResult{}, err
	}
	s.logger.Info(ctx, "user signed up", zap.String("user_id", created.ID))
	return SignUpResult{UserID: created.ID, Token: token}, nil
}

// SignIn checks credentials and issues a token. Unknown emails and wrong
// passwords return the same error.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return "", err
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}

	found, err := s.store.GetUserByEmail(ctx, normalized)
	if errors.Is(err, storage.ErrNotFound) {
		// Keep the response time close to a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.logger.Info(ctx, "signin failed", zap.String("reason", "unknown_email"))
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password)); err != nil {
		s.logger.Info(ctx, "signin failed", zap.String("reason", "password_mismatch"), zap.String("user_id", found.ID))
		return "", ErrInvalidCredentials
	}

	return s.tokens.Issue(found.ID)
}

// Authenticate resolves a bearer token to a user ID.
func (s *Service) Authenticate(_ context.Context, token string) (string, error) {
	return s.tokens.Verify(token)
}

func validatePassword(password string) error {
	if strings.TrimSpace(password) == "" || len(password) < MinPasswordLength || len(password) > MaxPasswordBytes {
		return ErrInvalidPassword
	}
	return nil
}
