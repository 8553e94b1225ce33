package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
	"github.com/paywire/paywire/internal/platform/storage/sqlmigrate"
	"github.com/paywire/paywire/internal/services/ledger/storage"
	"github.com/paywire/paywire/internal/services/ledger/storage/postgres/migrations"
)

// SQLSTATE codes the store reacts to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"

	emailConstraint   = "users_email_key"
	balanceConstraint = "accounts_balance_nonnegative"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements the ledger store over PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open connects to dsn, verifies the connection and applies bundled
// migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := sqlmigrate.Apply(ctx, migrationRunner{pool: pool}, migrations.FS, ""); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{pool: pool, now: time.Now}, nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return apperrors.New(apperrors.CodeStoreUnavailable, "postgres store is not open")
	}
	if err := s.pool.Ping(ctx); err != nil {
		return classifyError("ping postgres", err)
	}
	return nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// WithinTx runs fn inside a READ COMMITTED transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.AccountTx) error) error {
	if fn == nil {
		return fmt.Errorf("unit of work function is required")
	}
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classifyError("begin unit of work", err)
	}
	defer func() { _ = pgTx.Rollback(context.WithoutCancel(ctx)) }()

	unit := &accountTx{tx: pgTx, now: s.now}
	if err := fn(ctx, unit); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return classifyError("commit unit of work", err)
	}
	return nil
}

// classifyError maps driver failures onto ledger error kinds.
func classifyError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return apperrors.Wrap(apperrors.CodeTransactionConflict, op, err)
		case codeCheckViolation:
			if pgErr.ConstraintName == balanceConstraint {
				return storage.ErrNegativeBalance
			}
		}
	}
	return apperrors.Wrap(apperrors.CodeStoreUnavailable, op, err)
}

func isEmailConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == emailConstraint
}

type migrationRunner struct {
	pool *pgxpool.Pool
}

func (r migrationRunner) EnsureTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+sqlmigrate.Table+` (
    name TEXT PRIMARY KEY,
    applied_at BIGINT NOT NULL
);`)
	return err
}

func (r migrationRunner) IsApplied(ctx context.Context, name string) (bool, error) {
	var found int
	err := r.pool.QueryRow(ctx, "SELECT 1 FROM "+sqlmigrate.Table+" WHERE name = $1", name).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r migrationRunner) Apply(ctx context.Context, name string, upSQL string, appliedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, upSQL); err != nil && !sqlmigrate.IsAlreadyExistsError(err) {
		return err
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO "+sqlmigrate.Table+" (name, applied_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING",
		name, toMillis(appliedAt),
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit(ctx)
}
