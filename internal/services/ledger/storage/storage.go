// Package storage defines the persistence contracts of the ledger: the
// identity store, the account store and the transactional unit of work
// through which every balance mutation flows.
package storage

import (
	"context"
	"errors"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
	"github.com/paywire/paywire/internal/services/ledger/account"
	"github.com/paywire/paywire/internal/services/ledger/money"
	"github.com/paywire/paywire/internal/services/ledger/user"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
	// ErrEmailTaken indicates a user with the same email already exists.
	ErrEmailTaken = apperrors.New(apperrors.CodeEmailTaken, "email already registered")
	// ErrNotLocked indicates a mutation on an account the unit of work has
	// not locked.
	ErrNotLocked = errors.New("account not locked in this unit of work")
	// ErrAlreadyLocked indicates a second LockAccounts call in one unit of
	// work, which would break the global lock order.
	ErrAlreadyLocked = errors.New("accounts already locked in this unit of work")
	// ErrNegativeBalance is returned by AdjustBalance when the delta would
	// overdraw the account.
	ErrNegativeBalance = apperrors.New(apperrors.CodeInsufficientBalance, "adjustment would make balance negative")
)

// UserStore persists identity records.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
}

// SignupStore creates an identity and its account as one atomic write.
type SignupStore interface {
	// CreateUserWithAccount returns ErrEmailTaken when the email exists; in
	// that case neither record is written.
	CreateUserWithAccount(ctx context.Context, u user.User, a account.Account) error
}

// AccountStore reads committed account state. It has no mutation methods:
// balances change only through AccountTx.
type AccountStore interface {
	GetAccount(ctx context.Context, ownerID string) (account.Account, error)
}

// AccountTx is the transactional handle passed to a unit of work.
type AccountTx interface {
	// LockAccounts reads the given accounts and holds them exclusively until
	// the unit of work ends. Rows are locked in ascending owner order;
	// duplicate IDs are collapsed and missing owners are absent from the
	// result. It may be called once per unit of work.
	LockAccounts(ctx context.Context, ownerIDs ...string) (map[string]account.Account, error)
	// AdjustBalance adds delta to a locked account and returns its new
	// state. It fails with ErrNegativeBalance rather than overdraw.
	AdjustBalance(ctx context.Context, ownerID string, delta money.Amount) (account.Account, error)
}

// UnitOfWork runs fn inside a transaction. When fn returns nil the writes
// commit; otherwise they are discarded and fn's error is returned unchanged.
// Begin and commit failures surface as TRANSACTION_CONFLICT when the store
// reports contention and STORE_UNAVAILABLE otherwise.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx AccountTx) error) error
}

// Store is the full contract every backend implements.
type Store interface {
	UserStore
	SignupStore
	AccountStore
	UnitOfWork
	Ping(ctx context.Context) error
	Close() error
}
