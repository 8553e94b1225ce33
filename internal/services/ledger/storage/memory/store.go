// Package memory provides an in-process ledger store. Each account has its
// own mutex; units of work lock accounts in storage.LockOrder so transfers
// over disjoint pairs run in parallel and opposing transfers cannot deadlock.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paywire/paywire/internal/services/ledger/account"
	"github.com/paywire/paywire/internal/services/ledger/money"
	"github.com/paywire/paywire/internal/services/ledger/storage"
	"github.com/paywire/paywire/internal/services/ledger/user"
)

// Store keeps identities and balances in memory.
type Store struct {
	// mu guards the maps, not the balances inside account records.
	mu       sync.RWMutex
	users    map[string]user.User
	emails   map[string]string
	accounts map[string]*accountRecord
	now      func() time.Time
}

type accountRecord struct {
	mu      sync.Mutex
	account account.Account
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]user.User),
		emails:   make(map[string]string),
		accounts: make(map[string]*accountRecord),
		now:      time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// GetUser returns a user by ID.
func (s *Store) GetUser(_ context.Context, userID string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.TrimSpace(userID)]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

// GetUserByEmail returns a user by normalized email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.emails[email]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[userID], nil
}

// CreateUserWithAccount stores a user and its account together.
func (s *Store) CreateUserWithAccount(_ context.Context, u user.User, a account.Account) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if a.OwnerID != u.ID {
		return fmt.Errorf("account owner %q does not match user %q", a.OwnerID, u.ID)
	}
	if a.Balance.IsNegative() {
		return storage.ErrNegativeBalance
	}
	if !a.Balance.InRange() {
		return money.ErrAmountOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[u.Email]; ok {
		return storage.ErrEmailTaken
	}
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("user %s already exists", u.ID)
	}
	if _, ok := s.accounts[a.OwnerID]; ok {
		return fmt.Errorf("account %s already exists", a.OwnerID)
	}
	s.users[u.ID] = u
	s.emails[u.Email] = u.ID
	s.accounts[a.OwnerID] = &accountRecord{account: a}
	return nil
}

// GetAccount returns the committed state of an account. It waits for any
// unit of work holding the account, so it never observes a half-applied
// transfer.
func (s *Store) GetAccount(_ context.Context, ownerID string) (account.Account, error) {
	record, ok := s.record(ownerID)
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}
	record.mu.Lock()
	defer record.mu.Unlock()
	return record.account, nil
}

func (s *Store) record(ownerID string) (*accountRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.accounts[strings.TrimSpace(ownerID)]
	return record, ok
}

// WithinTx runs fn with exclusive access to the accounts it locks. Pending
// balances become visible only after fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.AccountTx) error) error {
	if fn == nil {
		return fmt.Errorf("unit of work function is required")
	}
	unit := &unitOfWork{
		store:   s,
		records: make(map[string]*accountRecord),
		pending: make(map[string]account.Account),
	}
	defer unit.release()

	if err := fn(ctx, unit); err != nil {
		return err
	}
	unit.commit()
	return nil
}

type unitOfWork struct {
	store   *Store
	order   []string
	records map[string]*accountRecord
	pending map[string]account.Account
	locked  bool
}

func (u *unitOfWork) LockAccounts(_ context.Context, ownerIDs ...string) (map[string]account.Account, error) {
	if u.locked {
		return nil, storage.ErrAlreadyLocked
	}
	u.locked = true

	found := make(map[string]account.Account, len(ownerIDs))
	for _, ownerID := range storage.LockOrder(ownerIDs) {
		record, ok := u.store.record(ownerID)
		if !ok {
			continue
		}
		record.mu.Lock()
		u.order = append(u.order, ownerID)
		u.records[ownerID] = record
		u.pending[ownerID] = record.account
		found[ownerID] = record.account
	}
	return found, nil
}

func (u *unitOfWork) AdjustBalance(_ context.Context, ownerID string, delta money.Amount) (account.Account, error) {
	current, ok := u.pending[ownerID]
	if !ok {
		return account.Account{}, storage.ErrNotLocked
	}
	next := current.Balance.Add(delta)
	if next.IsNegative() {
		return account.Account{}, storage.ErrNegativeBalance
	}
	if !next.InRange() {
		return account.Account{}, money.ErrAmountOutOfRange
	}
	current.Balance = next
	current.UpdatedAt = u.store.now().UTC()
	u.pending[ownerID] = current
	return current, nil
}

func (u *unitOfWork) commit() {
	for ownerID, record := range u.records {
		record.account = u.pending[ownerID]
	}
}

func (u *unitOfWork) release() {
	for i := len(u.order) - 1; i >= 0; i-- {
		u.records[u.order[i]].mu.Unlock()
	}
	u.order = nil
}
