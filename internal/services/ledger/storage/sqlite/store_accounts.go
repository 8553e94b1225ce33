package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
	"github.com/paywire/paywire/internal/services/ledger/account"
	"github.com/paywire/paywire/internal/services/ledger/money"
	"github.com/paywire/paywire/internal/services/ledger/storage"
)

const selectAccountQuery = `
SELECT owner_id, balance_cents, created_at, updated_at
FROM accounts
WHERE owner_id = ?;
`

type rowScanner interface {
	Scan(dest ...any) error
}

// GetAccount reads the committed state of an account.
func (s *Store) GetAccount(ctx context.Context, ownerID string) (account.Account, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return account.Account{}, storage.ErrNotFound
	}
	return scanAccount(s.sqlDB.QueryRowContext(ctx, selectAccountQuery, ownerID))
}

func scanAccount(row rowScanner) (account.Account, error) {
	var a account.Account
	var cents, createdAt, updatedAt int64
	err := row.Scan(&a.OwnerID, &cents, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, storage.ErrNotFound
	}
	if err != nil {
		return account.Account{}, classifyError("scan account", err)
	}
	a.Balance = money.FromCents(cents)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

// accountTx is the AccountTx handed to units of work. The enclosing
// transaction already holds the database write lock.
type accountTx struct {
	tx     *sql.Tx
	now    func() time.Time
	locked map[string]account.Account
}

func (t *accountTx) LockAccounts(ctx context.Context, ownerIDs ...string) (map[string]account.Account, error) {
	if t.locked != nil {
		return nil, storage.ErrAlreadyLocked
	}
	t.locked = make(map[string]account.Account, len(ownerIDs))

	found := make(map[string]account.Account, len(ownerIDs))
	for _, ownerID := range storage.LockOrder(ownerIDs) {
		a, err := scanAccount(t.tx.QueryRowContext(ctx, selectAccountQuery, ownerID))
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		t.locked[ownerID] = a
		found[ownerID] = a
	}
	return found, nil
}

func (t *accountTx) AdjustBalance(ctx context.Context, ownerID string, delta money.Amount) (account.Account, error) {
	current, ok := t.locked[ownerID]
	if !ok {
		return account.Account{}, storage.ErrNotLocked
	}
	next := current.Balance.Add(delta)
	if next.IsNegative() {
		return account.Account{}, storage.ErrNegativeBalance
	}
	nextCents, err := next.Cents()
	if err != nil {
		return account.Account{}, err
	}
	currentCents, err := current.Balance.Cents()
	if err != nil {
		return account.Account{}, err
	}
	updatedAt := t.now().UTC()

	result, err := t.tx.ExecContext(ctx, `
UPDATE accounts
SET balance_cents = ?, updated_at = ?
WHERE owner_id = ? AND balance_cents = ?`,
		nextCents, toMillis(updatedAt), ownerID, currentCents,
	)
	if err != nil {
		return account.Account{}, classifyError("adjust balance", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return account.Account{}, classifyError("adjust balance", err)
	}
	if affected != 1 {
		return account.Account{}, apperrors.New(apperrors.CodeTransactionConflict,
			fmt.Sprintf("account %s changed inside the unit of work", ownerID))
	}

	current.Balance = next
	current.UpdatedAt = updatedAt
	t.locked[ownerID] = current
	return current, nil
}
