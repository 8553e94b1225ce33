package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/paywire/paywire/internal/services/ledger/account"
	"github.com/paywire/paywire/internal/services/ledger/money"
	"github.com/paywire/paywire/internal/services/ledger/storage"
)

const accountColumns = `owner_id, balance_cents, created_at, updated_at`

// GetAccount reads the committed state of an account.
func (s *Store) GetAccount(ctx context.Context, ownerID string) (account.Account, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return account.Account{}, storage.ErrNotFound
	}
	return scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1`, ownerID))
}

func scanAccount(row pgx.Row) (account.Account, error) {
	var a account.Account
	var cents, createdAt, updatedAt int64
	err := row.Scan(&a.OwnerID, &cents, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
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

type accountTx struct {
	tx     pgx.Tx
	now    func() time.Time
	locked map[string]account.Account
}

// LockAccounts takes row locks one owner at a time in ascending order. A
// single multi-row FOR UPDATE would let the planner pick the lock order.
func (t *accountTx) LockAccounts(ctx context.Context, ownerIDs ...string) (map[string]account.Account, error) {
	if t.locked != nil {
		return nil, storage.ErrAlreadyLocked
	}
	t.locked = make(map[string]account.Account, len(ownerIDs))

	found := make(map[string]account.Account, len(ownerIDs))
	for _, ownerID := range storage.LockOrder(ownerIDs) {
		row := t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1 FOR UPDATE`, ownerID)
		a, err := scanAccount(row)
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
	updatedAt := t.now().UTC()

	if _, err := t.tx.Exec(ctx, `
UPDATE accounts
SET balance_cents = $1, updated_at = $2
WHERE owner_id = $3`,
		nextCents, toMillis(updatedAt), ownerID,
	); err != nil {
		return account.Account{}, classifyError("adjust balance", err)
	}

	current.Balance = next
	current.UpdatedAt = updatedAt
	t.locked[ownerID] = current
	return current, nil
}
