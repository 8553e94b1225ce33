package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/paywire/paywire/internal/services/ledger/account"
	"github.com/paywire/paywire/internal/services/ledger/storage"
	"github.com/paywire/paywire/internal/services/ledger/user"
)

const userColumns = `id, email, first_name, last_name, password_hash, created_at, updated_at`

// GetUser fetches a user record by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (user.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return user.User{}, storage.ErrNotFound
	}
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// GetUserByEmail fetches a user record by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if strings.TrimSpace(email) == "" {
		return user.User{}, storage.ErrNotFound
	}
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// CreateUserWithAccount inserts the user and the account in one transaction.
func (s *Store) CreateUserWithAccount(ctx context.Context, u user.User, a account.Account) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if a.OwnerID != u.ID {
		return fmt.Errorf("account owner %q does not match user %q", a.OwnerID, u.ID)
	}
	if a.Balance.IsNegative() {
		return storage.ErrNegativeBalance
	}
	balanceCents, err := a.Balance.Cents()
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO users (id, email, first_name, last_name, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash, toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
INSERT INTO accounts (owner_id, balance_cents, created_at, updated_at)
VALUES ($1, $2, $3, $4)`,
			a.OwnerID, balanceCents, toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
		)
		return err
	})
	if err == nil {
		return nil
	}
	if isEmailConflict(err) {
		return storage.ErrEmailTaken
	}
	return classifyError("create user", err)
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	var createdAt, updatedAt int64
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, storage.ErrNotFound
	}
	if err != nil {
		return user.User{}, classifyError("scan user", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}
