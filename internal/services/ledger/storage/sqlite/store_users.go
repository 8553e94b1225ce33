package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	return scanUser(row)
}

// GetUserByEmail fetches a user record by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if strings.TrimSpace(email) == "" {
		return user.User{}, storage.ErrNotFound
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
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

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return classifyError("begin signup", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO users (id, email, first_name, last_name, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash, toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	); err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "users.email") {
			return storage.ErrEmailTaken
		}
		return classifyError("insert user", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO accounts (owner_id, balance_cents, created_at, updated_at)
VALUES (?, ?, ?, ?)`,
		a.OwnerID, balanceCents, toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	); err != nil {
		return classifyError("insert account", err)
	}

	if err := tx.Commit(); err != nil {
		return classifyError("commit signup", err)
	}
	return nil
}

func scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	var createdAt, updatedAt int64
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, storage.ErrNotFound
	}
	if err != nil {
		return user.User{}, classifyError("scan user", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}
