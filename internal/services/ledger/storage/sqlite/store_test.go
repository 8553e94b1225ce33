package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
	"github.com/paywire/paywire/internal/platform/storage/sqlmigrate"
	"github.com/paywire/paywire/internal/services/ledger/money"
	"github.com/paywire/paywire/internal/services/ledger/storage"
	"github.com/paywire/paywire/internal/services/ledger/storage/storagetest"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openTempStore(t)
	})
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenReappliesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	storagetest.Seed(t, store, "alice", money.FromUnits(42))
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	if got := storagetest.Balance(t, reopened, "alice"); !got.Equal(money.FromUnits(42)) {
		t.Fatalf("balance = %s, want 42.00", got)
	}

	var applied int
	if err := reopened.DB().QueryRow("SELECT COUNT(*) FROM " + sqlmigrate.Table).Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied migrations = %d, want 1", applied)
	}
}

func TestBalanceCheckConstraint(t *testing.T) {
	store := openTempStore(t)
	storagetest.Seed(t, store, "alice", money.FromUnits(1))

	_, err := store.DB().Exec("UPDATE accounts SET balance_cents = -1 WHERE owner_id = ?", "alice")
	if err == nil {
		t.Fatal("expected negative balance to violate the check constraint")
	}
	if got := storagetest.Balance(t, store, "alice"); !got.Equal(money.FromUnits(1)) {
		t.Fatalf("balance = %s, want 1.00", got)
	}
}

func TestPingClosedStore(t *testing.T) {
	var store *Store
	err := store.Ping(context.Background())
	if !apperrors.HasCode(err, apperrors.CodeStoreUnavailable) {
		t.Fatalf("code = %s, want STORE_UNAVAILABLE", apperrors.CodeOf(err))
	}
}

func TestClassifyError(t *testing.T) {
	err := classifyError("op", errors.New("disk full"))
	if !apperrors.HasCode(err, apperrors.CodeStoreUnavailable) {
		t.Fatalf("code = %s, want STORE_UNAVAILABLE", apperrors.CodeOf(err))
	}
}
