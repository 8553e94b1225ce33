// Package storagetest holds the behavior every ledger store backend must
// share. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
	"github.com/paywire/paywire/internal/services/ledger/account"
	"github.com/paywire/paywire/internal/services/ledger/money"
	"github.com/paywire/paywire/internal/services/ledger/storage"
	"github.com/paywire/paywire/internal/services/ledger/transfer"
	"github.com/paywire/paywire/internal/services/ledger/user"
)

// Factory opens an empty store. Cleanup is the factory's responsibility.
type Factory func(t *testing.T) storage.Store

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Seed creates a user with an account holding balance and returns the user.
func Seed(t *testing.T, store storage.Store, userID string, balance money.Amount) user.User {
	t.Helper()

	u := user.User{
		ID:           userID,
		Email:        userID + "@example.com",
		FirstName:    "Test",
		LastName:     userID,
		PasswordHash: "hash",
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}
	a, err := account.New(userID, balance, fixedNow)
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	if err := store.CreateUserWithAccount(context.Background(), u, a); err != nil {
		t.Fatalf("create user %s: %v", userID, err)
	}
	return u
}

// Balance returns the committed balance of ownerID.
func Balance(t *testing.T, store storage.AccountStore, ownerID string) money.Amount {
	t.Helper()

	a, err := store.GetAccount(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("get account %s: %v", ownerID, err)
	}
	return a.Balance
}

// Run exercises the storage contracts against stores built by open.
func Run(t *testing.T, open Factory) {
	t.Helper()

	t.Run("signup round trip", func(t *testing.T) {
		store := open(t)
		Seed(t, store, "alice", money.FromUnits(100))

		got, err := store.GetUser(context.Background(), "alice")
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if got.Email != "alice@example.com" || got.LastName != "alice" || got.PasswordHash != "hash" {
			t.Fatalf("user = %+v", got)
		}
		if !got.CreatedAt.Equal(fixedNow) {
			t.Fatalf("created at = %v, want %v", got.CreatedAt, fixedNow)
		}

		byEmail, err := store.GetUserByEmail(context.Background(), "alice@example.com")
		if err != nil {
			t.Fatalf("get user by email: %v", err)
		}
		if byEmail.ID != "alice" {
			t.Fatalf("user id = %q, want alice", byEmail.ID)
		}

		if balance := Balance(t, store, "alice"); !balance.Equal(money.FromUnits(100)) {
			t.Fatalf("balance = %s, want 100.00", balance)
		}
	})

	t.Run("duplicate email writes nothing", func(t *testing.T) {
		store := open(t)
		Seed(t, store, "alice", money.FromUnits(10))

		dup := user.User{
			ID:           "bob",
			Email:        "alice@example.com",
			FirstName:    "Bob",
			LastName:     "Dup",
			PasswordHash: "hash",
			CreatedAt:    fixedNow,
			UpdatedAt:    fixedNow,
		}
		a, err := account.New("bob", money.FromUnits(5), fixedNow)
		if err != nil {
			t.Fatalf("new account: %v", err)
		}
		err = store.CreateUserWithAccount(context.Background(), dup, a)
		if !errors.Is(err, storage.ErrEmailTaken) {
			t.Fatalf("error = %v, want ErrEmailTaken", err)
		}
		if _, err := store.GetUser(context.Background(), "bob"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get user error = %v, want ErrNotFound", err)
		}
		if _, err := store.GetAccount(context.Background(), "bob"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get account error = %v, want ErrNotFound", err)
		}
	})

	t.Run("missing records", func(t *testing.T) {
		store := open(t)
		if _, err := store.GetUser(context.Background(), "ghost"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get user error = %v, want ErrNotFound", err)
		}
		if _, err := store.GetUserByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get user by email error = %v, want ErrNotFound", err)
		}
		if _, err := store.GetAccount(context.Background(), "ghost"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get account error = %v, want ErrNotFound", err)
		}
	})

	t.Run("unit of work commits", func(t *testing.T) {
		store := open(t)
		Seed(t, store, "alice", money.FromUnits(100))
		Seed(t, store, "bob", money.FromUnits(20))

		err := store.WithinTx(context.Background(), func(ctx context.Context, tx storage.AccountTx) error {
			locked, err := tx.LockAccounts(ctx, "bob", "alice")
			if err != nil {
				return err
			}
			if len(locked) != 2 {
				return fmt.Errorf("locked %d accounts, want 2", len(locked))
			}
			updated, err := tx.AdjustBalance(ctx, "alice", money.FromCents(-1050))
			if err != nil {
				return err
			}
			if !updated.Balance.Equal(money.FromCents(8950)) {
				return fmt.Errorf("alice pending balance = %s", updated.Balance)
			}
			_, err = tx.AdjustBalance(ctx, "bob", money.FromCents(1050))
			return err
		})
		if err != nil {
			t.Fatalf("within tx: %v", err)
		}
		if got := Balance(t, store, "alice"); !got.Equal(money.FromCents(8950)) {
			t.Fatalf("alice = %s, want 89.50", got)
		}
		if got := Balance(t, store, "bob"); !got.Equal(money.FromCents(3050)) {
			t.Fatalf("bob = %s, want 30.50", got)
		}
	})

	t.Run("unit of work rolls back on error", func(t *testing.T) {
		store := open(t)
		Seed(t, store, "alice", money.FromUnits(100))

		boom := errors.New("boom")
		err := store.WithinTx(context.Background(), func(ctx context.Context, tx storage.AccountTx) error {
			if _, err := tx.LockAccounts(ctx, "alice"); err != nil {
				return err
			}
			if _, err := tx.AdjustBalance(ctx, "alice", money.FromUnits(-40)); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("error = %v, want boom", err)
		}
		if got := Balance(t, store, "alice"); !got.Equal(money.FromUnits(100)) {
			t.Fatalf("alice = %s, want 100.00", got)
		}
	})

	t.Run("lock collapses duplicates and skips missing", func(t *testing.T) {
		store := open(t)
		Seed(t, store, "alice", money.FromUnits(1))

		err := store.WithinTx(context.Background(), func(ctx context.Context, tx storage.AccountTx) error {
			locked, err := tx.LockAccounts(ctx, "alice", "alice", "ghost")
			if err != nil {
				return err
			}
			if len(locked) != 1 {
				return fmt.Errorf("locked = %v, want only alice", locked)
			}
			if _, ok := locked["alice"]; !ok {
				return fmt.Errorf("alice missing from %v", locked)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("within tx: %v", err)
		}
	})

	t.Run("lock may be taken once", func(t *testing.T) {
		store := open(t)
		Seed(t, store, "alice", money.FromUnits(1))

		err := store.WithinTx(context.Background(), func(ctx context.Context, tx storage.AccountTx) error {
			if _, err := tx.LockAccounts(ctx, "alice"); err != nil {
				return err
			}
			_, err := tx.LockAccounts(ctx, "alice")
			return err
		})
		if !errors.Is(err, storage.ErrAlreadyLocked) {
			t.Fatalf("error = %v, want ErrAlreadyLocked", err)
		}
	})

	t.Run("adjust requires lock", func(t *testing.T) {
		store := open(t)
		Seed(t, store, "alice", money.FromUnits(1))

		err := store.WithinTx(context.Background(), func(ctx context.Context, tx storage.AccountTx) error {
			_, err := tx.AdjustBalance(ctx, "alice", money.FromUnits(1))
			return err
		})
		if !errors.Is(err, storage.ErrNotLocked) {
			t.Fatalf("error = %v, want ErrNotLocked", err)
		}
		if got := Balance(t, store, "alice"); !got.Equal(money.FromUnits(1)) {
			t.Fatalf("alice = %s, want 1.00", got)
		}
	})

	t.Run("adjust refuses overdraft", func(t *testing.T) {
		store := open(t)
		Seed(t, store, "alice", money.FromUnits(5))

		err := store.WithinTx(context.Background(), func(ctx context.Context, tx storage.AccountTx) error {
			if _, err := tx.LockAccounts(ctx, "alice"); err != nil {
				return err
			}
			_, err := tx.AdjustBalance(ctx, "alice", money.FromCents(-501))
			return err
		})
		if !errors.Is(err, storage.ErrNegativeBalance) {
			t.Fatalf("error = %v, want ErrNegativeBalance", err)
		}
		if !apperrors.HasCode(err, apperrors.CodeInsufficientBalance) {
			t.Fatalf("code = %s, want INSUFFICIENT_BALANCE", apperrors.CodeOf(err))
		}
		if got := Balance(t, store, "alice"); !got.Equal(money.FromUnits(5)) {
			t.Fatalf("alice = %s, want 5.00", got)
		}
	})

	t.Run("transfers", func(t *testing.T) {
		RunTransfers(t, open)
	})
}

// RunTransfers drives the transfer engine against the backend, including the
// concurrent scenarios that only a real lock discipline can pass.
func RunTransfers(t *testing.T, open Factory) {
	t.Helper()

	t.Run("sequential scenario", func(t *testing.T) {
		store := open(t)
		engine := newEngine(t, store)
		Seed(t, store, "a", money.FromUnits(100))
		Seed(t, store, "b", money.Zero)

		if err := engine.Transfer(context.Background(), transfer.Intent{SenderID: "a", ReceiverID: "b", Amount: money.FromUnits(40)}); err != nil {
			t.Fatalf("first transfer: %v", err)
		}
		if got := Balance(t, store, "a"); !got.Equal(money.FromUnits(60)) {
			t.Fatalf("a = %s, want 60.00", got)
		}
		if got := Balance(t, store, "b"); !got.Equal(money.FromUnits(40)) {
			t.Fatalf("b = %s, want 40.00", got)
		}

		err := engine.Transfer(context.Background(), transfer.Intent{SenderID: "a", ReceiverID: "b", Amount: money.FromUnits(1000)})
		if !errors.Is(err, transfer.ErrInsufficientBalance) {
			t.Fatalf("second transfer error = %v, want insufficient balance", err)
		}
		if got := Balance(t, store, "a"); !got.Equal(money.FromUnits(60)) {
			t.Fatalf("a = %s, want 60.00", got)
		}
	})

	t.Run("unknown parties", func(t *testing.T) {
		store := open(t)
		engine := newEngine(t, store)
		Seed(t, store, "a", money.FromUnits(10))

		err := engine.Transfer(context.Background(), transfer.Intent{SenderID: "a", ReceiverID: "ghost", Amount: money.FromUnits(1)})
		if !errors.Is(err, transfer.ErrUnknownReceiver) {
			t.Fatalf("error = %v, want unknown receiver", err)
		}
		err = engine.Transfer(context.Background(), transfer.Intent{SenderID: "ghost", ReceiverID: "a", Amount: money.FromUnits(1)})
		if !errors.Is(err, transfer.ErrUnknownSender) {
			t.Fatalf("error = %v, want unknown sender", err)
		}
		if got := Balance(t, store, "a"); !got.Equal(money.FromUnits(10)) {
			t.Fatalf("a = %s, want 10.00", got)
		}
	})

	t.Run("concurrent drain", func(t *testing.T) {
		store := open(t)
		engine := newEngine(t, store)
		Seed(t, store, "a", money.FromUnits(100))
		Seed(t, store, "b", money.Zero)

		const attempts = 20
		results := runConcurrently(attempts, func(int) error {
			return engine.Transfer(context.Background(), transfer.Intent{SenderID: "a", ReceiverID: "b", Amount: money.FromUnits(10)})
		})

		succeeded, conflicts := 0, 0
		for _, err := range results {
			switch {
			case err == nil:
				succeeded++
			case apperrors.HasCode(err, apperrors.CodeTransactionConflict):
				conflicts++
			case errors.Is(err, transfer.ErrInsufficientBalance):
			default:
				t.Fatalf("unexpected transfer error: %v", err)
			}
		}
		if conflicts == 0 && succeeded != 10 {
			t.Fatalf("succeeded = %d, want 10", succeeded)
		}
		if succeeded > 10 {
			t.Fatalf("succeeded = %d, balance overdrawn", succeeded)
		}
		wantA := money.FromUnits(100 - int64(succeeded)*10)
		if got := Balance(t, store, "a"); !got.Equal(wantA) {
			t.Fatalf("a = %s, want %s", got, wantA)
		}
		wantB := money.FromUnits(int64(succeeded) * 10)
		if got := Balance(t, store, "b"); !got.Equal(wantB) {
			t.Fatalf("b = %s, want %s", got, wantB)
		}
	})

	t.Run("concurrent split to distinct receivers", func(t *testing.T) {
		store := open(t)
		engine := newEngine(t, store)
		Seed(t, store, "m", money.FromUnits(100))
		// Receivers sort on both sides of the sender.
		receivers := []string{"a0", "a1", "a2", "a3", "a4", "z0", "z1", "z2", "z3", "z4"}
		for _, id := range receivers {
			Seed(t, store, id, money.Zero)
		}
		share := money.FromUnits(100 / int64(len(receivers)))

		results := runConcurrently(len(receivers), func(i int) error {
			return transferRetrying(engine, transfer.Intent{SenderID: "m", ReceiverID: receivers[i], Amount: share})
		})
		for i, err := range results {
			if err != nil {
				t.Fatalf("transfer to %s: %v", receivers[i], err)
			}
		}
		if got := Balance(t, store, "m"); !got.IsZero() {
			t.Fatalf("m = %s, want 0.00", got)
		}
		for _, id := range receivers {
			if got := Balance(t, store, id); !got.Equal(share) {
				t.Fatalf("%s = %s, want %s", id, got, share)
			}
		}
	})

	t.Run("competing debits exactly one succeeds", func(t *testing.T) {
		store := open(t)
		engine := newEngine(t, store)
		Seed(t, store, "m", money.FromUnits(100))
		Seed(t, store, "a", money.Zero)
		Seed(t, store, "z", money.Zero)
		receivers := []string{"a", "z"}

		results := runConcurrently(len(receivers), func(i int) error {
			return engine.Transfer(context.Background(), transfer.Intent{SenderID: "m", ReceiverID: receivers[i], Amount: money.FromUnits(60)})
		})

		succeeded := 0
		for _, err := range results {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, transfer.ErrInsufficientBalance),
				apperrors.HasCode(err, apperrors.CodeTransactionConflict):
			default:
				t.Fatalf("unexpected transfer error: %v", err)
			}
		}
		if succeeded != 1 {
			t.Fatalf("succeeded = %d, want exactly 1 (results %v)", succeeded, results)
		}
		if got := Balance(t, store, "m"); !got.Equal(money.FromUnits(40)) {
			t.Fatalf("m = %s, want 40.00", got)
		}
		total := Balance(t, store, "a").Add(Balance(t, store, "z"))
		if !total.Equal(money.FromUnits(60)) {
			t.Fatalf("credited = %s, want 60.00", total)
		}
	})

	t.Run("opposing transfers conserve total", func(t *testing.T) {
		store := open(t)
		engine := newEngine(t, store)
		Seed(t, store, "a", money.FromUnits(50))
		Seed(t, store, "b", money.FromUnits(50))

		const attempts = 40
		results := runConcurrently(attempts, func(i int) error {
			intent := transfer.Intent{SenderID: "a", ReceiverID: "b", Amount: money.FromUnits(1)}
			if i%2 == 1 {
				intent.SenderID, intent.ReceiverID = "b", "a"
			}
			return engine.Transfer(context.Background(), intent)
		})
		for _, err := range results {
			if err != nil && !apperrors.HasCode(err, apperrors.CodeTransactionConflict) {
				t.Fatalf("unexpected transfer error: %v", err)
			}
		}

		total := Balance(t, store, "a").Add(Balance(t, store, "b"))
		if !total.Equal(money.FromUnits(100)) {
			t.Fatalf("total = %s, want 100.00", total)
		}
	})
}

func newEngine(t *testing.T, store storage.UnitOfWork) *transfer.Engine {
	t.Helper()

	engine, err := transfer.NewEngine(store)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

// transferRetrying retries conflicts the way a client honoring Retryable
// would, bounded so a livelock fails the test.
func transferRetrying(engine *transfer.Engine, intent transfer.Intent) error {
	const maxAttempts = 50
	var err error
	for range maxAttempts {
		err = engine.Transfer(context.Background(), intent)
		if err == nil || !apperrors.CodeOf(err).Retryable() {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	return err
}

func runConcurrently(n int, fn func(i int) error) []error {
	results := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i] = fn(i)
		}()
	}
	close(start)
	wg.Wait()
	return results
}
