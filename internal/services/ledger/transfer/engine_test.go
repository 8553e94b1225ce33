package transfer_test

import (
	"context"
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
	"github.com/paywire/paywire/internal/services/ledger/money"
	"github.com/paywire/paywire/internal/services/ledger/storage"
	"github.com/paywire/paywire/internal/services/ledger/storage/memory"
	"github.com/paywire/paywire/internal/services/ledger/storage/storagetest"
	"github.com/paywire/paywire/internal/services/ledger/transfer"
)

func newTestEngine(t *testing.T, balances map[string]money.Amount) (*transfer.Engine, *memory.Store) {
	t.Helper()

	store := memory.New()
	for ownerID, balance := range balances {
		storagetest.Seed(t, store, ownerID, balance)
	}
	engine, err := transfer.NewEngine(store)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, store
}

func TestNewEngineRequiresUnitOfWork(t *testing.T) {
	if _, err := transfer.NewEngine(nil); err == nil {
		t.Fatal("expected error for nil unit of work")
	}
}

func TestTransferMovesFunds(t *testing.T) {
	engine, store := newTestEngine(t, map[string]money.Amount{
		"a": money.FromUnits(100),
		"b": money.Zero,
	})

	if err := engine.Transfer(context.Background(), transfer.Intent{SenderID: "a", ReceiverID: "b", Amount: money.FromCents(1234)}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := storagetest.Balance(t, store, "a"); !got.Equal(money.FromCents(8766)) {
		t.Fatalf("a = %s, want 87.66", got)
	}
	if got := storagetest.Balance(t, store, "b"); !got.Equal(money.FromCents(1234)) {
		t.Fatalf("b = %s, want 12.34", got)
	}
}

func TestTransferExactBalance(t *testing.T) {
	engine, store := newTestEngine(t, map[string]money.Amount{
		"a": money.FromUnits(25),
		"b": money.FromUnits(5),
	})

	if err := engine.Transfer(context.Background(), transfer.Intent{SenderID: "a", ReceiverID: "b", Amount: money.FromUnits(25)}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := storagetest.Balance(t, store, "a"); !got.IsZero() {
		t.Fatalf("a = %s, want 0.00", got)
	}
	if got := storagetest.Balance(t, store, "b"); !got.Equal(money.FromUnits(30)) {
		t.Fatalf("b = %s, want 30.00", got)
	}
}

func TestTransferToSelfKeepsBalance(t *testing.T) {
	engine, store := newTestEngine(t, map[string]money.Amount{"a": money.FromUnits(10)})

	if err := engine.Transfer(context.Background(), transfer.Intent{SenderID: "a", ReceiverID: "a", Amount: money.FromUnits(4)}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := storagetest.Balance(t, store, "a"); !got.Equal(money.FromUnits(10)) {
		t.Fatalf("a = %s, want 10.00", got)
	}

	err := engine.Transfer(context.Background(), transfer.Intent{SenderID: "a", ReceiverID: "a", Amount: money.FromUnits(11)})
	if !errors.Is(err, transfer.ErrInsufficientBalance) {
		t.Fatalf("error = %v, want insufficient balance", err)
	}
}

func TestTransferValidationOrder(t *testing.T) {
	tests := []struct {
		name   string
		intent transfer.Intent
		want   apperrors.Code
	}{
		{
			name:   "zero amount beats unknown parties",
			intent: transfer.Intent{SenderID: "ghost", ReceiverID: "nobody", Amount: money.Zero},
			want:   apperrors.CodeInvalidAmount,
		},
		{
			name:   "negative amount",
			intent: transfer.Intent{SenderID: "a", ReceiverID: "b", Amount: money.FromCents(-1)},
			want:   apperrors.CodeInvalidAmount,
		},
		{
			name:   "unknown receiver beats unknown sender",
			intent: transfer.Intent{SenderID: "ghost", ReceiverID: "nobody", Amount: money.FromUnits(1)},
			want:   apperrors.CodeUnknownReceiver,
		},
		{
			name:   "unknown receiver beats insufficient balance",
			intent: transfer.Intent{SenderID: "a", ReceiverID: "nobody", Amount: money.FromUnits(1000)},
			want:   apperrors.CodeUnknownReceiver,
		},
		{
			name:   "blank receiver",
			intent: transfer.Intent{SenderID: "a", ReceiverID: "  ", Amount: money.FromUnits(1)},
			want:   apperrors.CodeUnknownReceiver,
		},
		{
			name:   "unknown sender",
			intent: transfer.Intent{SenderID: "ghost", ReceiverID: "b", Amount: money.FromUnits(1000)},
			want:   apperrors.CodeUnknownSender,
		},
		{
			name:   "blank sender",
			intent: transfer.Intent{SenderID: "", ReceiverID: "b", Amount: money.FromUnits(1)},
			want:   apperrors.CodeUnknownSender,
		},
		{
			name:   "insufficient by one cent",
			intent: transfer.Intent{SenderID: "a", ReceiverID: "b", Amount: money.FromCents(5001)},
			want:   apperrors.CodeInsufficientBalance,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, store := newTestEngine(t, map[string]money.Amount{
				"a": money.FromUnits(50),
				"b": money.FromUnits(7),
			})

			err := engine.Transfer(context.Background(), tt.intent)
			if got := apperrors.CodeOf(err); got != tt.want {
				t.Fatalf("code = %s, want %s (err %v)", got, tt.want, err)
			}
			if got := storagetest.Balance(t, store, "a"); !got.Equal(money.FromUnits(50)) {
				t.Fatalf("a = %s, want unchanged 50.00", got)
			}
			if got := storagetest.Balance(t, store, "b"); !got.Equal(money.FromUnits(7)) {
				t.Fatalf("b = %s, want unchanged 7.00", got)
			}
		})
	}
}

func TestTransferSurvivesCancelledContext(t *testing.T) {
	uow := &recordingUnitOfWork{}
	engine, err := transfer.NewEngine(uow)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = engine.Transfer(ctx, transfer.Intent{SenderID: "a", ReceiverID: "b", Amount: money.FromUnits(1)})
	if !uow.called {
		t.Fatal("unit of work was not started")
	}
	if uow.ctxErr != nil {
		t.Fatalf("unit of work context error = %v, want nil", uow.ctxErr)
	}
}

func TestTransferPassesConflictThrough(t *testing.T) {
	conflict := apperrors.New(apperrors.CodeTransactionConflict, "busy")
	engine, err := transfer.NewEngine(&recordingUnitOfWork{err: conflict})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	err = engine.Transfer(context.Background(), transfer.Intent{SenderID: "a", ReceiverID: "b", Amount: money.FromUnits(1)})
	if !apperrors.HasCode(err, apperrors.CodeTransactionConflict) {
		t.Fatalf("code = %s, want TRANSACTION_CONFLICT", apperrors.CodeOf(err))
	}
}

func TestTransferWrapsUntypedErrors(t *testing.T) {
	engine, err := transfer.NewEngine(&recordingUnitOfWork{err: storage.ErrNotLocked})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	err = engine.Transfer(context.Background(), transfer.Intent{SenderID: "a", ReceiverID: "b", Amount: money.FromUnits(1)})
	if !apperrors.HasCode(err, apperrors.CodeUnknown) {
		t.Fatalf("code = %s, want UNKNOWN", apperrors.CodeOf(err))
	}
	if !errors.Is(err, storage.ErrNotLocked) {
		t.Fatalf("error = %v, want wrapped ErrNotLocked", err)
	}
}

func TestTransferRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	store := memory.New()
	storagetest.Seed(t, store, "a", money.FromUnits(1))
	engine, err := transfer.NewEngine(store, transfer.WithTracerProvider(provider))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	_ = engine.Transfer(context.Background(), transfer.Intent{SenderID: "a", ReceiverID: "a", Amount: money.FromUnits(5)})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "transfer.Transfer" {
		t.Fatalf("span name = %q", spans[0].Name())
	}
	var code string
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "ledger.error_code" {
			code = attr.Value.AsString()
		}
	}
	if code != string(apperrors.CodeInsufficientBalance) {
		t.Fatalf("error code attribute = %q", code)
	}
}

func TestTransferConcurrentDrain(t *testing.T) {
	storagetest.RunTransfers(t, func(t *testing.T) storage.Store {
		return memory.New()
	})
}

type recordingUnitOfWork struct {
	called bool
	ctxErr error
	err    error
}

func (u *recordingUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.AccountTx) error) error {
	u.called = true
	u.ctxErr = ctx.Err()
	return u.err
}
