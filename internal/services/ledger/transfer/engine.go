// Package transfer moves funds between two accounts as one atomic unit of
// work.
//
// Preconditions are checked in a fixed order, each with its own error kind:
// a positive amount, an existing receiver, an existing sender, then a sender
// balance covering the amount. The last three are evaluated against rows
// read and locked inside the unit of work, never against an earlier read, so
// concurrent transfers cannot both spend the same balance. Self-transfers are
// allowed and leave the balance unchanged.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
	"github.com/paywire/paywire/internal/services/ledger/money"
	"github.com/paywire/paywire/internal/services/ledger/storage"
)

const tracerName = "github.com/paywire/paywire/internal/services/ledger/transfer"

var (
	// ErrInvalidAmount rejects zero, negative or malformed amounts.
	ErrInvalidAmount = apperrors.New(apperrors.CodeInvalidAmount, "amount must be positive")
	// ErrUnknownReceiver indicates the receiver has no account.
	ErrUnknownReceiver = apperrors.New(apperrors.CodeUnknownReceiver, "receiver account not found")
	// ErrUnknownSender indicates the sender has no account.
	ErrUnknownSender = apperrors.New(apperrors.CodeUnknownSender, "sender account not found")
	// ErrInsufficientBalance indicates the sender cannot cover the amount.
	ErrInsufficientBalance = apperrors.New(apperrors.CodeInsufficientBalance, "insufficient balance")
)

// Intent is a requested move of Amount from SenderID to ReceiverID. The
// sender is trusted as already authenticated.
type Intent struct {
	SenderID   string
	ReceiverID string
	Amount     money.Amount
}

// Engine applies transfer intents through a storage.UnitOfWork.
type Engine struct {
	uow    storage.UnitOfWork
	tracer trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(e *Engine) {
		if provider != nil {
			e.tracer = provider.Tracer(tracerName)
		}
	}
}

// NewEngine builds an engine over uow.
func NewEngine(uow storage.UnitOfWork, opts ...Option) (*Engine, error) {
	if uow == nil {
		return nil, fmt.Errorf("unit of work is required")
	}
	e := &Engine{
		uow:    uow,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Transfer applies intent or returns a typed error; on error no balance has
// changed. Once the unit of work starts it runs to commit or rollback even if
// ctx is cancelled. Conflicts are returned, not retried.
func (e *Engine) Transfer(ctx context.Context, intent Intent) (err error) {
	ctx, span := e.tracer.Start(ctx, "transfer.Transfer", trace.WithAttributes(
		attribute.String("ledger.sender_id", intent.SenderID),
		attribute.String("ledger.receiver_id", intent.ReceiverID),
	))
	defer func() {
		if err != nil {
			span.SetAttributes(attribute.String("ledger.error_code", string(apperrors.CodeOf(err))))
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !intent.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	senderID := strings.TrimSpace(intent.SenderID)
	receiverID := strings.TrimSpace(intent.ReceiverID)
	if receiverID == "" {
		return ErrUnknownReceiver
	}
	if senderID == "" {
		return ErrUnknownSender
	}

	err = e.uow.WithinTx(context.WithoutCancel(ctx), func(ctx context.Context, tx storage.AccountTx) error {
		accounts, err := tx.LockAccounts(ctx, senderID, receiverID)
		if err != nil {
			return err
		}
		if _, ok := accounts[receiverID]; !ok {
			return ErrUnknownReceiver
		}
		sender, ok := accounts[senderID]
		if !ok {
			return ErrUnknownSender
		}
		if sender.Balance.LessThan(intent.Amount) {
			return ErrInsufficientBalance
		}

		if _, err := tx.AdjustBalance(ctx, senderID, intent.Amount.Neg()); err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(ctx, receiverID, intent.Amount); err != nil {
			return err
		}
		return nil
	})
	return normalizeError(err)
}

// normalizeError keeps typed errors as they are and wraps anything else so
// callers always receive a ledger error kind.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.Wrap(apperrors.CodeUnknown, "apply transfer", err)
}
