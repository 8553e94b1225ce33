// Package account models the per-user balance record.
package account

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/paywire/paywire/internal/services/ledger/money"
)

// Account holds one balance per owner. Balance is never negative.
type Account struct {
	OwnerID   string
	Balance   money.Amount
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New opens an account for ownerID with the given starting balance.
func New(ownerID string, balance money.Amount, now time.Time) (Account, error) {
	if ownerID == "" {
		return Account{}, fmt.Errorf("owner id is required")
	}
	if balance.IsNegative() {
		return Account{}, fmt.Errorf("initial balance must not be negative")
	}
	createdAt := now.UTC()
	return Account{
		OwnerID:   ownerID,
		Balance:   balance,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// Seeder draws the random opening balance credited at signup.
type Seeder struct {
	// MinUnits and MaxUnits bound the balance in whole currency units,
	// inclusive.
	MinUnits int64
	MaxUnits int64
	// Rand is the entropy source; crypto/rand when nil.
	Rand io.Reader
}

// DefaultSeeder credits between 1 and 10000 units.
func DefaultSeeder() Seeder {
	return Seeder{MinUnits: 1, MaxUnits: 10000}
}

// Validate checks the range is ordered, non-negative and storable.
func (s Seeder) Validate() error {
	if s.MinUnits < 0 || s.MaxUnits < s.MinUnits {
		return fmt.Errorf("invalid seed range [%d, %d]", s.MinUnits, s.MaxUnits)
	}
	if s.MaxUnits > money.MaxUnits {
		return fmt.Errorf("seed maximum %d exceeds %d units", s.MaxUnits, int64(money.MaxUnits))
	}
	return nil
}

// Next returns a uniformly random balance in [MinUnits, MaxUnits].
func (s Seeder) Next() (money.Amount, error) {
	if err := s.Validate(); err != nil {
		return money.Zero, err
	}
	reader := s.Rand
	if reader == nil {
		reader = rand.Reader
	}
	span := big.NewInt(s.MaxUnits - s.MinUnits + 1)
	n, err := rand.Int(reader, span)
	if err != nil {
		return money.Zero, fmt.Errorf("draw initial balance: %w", err)
	}
	return money.FromUnits(s.MinUnits + n.Int64()), nil
}
