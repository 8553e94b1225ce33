// Package money defines the fixed-point amount type used for balances and
// transfers. Amounts carry exactly two fractional digits and never pass
// through binary floating point.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
)

// Scale is the number of fractional digits an amount may carry.
const Scale = 2

// Amount is a signed fixed-point quantity of minor units.
type Amount struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{}

// ErrInvalidAmount is returned for input that cannot be an amount.
var ErrInvalidAmount = apperrors.New(apperrors.CodeInvalidAmount, "amount is not a finite decimal with at most two fractional digits")

// Parse converts a decimal string such as "12.50" into an Amount. NaN,
// infinities, out-of-range exponents and sub-cent precision are rejected.
func Parse(value string) (Amount, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Amount{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, apperrors.Wrap(apperrors.CodeInvalidAmount, "parse amount", err)
	}
	// Rescaling is linear in the exponent; bound it before any arithmetic.
	if exp := d.Exponent(); exp < minExponent || exp > maxExponent {
		return Amount{}, ErrAmountOutOfRange
	}
	return fromDecimal(d)
}

// FromCents builds an amount from an integer count of minor units.
func FromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -Scale)}
}

// FromUnits builds an amount from whole currency units. Callers bound units
// by MaxUnits; larger values fail InRange and Cents.
func FromUnits(units int64) Amount {
	return Amount{d: decimal.NewFromInt(units)}
}

func fromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Truncate(Scale)) {
		return Amount{}, apperrors.New(apperrors.CodeInvalidAmount, fmt.Sprintf("amount has more than %d fractional digits", Scale))
	}
	a := Amount{d: d}
	if !a.InRange() {
		return Amount{}, ErrAmountOutOfRange
	}
	return a, nil
}

const (
	// maxCents bounds amounts so sums of two valid balances stay within int64.
	maxCents = 1 << 61

	// MaxUnits is the largest whole-unit amount that fits within maxCents.
	MaxUnits = maxCents / 100

	// Exponent window accepted by Parse.
	minExponent = -Scale - 18
	maxExponent = 18
)

var maxCentsDecimal = decimal.NewFromInt(maxCents)

// ErrAmountOutOfRange is returned for amounts whose magnitude exceeds the
// storable range.
var ErrAmountOutOfRange = apperrors.New(apperrors.CodeInvalidAmount, "amount out of range")

// InRange reports whether the amount is a whole number of cents within the
// storable range.
func (a Amount) InRange() bool {
	cents := a.d.Shift(Scale)
	return cents.IsInteger() && cents.Abs().LessThanOrEqual(maxCentsDecimal)
}

// Cents returns the amount as an integer count of minor units. Amounts
// outside the storable range return ErrAmountOutOfRange instead of wrapping.
func (a Amount) Cents() (int64, error) {
	if !a.InRange() {
		return 0, ErrAmountOutOfRange
	}
	return a.d.Shift(Scale).IntPart(), nil
}

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool {
	return a.d.IsPositive()
}

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d)}
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{d: a.d.Neg()}
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool {
	return a.d.LessThan(b.d)
}

// Equal reports whether a == b.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// String formats the amount with exactly two fractional digits.
func (a Amount) String() string {
	return a.d.StringFixed(Scale)
}

// MarshalJSON encodes the amount as a JSON number with two fractional digits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return ErrInvalidAmount
	}
	raw = strings.Trim(raw, `"`)
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
