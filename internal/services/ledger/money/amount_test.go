package money

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	apperrors "github.com/paywire/paywire/internal/platform/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input     string
		wantCents int64
		wantErr   bool
	}{
		{input: "40", wantCents: 4000},
		{input: "0.01", wantCents: 1},
		{input: "12.5", wantCents: 1250},
		{input: "-3.25", wantCents: -325},
		{input: "1e2", wantCents: 10000},
		{input: "0.001", wantErr: true},
		{input: "NaN", wantErr: true},
		{input: "Infinity", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
		{input: "1e30", wantErr: true},
		{input: "1e2000000000", wantErr: true},
		{input: "1e-2000000000", wantErr: true},
		{input: "100.00", wantCents: 10000},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				if !apperrors.HasCode(err, apperrors.CodeInvalidAmount) {
					t.Fatalf("expected invalid amount code, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tt.input, err)
			}
			if cents := mustCents(t, got); cents != tt.wantCents {
				t.Fatalf("Cents() = %d, want %d", cents, tt.wantCents)
			}
		})
	}
}

func TestParseBoundsExponentCost(t *testing.T) {
	for _, input := range []string{"1e2000000000", "1e-2000000000", "-1e2147483647", "5e-2147483648"} {
		t.Run(input, func(t *testing.T) {
			start := time.Now()
			_, err := Parse(input)
			elapsed := time.Since(start)
			if !apperrors.HasCode(err, apperrors.CodeInvalidAmount) {
				t.Fatalf("expected invalid amount, got %v", err)
			}
			if elapsed > 100*time.Millisecond {
				t.Fatalf("parse took %s", elapsed)
			}
			if len(err.Error()) > 200 {
				t.Fatalf("error message is %d bytes", len(err.Error()))
			}
		})
	}
}

func TestSubCentErrorOmitsValue(t *testing.T) {
	_, err := Parse("0.123456789")
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "123456789") {
		t.Fatalf("error echoes input: %v", err)
	}
}

func TestCentsRejectsOutOfRange(t *testing.T) {
	if _, err := FromUnits(MaxUnits).Cents(); err != nil {
		t.Fatalf("max units: %v", err)
	}
	tooLarge := FromUnits(100_000_000_000_000_000)
	if tooLarge.InRange() {
		t.Fatal("expected out of range")
	}
	if _, err := tooLarge.Cents(); !apperrors.HasCode(err, apperrors.CodeInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := FromUnits(MaxUnits).Add(FromUnits(MaxUnits)).Cents(); err == nil {
		t.Fatal("expected sum beyond range to be refused")
	}
}

func TestArithmeticIsExact(t *testing.T) {
	a := FromCents(10)
	b := FromCents(20)
	if got := a.Add(b); !got.Equal(FromCents(30)) {
		t.Fatalf("0.10 + 0.20 = %s, want 0.30", got)
	}
	if got := FromUnits(100).Sub(FromUnits(40)); mustCents(t, got) != 6000 {
		t.Fatalf("100 - 40 = %s", got)
	}
	if got := FromUnits(5).Neg(); !got.IsNegative() || mustCents(t, got) != -500 {
		t.Fatalf("neg = %s", got)
	}
}

func TestPredicates(t *testing.T) {
	if !FromCents(1).IsPositive() || FromCents(0).IsPositive() || FromCents(-1).IsPositive() {
		t.Fatal("unexpected IsPositive result")
	}
	if !Zero.IsZero() {
		t.Fatal("expected zero")
	}
	if !FromUnits(60).LessThan(FromUnits(1000)) {
		t.Fatal("expected 60 < 1000")
	}
	if FromUnits(1).Cmp(FromCents(100)) != 0 {
		t.Fatal("expected 1 == 1.00")
	}
}

func TestJSON(t *testing.T) {
	var payload struct {
		Amount Amount `json:"amount"`
	}
	for _, body := range []string{`{"amount": 40.5}`, `{"amount": "40.50"}`} {
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			t.Fatalf("unmarshal %s: %v", body, err)
		}
		if cents := mustCents(t, payload.Amount); cents != 4050 {
			t.Fatalf("unmarshal %s: cents = %d", body, cents)
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(encoded) != `{"amount":40.50}` {
		t.Fatalf("unexpected json %s", encoded)
	}
}

func TestUnmarshalRejectsNonFinite(t *testing.T) {
	var payload struct {
		Amount Amount `json:"amount"`
	}
	for _, body := range []string{`{"amount": "NaN"}`, `{"amount": "-Infinity"}`, `{"amount": null}`, `{"amount": 0.005}`} {
		err := json.Unmarshal([]byte(body), &payload)
		if err == nil {
			t.Fatalf("expected error for %s", body)
		}
		if !apperrors.HasCode(err, apperrors.CodeInvalidAmount) {
			t.Fatalf("expected invalid amount for %s, got %v", body, err)
		}
	}
}

func mustCents(t *testing.T, a Amount) int64 {
	t.Helper()
	cents, err := a.Cents()
	if err != nil {
		t.Fatalf("cents of %s: %v", a, err)
	}
	return cents
}
