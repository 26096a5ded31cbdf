/*
money.go - Exact-decimal monetary amount

PURPOSE:
  All amounts and balances in the system are Money: an exact decimal value
  at a fixed 2-fraction-digit scale. There is no floating point anywhere on
  the balance path - arithmetic is exact addition/subtraction over
  decimal.Decimal.

INVARIANTS:
  1. Scale: every Money is normalized to 2 fraction digits on construction.
  2. Exactness: Add/Sub never round; inputs are already at scale 2.
  3. Sign: Money itself is signed; transaction amounts are validated
     positive at the lifecycle layer, not here.

SEE ALSO:
  - types.go: SignedAmount derives the ledger sign from the transaction type
  - manager.go: the only code that mutates an account balance
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount at 2-fraction-digit scale.
type Money struct {
	value decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoney normalizes a decimal to the fixed 2-digit scale.
func NewMoney(d decimal.Decimal) Money {
	return Money{value: d.Round(2)}
}

// NewMoneyFromString parses a decimal string ("1234.56").
func NewMoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return NewMoney(d), nil
}

// MustMoney parses a decimal string and panics on failure. Test helper.
func MustMoney(s string) Money {
	m, err := NewMoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// NewMoneyFromFloat converts a float, rounding to 2 digits.
func NewMoneyFromFloat(f float64) Money {
	return NewMoney(decimal.NewFromFloat(f))
}

func (m Money) Add(o Money) Money { return Money{value: m.value.Add(o.value)} }
func (m Money) Sub(o Money) Money { return Money{value: m.value.Sub(o.value)} }
func (m Money) Neg() Money        { return Money{value: m.value.Neg()} }

func (m Money) IsZero() bool     { return m.value.IsZero() }
func (m Money) IsNegative() bool { return m.value.IsNegative() }
func (m Money) IsPositive() bool { return m.value.IsPositive() }

// Equal compares at fixed scale; 2 == 2.00.
func (m Money) Equal(o Money) bool       { return m.value.Equal(o.value) }
func (m Money) GreaterThan(o Money) bool { return m.value.GreaterThan(o.value) }
func (m Money) LessThan(o Money) bool    { return m.value.LessThan(o.value) }
func (m Money) Cmp(o Money) int          { return m.value.Cmp(o.value) }

// Decimal exposes the underlying exact value.
func (m Money) Decimal() decimal.Decimal { return m.value }

// Float64 is for display/logging only, never for arithmetic.
func (m Money) Float64() float64 {
	f, _ := m.value.Float64()
	return f
}

// String renders at fixed scale: "1234.50".
func (m Money) String() string { return m.value.StringFixed(2) }

// MarshalJSON encodes as a JSON number at fixed scale.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.value.StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*m = NewMoney(d)
	return nil
}
