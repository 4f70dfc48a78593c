package valueobject

import (
	"bytes"
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a US dollar amount. The club bills in one currency only, so the
// currency is implied. Invoice prices are flat and no rounding is applied.
type Money struct {
	amount decimal.Decimal
}

// ParseMoney reads a plain decimal such as "450" or "12.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{amount: d}, nil
}

// USDFromFloat converts a float amount, as held by stores with float columns.
func USDFromFloat(amount float64) Money {
	return Money{amount: decimal.NewFromFloat(amount)}
}

// USDFromDecimal wraps a decimal amount.
func USDFromDecimal(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// Zero returns $0.
func Zero() Money {
	return Money{}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// IsZero reports whether the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsNegative reports whether the amount is below zero
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// MultiplyByInt returns m * factor, used for quantity times unit price.
func (m Money) MultiplyByInt(factor int64) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(factor))}
}

// Equals compares amounts numerically, so 12.5 equals 12.50.
func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount)
}

// String returns the raw decimal amount without currency or padding,
// e.g. "450" or "12.5". This is the form written to exports.
func (m Money) String() string {
	return m.amount.String()
}

// Float64 returns the amount as float64. Only for stores that hold numbers
// as floating point.
func (m Money) Float64() float64 {
	f, _ := m.amount.Float64()
	return f
}

// MarshalJSON writes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.amount.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal.
func (m *Money) UnmarshalJSON(data []byte) error {
	parsed, err := ParseMoney(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}

// Scan implements sql.Scanner. NULL scans as zero; nullable columns are
// mapped to *Money by the persistence models.
func (m *Money) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		m.amount = decimal.Zero
	case string:
		return m.scanString(v)
	case []byte:
		return m.scanString(string(v))
	case float64:
		m.amount = decimal.NewFromFloat(v)
	case int64:
		m.amount = decimal.NewFromInt(v)
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
	return nil
}

func (m *Money) scanString(s string) error {
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
