package valueobject

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places used when a Money value is
// displayed, and the minimum used when it is stored or sent.
const MoneyPlaces = 2

// Money is a fixed-point monetary amount. Prices travel as decimal strings
// ("12.50") between the server, the local store and the cart, and every
// operation stays in decimal arithmetic so line totals never drift.
// It is immutable - all operations return new Money instances.
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates Money from a decimal amount
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewMoneyFromInt creates Money from a whole amount
func NewMoneyFromInt(amount int64) Money {
	return Money{amount: decimal.NewFromInt(amount)}
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string) (Money, error) {
	if amount == "" {
		return Zero(), nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string %q: %w", amount, err)
	}
	return Money{amount: d}, nil
}

// MustMoney parses a literal amount and panics on malformed input.
// Intended for constants and tests.
func MustMoney(amount string) Money {
	m, err := NewMoneyFromString(amount)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero-value Money
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns a new Money with the sum of both amounts
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Subtract returns a new Money with the difference
func (m Money) Subtract(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Multiply returns a new Money multiplied by the given factor
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor)}
}

// MultiplyByInt returns a new Money multiplied by an integer
func (m Money) MultiplyByInt(factor int64) Money {
	return m.Multiply(decimal.NewFromInt(factor))
}

// Round returns a new Money rounded half away from zero
func (m Money) Round(places int32) Money {
	return Money{amount: m.amount.Round(places)}
}

// Equals returns true if both amounts are numerically equal
func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount)
}

// LessThan returns true if this Money is less than the other
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// String returns the amount rounded to two decimal places, for display only
func (m Money) String() string {
	return m.amount.StringFixed(MoneyPlaces)
}

// Exact returns the amount without rounding, padded to at least two decimal
// places ("12.50", "0.125"). Storage and the wire use this form.
func (m Money) Exact() string {
	if m.amount.Equal(m.amount.Round(MoneyPlaces)) {
		return m.amount.StringFixed(MoneyPlaces)
	}
	return m.amount.String()
}

// StringFixed returns the amount as a string with fixed decimal places
func (m Money) StringFixed(places int32) string {
	return m.amount.StringFixed(places)
}

// Sum adds up a list of amounts
func Sum(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v.amount)
	}
	return Money{amount: total}
}

// MarshalJSON renders the amount as a decimal string
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Exact())
}

// UnmarshalJSON accepts a decimal string, a JSON number or null.
// The server is not consistent about which of the first two it sends.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		m.amount = decimal.Zero
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := NewMoneyFromString(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.amount = d
	return nil
}

// Value implements driver.Valuer; amounts are stored as exact TEXT
func (m Money) Value() (driver.Value, error) {
	return m.Exact(), nil
}

// Scan implements sql.Scanner for database retrieval
func (m *Money) Scan(value any) error {
	if value == nil {
		m.amount = decimal.Zero
		return nil
	}

	var strVal string
	switch v := value.(type) {
	case string:
		strVal = v
	case []byte:
		strVal = string(v)
	case int64:
		m.amount = decimal.NewFromInt(v)
		return nil
	case float64:
		m.amount = decimal.NewFromFloat(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}

	parsed, err := NewMoneyFromString(strVal)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
