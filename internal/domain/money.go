package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount represents a quantity of value in a specific unit.
// Amounts are stored as BIGINT micros (10^-6) to avoid floating point errors;
// Unit is the backend's native unit (e.g. "ETH", "BTC", "USD").
type Amount struct {
	Micros int64  `json:"micros"`
	Unit   string `json:"unit"`
}

// NewAmount creates an Amount from micros.
func NewAmount(micros int64, unit string) Amount {
	return Amount{
		Micros: micros,
		Unit:   unit,
	}
}

// ToDecimal converts the int64 micros to a shopspring/decimal.Decimal.
func (a Amount) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(a.Micros).Div(decimal.NewFromInt(1_000_000))
}

// FromDecimal converts a decimal.Decimal to int64 micros, rounding down.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(1_000_000)).IntPart()
}

// Convert converts the amount to a target unit using a given rate.
// The rate should be (Target / Source).
func (a Amount) Convert(targetUnit string, rate decimal.Decimal) Amount {
	amountDec := a.ToDecimal().Mul(rate)
	return Amount{
		Micros: FromDecimal(amountDec),
		Unit:   targetUnit,
	}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.Micros > 0
}

// String returns the string representation of the amount.
func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.ToDecimal().StringFixed(6), a.Unit)
}
