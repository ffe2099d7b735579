// Package validate holds the validation error shared by all shop domains and
// the money rules every monetary field obeys.
package validate

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxMoney is the largest amount a NUMERIC(6,2) column can hold.
var MaxMoney = decimal.RequireFromString("9999.99")

// Error is returned when input breaks a domain rule. It is never retried and
// the rejected write is never persisted.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errorf builds an *Error for field.
func Errorf(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Money checks that d fits a NUMERIC(6,2) column and is not negative.
func Money(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return Errorf(field, "must not be negative")
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return Errorf(field, "must have at most 2 decimal places")
	}
	if d.GreaterThan(MaxMoney) {
		return Errorf(field, "must not exceed %s", MaxMoney.StringFixed(2))
	}
	return nil
}

// PositiveMoney is Money plus a strictly-greater-than-zero check.
func PositiveMoney(field string, d decimal.Decimal) error {
	if err := Money(field, d); err != nil {
		return err
	}
	if !d.IsPositive() {
		return Errorf(field, "must be greater than zero")
	}
	return nil
}

// ParseMoney parses s as a money amount and validates it.
func ParseMoney(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Errorf(field, "malformed amount %q", s)
	}
	if err := Money(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// MaxQuantity bounds one line, including quantities merged by repeated adds.
const MaxQuantity = 1000

// Quantity checks that a line quantity is between 1 and MaxQuantity.
func Quantity(field string, qty int) error {
	if qty < 1 {
		return Errorf(field, "must be at least 1")
	}
	if qty > MaxQuantity {
		return Errorf(field, "must be at most %d", MaxQuantity)
	}
	return nil
}
