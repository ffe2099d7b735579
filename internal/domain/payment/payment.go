// Package payment holds the immutable payment records attached to orders.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/sqshop/internal/domain/validate"
)

// ErrNotFound is returned when a transaction does not exist.
var ErrNotFound = errors.New("transaction not found")

// MaxAmount is the largest amount the transactions table holds (NUMERIC(14,2)).
var MaxAmount = decimal.RequireFromString("999999999999.99")

// ValidateAmount checks that amount can be recorded: not negative, whole
// cents, at most MaxAmount.
func ValidateAmount(amount decimal.Decimal) error {
	switch {
	case amount.IsNegative():
		return validate.Errorf("amount", "must not be negative")
	case !amount.Equal(amount.Round(2)):
		return validate.Errorf("amount", "must have at most 2 decimal places")
	case amount.GreaterThan(MaxAmount):
		return validate.Errorf("amount", "must not exceed %s", MaxAmount.StringFixed(2))
	}
	return nil
}

// Transaction records a captured payment. It is never modified after
// creation; UserID is empty once the paying user has been removed.
type Transaction struct {
	ID        string
	Number    string
	UserID    string
	Amount    decimal.Decimal
	Timestamp time.Time
}

// Repository persists transactions. Create is expected to run inside the
// caller's unit of work when one is active.
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]Transaction, error)
}
