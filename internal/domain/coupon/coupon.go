// Package coupon models flat-amount discount tokens.
package coupon

import (
	"context"
	"regexp"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/sqshop/internal/domain/validate"
)

var (
	// ErrNotFound is returned when no coupon matches the id or code.
	ErrNotFound = errors.New("coupon not found")
	// ErrCodeTaken is returned when creating a coupon whose code already exists.
	ErrCodeTaken = errors.New("coupon code already exists")
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{1,15}$`)

// Coupon is a flat amount subtracted from an order total. No expiry or usage
// limit is modelled.
type Coupon struct {
	ID     string
	Code   string
	Amount decimal.Decimal
}

// NormalizeCode upper-cases and trims a coupon code. Codes are matched
// case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the code format and the amount.
func (c *Coupon) Validate() error {
	if !codePattern.MatchString(c.Code) {
		return validate.Errorf("code", "must be 1-15 characters of A-Z, 0-9, '-' or '_'")
	}
	return validate.PositiveMoney("amount", c.Amount)
}

// Repository persists coupons.
type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	GetByID(ctx context.Context, id string) (*Coupon, error)
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Delete(ctx context.Context, id string) error
}
