package postgres

import (
	"fmt"
	"testing"

	"github.com/go-faster/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sqshop/internal/domain/address"
	"github.com/xenking/sqshop/internal/domain/coupon"
	"github.com/xenking/sqshop/internal/domain/payment"
)

func fkViolation(constraint string) error {
	return fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: constraint})
}

func TestSaveStateConflict(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{"orders_coupon_id_fkey", coupon.ErrNotFound},
		{"orders_shipping_address_id_fkey", address.ErrNotFound},
		{"orders_billing_address_id_fkey", address.ErrNotFound},
		{"orders_transaction_id_fkey", payment.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			err := fkViolation(tt.constraint)
			require.True(t, isForeignKeyViolation(err))
			assert.ErrorIs(t, saveStateConflict(err), tt.want)
		})
	}

	err := saveStateConflict(fkViolation("orders_something_else_fkey"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, coupon.ErrNotFound))
	assert.False(t, errors.Is(err, address.ErrNotFound))
}

func TestIsOutOfRange(t *testing.T) {
	assert.True(t, isOutOfRange(&pgconn.PgError{Code: pgerrcode.NumericValueOutOfRange}))
	assert.True(t, isOutOfRange(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgerrcode.CheckViolation})))
	assert.False(t, isOutOfRange(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	assert.False(t, isOutOfRange(errors.New("plain")))
}
