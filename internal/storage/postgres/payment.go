package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/sqshop/internal/domain/payment"
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository stores transactions.
type PaymentRepository struct {
	db *DB
}

// NewPaymentRepository returns a PaymentRepository on db.
func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts t.
func (r *PaymentRepository) Create(ctx context.Context, t *payment.Transaction) error {
	_, err := r.db.conn(ctx).Exec(ctx,
		`INSERT INTO transactions (id, number, user_id, amount, created_at) VALUES ($1, $2, nullif($3, ''), $4, $5)`,
		t.ID, t.Number, t.UserID, t.Amount, t.Timestamp)
	if err != nil {
		return fmt.Errorf("creating transaction %q: %w", t.Number, err)
	}
	return nil
}

// Get returns one transaction.
func (r *PaymentRepository) Get(ctx context.Context, id string) (*payment.Transaction, error) {
	row := r.db.conn(ctx).QueryRow(ctx,
		`SELECT id, number, coalesce(user_id, ''), amount, created_at FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting transaction %q: %w", id, err)
	}
	return &t, nil
}

// ListByUser returns the transactions of userID, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]payment.Transaction, error) {
	rows, err := r.db.conn(ctx).Query(ctx, `SELECT id, number, coalesce(user_id, ''), amount, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	txns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (payment.Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning transactions: %w", err)
	}
	return txns, nil
}

func scanTransaction(row pgx.Row) (payment.Transaction, error) {
	var t payment.Transaction
	err := row.Scan(&t.ID, &t.Number, &t.UserID, &t.Amount, &t.Timestamp)
	return t, err
}
