package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/sqshop/internal/domain/order"
	"github.com/xenking/sqshop/internal/domain/refund"
)

const refundColumns = `id, order_id, reason, email, accepted, created_at`

var _ refund.Repository = (*RefundRepository)(nil)

// RefundRepository implements refund.Repository backed by PostgreSQL.
type RefundRepository struct {
	db *DB
}

// NewRefundRepository returns a RefundRepository on db.
func NewRefundRepository(db *DB) *RefundRepository {
	return &RefundRepository{db: db}
}

// Create inserts r.
func (r *RefundRepository) Create(ctx context.Context, rf *refund.Refund) error {
	_, err := r.db.conn(ctx).Exec(ctx, `INSERT INTO refunds (`+refundColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		rf.ID, rf.OrderID, rf.Reason, rf.Email, rf.Accepted, rf.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return order.ErrNotFound
		}
		return fmt.Errorf("creating refund for order %q: %w", rf.OrderID, err)
	}
	return nil
}

// Get returns one refund.
func (r *RefundRepository) Get(ctx context.Context, id string) (*refund.Refund, error) {
	return r.getOne(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id)
}

// GetForUpdate returns one refund and locks its row.
func (r *RefundRepository) GetForUpdate(ctx context.Context, id string) (*refund.Refund, error) {
	return r.getOne(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = $1 FOR UPDATE`, id)
}

func (r *RefundRepository) getOne(ctx context.Context, query, id string) (*refund.Refund, error) {
	rf, err := scanRefund(r.db.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, refund.ErrNotFound
		}
		return nil, fmt.Errorf("getting refund %q: %w", id, err)
	}
	return &rf, nil
}

// MarkAccepted sets the accepted flag. It never clears it.
func (r *RefundRepository) MarkAccepted(ctx context.Context, id string) error {
	tag, err := r.db.conn(ctx).Exec(ctx, `UPDATE refunds SET accepted = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("accepting refund %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return refund.ErrNotFound
	}
	return nil
}

// List returns every refund, newest first.
func (r *RefundRepository) List(ctx context.Context) ([]refund.Refund, error) {
	return r.list(ctx, `SELECT `+refundColumns+` FROM refunds ORDER BY created_at DESC, id`)
}

// ListByOrder returns the refunds of one order, newest first.
func (r *RefundRepository) ListByOrder(ctx context.Context, orderID string) ([]refund.Refund, error) {
	return r.list(ctx, `SELECT `+refundColumns+` FROM refunds WHERE order_id = $1 ORDER BY created_at DESC, id`, orderID)
}

func (r *RefundRepository) list(ctx context.Context, query string, args ...any) ([]refund.Refund, error) {
	rows, err := r.db.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing refunds: %w", err)
	}
	refunds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (refund.Refund, error) {
		return scanRefund(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning refunds: %w", err)
	}
	return refunds, nil
}

func scanRefund(row pgx.Row) (refund.Refund, error) {
	var rf refund.Refund
	err := row.Scan(&rf.ID, &rf.OrderID, &rf.Reason, &rf.Email, &rf.Accepted, &rf.CreatedAt)
	return rf, err
}
