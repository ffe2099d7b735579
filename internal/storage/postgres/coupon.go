package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/sqshop/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	db *DB
}

// NewCouponRepository returns a CouponRepository on db.
func NewCouponRepository(db *DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// Create inserts a coupon. Codes are unique.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.db.conn(ctx).Exec(ctx,
		`INSERT INTO coupons (id, code, amount) VALUES ($1, $2, $3)`, c.ID, c.Code, c.Amount)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrCodeTaken
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts coupons in one batch, updating the amount of codes that
// already exist. It returns the number of rows written.
func (r *CouponRepository) Upsert(ctx context.Context, coupons []coupon.Coupon) (int, error) {
	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(`INSERT INTO coupons (id, code, amount) VALUES ($1, $2, $3)
			ON CONFLICT (code) DO UPDATE SET amount = EXCLUDED.amount`, c.ID, c.Code, c.Amount)
	}

	var written int
	err := r.db.WithinTx(ctx, func(ctx context.Context) error {
		tx, ok := r.db.conn(ctx).(pgx.Tx)
		if !ok {
			return errors.New("upsert requires a transaction")
		}
		res := tx.SendBatch(ctx, batch)
		for range coupons {
			tag, err := res.Exec()
			if err != nil {
				_ = res.Close()
				return err
			}
			written += int(tag.RowsAffected())
		}
		return res.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("upserting %d coupons: %w", len(coupons), err)
	}
	return written, nil
}

// GetByID returns one coupon.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.getOne(ctx, `SELECT id, code, amount FROM coupons WHERE id = $1`, id)
}

// FindByCode looks up a coupon by its upper-case code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.getOne(ctx, `SELECT id, code, amount FROM coupons WHERE code = upper($1)`, code)
}

func (r *CouponRepository) getOne(ctx context.Context, query, arg string) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := r.db.conn(ctx).QueryRow(ctx, query, arg).Scan(&c.ID, &c.Code, &c.Amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("getting coupon %q: %w", arg, err)
	}
	return &c, nil
}

// List returns every coupon ordered by code.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.db.conn(ctx).Query(ctx, `SELECT id, code, amount FROM coupons ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	coupons, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (coupon.Coupon, error) {
		var c coupon.Coupon
		err := row.Scan(&c.ID, &c.Code, &c.Amount)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning coupons: %w", err)
	}
	return coupons, nil
}

// Delete removes a coupon. Orders holding it lose their coupon.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}
