package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/sqshop/internal/domain/address"
	"github.com/xenking/sqshop/internal/domain/catalog"
	"github.com/xenking/sqshop/internal/domain/coupon"
	"github.com/xenking/sqshop/internal/domain/order"
	"github.com/xenking/sqshop/internal/domain/payment"
	"github.com/xenking/sqshop/internal/domain/validate"
)

const selectOrderSQL = `SELECT o.id, o.user_id, coalesce(o.ref_code, ''), o.state, o.refund_state,
	o.start_date, o.ordered_date,
	coalesce(o.shipping_address_id, ''), coalesce(o.billing_address_id, ''), coalesce(o.transaction_id, ''),
	c.id, c.code, c.amount
FROM orders o LEFT JOIN coupons c ON c.id = o.coupon_id`

// Line prices are read from the catalog on every load.
const selectLinesSQL = `SELECT l.id, l.order_id, l.user_id, l.item_id, i.name, l.quantity, l.ordered,
	i.price, i.discount_price
FROM line_items l JOIN items i ON i.id = l.item_id
WHERE l.order_id = ANY($1)
ORDER BY l.created_at, l.id`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository on db.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// OpenCart returns the user's cart, creating it when absent, and locks it.
// The partial unique index on orders(user_id) WHERE state = 'cart' keeps
// one cart per user under concurrent calls.
func (r *OrderRepository) OpenCart(ctx context.Context, userID, newID string, now time.Time) (*order.Order, error) {
	_, err := r.db.conn(ctx).Exec(ctx, `INSERT INTO orders (id, user_id, state, refund_state, start_date)
		VALUES ($1, $2, 'cart', 'none', $3)
		ON CONFLICT (user_id) WHERE state = 'cart' DO NOTHING`, newID, userID, now)
	if err != nil {
		return nil, fmt.Errorf("opening cart for %q: %w", userID, err)
	}
	return r.ActiveCart(ctx, userID)
}

// ActiveCart returns and locks the user's cart.
func (r *OrderRepository) ActiveCart(ctx context.Context, userID string) (*order.Order, error) {
	return r.getOne(ctx, selectOrderSQL+` WHERE o.user_id = $1 AND o.state = 'cart' FOR UPDATE OF o`, userID)
}

// GetForUpdate returns an order and locks its row.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, selectOrderSQL+` WHERE o.id = $1 FOR UPDATE OF o`, id)
}

// Get returns an order with its lines.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, selectOrderSQL+` WHERE o.id = $1`, id)
}

func (r *OrderRepository) getOne(ctx context.Context, query, arg string) (*order.Order, error) {
	o, err := scanOrder(r.db.conn(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	orders := []order.Order{*o}
	if err := r.loadLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListByUser returns every order of userID, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.db.conn(ctx).Query(ctx, selectOrderSQL+` WHERE o.user_id = $1 ORDER BY o.start_date DESC, o.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Order, error) {
		o, err := scanOrder(row)
		if err != nil {
			return order.Order{}, err
		}
		return *o, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	if err := r.loadLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) loadLines(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	idx := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		idx[orders[i].ID] = i
	}

	rows, err := r.db.conn(ctx).Query(ctx, selectLinesSQL, ids)
	if err != nil {
		return fmt.Errorf("loading line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l order.LineItem
		if err := rows.Scan(
			&l.ID, &l.OrderID, &l.UserID, &l.ItemID, &l.ItemName, &l.Quantity, &l.Ordered,
			&l.Price, &l.DiscountPrice,
		); err != nil {
			return fmt.Errorf("scanning line item: %w", err)
		}
		o := &orders[idx[l.OrderID]]
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating line items: %w", err)
	}
	return nil
}

// SaveState writes the order-level columns and propagates the ordered flag
// to the lines.
func (r *OrderRepository) SaveState(ctx context.Context, o *order.Order) error {
	var orderedDate *time.Time
	if !o.OrderedDate.IsZero() {
		orderedDate = &o.OrderedDate
	}
	var couponID *string
	if o.Coupon != nil {
		couponID = &o.Coupon.ID
	}

	q := r.db.conn(ctx)
	tag, err := q.Exec(ctx, `UPDATE orders SET
		ref_code = nullif($2, ''), state = $3, refund_state = $4, ordered_date = $5,
		shipping_address_id = nullif($6, ''), billing_address_id = nullif($7, ''),
		transaction_id = nullif($8, ''), coupon_id = $9
	WHERE id = $1`,
		o.ID, o.RefCode, o.State, o.Refund, orderedDate,
		o.ShippingAddressID, o.BillingAddressID, o.TransactionID, couponID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return saveStateConflict(err)
		}
		return fmt.Errorf("saving order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	if _, err := q.Exec(ctx, `UPDATE line_items SET ordered = $2 WHERE order_id = $1 AND ordered <> $2`,
		o.ID, o.State != order.StateCart); err != nil {
		return fmt.Errorf("saving line items of order %q: %w", o.ID, err)
	}
	return nil
}

// AddLine merges qty into the line for itemID.
func (r *OrderRepository) AddLine(ctx context.Context, orderID, userID, itemID string, qty int) error {
	_, err := r.db.conn(ctx).Exec(ctx, `INSERT INTO line_items (id, order_id, user_id, item_id, quantity)
		VALUES (gen_random_uuid()::text, $1, $2, $3, $4)
		ON CONFLICT (order_id, item_id) DO UPDATE SET quantity = line_items.quantity + EXCLUDED.quantity`,
		orderID, userID, itemID, qty)
	if err != nil {
		if isForeignKeyViolation(err) {
			return catalog.ErrNotFound
		}
		if isOutOfRange(err) {
			return validate.Errorf("quantity", "must be at most %d", validate.MaxQuantity)
		}
		return fmt.Errorf("adding item %q to order %q: %w", itemID, orderID, err)
	}
	return nil
}

// SetLineQuantity replaces the quantity of one line.
func (r *OrderRepository) SetLineQuantity(ctx context.Context, orderID, lineID string, qty int) error {
	tag, err := r.db.conn(ctx).Exec(ctx,
		`UPDATE line_items SET quantity = $3 WHERE id = $2 AND order_id = $1`, orderID, lineID, qty)
	if err != nil {
		if isOutOfRange(err) {
			return validate.Errorf("quantity", "must be between 1 and %d", validate.MaxQuantity)
		}
		return fmt.Errorf("setting quantity of line %q: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrLineNotFound
	}
	return nil
}

// RemoveLine deletes one line.
func (r *OrderRepository) RemoveLine(ctx context.Context, orderID, lineID string) error {
	tag, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM line_items WHERE id = $2 AND order_id = $1`, orderID, lineID)
	if err != nil {
		return fmt.Errorf("removing line %q: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrLineNotFound
	}
	return nil
}

// saveStateConflict maps a foreign key violation on orders to the record that
// disappeared underneath the order.
func saveStateConflict(err error) error {
	switch constraintName(err) {
	case "orders_coupon_id_fkey":
		return coupon.ErrNotFound
	case "orders_shipping_address_id_fkey", "orders_billing_address_id_fkey":
		return address.ErrNotFound
	case "orders_transaction_id_fkey":
		return payment.ErrNotFound
	}
	return fmt.Errorf("saving order: %w", err)
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o           order.Order
		orderedDate *time.Time
		couponID    *string
		couponCode  *string
		couponAmt   decimal.NullDecimal
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.RefCode, &o.State, &o.Refund,
		&o.StartDate, &orderedDate,
		&o.ShippingAddressID, &o.BillingAddressID, &o.TransactionID,
		&couponID, &couponCode, &couponAmt,
	)
	if err != nil {
		return nil, err
	}
	if orderedDate != nil {
		o.OrderedDate = *orderedDate
	}
	if couponID != nil && couponCode != nil {
		o.Coupon = &coupon.Coupon{ID: *couponID, Code: *couponCode, Amount: couponAmt.Decimal}
	}
	return &o, nil
}
