// Package order implements carts, order totals and the fulfillment
// lifecycle of an order.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/sqshop/internal/domain/coupon"
)

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrLineNotFound is returned when a line item is not part of the cart.
	ErrLineNotFound = errors.New("line item not found")
	// ErrCartClosed is returned when editing an order that left the cart state.
	ErrCartClosed = errors.New("order is no longer editable")
	// ErrEmptyCart is returned when checking out a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrItemUnavailable is returned when adding an item that is not for sale.
	ErrItemUnavailable = errors.New("item is not available")
	// ErrAlreadyPaid is returned when recording a second payment for an order.
	ErrAlreadyPaid = errors.New("order already has a payment")
	// ErrRefundEvent is returned when a refund event is sent to Transition.
	// Refunds are requested and accepted through the refund service.
	ErrRefundEvent = errors.New("refund events are handled by the refund service")
)

// Order aggregates the line items of one user. Lines are owned exclusively
// by the order.
type Order struct {
	ID      string
	UserID  string
	RefCode string
	Lines   []LineItem
	Coupon  *coupon.Coupon

	State  State
	Refund RefundState

	StartDate   time.Time
	OrderedDate time.Time

	ShippingAddressID string
	BillingAddressID  string
	TransactionID     string
}

// Subtotal sums the final price of every line.
func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for i := range o.Lines {
		total = total.Add(o.Lines[i].FinalPrice())
	}
	return total
}

// Total is Subtotal minus the coupon amount. It is not clamped: a coupon
// larger than the subtotal makes it negative.
func (o *Order) Total() decimal.Decimal {
	total := o.Subtotal()
	if o.Coupon != nil {
		total = total.Sub(o.Coupon.Amount)
	}
	return total
}

// Payable is Total floored at zero, the amount a payment is recorded for.
func (o *Order) Payable() decimal.Decimal {
	total := o.Total()
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Line returns the line with id.
func (o *Order) Line(id string) (*LineItem, bool) {
	for i := range o.Lines {
		if o.Lines[i].ID == id {
			return &o.Lines[i], true
		}
	}
	return nil, false
}

// Ordered reports whether the order has been checked out.
func (o *Order) Ordered() bool { return o.State.rank() >= StateOrdered.rank() }

// BeingDelivered reports whether shipment has started.
func (o *Order) BeingDelivered() bool { return o.State.rank() >= StateBeingDelivered.rank() }

// Received reports whether the customer received the order.
func (o *Order) Received() bool { return o.State == StateReceived }

// RefundRequested reports whether a refund was ever requested.
func (o *Order) RefundRequested() bool { return o.Refund != RefundNone }

// RefundGranted reports whether a refund was accepted. Terminal.
func (o *Order) RefundGranted() bool { return o.Refund == RefundGranted }

// Repository persists orders. Methods that lock (OpenCart, ActiveCart,
// GetForUpdate) must be called inside Transactor.WithinTx; the row lock is
// held until the unit of work ends.
type Repository interface {
	// OpenCart returns the user's cart, creating it with newID when the user
	// has none, and locks it.
	OpenCart(ctx context.Context, userID, newID string, now time.Time) (*Order, error)
	// ActiveCart returns and locks the user's cart, or ErrNotFound.
	ActiveCart(ctx context.Context, userID string) (*Order, error)
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// SaveState writes every order-level field and the lines' ordered flags.
	SaveState(ctx context.Context, o *Order) error
	// AddLine merges qty into the order's line for itemID, creating it when
	// absent.
	AddLine(ctx context.Context, orderID, userID, itemID string, qty int) error
	SetLineQuantity(ctx context.Context, orderID, lineID string, qty int) error
	RemoveLine(ctx context.Context, orderID, lineID string) error
}

// Transactor runs fn in one database transaction. Nested calls join the
// outer transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
