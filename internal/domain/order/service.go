package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/sqshop/internal/domain/address"
	"github.com/xenking/sqshop/internal/domain/catalog"
	"github.com/xenking/sqshop/internal/domain/coupon"
	"github.com/xenking/sqshop/internal/domain/payment"
	"github.com/xenking/sqshop/internal/domain/validate"
)

// ItemFinder looks up catalog items.
type ItemFinder interface {
	GetByID(ctx context.Context, id string) (*catalog.Item, error)
}

// CouponFinder looks up coupons by code.
type CouponFinder interface {
	Lookup(ctx context.Context, code string) (*coupon.Coupon, error)
}

// AddressFinder looks up addresses of a user.
type AddressFinder interface {
	Get(ctx context.Context, userID, id string) (*address.Address, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Tx        Transactor
	Orders    Repository
	Items     ItemFinder
	Coupons   CouponFinder
	Addresses AddressFinder
	Payments  payment.Repository
	// MeterProvider is optional.
	MeterProvider metric.MeterProvider
}

// Service implements cart editing, checkout and fulfillment transitions.
// Every mutation locks the order row for the duration of its unit of work.
type Service struct {
	tx        Transactor
	orders    Repository
	items     ItemFinder
	coupons   CouponFinder
	addresses AddressFinder
	payments  payment.Repository

	transitions metric.Int64Counter
	now         func() time.Time
}

// NewService creates an order Service.
func NewService(deps Deps) (*Service, error) {
	mp := deps.MeterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	transitions, err := mp.Meter("sqshop/order").Int64Counter("sqshop.order.transitions",
		metric.WithDescription("Order lifecycle events applied"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create transitions counter")
	}
	return &Service{
		tx:          deps.Tx,
		orders:      deps.Orders,
		items:       deps.Items,
		coupons:     deps.Coupons,
		addresses:   deps.Addresses,
		payments:    deps.Payments,
		transitions: transitions,
		now:         time.Now,
	}, nil
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// List returns every order of userID, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// Cart returns the open cart of userID, creating an empty one if needed.
func (s *Service) Cart(ctx context.Context, userID string) (*Order, error) {
	var cart *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		cart, err = s.orders.OpenCart(ctx, userID, uuid.New().String(), s.now())
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "open cart")
	}
	return cart, nil
}

// AddItem puts qty of itemID into the user's cart. Adding an item already in
// the cart increases that line's quantity.
func (s *Service) AddItem(ctx context.Context, userID, itemID string, qty int) (*Order, error) {
	if err := validate.Quantity("quantity", qty); err != nil {
		return nil, err
	}
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Available {
		return nil, ErrItemUnavailable
	}

	return s.editCart(ctx, userID, true, func(ctx context.Context, cart *Order) error {
		for _, l := range cart.Lines {
			if l.ItemID != itemID {
				continue
			}
			if err := validate.Quantity("quantity", l.Quantity+qty); err != nil {
				return err
			}
		}
		return s.orders.AddLine(ctx, cart.ID, userID, itemID, qty)
	})
}

// SetQuantity changes the quantity of one cart line.
func (s *Service) SetQuantity(ctx context.Context, userID, lineID string, qty int) (*Order, error) {
	if err := validate.Quantity("quantity", qty); err != nil {
		return nil, err
	}
	return s.editCart(ctx, userID, false, func(ctx context.Context, cart *Order) error {
		if _, ok := cart.Line(lineID); !ok {
			return ErrLineNotFound
		}
		return s.orders.SetLineQuantity(ctx, cart.ID, lineID, qty)
	})
}

// RemoveLine drops one line from the user's cart.
func (s *Service) RemoveLine(ctx context.Context, userID, lineID string) (*Order, error) {
	return s.editCart(ctx, userID, false, func(ctx context.Context, cart *Order) error {
		if _, ok := cart.Line(lineID); !ok {
			return ErrLineNotFound
		}
		return s.orders.RemoveLine(ctx, cart.ID, lineID)
	})
}

// ApplyCoupon attaches the coupon with code to the user's cart, replacing
// any previous one.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (*Order, error) {
	c, err := s.coupons.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.editCart(ctx, userID, true, func(ctx context.Context, cart *Order) error {
		cart.Coupon = c
		return s.orders.SaveState(ctx, cart)
	})
}

// RemoveCoupon detaches the coupon from the user's cart.
func (s *Service) RemoveCoupon(ctx context.Context, userID string) (*Order, error) {
	return s.editCart(ctx, userID, false, func(ctx context.Context, cart *Order) error {
		cart.Coupon = nil
		return s.orders.SaveState(ctx, cart)
	})
}

// editCart locks the user's cart, runs fn and returns the reloaded cart.
func (s *Service) editCart(ctx context.Context, userID string, create bool, fn func(ctx context.Context, cart *Order) error) (*Order, error) {
	var out *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var (
			cart *Order
			err  error
		)
		if create {
			cart, err = s.orders.OpenCart(ctx, userID, uuid.New().String(), s.now())
		} else {
			cart, err = s.orders.ActiveCart(ctx, userID)
		}
		if err != nil {
			return err
		}
		if cart.State != StateCart {
			return ErrCartClosed
		}
		if err := fn(ctx, cart); err != nil {
			return err
		}
		out, err = s.orders.Get(ctx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckoutRequest carries the optional addresses chosen at checkout.
type CheckoutRequest struct {
	ShippingAddressID string
	BillingAddressID  string
}

// Checkout turns the user's cart into an order.
func (s *Service) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*Order, error) {
	if err := s.checkAddress(ctx, userID, req.ShippingAddressID, address.Shipping, "shipping_address_id"); err != nil {
		return nil, err
	}
	if err := s.checkAddress(ctx, userID, req.BillingAddressID, address.Billing, "billing_address_id"); err != nil {
		return nil, err
	}

	var out *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cart, err := s.orders.ActiveCart(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if req.ShippingAddressID != "" {
			cart.ShippingAddressID = req.ShippingAddressID
		}
		if req.BillingAddressID != "" {
			cart.BillingAddressID = req.BillingAddressID
		}
		if err := s.apply(ctx, cart, EventCheckout); err != nil {
			return err
		}
		if err := s.orders.SaveState(ctx, cart); err != nil {
			return errors.Wrap(err, "save order")
		}
		out = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) checkAddress(ctx context.Context, userID, id string, want address.Type, field string) error {
	if id == "" {
		return nil
	}
	a, err := s.addresses.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, address.ErrNotFound) {
			return validate.Errorf(field, "unknown address %q", id)
		}
		return errors.Wrap(err, "get address")
	}
	if a.Type != want {
		return validate.Errorf(field, "address %q is not of type %s", id, want)
	}
	return nil
}

// Transition applies a fulfillment event (checkout, start_delivery,
// mark_received) to an order. Refund events go through the refund service.
func (s *Service) Transition(ctx context.Context, orderID string, ev Event) (*Order, error) {
	if ev == EventRequestRefund || ev == EventAcceptRefund {
		return nil, ErrRefundEvent
	}
	return s.Mutate(ctx, orderID, func(ctx context.Context, o *Order) error {
		return s.apply(ctx, o, ev)
	})
}

// Mutate locks one order, runs fn on it and persists the result in the same
// unit of work. fn must leave the order unchanged when it fails.
func (s *Service) Mutate(ctx context.Context, orderID string, fn func(ctx context.Context, o *Order) error) (*Order, error) {
	var out *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := fn(ctx, o); err != nil {
			return err
		}
		if err := s.orders.SaveState(ctx, o); err != nil {
			return errors.Wrap(err, "save order")
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Apply runs ev against o and records it. It does not persist o; callers
// use it inside Mutate.
func (s *Service) Apply(ctx context.Context, o *Order, ev Event) error {
	if err := o.Apply(ev, s.now()); err != nil {
		return err
	}
	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(ev))))
	zctx.From(ctx).Info("Order transition",
		zap.String("order_id", o.ID),
		zap.String("event", string(ev)),
		zap.String("state", string(o.State)),
		zap.String("refund", string(o.Refund)),
	)
	return nil
}

func (s *Service) apply(ctx context.Context, o *Order, ev Event) error {
	if err := s.Apply(ctx, o, ev); err != nil {
		return err
	}
	if ev == EventCheckout && o.RefCode == "" {
		o.RefCode = NewRefCode()
	}
	return nil
}

// RecordPayment stores a payment record for an ordered, unpaid order and
// attaches it. The amount charged is the order's payable amount.
func (s *Service) RecordPayment(ctx context.Context, orderID, number string) (*Order, *payment.Transaction, error) {
	number = strings.TrimSpace(number)
	if number == "" || len(number) > 50 {
		return nil, nil, validate.Errorf("transaction_number", "must be 1-50 characters")
	}

	var txn *payment.Transaction
	o, err := s.Mutate(ctx, orderID, func(ctx context.Context, o *Order) error {
		if o.TransactionID != "" {
			return ErrAlreadyPaid
		}
		if o.State != StateOrdered {
			return &InvalidTransitionError{Event: "pay", State: o.State, Refund: o.Refund}
		}
		amount := o.Payable()
		if err := payment.ValidateAmount(amount); err != nil {
			return err
		}
		t := &payment.Transaction{
			ID:        uuid.New().String(),
			Number:    number,
			UserID:    o.UserID,
			Amount:    amount,
			Timestamp: s.now(),
		}
		if err := s.payments.Create(ctx, t); err != nil {
			return errors.Wrap(err, "create transaction")
		}
		o.TransactionID = t.ID
		txn = t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return o, txn, nil
}

// NewRefCode returns a 20 character upper-case order reference.
func NewRefCode() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(id[:20])
}
