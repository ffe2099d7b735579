// Package handler exposes the shop over HTTP: a chi router, the API key
// middleware and the JSON codec for every resource.
package handler

import (
	"context"

	"github.com/xenking/sqshop/internal/domain/address"
	"github.com/xenking/sqshop/internal/domain/auth"
	"github.com/xenking/sqshop/internal/domain/catalog"
	"github.com/xenking/sqshop/internal/domain/coupon"
	"github.com/xenking/sqshop/internal/domain/order"
	"github.com/xenking/sqshop/internal/domain/payment"
	"github.com/xenking/sqshop/internal/domain/refund"
)

// Catalog is implemented by *catalog.Service.
type Catalog interface {
	Create(ctx context.Context, it *catalog.Item) error
	Update(ctx context.Context, it *catalog.Item) error
	Get(ctx context.Context, id string) (*catalog.Item, error)
	List(ctx context.Context, f catalog.Filter) ([]catalog.Item, error)
	Delete(ctx context.Context, id string) error
	SetImage(ctx context.Context, id string, raw []byte, name string) (*catalog.Item, error)
	Image(ctx context.Context, id string) ([]byte, string, error)
	Thumbnail(ctx context.Context, id string) ([]byte, string, error)
}

// Orders is implemented by *order.Service.
type Orders interface {
	Get(ctx context.Context, id string) (*order.Order, error)
	List(ctx context.Context, userID string) ([]order.Order, error)
	Cart(ctx context.Context, userID string) (*order.Order, error)
	AddItem(ctx context.Context, userID, itemID string, qty int) (*order.Order, error)
	SetQuantity(ctx context.Context, userID, lineID string, qty int) (*order.Order, error)
	RemoveLine(ctx context.Context, userID, lineID string) (*order.Order, error)
	ApplyCoupon(ctx context.Context, userID, code string) (*order.Order, error)
	RemoveCoupon(ctx context.Context, userID string) (*order.Order, error)
	Checkout(ctx context.Context, userID string, req order.CheckoutRequest) (*order.Order, error)
	Transition(ctx context.Context, orderID string, ev order.Event) (*order.Order, error)
	RecordPayment(ctx context.Context, orderID, number string) (*order.Order, *payment.Transaction, error)
}

// Refunds is implemented by *refund.Service.
type Refunds interface {
	Request(ctx context.Context, orderID, reason, email string) (*refund.Refund, error)
	Accept(ctx context.Context, id string) (*refund.Refund, error)
	Get(ctx context.Context, id string) (*refund.Refund, error)
	List(ctx context.Context) ([]refund.Refund, error)
	ListByOrder(ctx context.Context, orderID string) ([]refund.Refund, error)
}

// Addresses is implemented by *address.Service.
type Addresses interface {
	Create(ctx context.Context, a *address.Address) error
	Update(ctx context.Context, a *address.Address) error
	Get(ctx context.Context, userID, id string) (*address.Address, error)
	List(ctx context.Context, userID string) ([]address.Address, error)
	Delete(ctx context.Context, userID, id string) error
}

// Coupons is implemented by *coupon.Service.
type Coupons interface {
	Create(ctx context.Context, c *coupon.Coupon) error
	List(ctx context.Context) ([]coupon.Coupon, error)
	Delete(ctx context.Context, id string) error
}

// Authenticator is implemented by *auth.Authenticator.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error)
}

// Deps holds the services the handlers delegate to.
type Deps struct {
	Catalog      Catalog
	Orders       Orders
	Refunds      Refunds
	Addresses    Addresses
	Coupons      Coupons
	Transactions payment.Repository
	Auth         Authenticator
}

// Config holds non-dependency handler settings.
type Config struct {
	// MaxImageBytes caps image upload bodies. Defaults to 10 MiB.
	MaxImageBytes int64
}

// Handler serves the /api routes.
type Handler struct {
	catalog      Catalog
	orders       Orders
	refunds      Refunds
	addresses    Addresses
	coupons      Coupons
	transactions payment.Repository
	auth         Authenticator

	maxImageBytes int64
}

// New creates a Handler.
func New(cfg Config, deps Deps) *Handler {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 10 << 20
	}
	return &Handler{
		catalog:       deps.Catalog,
		orders:        deps.Orders,
		refunds:       deps.Refunds,
		addresses:     deps.Addresses,
		coupons:       deps.Coupons,
		transactions:  deps.Transactions,
		auth:          deps.Auth,
		maxImageBytes: cfg.MaxImageBytes,
	}
}
