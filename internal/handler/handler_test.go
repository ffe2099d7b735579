package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sqshop/internal/domain/auth"
	"github.com/xenking/sqshop/internal/domain/catalog"
	"github.com/xenking/sqshop/internal/domain/coupon"
	"github.com/xenking/sqshop/internal/domain/order"
	"github.com/xenking/sqshop/internal/domain/payment"
	"github.com/xenking/sqshop/internal/domain/refund"
)

const (
	shopKey   = "shop-key"
	adminKey  = "admin-key"
	brokenKey = "broken-key"
)

type fakeAuth struct{}

func (fakeAuth) Authenticate(_ context.Context, key string) (*auth.APIKeyInfo, error) {
	switch key {
	case shopKey:
		return &auth.APIKeyInfo{UserID: "alice", Scopes: []string{auth.ScopeShop}}, nil
	case adminKey:
		return &auth.APIKeyInfo{UserID: "ops", Scopes: []string{auth.ScopeShop, auth.ScopeAdmin}}, nil
	case brokenKey:
		return nil, errors.New("find api key: connection refused")
	}
	return nil, auth.ErrUnauthorized
}

// Embedded interfaces panic on methods a test does not expect.
type fakeCatalog struct {
	Catalog
	created []*catalog.Item
	image   []byte
}

func (f *fakeCatalog) Create(_ context.Context, it *catalog.Item) error {
	it.Normalize()
	if err := it.Validate(); err != nil {
		return err
	}
	it.ID = "item-1"
	f.created = append(f.created, it)
	return nil
}

func (f *fakeCatalog) Get(_ context.Context, id string) (*catalog.Item, error) {
	if id == "boom" {
		return nil, errors.New("connection reset")
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) Image(_ context.Context, id string) ([]byte, string, error) {
	if f.image == nil {
		return nil, "", catalog.ErrNoImage
	}
	return f.image, "shirt.png", nil
}

type fakeOrders struct {
	Orders
	orders      map[string]*order.Order
	transitions []order.Event
}

func (f *fakeOrders) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) Cart(_ context.Context, userID string) (*order.Order, error) {
	return f.orders["cart-"+userID], nil
}

func (f *fakeOrders) AddItem(_ context.Context, userID, itemID string, qty int) (*order.Order, error) {
	if itemID == "closed" {
		return nil, order.ErrCartClosed
	}
	o := f.orders["cart-"+userID]
	o.Lines[0].Quantity += qty
	return o, nil
}

func (f *fakeOrders) Transition(_ context.Context, id string, ev order.Event) (*order.Order, error) {
	o := f.orders[id]
	if err := o.Apply(ev, time.Now()); err != nil {
		return nil, err
	}
	f.transitions = append(f.transitions, ev)
	return o, nil
}

type fakeRefunds struct {
	Refunds
	accepted []string
}

func (f *fakeRefunds) Accept(_ context.Context, id string) (*refund.Refund, error) {
	f.accepted = append(f.accepted, id)
	return &refund.Refund{ID: id, OrderID: "o-1", Accepted: true}, nil
}

func (f *fakeRefunds) Get(_ context.Context, id string) (*refund.Refund, error) {
	return &refund.Refund{ID: id, OrderID: "o-bob", Reason: "late", Email: "bob@example.com"}, nil
}

type fakeCoupons struct {
	Coupons
}

func (fakeCoupons) List(context.Context) ([]coupon.Coupon, error) {
	return []coupon.Coupon{{ID: "c1", Code: "SAVE20", Amount: decimal.NewFromInt(20)}}, nil
}

type fakeTransactions struct {
	payment.Repository
}

func (fakeTransactions) Get(_ context.Context, id string) (*payment.Transaction, error) {
	return &payment.Transaction{ID: id, Number: "ch_1", UserID: "bob", Amount: decimal.NewFromInt(5)}, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	catalog *fakeCatalog
	orders  *fakeOrders
	refunds *fakeRefunds
	server  http.Handler
}

func newFixture() *fixture {
	cart := &order.Order{
		ID: "cart-alice", UserID: "alice", State: order.StateCart, Refund: order.RefundNone,
		Lines: []order.LineItem{{
			ID: "l1", ItemID: "shirt", ItemName: "Shirt", Quantity: 3,
			Price: d("100"), DiscountPrice: decimal.NewNullDecimal(d("80")),
		}},
		Coupon: &coupon.Coupon{ID: "c1", Code: "SAVE20", Amount: d("20")},
	}
	f := &fixture{
		catalog: &fakeCatalog{},
		orders: &fakeOrders{orders: map[string]*order.Order{
			"cart-alice": cart,
			"o-alice":    {ID: "o-alice", UserID: "alice", State: order.StateBeingDelivered, Refund: order.RefundNone},
			"o-bob":      {ID: "o-bob", UserID: "bob", State: order.StateOrdered, Refund: order.RefundNone},
		}},
		refunds: &fakeRefunds{},
	}
	h := New(Config{}, Deps{
		Catalog:      f.catalog,
		Orders:       f.orders,
		Refunds:      f.refunds,
		Coupons:      fakeCoupons{},
		Transactions: fakeTransactions{},
		Auth:         fakeAuth{},
	})
	f.server = h.Router()
	return f
}

func (f *fixture) do(t *testing.T, key, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func object(t *testing.T, b []byte) map[string]jx.Raw {
	t.Helper()
	out := map[string]jx.Raw{}
	require.NoError(t, jx.DecodeBytes(b).Obj(func(d *jx.Decoder, key string) error {
		raw, err := d.Raw()
		out[key] = raw
		return err
	}), string(b))
	return out
}

func array(t *testing.T, b []byte) []jx.Raw {
	t.Helper()
	var out []jx.Raw
	require.NoError(t, jx.DecodeBytes(b).Arr(func(d *jx.Decoder) error {
		raw, err := d.Raw()
		out = append(out, raw)
		return err
	}), string(b))
	return out
}

func str(t *testing.T, raw jx.Raw) string {
	t.Helper()
	s, err := jx.DecodeBytes(raw).Str()
	require.NoError(t, err, raw.String())
	return s
}

func TestAuthentication(t *testing.T) {
	f := newFixture()

	w := f.do(t, "", http.MethodGet, "/api/cart", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, "nope", http.MethodGet, "/api/cart", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A failing key store is a server error, not a bad key.
	w = f.do(t, brokenKey, http.MethodGet, "/api/cart", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = f.do(t, shopKey, http.MethodPost, "/api/items", `{}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, shopKey, http.MethodGet, "/api/coupons", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, adminKey, http.MethodGet, "/api/coupons", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := array(t, w.Body.Bytes())
	require.Len(t, list, 1)
	assert.Equal(t, "20.00", str(t, object(t, list[0])["amount"]))
}

func TestCartRendersDerivedAmounts(t *testing.T) {
	f := newFixture()

	w := f.do(t, shopKey, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	o := object(t, w.Body.Bytes())
	assert.Equal(t, "cart", str(t, o["state"]))
	assert.Equal(t, "null", o["ref_code"].String())
	assert.Equal(t, "false", o["ordered"].String())
	assert.Equal(t, "240.00", str(t, o["subtotal"]))
	assert.Equal(t, "220.00", str(t, o["total"]))
	assert.Equal(t, "220.00", str(t, o["payable"]))

	lines := array(t, o["lines"])
	require.Len(t, lines, 1)
	line := object(t, lines[0])
	assert.Equal(t, "300.00", str(t, line["total_price"]))
	assert.Equal(t, "240.00", str(t, line["total_discount_price"]))
	assert.Equal(t, "60.00", str(t, line["amount_saved"]))
	assert.Equal(t, "240.00", str(t, line["final_price"]))
	assert.Equal(t, "80.00", str(t, line["discount_price"]))
}

func TestAddCartItem(t *testing.T) {
	f := newFixture()

	w := f.do(t, shopKey, http.MethodPost, "/api/cart/items", `{"item_id":"shirt","quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 5, f.orders.orders["cart-alice"].Lines[0].Quantity)

	w = f.do(t, shopKey, http.MethodPost, "/api/cart/items", `{"quantity":2}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "item_id", str(t, object(t, w.Body.Bytes())["field"]))

	w = f.do(t, shopKey, http.MethodPost, "/api/cart/items", `{"item_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, shopKey, http.MethodPost, "/api/cart/items", `{"item_id":"closed"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateItem(t *testing.T) {
	f := newFixture()
	body := `{"name":"Tee","slug":"tee","size":"M","category":"shirt","label":"primary",
		"price":"19.99","discount_price":15}`

	w := f.do(t, adminKey, http.MethodPost, "/api/items", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	it := object(t, w.Body.Bytes())
	assert.Equal(t, "19.99", str(t, it["price"]))
	assert.Equal(t, "15.00", str(t, it["discount_price"]))
	assert.Equal(t, "more info", str(t, it["additional_information"]))
	require.Len(t, f.catalog.created, 1)
	assert.True(t, f.catalog.created[0].Available)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"DiscountNotBelowPrice", `{"name":"a","slug":"a","size":"S","category":"shirt","label":"primary","price":"10","discount_price":"10"}`, "discount_price"},
		{"ThreeDecimals", `{"name":"a","slug":"a","size":"S","category":"shirt","label":"primary","price":"10.001"}`, "price"},
		{"PriceNotNumber", `{"name":"a","slug":"a","price":true}`, "price"},
		{"BadSlug", `{"name":"a","slug":"Not A Slug","size":"S","category":"shirt","label":"primary","price":"1"}`, "slug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, adminKey, http.MethodPost, "/api/items", tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
			assert.Equal(t, tt.field, str(t, object(t, w.Body.Bytes())["field"]))
		})
	}
}

func TestItemErrors(t *testing.T) {
	f := newFixture()

	w := f.do(t, shopKey, http.MethodGet, "/api/items/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, shopKey, http.MethodGet, "/api/items/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", str(t, object(t, w.Body.Bytes())["message"]))

	w = f.do(t, shopKey, http.MethodGet, "/api/items/x/image", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.catalog.image = []byte{0xff, 0xd8, 0xff}
	w = f.do(t, shopKey, http.MethodGet, "/api/items/x/image", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, f.catalog.image, w.Body.Bytes())
}

func TestOrderOwnership(t *testing.T) {
	f := newFixture()

	w := f.do(t, shopKey, http.MethodGet, "/api/orders/o-bob", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, adminKey, http.MethodGet, "/api/orders/o-bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", str(t, object(t, w.Body.Bytes())["user_id"]))

	w = f.do(t, shopKey, http.MethodGet, "/api/refunds/r1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, shopKey, http.MethodGet, "/api/transactions/t1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderEvents(t *testing.T) {
	f := newFixture()

	w := f.do(t, shopKey, http.MethodPost, "/api/orders/o-alice/events", `{"event":"checkout"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, shopKey, http.MethodPost, "/api/orders/o-alice/events", `{"event":"start_delivery"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, shopKey, http.MethodPost, "/api/orders/o-alice/events", `{"event":"mark_received"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "received", str(t, object(t, w.Body.Bytes())["state"]))

	// Already received.
	w = f.do(t, shopKey, http.MethodPost, "/api/orders/o-alice/events", `{"event":"mark_received"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "event", str(t, object(t, w.Body.Bytes())["field"]))

	w = f.do(t, adminKey, http.MethodPost, "/api/orders/o-bob/events", `{"event":"start_delivery"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []order.Event{order.EventMarkReceived, order.EventStartDelivery}, f.orders.transitions)
}

func TestAcceptRefundRequiresAdmin(t *testing.T) {
	f := newFixture()

	w := f.do(t, shopKey, http.MethodPost, "/api/refunds/r1/accept", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.refunds.accepted)

	w = f.do(t, adminKey, http.MethodPost, "/api/refunds/r1/accept", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", object(t, w.Body.Bytes())["accepted"].String())
	assert.Equal(t, []string{"r1"}, f.refunds.accepted)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture()
	w := f.do(t, shopKey, http.MethodGet, "/api/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
