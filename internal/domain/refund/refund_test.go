package refund

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sqshop/internal/domain/order"
	"github.com/xenking/sqshop/internal/domain/validate"
)

type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]order.Order
}

func (m *memOrders) Mutate(ctx context.Context, id string, fn func(ctx context.Context, o *order.Order) error) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if err := fn(ctx, &o); err != nil {
		return nil, err
	}
	m.orders[id] = o
	return &o, nil
}

func (m *memOrders) Apply(_ context.Context, o *order.Order, ev order.Event) error {
	return o.Apply(ev, time.Now())
}

type memRefunds struct {
	byID map[string]*Refund
	// failAccept makes MarkAccepted fail.
	failAccept bool
}

func (m *memRefunds) Create(_ context.Context, r *Refund) error {
	c := *r
	m.byID[r.ID] = &c
	return nil
}

func (m *memRefunds) Get(_ context.Context, id string) (*Refund, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *r
	return &c, nil
}

func (m *memRefunds) GetForUpdate(ctx context.Context, id string) (*Refund, error) {
	return m.Get(ctx, id)
}

func (m *memRefunds) MarkAccepted(_ context.Context, id string) error {
	if m.failAccept {
		return errors.New("disk full")
	}
	m.byID[id].Accepted = true
	return nil
}

func (m *memRefunds) List(context.Context) ([]Refund, error) {
	out := make([]Refund, 0, len(m.byID))
	for _, r := range m.byID {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memRefunds) ListByOrder(_ context.Context, orderID string) ([]Refund, error) {
	var out []Refund
	for _, r := range m.byID {
		if r.OrderID == orderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func newTestService() (*Service, *memOrders, *memRefunds) {
	orders := &memOrders{orders: map[string]order.Order{
		"received":  {ID: "received", State: order.StateReceived, Refund: order.RefundNone},
		"delivered": {ID: "delivered", State: order.StateBeingDelivered, Refund: order.RefundNone},
	}}
	refunds := &memRefunds{byID: make(map[string]*Refund)}
	return NewService(passTx{}, refunds, orders), orders, refunds
}

func TestRefundValidate(t *testing.T) {
	tests := []struct {
		name    string
		refund  Refund
		wantErr bool
	}{
		{"ok", Refund{Reason: "torn", Email: "a@example.com"}, false},
		{"empty reason", Refund{Reason: "  ", Email: "a@example.com"}, true},
		{"bad email", Refund{Reason: "torn", Email: "nope"}, true},
		{"display name", Refund{Reason: "torn", Email: "Bob <a@example.com>"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.refund.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var verr *validate.Error
			require.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestServiceRequest(t *testing.T) {
	ctx := context.Background()
	svc, orders, refunds := newTestService()

	var invalid *order.InvalidTransitionError
	_, err := svc.Request(ctx, "delivered", "torn", "a@example.com")
	require.True(t, errors.As(err, &invalid), "got %v", err)
	assert.Empty(t, refunds.byID)

	r, err := svc.Request(ctx, "received", "torn", " a@example.com ")
	require.NoError(t, err)
	assert.False(t, r.Accepted)
	assert.Equal(t, "a@example.com", r.Email)
	assert.Equal(t, order.RefundRequested, orders.orders["received"].Refund)

	_, err = svc.Request(ctx, "received", "again", "a@example.com")
	require.True(t, errors.As(err, &invalid))
	assert.Len(t, refunds.byID, 1)

	list, err := svc.ListByOrder(ctx, "received")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Request(ctx, "missing", "torn", "a@example.com")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestServiceAccept(t *testing.T) {
	ctx := context.Background()
	svc, orders, _ := newTestService()

	r, err := svc.Request(ctx, "received", "torn", "a@example.com")
	require.NoError(t, err)

	accepted, err := svc.Accept(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, accepted.Accepted)
	assert.Equal(t, order.RefundGranted, orders.orders["received"].Refund)

	// Idempotent.
	again, err := svc.Accept(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, again.Accepted)
	assert.Equal(t, order.RefundGranted, orders.orders["received"].Refund)

	_, err = svc.Accept(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceAcceptFailureKeepsRefundPending(t *testing.T) {
	ctx := context.Background()
	svc, _, refunds := newTestService()

	r, err := svc.Request(ctx, "received", "torn", "a@example.com")
	require.NoError(t, err)

	refunds.failAccept = true
	_, err = svc.Accept(ctx, r.ID)
	require.Error(t, err)

	stored, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, stored.Accepted)
}
