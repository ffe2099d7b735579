// Package refund handles refund requests against received orders and their
// acceptance by operators.
package refund

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/sqshop/internal/domain/order"
	"github.com/xenking/sqshop/internal/domain/validate"
)

// ErrNotFound is returned when a refund does not exist.
var ErrNotFound = errors.New("refund not found")

// Refund is a request to give the money of one order back. Accepted flips
// to true once and never reverts.
type Refund struct {
	ID        string
	OrderID   string
	Reason    string
	Email     string
	Accepted  bool
	CreatedAt time.Time
}

// Validate checks the user supplied fields.
func (r *Refund) Validate() error {
	if strings.TrimSpace(r.Reason) == "" {
		return validate.Errorf("reason", "must not be empty")
	}
	if len(r.Email) > 254 {
		return validate.Errorf("email", "too long")
	}
	addr, err := mail.ParseAddress(r.Email)
	if err != nil || addr.Address != r.Email {
		return validate.Errorf("email", "invalid address %q", r.Email)
	}
	return nil
}

// Repository persists refunds.
type Repository interface {
	Create(ctx context.Context, r *Refund) error
	Get(ctx context.Context, id string) (*Refund, error)
	// GetForUpdate returns and locks the refund until the unit of work ends.
	GetForUpdate(ctx context.Context, id string) (*Refund, error)
	MarkAccepted(ctx context.Context, id string) error
	List(ctx context.Context) ([]Refund, error)
	ListByOrder(ctx context.Context, orderID string) ([]Refund, error)
}

// Orders is the part of the order service refunds drive.
type Orders interface {
	Mutate(ctx context.Context, orderID string, fn func(ctx context.Context, o *order.Order) error) (*order.Order, error)
	Apply(ctx context.Context, o *order.Order, ev order.Event) error
}

// Service requests and accepts refunds. The refund row and the order's
// refund state always change in the same unit of work.
type Service struct {
	tx     order.Transactor
	repo   Repository
	orders Orders
	now    func() time.Time
}

// NewService creates a refund Service.
func NewService(tx order.Transactor, repo Repository, orders Orders) *Service {
	return &Service{tx: tx, repo: repo, orders: orders, now: time.Now}
}

// Request records a refund request for a received order.
func (s *Service) Request(ctx context.Context, orderID, reason, email string) (*Refund, error) {
	r := &Refund{
		ID:      uuid.New().String(),
		OrderID: orderID,
		Reason:  strings.TrimSpace(reason),
		Email:   strings.TrimSpace(email),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	_, err := s.orders.Mutate(ctx, orderID, func(ctx context.Context, o *order.Order) error {
		if err := s.orders.Apply(ctx, o, order.EventRequestRefund); err != nil {
			return err
		}
		r.CreatedAt = s.now()
		if err := s.repo.Create(ctx, r); err != nil {
			return errors.Wrap(err, "create refund")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Accept grants a refund and marks its order refunded. Accepting an already
// accepted refund is a no-op.
func (s *Service) Accept(ctx context.Context, id string) (*Refund, error) {
	var out *Refund
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.Accepted {
			out = r
			return nil
		}
		if _, err := s.orders.Mutate(ctx, r.OrderID, func(ctx context.Context, o *order.Order) error {
			return s.orders.Apply(ctx, o, order.EventAcceptRefund)
		}); err != nil {
			return err
		}
		if err := s.repo.MarkAccepted(ctx, id); err != nil {
			return errors.Wrap(err, "mark accepted")
		}
		r.Accepted = true
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Refund accepted",
		zap.String("refund_id", out.ID),
		zap.String("order_id", out.OrderID),
	)
	return out, nil
}

// Get returns a refund by id.
func (s *Service) Get(ctx context.Context, id string) (*Refund, error) {
	return s.repo.Get(ctx, id)
}

// List returns every refund, newest first.
func (s *Service) List(ctx context.Context) ([]Refund, error) {
	return s.repo.List(ctx)
}

// ListByOrder returns the refunds of one order.
func (s *Service) ListByOrder(ctx context.Context, orderID string) ([]Refund, error) {
	return s.repo.ListByOrder(ctx, orderID)
}
