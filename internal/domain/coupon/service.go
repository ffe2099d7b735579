package coupon

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Service manages the coupon book.
type Service struct {
	repo Repository
}

// NewService creates a coupon Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create normalizes, validates and stores a coupon.
func (s *Service) Create(ctx context.Context, c *Coupon) error {
	c.Code = NormalizeCode(c.Code)
	if err := c.Validate(); err != nil {
		return err
	}
	c.ID = uuid.New().String()
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrCodeTaken) {
			return ErrCodeTaken
		}
		return errors.Wrap(err, "create coupon")
	}
	return nil
}

// Lookup finds a coupon by code, ignoring case.
func (s *Service) Lookup(ctx context.Context, code string) (*Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrNotFound
	}
	return s.repo.FindByCode(ctx, code)
}

// Get returns a coupon by id.
func (s *Service) Get(ctx context.Context, id string) (*Coupon, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns every coupon.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	return s.repo.List(ctx)
}

// Delete removes a coupon. Orders referencing it lose the discount.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
