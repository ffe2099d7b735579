// Package address models the shipping and billing addresses of users.
package address

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/sqshop/internal/domain/validate"
)

// ErrNotFound is returned when an address does not exist or belongs to
// another user.
var ErrNotFound = errors.New("address not found")

// Type tags an address as shipping or billing.
type Type string

const (
	Shipping Type = "S"
	Billing  Type = "B"
)

// Address is a postal address owned by one user.
type Address struct {
	ID        string
	UserID    string
	Street    string
	Apartment string
	Country   string
	Type      Type
	Default   bool
}

// Validate checks required fields and the type tag.
func (a *Address) Validate() error {
	a.Street = strings.TrimSpace(a.Street)
	a.Apartment = strings.TrimSpace(a.Apartment)
	a.Country = strings.TrimSpace(a.Country)

	switch {
	case a.Street == "":
		return validate.Errorf("street_address", "is required")
	case len(a.Street) > 100:
		return validate.Errorf("street_address", "must be at most 100 characters")
	case len(a.Apartment) > 100:
		return validate.Errorf("apartment_address", "must be at most 100 characters")
	case a.Country == "":
		return validate.Errorf("country", "is required")
	case len(a.Country) > 50:
		return validate.Errorf("country", "must be at most 50 characters")
	}
	if a.Type != Shipping && a.Type != Billing {
		return validate.Errorf("address_type", "must be %q or %q", Shipping, Billing)
	}
	return nil
}

// Repository persists addresses. Save inserts or updates and, when the
// address is a default, clears the default flag on the user's other
// addresses of the same type atomically.
type Repository interface {
	Save(ctx context.Context, a *Address) error
	Get(ctx context.Context, userID, id string) (*Address, error)
	List(ctx context.Context, userID string) ([]Address, error)
	Delete(ctx context.Context, userID, id string) error
}

// Service implements address book operations for one acting user at a time.
type Service struct {
	repo Repository
}

// NewService creates an address Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create stores a new address for a.UserID.
func (s *Service) Create(ctx context.Context, a *Address) error {
	if err := a.Validate(); err != nil {
		return err
	}
	a.ID = uuid.New().String()
	return s.repo.Save(ctx, a)
}

// Update replaces an existing address of a.UserID.
func (s *Service) Update(ctx context.Context, a *Address) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, a.UserID, a.ID); err != nil {
		return err
	}
	return s.repo.Save(ctx, a)
}

// Get returns one address of userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*Address, error) {
	return s.repo.Get(ctx, userID, id)
}

// List returns every address of userID.
func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	return s.repo.List(ctx, userID)
}

// Delete removes one address of userID.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}
