// Package catalog models the sellable items of the shop and owns the image
// transform applied to their pictures.
package catalog

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/sqshop/internal/domain/validate"
)

var (
	// ErrNotFound is returned when a requested item does not exist.
	ErrNotFound = errors.New("item not found")
	// ErrSlugTaken is returned when another item already uses the slug.
	ErrSlugTaken = errors.New("slug already taken")
	// ErrInUse is returned when deleting an item still referenced by a cart line.
	ErrInUse = errors.New("item is referenced by line items")
	// ErrNoImage is returned when an item has no stored image.
	ErrNoImage = errors.New("item has no image")
)

// Size is the garment size of an item.
type Size string

const (
	SizeSmall      Size = "S"
	SizeMedium     Size = "M"
	SizeLarge      Size = "L"
	SizeExtraLarge Size = "XL"
)

// Category groups items in the storefront.
type Category string

const (
	CategoryShirt     Category = "shirt"
	CategorySportWear Category = "sport_wear"
	CategoryOutwear   Category = "outwear"
)

// Label is the badge colour an item is displayed with.
type Label string

const (
	LabelPrimary   Label = "primary"
	LabelSecondary Label = "secondary"
	LabelDanger    Label = "danger"
)

// DefaultAdditionalInformation is stored when no additional information is given.
const DefaultAdditionalInformation = "more info"

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Item is a sellable product.
type Item struct {
	ID                    string
	Name                  string
	Size                  Size
	Price                 decimal.Decimal
	DiscountPrice         decimal.NullDecimal
	Category              Category
	Label                 Label
	Slug                  string
	Available             bool
	Description           string
	AdditionalInformation string
	// ImageKey names the compressed image in the ImageStore; empty when the
	// item has no picture yet.
	ImageKey  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasDiscount reports whether a non-zero discount price is set.
func (it *Item) HasDiscount() bool {
	return it.DiscountPrice.Valid && it.DiscountPrice.Decimal.IsPositive()
}

// Normalize trims free-text fields and fills defaults before validation.
func (it *Item) Normalize() {
	it.Name = strings.TrimSpace(it.Name)
	it.Slug = strings.ToLower(strings.TrimSpace(it.Slug))
	if strings.TrimSpace(it.AdditionalInformation) == "" {
		it.AdditionalInformation = DefaultAdditionalInformation
	}
	// A zero discount price means no discount.
	if it.DiscountPrice.Valid && it.DiscountPrice.Decimal.IsZero() {
		it.DiscountPrice = decimal.NullDecimal{}
	}
}

// Validate enforces the item invariants. A discount price, when present, must
// be strictly less than the list price.
func (it *Item) Validate() error {
	if it.Name == "" {
		return validate.Errorf("name", "is required")
	}
	if len(it.Name) > 100 {
		return validate.Errorf("name", "must be at most 100 characters")
	}
	switch it.Size {
	case SizeSmall, SizeMedium, SizeLarge, SizeExtraLarge:
	default:
		return validate.Errorf("size", "unknown size %q", it.Size)
	}
	switch it.Category {
	case CategoryShirt, CategorySportWear, CategoryOutwear:
	default:
		return validate.Errorf("category", "unknown category %q", it.Category)
	}
	switch it.Label {
	case LabelPrimary, LabelSecondary, LabelDanger:
	default:
		return validate.Errorf("label", "unknown label %q", it.Label)
	}
	if !slugPattern.MatchString(it.Slug) {
		return validate.Errorf("slug", "must be lower-case words separated by dashes")
	}
	if err := validate.Money("price", it.Price); err != nil {
		return err
	}
	if it.DiscountPrice.Valid {
		if err := validate.Money("discount_price", it.DiscountPrice.Decimal); err != nil {
			return err
		}
		if !it.DiscountPrice.Decimal.LessThan(it.Price) {
			return validate.Errorf("discount_price", "must be less than price %s", it.Price.StringFixed(2))
		}
	}
	return nil
}

// Filter narrows item listings. Zero values mean "any".
type Filter struct {
	Category      Category
	AvailableOnly bool
}

// Repository persists catalog items.
type Repository interface {
	Create(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Item, error)
	GetBySlug(ctx context.Context, slug string) (*Item, error)
	List(ctx context.Context, f Filter) ([]Item, error)
	SetImageKey(ctx context.Context, id, key string) error
}
