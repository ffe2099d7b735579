package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sqshop/internal/domain/validate"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func discount(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(v))
}

func validItem() Item {
	return Item{
		Name:        "Linen shirt",
		Size:        SizeMedium,
		Price:       d("100.00"),
		Category:    CategoryShirt,
		Label:       LabelPrimary,
		Slug:        "linen-shirt",
		Available:   true,
		Description: "Breathable",
	}
}

func TestItem_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(it *Item)
		wantField string
	}{
		{name: "valid without discount", mutate: func(*Item) {}},
		{name: "valid with discount", mutate: func(it *Item) { it.DiscountPrice = discount("80.00") }},
		{name: "zero price", mutate: func(it *Item) { it.Price = decimal.Zero }},
		{
			name: "discount above price",
			mutate: func(it *Item) {
				it.Price = d("50.00")
				it.DiscountPrice = discount("60.00")
			},
			wantField: "discount_price",
		},
		{
			name:      "discount equal to price",
			mutate:    func(it *Item) { it.DiscountPrice = discount("100.00") },
			wantField: "discount_price",
		},
		{name: "negative price", mutate: func(it *Item) { it.Price = d("-1") }, wantField: "price"},
		{name: "price with 3 decimals", mutate: func(it *Item) { it.Price = d("1.005") }, wantField: "price"},
		{name: "price too large", mutate: func(it *Item) { it.Price = d("10000") }, wantField: "price"},
		{name: "missing name", mutate: func(it *Item) { it.Name = "" }, wantField: "name"},
		{name: "unknown size", mutate: func(it *Item) { it.Size = "XXS" }, wantField: "size"},
		{name: "unknown category", mutate: func(it *Item) { it.Category = "hats" }, wantField: "category"},
		{name: "unknown label", mutate: func(it *Item) { it.Label = "info" }, wantField: "label"},
		{name: "bad slug", mutate: func(it *Item) { it.Slug = "Linen Shirt" }, wantField: "slug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := validItem()
			tt.mutate(&it)

			err := it.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var verr *validate.Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestItem_Normalize(t *testing.T) {
	it := Item{Name: "  Cap ", Slug: " Blue-Cap "}
	it.Normalize()

	assert.Equal(t, "Cap", it.Name)
	assert.Equal(t, "blue-cap", it.Slug)
	assert.Equal(t, DefaultAdditionalInformation, it.AdditionalInformation)
	assert.False(t, it.HasDiscount())
}

func TestItem_NormalizeDropsZeroDiscount(t *testing.T) {
	it := validItem()
	it.Price = decimal.RequireFromString("50.00")
	it.DiscountPrice = decimal.NewNullDecimal(decimal.RequireFromString("0.00"))
	require.False(t, it.HasDiscount())

	it.Normalize()
	assert.False(t, it.DiscountPrice.Valid)
	require.NoError(t, it.Validate())

	it.DiscountPrice = decimal.NewNullDecimal(decimal.RequireFromString("40.00"))
	it.Normalize()
	assert.True(t, it.HasDiscount())
}
