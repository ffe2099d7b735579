package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func discount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

func TestLineItemAmounts(t *testing.T) {
	tests := []struct {
		name       string
		line       LineItem
		total      string
		totalDisc  string
		saved      string
		finalPrice string
	}{
		{
			name:       "discounted",
			line:       LineItem{Quantity: 3, Price: d("100"), DiscountPrice: discount("80")},
			total:      "300",
			totalDisc:  "240",
			saved:      "60",
			finalPrice: "240",
		},
		{
			name:       "no discount",
			line:       LineItem{Quantity: 2, Price: d("19.99")},
			total:      "39.98",
			totalDisc:  "0",
			saved:      "39.98",
			finalPrice: "39.98",
		},
		{
			name:       "zero discount charges list price",
			line:       LineItem{Quantity: 2, Price: d("50.00"), DiscountPrice: discount("0.00")},
			total:      "100",
			totalDisc:  "0",
			saved:      "100",
			finalPrice: "100",
		},
		{
			name:       "cents",
			line:       LineItem{Quantity: 7, Price: d("0.10"), DiscountPrice: discount("0.05")},
			total:      "0.7",
			totalDisc:  "0.35",
			saved:      "0.35",
			finalPrice: "0.35",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, d(tt.total).Equal(tt.line.TotalPrice()), tt.line.TotalPrice().String())
			assert.True(t, d(tt.totalDisc).Equal(tt.line.TotalDiscountPrice()), tt.line.TotalDiscountPrice().String())
			assert.True(t, d(tt.saved).Equal(tt.line.AmountSaved()), tt.line.AmountSaved().String())
			assert.True(t, d(tt.finalPrice).Equal(tt.line.FinalPrice()), tt.line.FinalPrice().String())
		})
	}
}

func TestOrderTotals(t *testing.T) {
	o := &Order{
		Lines: []LineItem{
			{ID: "l1", Quantity: 3, Price: d("100"), DiscountPrice: discount("80")},
			{ID: "l2", Quantity: 1, Price: d("50")},
		},
	}
	assert.True(t, d("290").Equal(o.Subtotal()))
	assert.True(t, d("290").Equal(o.Total()))

	o.Coupon = couponOf("20")
	assert.True(t, d("270").Equal(o.Total()), o.Total().String())
	assert.True(t, d("270").Equal(o.Payable()))

	o.Coupon = couponOf("500")
	assert.True(t, d("-210").Equal(o.Total()), o.Total().String())
	assert.True(t, o.Payable().IsZero())

	empty := &Order{}
	assert.True(t, empty.Total().IsZero())

	l, ok := o.Line("l2")
	assert.True(t, ok)
	assert.Equal(t, 1, l.Quantity)
	_, ok = o.Line("missing")
	assert.False(t, ok)
}
