package order

import "github.com/shopspring/decimal"

// LineItem is a quantity of one catalog item inside an order. Price and
// DiscountPrice mirror the item's current catalog prices; every derived
// amount is computed on read and never stored.
type LineItem struct {
	ID       string
	OrderID  string
	UserID   string
	ItemID   string
	ItemName string
	Quantity int
	// Ordered is set once the owning order is checked out; the line is
	// immutable from then on.
	Ordered       bool
	Price         decimal.Decimal
	DiscountPrice decimal.NullDecimal
}

// discounted reports whether the line is charged its discount price. A zero
// discount price counts as no discount.
func (l *LineItem) discounted() bool {
	return l.DiscountPrice.Valid && l.DiscountPrice.Decimal.IsPositive()
}

func (l *LineItem) qty() decimal.Decimal {
	return decimal.NewFromInt(int64(l.Quantity))
}

// TotalPrice is quantity × list price.
func (l *LineItem) TotalPrice() decimal.Decimal {
	return l.Price.Mul(l.qty())
}

// TotalDiscountPrice is quantity × discount price, or zero without a discount.
func (l *LineItem) TotalDiscountPrice() decimal.Decimal {
	if !l.discounted() {
		return decimal.Zero
	}
	return l.DiscountPrice.Decimal.Mul(l.qty())
}

// AmountSaved is TotalPrice − TotalDiscountPrice.
func (l *LineItem) AmountSaved() decimal.Decimal {
	return l.TotalPrice().Sub(l.TotalDiscountPrice())
}

// FinalPrice is what the line is charged: the discounted total when a
// non-zero discount price is set, the list total otherwise.
func (l *LineItem) FinalPrice() decimal.Decimal {
	if l.discounted() {
		return l.TotalDiscountPrice()
	}
	return l.TotalPrice()
}
