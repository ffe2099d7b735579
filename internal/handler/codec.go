package handler

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/sqshop/internal/domain/address"
	"github.com/xenking/sqshop/internal/domain/catalog"
	"github.com/xenking/sqshop/internal/domain/coupon"
	"github.com/xenking/sqshop/internal/domain/order"
	"github.com/xenking/sqshop/internal/domain/payment"
	"github.com/xenking/sqshop/internal/domain/refund"
	"github.com/xenking/sqshop/internal/domain/validate"
)

const maxBodyBytes = 1 << 20

// decodeObject reads the request body as one JSON object and calls fn for
// every field. Validation errors returned by fn pass through unchanged;
// anything else becomes a 400.
func decodeObject(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	return readObject(w, r, false, fn)
}

// decodeOptionalObject is decodeObject that accepts an empty body.
func decodeOptionalObject(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	return readObject(w, r, true, fn)
}

func readObject(w http.ResponseWriter, r *http.Request, optional bool, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &badRequestError{err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if optional {
			return nil
		}
		return &badRequestError{err: errors.New("empty body")}
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		var valErr *validate.Error
		if errors.As(err, &valErr) {
			return valErr
		}
		return &badRequestError{err: err}
	}
	return nil
}

// decodeMoney accepts "12.50" as well as 12.5.
func decodeMoney(d *jx.Decoder, field string) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return validate.ParseMoney(field, s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return validate.ParseMoney(field, n.String())
	default:
		if err := d.Skip(); err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, validate.Errorf(field, "must be a decimal amount")
	}
}

func decodeNullMoney(d *jx.Decoder, field string) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := decodeMoney(d, field)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeList[T any](w http.ResponseWriter, list []T, enc func(e *jx.Encoder, v *T)) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range list {
			enc(e, &list[i])
		}
		e.ArrEnd()
	})
}

func field(e *jx.Encoder, name, v string) {
	e.FieldStart(name)
	e.Str(v)
}

func money(e *jx.Encoder, name string, v decimal.Decimal) {
	e.FieldStart(name)
	e.Str(v.StringFixed(2))
}

func nullMoney(e *jx.Encoder, name string, v decimal.NullDecimal) {
	e.FieldStart(name)
	if !v.Valid {
		e.Null()
		return
	}
	e.Str(v.Decimal.StringFixed(2))
}

func optString(e *jx.Encoder, name, v string) {
	e.FieldStart(name)
	if v == "" {
		e.Null()
		return
	}
	e.Str(v)
}

func timestamp(e *jx.Encoder, name string, t time.Time) {
	e.FieldStart(name)
	if t.IsZero() {
		e.Null()
		return
	}
	e.Str(t.UTC().Format(time.RFC3339))
}

func boolean(e *jx.Encoder, name string, v bool) {
	e.FieldStart(name)
	e.Bool(v)
}

func encodeItem(e *jx.Encoder, it *catalog.Item) {
	e.ObjStart()
	field(e, "id", it.ID)
	field(e, "name", it.Name)
	field(e, "slug", it.Slug)
	field(e, "size", string(it.Size))
	field(e, "category", string(it.Category))
	field(e, "label", string(it.Label))
	money(e, "price", it.Price)
	nullMoney(e, "discount_price", it.DiscountPrice)
	boolean(e, "available", it.Available)
	field(e, "description", it.Description)
	field(e, "additional_information", it.AdditionalInformation)
	boolean(e, "has_image", it.ImageKey != "")
	timestamp(e, "created_at", it.CreatedAt)
	timestamp(e, "updated_at", it.UpdatedAt)
	e.ObjEnd()
}

func encodeLine(e *jx.Encoder, l *order.LineItem) {
	e.ObjStart()
	field(e, "id", l.ID)
	field(e, "item_id", l.ItemID)
	field(e, "item_name", l.ItemName)
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	boolean(e, "ordered", l.Ordered)
	money(e, "price", l.Price)
	nullMoney(e, "discount_price", l.DiscountPrice)
	money(e, "total_price", l.TotalPrice())
	money(e, "total_discount_price", l.TotalDiscountPrice())
	money(e, "amount_saved", l.AmountSaved())
	money(e, "final_price", l.FinalPrice())
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	field(e, "id", o.ID)
	field(e, "user_id", o.UserID)
	optString(e, "ref_code", o.RefCode)
	field(e, "state", string(o.State))
	field(e, "refund_state", string(o.Refund))
	boolean(e, "ordered", o.Ordered())
	boolean(e, "being_delivered", o.BeingDelivered())
	boolean(e, "received", o.Received())
	boolean(e, "refund_requested", o.RefundRequested())
	boolean(e, "refund_granted", o.RefundGranted())
	timestamp(e, "start_date", o.StartDate)
	timestamp(e, "ordered_date", o.OrderedDate)
	optString(e, "shipping_address_id", o.ShippingAddressID)
	optString(e, "billing_address_id", o.BillingAddressID)
	optString(e, "transaction_id", o.TransactionID)

	e.FieldStart("coupon")
	if o.Coupon == nil {
		e.Null()
	} else {
		e.ObjStart()
		field(e, "code", o.Coupon.Code)
		money(e, "amount", o.Coupon.Amount)
		e.ObjEnd()
	}

	e.FieldStart("lines")
	e.ArrStart()
	for i := range o.Lines {
		encodeLine(e, &o.Lines[i])
	}
	e.ArrEnd()

	money(e, "subtotal", o.Subtotal())
	money(e, "total", o.Total())
	money(e, "payable", o.Payable())
	e.ObjEnd()
}

func encodeRefund(e *jx.Encoder, rf *refund.Refund) {
	e.ObjStart()
	field(e, "id", rf.ID)
	field(e, "order_id", rf.OrderID)
	field(e, "reason", rf.Reason)
	field(e, "email", rf.Email)
	boolean(e, "accepted", rf.Accepted)
	timestamp(e, "created_at", rf.CreatedAt)
	e.ObjEnd()
}

func encodeAddress(e *jx.Encoder, a *address.Address) {
	e.ObjStart()
	field(e, "id", a.ID)
	field(e, "street_address", a.Street)
	field(e, "apartment_address", a.Apartment)
	field(e, "country", a.Country)
	field(e, "address_type", string(a.Type))
	boolean(e, "default", a.Default)
	e.ObjEnd()
}

func encodeTransaction(e *jx.Encoder, t *payment.Transaction) {
	e.ObjStart()
	field(e, "id", t.ID)
	field(e, "number", t.Number)
	optString(e, "user_id", t.UserID)
	money(e, "amount", t.Amount)
	timestamp(e, "timestamp", t.Timestamp)
	e.ObjEnd()
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	field(e, "id", c.ID)
	field(e, "code", c.Code)
	money(e, "amount", c.Amount)
	e.ObjEnd()
}
