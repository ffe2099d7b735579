package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/sqshop/internal/domain/order"
	"github.com/xenking/sqshop/internal/domain/validate"
)

func (h *Handler) writeOrder(w http.ResponseWriter, r *http.Request, status int, o *order.Order, err error) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, status, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// GetCart returns the caller's open cart, creating an empty one if needed.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cart(r.Context(), identity(r).UserID)
	h.writeOrder(w, r, http.StatusOK, o, err)
}

// AddCartItem handles POST /api/cart/items. Quantity defaults to 1 and
// merges into an existing line for the same item.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		itemID string
		qty    = 1
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "item_id":
			itemID, err = d.Str()
		case "quantity":
			qty, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && itemID == "" {
		err = validate.Errorf("item_id", "is required")
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.orders.AddItem(r.Context(), identity(r).UserID, itemID, qty)
	h.writeOrder(w, r, http.StatusOK, o, err)
}

// SetCartQuantity handles PATCH /api/cart/items/{lineID}.
func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	qty := 0
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		qty, err = d.Int()
		return err
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.orders.SetQuantity(r.Context(), identity(r).UserID, chi.URLParam(r, "lineID"), qty)
	h.writeOrder(w, r, http.StatusOK, o, err)
}

// RemoveCartLine handles DELETE /api/cart/items/{lineID}.
func (h *Handler) RemoveCartLine(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RemoveLine(r.Context(), identity(r).UserID, chi.URLParam(r, "lineID"))
	h.writeOrder(w, r, http.StatusOK, o, err)
}

// ApplyCoupon attaches a coupon by code, replacing any previous one.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var code string
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		var err error
		code, err = d.Str()
		return err
	})
	if err == nil && code == "" {
		err = validate.Errorf("code", "is required")
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.orders.ApplyCoupon(r.Context(), identity(r).UserID, code)
	h.writeOrder(w, r, http.StatusOK, o, err)
}

// RemoveCoupon detaches the cart's coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RemoveCoupon(r.Context(), identity(r).UserID)
	h.writeOrder(w, r, http.StatusOK, o, err)
}

// Checkout accepts an optional body naming the shipping and billing addresses.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req order.CheckoutRequest
	err := decodeOptionalObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "shipping_address_id":
			req.ShippingAddressID, err = d.Str()
		case "billing_address_id":
			req.BillingAddressID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.orders.Checkout(r.Context(), identity(r).UserID, req)
	h.writeOrder(w, r, http.StatusOK, o, err)
}

// ListOrders lists the caller's orders. Operators may pass ?user_id=.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := identity(r).UserID
	if other := r.URL.Query().Get("user_id"); other != "" && isAdmin(r) {
		userID = other
	}
	orders, err := h.orders.List(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeList(w, orders, encodeOrder)
}

// GetOrder handles GET /api/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.ownedOrder(r, chi.URLParam(r, "id"))
	h.writeOrder(w, r, http.StatusOK, o, err)
}

// ownedOrder loads an order the caller may see. Orders of other users are
// reported as missing.
func (h *Handler) ownedOrder(r *http.Request, id string) (*order.Order, error) {
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if !owns(r, o.UserID) {
		return nil, order.ErrNotFound
	}
	return o, nil
}

// PostOrderEvent drives delivery. Operators start deliveries, owners confirm
// receipt. Checkout and refunds have their own routes.
func (h *Handler) PostOrderEvent(w http.ResponseWriter, r *http.Request) {
	var name string
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "event" {
			return d.Skip()
		}
		var err error
		name, err = d.Str()
		return err
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	ev, ok := order.ParseEvent(name)
	if !ok || (ev != order.EventStartDelivery && ev != order.EventMarkReceived) {
		respondError(w, r, validate.Errorf("event", "must be %q or %q", order.EventStartDelivery, order.EventMarkReceived))
		return
	}

	o, err := h.ownedOrder(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if ev == order.EventStartDelivery && !isAdmin(r) {
		respondError(w, r, errForbidden)
		return
	}
	o, err = h.orders.Transition(r.Context(), o.ID, ev)
	h.writeOrder(w, r, http.StatusOK, o, err)
}

// RecordPayment records the payment of an ordered order and returns the
// order together with its transaction.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var number string
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "transaction_number" {
			return d.Skip()
		}
		var err error
		number, err = d.Str()
		return err
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.ownedOrder(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, txn, err := h.orders.RecordPayment(r.Context(), o.ID, number)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order")
		encodeOrder(e, o)
		e.FieldStart("transaction")
		encodeTransaction(e, txn)
		e.ObjEnd()
	})
}
