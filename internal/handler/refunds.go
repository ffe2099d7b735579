package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/sqshop/internal/domain/refund"
)

// RequestRefund handles POST /api/orders/{id}/refunds for a received order
// visible to the caller.
func (h *Handler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	var reason, email string
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "reason":
			reason, err = d.Str()
		case "email":
			email, err = d.Str()
		default:
			err = d.Skip()
		}
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
	rf, err := h.refunds.Request(r.Context(), o.ID, reason, email)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeRefund(e, rf) })
}

// ListOrderRefunds lists the refunds of one order.
func (h *Handler) ListOrderRefunds(w http.ResponseWriter, r *http.Request) {
	o, err := h.ownedOrder(r, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	list, err := h.refunds.ListByOrder(r.Context(), o.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeList(w, list, encodeRefund)
}

// ListRefunds lists every refund, newest first (operators).
func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	list, err := h.refunds.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeList(w, list, encodeRefund)
}

// GetRefund is visible to operators and to the owner of the refunded order.
func (h *Handler) GetRefund(w http.ResponseWriter, r *http.Request) {
	rf, err := h.refunds.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !isAdmin(r) {
		if _, err := h.ownedOrder(r, rf.OrderID); err != nil {
			respondError(w, r, refund.ErrNotFound)
			return
		}
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRefund(e, rf) })
}

// AcceptRefund grants a refund. Accepting twice is a no-op.
func (h *Handler) AcceptRefund(w http.ResponseWriter, r *http.Request) {
	rf, err := h.refunds.Accept(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRefund(e, rf) })
}
