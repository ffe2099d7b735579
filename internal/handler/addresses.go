package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/sqshop/internal/domain/address"
	"github.com/xenking/sqshop/internal/domain/payment"
)

// ListAddresses handles GET /api/addresses for the caller.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	list, err := h.addresses.List(r.Context(), identity(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeList(w, list, encodeAddress)
}

// GetAddress handles GET /api/addresses/{id}. Addresses of other users are
// reported as missing.
func (h *Handler) GetAddress(w http.ResponseWriter, r *http.Request) {
	a, err := h.addresses.Get(r.Context(), identity(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeAddress(e, a) })
}

// CreateAddress handles POST /api/addresses. Marking it default clears the
// flag on the caller's other addresses of the same type.
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	a := &address.Address{UserID: identity(r).UserID}
	if err := decodeAddress(w, r, a); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.addresses.Create(r.Context(), a); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeAddress(e, a) })
}

// UpdateAddress handles PUT /api/addresses/{id}.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	a := &address.Address{}
	if err := decodeAddress(w, r, a); err != nil {
		respondError(w, r, err)
		return
	}
	a.ID = chi.URLParam(r, "id")
	a.UserID = identity(r).UserID
	if err := h.addresses.Update(r.Context(), a); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeAddress(e, a) })
}

// DeleteAddress handles DELETE /api/addresses/{id}.
func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := h.addresses.Delete(r.Context(), identity(r).UserID, chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeAddress(w http.ResponseWriter, r *http.Request, a *address.Address) error {
	return decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "street_address":
			a.Street, err = d.Str()
		case "apartment_address":
			a.Apartment, err = d.Str()
		case "country":
			a.Country, err = d.Str()
		case "address_type":
			var s string
			s, err = d.Str()
			a.Type = address.Type(s)
		case "default":
			a.Default, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
}

// ListTransactions lists the caller's payment records.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := h.transactions.ListByUser(r.Context(), identity(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeList(w, list, encodeTransaction)
}

// GetTransaction returns one payment record of the caller.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.transactions.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && !owns(r, t.UserID) {
		err = payment.ErrNotFound
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeTransaction(e, t) })
}
