package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/sqshop/internal/domain/catalog"
	"github.com/xenking/sqshop/internal/domain/validate"
)

// ListItems handles GET /api/items with optional ?category= and ?available=.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filter{Category: catalog.Category(q.Get("category"))}
	if v := q.Get("available"); v != "" {
		only, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, r, validate.Errorf("available", "must be a boolean"))
			return
		}
		f.AvailableOnly = only
	}
	items, err := h.catalog.List(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeList(w, items, encodeItem)
}

// GetItem handles GET /api/items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeItem(e, it) })
}

// CreateItem handles POST /api/items (operators).
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	it := &catalog.Item{Available: true}
	if err := decodeItem(w, r, it); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.catalog.Create(r.Context(), it); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeItem(e, it) })
}

// UpdateItem replaces every editable field; omitted fields take their zero
// value.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	it := &catalog.Item{Available: true}
	if err := decodeItem(w, r, it); err != nil {
		respondError(w, r, err)
		return
	}
	it.ID = chi.URLParam(r, "id")
	if err := h.catalog.Update(r.Context(), it); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeItem(e, it) })
}

// DeleteItem handles DELETE /api/items/{id}. Items still in a cart or order
// cannot be deleted.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutItemImage takes the raw picture as the request body. The original file
// name comes from ?name=.
func (h *Handler) PutItemImage(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxImageBytes))
	if err != nil {
		respondError(w, r, &badRequestError{err: err})
		return
	}
	if len(raw) == 0 {
		respondError(w, r, validate.Errorf("image", "body is empty"))
		return
	}
	it, err := h.catalog.SetImage(r.Context(), chi.URLParam(r, "id"), raw, r.URL.Query().Get("name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeItem(e, it) })
}

// GetItemImage serves the compressed JPEG of an item.
func (h *Handler) GetItemImage(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.catalog.Image(r.Context(), chi.URLParam(r, "id"))
	writeImage(w, r, data, name, err)
}

// GetItemThumbnail serves the thumbnail of an item.
func (h *Handler) GetItemThumbnail(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.catalog.Thumbnail(r.Context(), chi.URLParam(r, "id"))
	writeImage(w, r, data, name, err)
}

func writeImage(w http.ResponseWriter, r *http.Request, data []byte, name string, err error) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	// Stored pictures are always JPEG; the name is the uploaded one.
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", "inline; filename="+strconv.Quote(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func decodeItem(w http.ResponseWriter, r *http.Request, it *catalog.Item) error {
	return decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			it.Name, err = d.Str()
		case "slug":
			it.Slug, err = d.Str()
		case "size":
			var s string
			s, err = d.Str()
			it.Size = catalog.Size(s)
		case "category":
			var s string
			s, err = d.Str()
			it.Category = catalog.Category(s)
		case "label":
			var s string
			s, err = d.Str()
			it.Label = catalog.Label(s)
		case "price":
			it.Price, err = decodeMoney(d, "price")
		case "discount_price":
			it.DiscountPrice, err = decodeNullMoney(d, "discount_price")
		case "available":
			it.Available, err = d.Bool()
		case "description":
			it.Description, err = d.Str()
		case "additional_information":
			it.AdditionalInformation, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}
