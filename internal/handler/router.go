package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/sqshop/internal/domain/auth"
)

// Router builds the /api route tree. Every route requires an API key.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Get("/{id}", h.GetItem)
			r.Get("/{id}/image", h.GetItemImage)
			r.Get("/{id}/thumbnail", h.GetItemThumbnail)

			r.Group(func(r chi.Router) {
				r.Use(RequireScope(auth.ScopeAdmin))
				r.Post("/", h.CreateItem)
				r.Put("/{id}", h.UpdateItem)
				r.Delete("/{id}", h.DeleteItem)
				r.Put("/{id}/image", h.PutItemImage)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddCartItem)
			r.Patch("/items/{lineID}", h.SetCartQuantity)
			r.Delete("/items/{lineID}", h.RemoveCartLine)
			r.Put("/coupon", h.ApplyCoupon)
			r.Delete("/coupon", h.RemoveCoupon)
			r.Post("/checkout", h.Checkout)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/events", h.PostOrderEvent)
			r.Post("/{id}/payment", h.RecordPayment)
			r.Get("/{id}/refunds", h.ListOrderRefunds)
			r.Post("/{id}/refunds", h.RequestRefund)
		})

		r.Route("/refunds", func(r chi.Router) {
			r.With(RequireScope(auth.ScopeAdmin)).Get("/", h.ListRefunds)
			r.Get("/{id}", h.GetRefund)
			r.With(RequireScope(auth.ScopeAdmin)).Post("/{id}/accept", h.AcceptRefund)
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", h.ListAddresses)
			r.Post("/", h.CreateAddress)
			r.Get("/{id}", h.GetAddress)
			r.Put("/{id}", h.UpdateAddress)
			r.Delete("/{id}", h.DeleteAddress)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Get("/{id}", h.GetTransaction)
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Use(RequireScope(auth.ScopeAdmin))
			r.Get("/", h.ListCoupons)
			r.Post("/", h.CreateCoupon)
			r.Delete("/{id}", h.DeleteCoupon)
		})
	})

	return r
}
