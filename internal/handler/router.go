package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/pharmacy-backoffice/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware аптечного бэк-офиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/users/me", h.GetCurrentUser)
			r.Patch("/users/me", h.UpdateCurrentUser)
			r.Delete("/users/me", h.DeleteCurrentUser)

			r.Post("/bank-accounts", h.OpenBankAccount)
			r.Get("/bank-accounts", h.GetBankAccount)
			r.Patch("/bank-accounts", h.UpdateBankAccount)
			r.Delete("/bank-accounts", h.DeleteBankAccount)
			r.Post("/bank-accounts/deposit", h.Deposit)

			r.Post("/upload-products", h.UploadProducts)
			r.Get("/products", h.ListProducts)
			r.Get("/products/{id}", h.GetProduct)

			r.Post("/purchase-product", h.PurchaseProduct)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
