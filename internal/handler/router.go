package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/commerce-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.GetOrders)
		r.Get("/number/{orderNumber}", h.GetOrderByNumber)
		r.Get("/{orderID}", h.GetOrder)
		r.Post("/{orderID}/confirm", h.ConfirmOrder)
		r.Post("/{orderID}/cancel", h.CancelOrder)
		r.Post("/{orderID}/complete", h.CompleteOrder)
	})

	r.Route("/api/payments", func(r chi.Router) {
		r.Get("/{paymentKey}", h.GetPayment)
		r.Post("/{paymentKey}/cancel", h.CancelPayment)
	})

	r.Route("/api/members", func(r chi.Router) {
		r.Get("/{memberID}", h.GetMember)
		r.Post("/{memberID}/cashpoint/deduct", h.DeductBalance)
		r.Post("/{memberID}/cashpoint/refund", h.RefundBalance)
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.GetProducts)
		r.Get("/{productID}/stock/check", h.CheckStock)
		r.Post("/{productID}/stock/deduct", h.DeductStock)
		r.Post("/{productID}/stock/restore", h.RestoreStock)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
