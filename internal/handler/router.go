package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	custommiddleware "github.com/anphashop/shop-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware магазина.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	loginLimiter := custommiddleware.NewRateLimiter(rate.Limit(1), 5)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(loginLimiter.Middleware)

			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		r.Get("/products", h.ListProducts)
		r.Get("/products/{slug}", h.GetProduct)
		r.Get("/products/{id}/reviews", h.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/me", h.Me)

			r.Get("/cart", h.GetCart)
			r.Put("/cart", h.PutCartItem)
			r.Delete("/cart/{id}", h.RemoveCartItem)

			r.Post("/orders", h.Checkout)
			r.Get("/orders", h.ListMyOrders)
			r.Get("/orders/{code}", h.GetMyOrder)

			r.Post("/vouchers/preview", h.PreviewVoucher)

			r.Post("/products/{id}/reviews", h.CreateReview)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.authMiddleware.RequireAdmin)

			r.Get("/products", h.AdminListProducts)
			r.Post("/products", h.AdminCreateProduct)
			r.Put("/products/{id}", h.AdminUpdateProduct)
			r.Delete("/products/{id}", h.AdminDeleteProduct)

			r.Post("/flash-sales", h.AdminCreateFlashSale)
			r.Put("/flash-sales/{id}", h.AdminUpdateFlashSale)
			r.Delete("/flash-sales/{id}", h.AdminDeleteFlashSale)

			r.Get("/accounts", h.AdminListAccounts)
			r.Get("/accounts/{id}", h.AdminGetAccount)
			r.Post("/accounts", h.AdminCreateAccount)
			r.Put("/accounts/{id}", h.AdminUpdateAccount)
			r.Delete("/accounts/{id}", h.AdminDeleteAccount)

			r.Get("/orders", h.AdminListOrders)
			r.Get("/orders/{code}", h.AdminGetOrder)
			r.Post("/orders/{code}/deliver", h.AdminDeliverOrder)
			r.Post("/orders/{code}/cancel", h.AdminCancelOrder)

			r.Get("/vouchers", h.AdminListVouchers)
			r.Post("/vouchers", h.AdminCreateVoucher)
			r.Put("/vouchers/{id}", h.AdminUpdateVoucher)
			r.Delete("/vouchers/{id}", h.AdminDeleteVoucher)

			r.Post("/users/{id}/topup", h.AdminTopUpBalance)
			r.Put("/users/{id}/commission", h.AdminSetCommission)

			r.Get("/summary", h.AdminSummary)
			r.Post("/emails/test", h.AdminSendTestEmail)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
