package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/kassa-terminal/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware API кассового терминала.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	if h.metrics != nil {
		r.Use(custommiddleware.Metrics(h.metrics))
	}
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.requireCashier)

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.Me)

			r.Get("/exchange-rate", h.GetExchangeRate)
			r.Put("/exchange-rate", h.SetExchangeRate)

			r.Get("/products", h.Products)
			r.Get("/branches", h.Branches)
			r.Get("/sklads", h.Sklads)
			r.Get("/sklads/{skladID}/stock/{productID}", h.Stock)

			r.Get("/clients", h.SearchClients)
			r.Post("/clients", h.CreateClient)

			r.Get("/orders", h.Orders)
			r.Get("/sales", h.Sales)

			r.Route("/session", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Put("/customer", h.SelectCustomer)
				r.Delete("/customer", h.ClearCustomer)
				r.Post("/start", h.StartSale)
				r.Post("/resume/{orderID}", h.ResumeSale)
				r.Post("/quote", h.Quote)
				r.Post("/lines", h.AddLine)
				r.Patch("/lines/{lineID}", h.UpdateLine)
				r.Delete("/lines/{lineID}", h.RemoveLine)
				r.Put("/payment/{method}", h.SetPayment)
				r.Delete("/payment/{method}", h.RemovePayment)
				r.Patch("/details", h.UpdateDetails)
				r.Post("/complete", h.Complete)
				r.Post("/cancel", h.Cancel)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
