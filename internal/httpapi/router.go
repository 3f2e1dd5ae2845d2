package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter assembles the REST surface. The stock endpoint sits outside
// the owner middleware: availability is public.
func NewRouter(cart *CartHandler, co *CheckoutHandler, stock *StockHandler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stock/{productID}", stock.CheckStock)

		r.Group(func(r chi.Router) {
			r.Use(OwnerMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cart.GetCart)
				r.Delete("/", cart.ClearCart)
				r.Post("/items", cart.AddItem)
				r.Put("/items/{itemID}", cart.UpdateQuantity)
				r.Delete("/items/{itemID}", cart.RemoveItem)
				r.Post("/merge", cart.MergeCart)
			})

			r.Post("/checkout", co.PrepareCheckout)
		})
	})

	return otelhttp.NewHandler(r, "cartd")
}
