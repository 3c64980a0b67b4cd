/*
server.go - HTTP router and middleware configuration

Configures the chi router, middleware stack, and route definitions. The
/metrics endpoint serves the Prometheus registry when one is provided.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Calin1302/ProjectCarInsurance/metrics"
)

// NewRouter creates a router with all routes configured. registry may be
// nil, in which case /metrics is not mounted.
func NewRouter(h *Handler, registry *prometheus.Registry) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/cars", func(r chi.Router) {
			r.Get("/", h.ListCars)
			r.Get("/{carId}/insurance-valid", h.InsuranceValid)
			r.Post("/{carId}/claims", h.RegisterClaim)
			r.Get("/{carId}/history", h.GetHistory)
		})

		r.Route("/expirations", func(r chi.Router) {
			r.Get("/runs", h.ListScanRuns)
		})
	})

	r.Get("/healthz", h.Health)

	if registry != nil {
		r.Method("GET", "/metrics", metrics.Handler(registry))
	}

	return r
}
