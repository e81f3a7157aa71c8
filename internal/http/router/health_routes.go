package router

import "github.com/go-chi/chi/v5"

// RegisterHealthRoutes registra /healthz, /readyz y /metrics.
func RegisterHealthRoutes(r chi.Router, deps Deps) {
	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Health.Healthz)
		r.Get("/readyz", deps.Health.Health.Readyz)
	}
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.ServeHTTP)
	}
}
