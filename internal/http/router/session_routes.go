package router

import "github.com/go-chi/chi/v5"

// RegisterSessionRoutes registra los endpoints locales de sesión.
func RegisterSessionRoutes(r chi.Router, deps Deps) {
	if deps.Session == nil {
		return
	}
	r.Get("/session", deps.Session.Session.Get)
	r.Post("/session/tenant", deps.Session.Session.SwitchTenant)
}
