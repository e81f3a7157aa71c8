package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/schoolgate/internal/http/proxy"
)

// AuthRoutes devuelve las rutas de auth reenviadas al backend. Todas
// necesitan tenant; ninguna necesita sesión. Las que reciben credenciales
// tienen rate limit por IP.
func AuthRoutes(onLogin proxy.SuccessHook) []proxy.Route {
	return []proxy.Route{
		{
			Name: "auth.register", Method: http.MethodPost, Pattern: "/auth/register",
			Upstream: "/auth/register", RequireTenant: true, RateLimited: true,
			Transform: proxy.InjectTenantID,
		},
		{
			Name: "auth.forgot_password", Method: http.MethodPost, Pattern: "/auth/forgot-password",
			Upstream: "/auth/forgot-password", RequireTenant: true, RateLimited: true,
		},
		{
			Name: "auth.reset_password", Method: http.MethodPost, Pattern: "/auth/reset-password",
			Upstream: "/auth/reset-password", RequireTenant: true, RateLimited: true,
		},
		{
			Name: "auth.login", Method: http.MethodPost, Pattern: "/auth/login",
			Upstream: "/auth/login", RequireTenant: true, RateLimited: true,
			OnSuccess: onLogin,
		},
	}
}

// RegisterAuthRoutes registra /api/auth/*. Logout es local.
func RegisterAuthRoutes(r chi.Router, deps Deps) {
	var onLogin proxy.SuccessHook
	if deps.Session != nil {
		onLogin = deps.Session.Session.LoginSucceeded
		r.Post("/auth/logout", deps.Session.Logout.Logout)
	}
	if deps.Forwarder != nil {
		mount(r, deps.Forwarder, AuthRoutes(onLogin))
	}
}
