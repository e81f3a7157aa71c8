// Package router define las rutas HTTP del gateway sobre chi.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	healthctrl "github.com/dropDatabas3/schoolgate/internal/http/controllers/health"
	sessionctrl "github.com/dropDatabas3/schoolgate/internal/http/controllers/session"
	httperrors "github.com/dropDatabas3/schoolgate/internal/http/errors"
	mw "github.com/dropDatabas3/schoolgate/internal/http/middlewares"
	"github.com/dropDatabas3/schoolgate/internal/http/proxy"
)

// Deps contiene todo lo que necesitan las rutas.
type Deps struct {
	Forwarder *proxy.Forwarder
	Session   *sessionctrl.Controllers
	Health    *healthctrl.Controllers
	// Metrics sirve /metrics. nil = no se expone.
	Metrics http.Handler
	// TenantCacheTTL > 0 cachea los lookups públicos de tenant.
	TenantCacheTTL time.Duration
}

// New arma el router completo. Los middlewares globales (request id,
// logging, recover, CORS...) se aplican por fuera, en server.
func New(deps Deps, global ...mw.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.Stdlib(global...)...)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	RegisterHealthRoutes(r, deps)

	r.Route("/api", func(api chi.Router) {
		api.Use(mw.WithNoStore())
		RegisterAuthRoutes(api, deps)
		RegisterSessionRoutes(api, deps)
		RegisterTenantRoutes(api, deps)
		RegisterAcademicRoutes(api, deps)
	})
	return r
}

// mount registra cada Route en r. Los patterns son relativos a r.
func mount(r chi.Router, f *proxy.Forwarder, routes []proxy.Route) {
	for _, rt := range routes {
		r.Method(rt.Method, rt.Pattern, f.Handler(rt))
	}
}
