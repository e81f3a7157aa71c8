package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/schoolgate/internal/http/proxy"
)

// TenantRoutes devuelve las rutas de tenants. Los lookups son públicos (la
// UI los hace antes del login) y se cachean; un 404 del lookup por id se
// degrada a un placeholder. Activar un tenant invalida su lookup por id.
func TenantRoutes(cacheTTL time.Duration) []proxy.Route {
	return []proxy.Route{
		{
			Name: "tenants.by_domain", Method: http.MethodGet, Pattern: "/tenants/by-domain/{domain}",
			Upstream: "/tenants/domain/{domain}", CacheTTL: cacheTTL,
		},
		{
			Name: "tenants.get", Method: http.MethodGet, Pattern: "/tenants/{id}",
			Upstream: "/tenants/{id}", CacheTTL: cacheTTL, NotFound: proxy.TenantPlaceholder,
		},
		{
			Name: "tenants.activate", Method: http.MethodPost, Pattern: "/tenants/{id}/activate",
			Upstream: "/tenants/{id}/activate", RequireAuth: true,
			Evicts: []proxy.Eviction{{Route: "tenants.get", Upstream: "/tenants/{id}"}},
		},
	}
}

// RegisterTenantRoutes registra /api/tenants/*.
func RegisterTenantRoutes(r chi.Router, deps Deps) {
	if deps.Forwarder == nil {
		return
	}
	mount(r, deps.Forwarder, TenantRoutes(deps.TenantCacheTTL))
}
