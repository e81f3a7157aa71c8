package session

import (
	"net/http"

	"github.com/dropDatabas3/schoolgate/internal/http/helpers"
	"github.com/dropDatabas3/schoolgate/internal/observability/logger"
	"github.com/dropDatabas3/schoolgate/internal/resolver"
)

// LogoutController maneja POST /api/auth/logout.
type LogoutController struct {
	res     *resolver.Resolver
	cookies helpers.CookieOptions
}

// NewLogoutController crea un nuevo logout controller.
func NewLogoutController(cfg Config) *LogoutController {
	return &LogoutController{res: cfg.Resolver, cookies: cfg.Cookies}
}

// Logout borra todas las cookies de sesión y tenant que el gateway reconoce.
// No llama al backend.
func (c *LogoutController) Logout(w http.ResponseWriter, r *http.Request) {
	names := c.res.Names()
	for _, name := range []string{names.AccessToken, names.LegacyAccessToken, names.Tenant, names.LegacyTenant} {
		http.SetCookie(w, helpers.BuildDeletionCookie(name, c.cookies))
	}

	w.WriteHeader(http.StatusNoContent)
	logger.From(r.Context()).Debug("session logout completed", logger.Op("LogoutController.Logout"))
}
