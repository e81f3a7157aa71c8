// Package session contiene los controllers locales de sesión: resumen de
// resolución, cambio de tenant, logout y las cookies que deja el login.
package session

import (
	"github.com/dropDatabas3/schoolgate/internal/http/helpers"
	"github.com/dropDatabas3/schoolgate/internal/resolver"
)

// Config agrupa lo que necesitan los controllers de sesión.
type Config struct {
	Resolver *resolver.Resolver
	Cookies  helpers.CookieOptions
}

// Controllers agrupa todos los controllers del dominio session.
type Controllers struct {
	Session *SessionController
	Logout  *LogoutController
}

// NewControllers crea el agregador de controllers session.
func NewControllers(cfg Config) *Controllers {
	if cfg.Resolver == nil {
		cfg.Resolver = resolver.New(resolver.CookieNames{}, "")
	}
	return &Controllers{
		Session: NewSessionController(cfg),
		Logout:  NewLogoutController(cfg),
	}
}
