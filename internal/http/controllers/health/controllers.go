// Package health contiene los controllers de health check.
package health

// Controllers agrupa todos los controllers del dominio health.
type Controllers struct {
	Health *HealthController
}

// NewControllers crea el agregador de controllers health.
func NewControllers(deps Deps) *Controllers {
	return &Controllers{
		Health: NewHealthController(deps),
	}
}
