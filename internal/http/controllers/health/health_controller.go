package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/schoolgate/internal/cache"
	dto "github.com/dropDatabas3/schoolgate/internal/http/dto/health"
	"github.com/dropDatabas3/schoolgate/internal/http/helpers"
	"github.com/dropDatabas3/schoolgate/internal/observability/logger"
)

// BreakerState expone el estado del circuit breaker del backend.
type BreakerState interface {
	State() string
}

// Deps son los componentes que reporta /readyz. Cualquiera puede ser nil.
type Deps struct {
	Cache      cache.Client
	Breaker    BreakerState
	Version    string
	BackendURL string
}

// HealthController maneja las rutas de health check.
type HealthController struct {
	deps Deps
	now  func() time.Time
}

// NewHealthController crea un nuevo controller de health check.
func NewHealthController(deps Deps) *HealthController {
	return &HealthController{deps: deps, now: time.Now}
}

// Healthz maneja GET /healthz (liveness): si responde, está vivo.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, dto.HealthResponse{
		Status:    "ok",
		Version:   c.deps.Version,
		Timestamp: c.now().UTC(),
	})
}

// Readyz maneja GET /readyz. Cache caída degrada (el gateway sigue
// reenviando sin cache); circuito abierto deja el gateway unavailable.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Op("HealthController.Readyz"))

	resp := c.check(ctx)
	if resp.Version != "" {
		w.Header().Set("X-Service-Version", resp.Version)
	}

	statusCode := http.StatusOK
	if resp.Status == "unavailable" {
		statusCode = http.StatusServiceUnavailable
	}

	log.Debug("health check completed",
		logger.String("status", resp.Status),
		logger.Int("components_count", len(resp.Components)),
	)
	helpers.WriteJSON(w, statusCode, resp)
}

func (c *HealthController) check(ctx context.Context) dto.HealthResponse {
	resp := dto.HealthResponse{
		Status:     "ready",
		Components: map[string]dto.HealthStatus{},
		Version:    c.deps.Version,
		Backend:    c.deps.BackendURL,
		Timestamp:  c.now().UTC(),
	}

	if c.deps.Cache == nil {
		resp.Components["cache"] = dto.HealthStatus{Status: "disabled"}
	} else {
		resp.Components["cache"] = c.checkCache(ctx)
		if resp.Components["cache"].Status == "error" {
			resp.Status = "degraded"
		}
	}

	if c.deps.Breaker == nil {
		resp.Components["backend_breaker"] = dto.HealthStatus{Status: "disabled"}
	} else {
		state := c.deps.Breaker.State()
		switch state {
		case "open":
			resp.Components["backend_breaker"] = dto.HealthStatus{Status: "error", Message: state}
			resp.Status = "unavailable"
		default:
			resp.Components["backend_breaker"] = dto.HealthStatus{Status: "ok", Message: state}
		}
	}
	return resp
}

// checkCache hace ping y, si responde, adjunta sus Stats. Un driver "none"
// se reporta como disabled.
func (c *HealthController) checkCache(ctx context.Context) dto.HealthStatus {
	pctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.deps.Cache.Ping(pctx); err != nil {
		return dto.HealthStatus{Status: "error", Message: err.Error()}
	}
	st, err := c.deps.Cache.Stats(pctx)
	if err != nil {
		logger.From(ctx).Debug("cache stats unavailable", logger.Err(err))
		return dto.HealthStatus{Status: "ok"}
	}
	if st.Driver == "none" {
		return dto.HealthStatus{Status: "disabled", Message: st.Driver}
	}
	return dto.HealthStatus{
		Status: "ok",
		Stats:  &dto.CacheStats{Driver: st.Driver, Keys: st.Keys, Hits: st.Hits, Misses: st.Misses},
	}
}
