package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del gateway fuera de la capa HTTP. Viven en un paquete aparte para
// evitar ciclos de import entre upstream, cache y los middlewares HTTP.

var (
	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Llamadas al backend por ruta y status devuelto",
	}, []string{"route", "status"})

	UpstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Latencia de las llamadas al backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	UpstreamTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_timeouts_total",
		Help: "Llamadas al backend cortadas por timeout",
	}, []string{"route"})

	BreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "upstream_breaker_state",
		Help: "Estado del circuit breaker del backend (0=closed, 1=half-open, 2=open)",
	})

	TenantResolution = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenant_resolution_total",
		Help: "Resultado de la resolución de sesión/tenant",
	}, []string{"outcome"})

	TenantCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenant_cache_lookups_total",
		Help: "Lookups de tenant contra la cache (hit, miss, error)",
	}, []string{"result"})
)

// Register registra las métricas en reg (o en el default si es nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		UpstreamRequests,
		UpstreamDuration,
		UpstreamTimeouts,
		BreakerState,
		TenantResolution,
		TenantCacheLookups,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
