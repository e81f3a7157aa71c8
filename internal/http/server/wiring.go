// Package server arma el handler HTTP del gateway a partir de la config.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/schoolgate/internal/cache"
	"github.com/dropDatabas3/schoolgate/internal/config"
	healthctrl "github.com/dropDatabas3/schoolgate/internal/http/controllers/health"
	sessionctrl "github.com/dropDatabas3/schoolgate/internal/http/controllers/session"
	"github.com/dropDatabas3/schoolgate/internal/http/helpers"
	mw "github.com/dropDatabas3/schoolgate/internal/http/middlewares"
	"github.com/dropDatabas3/schoolgate/internal/http/proxy"
	"github.com/dropDatabas3/schoolgate/internal/http/router"
	"github.com/dropDatabas3/schoolgate/internal/observability/logger"
	"github.com/dropDatabas3/schoolgate/internal/rate"
	"github.com/dropDatabas3/schoolgate/internal/resolver"
	"github.com/dropDatabas3/schoolgate/internal/upstream"
)

// Options permite inyectar dependencias externas (tests).
type Options struct {
	// Registry recibe las métricas. nil = registry nuevo.
	Registry *prometheus.Registry
	// HTTPClient para el backend. nil = cliente por defecto.
	HTTPClient *http.Client
	// Cache reemplaza la cache construida desde cfg.Cache.
	Cache cache.Client
}

// Build devuelve el handler listo para servir y una función de cleanup que
// cierra cache y janitors.
func Build(cfg *config.Config, opts Options) (http.Handler, func() error, error) {
	log := logger.L().With(logger.Component("server"))
	bgCtx, cancel := context.WithCancel(context.Background())

	closers := []func() error{func() error { cancel(); return nil }}
	cleanup := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	// 1. Métricas
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metricsHandler, err := mw.RegisterMetrics(reg)
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}

	// 2. Cache (+ cliente redis compartido con el rate limiter)
	c := opts.Cache
	if c == nil {
		c, err = buildCache(cfg)
		if err != nil {
			_ = cleanup()
			return nil, nil, err
		}
		if c != nil {
			closers = append(closers, c.Close)
		}
	}

	// 3. Rate limit de auth
	var rateLimit mw.Middleware
	if cfg.Rate.Enabled {
		var limiter rate.Limiter
		if rc, ok := c.(interface{ Redis() *goredis.Client }); ok && rc.Redis() != nil {
			limiter = rate.NewRedisLimiter(rc.Redis(), cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.Auth.Limit, cfg.Rate.Auth.Window)
			log.Info("auth rate limit backed by redis")
		} else {
			local := rate.NewLocalLimiter(cfg.Rate.Auth.Limit, cfg.Rate.Auth.Window)
			go local.Run(bgCtx)
			limiter = local
			log.Info("auth rate limit in memory")
		}
		rateLimit = mw.WithRateLimit(limiter, mw.IPPathRateKey)
	}

	// 4. Backend
	var breaker *upstream.Breaker
	if cfg.Breaker.Enabled {
		breaker = upstream.NewBreaker(upstream.BreakerConfig{
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout,
			Interval:    cfg.Breaker.Interval,
		})
	}
	client := upstream.NewClient(upstream.Options{
		BaseURL:    cfg.Backend.URL,
		Timeout:    cfg.Backend.Timeout,
		HTTPClient: opts.HTTPClient,
		Breaker:    breaker,
	})
	log.Info("backend configured", logger.Upstream(client.BaseURL()))

	// 5. Resolución, controllers y forwarder
	res := resolver.New(resolver.CookieNames{
		AccessToken:       cfg.Auth.Cookies.AccessToken,
		LegacyAccessToken: cfg.Auth.Cookies.LegacyAccessToken,
		Tenant:            cfg.Auth.Cookies.Tenant,
		LegacyTenant:      cfg.Auth.Cookies.LegacyTenant,
	}, client.BaseURL())

	cookieOpts := helpers.CookieOptions{
		Domain:   cfg.Auth.Session.Domain,
		SameSite: cfg.Auth.Session.SameSite,
		Secure:   cfg.Auth.Session.Secure,
		TTL:      cfg.Auth.Session.TTL,
	}

	fwd := proxy.New(proxy.Options{
		Backend:   client,
		Resolver:  res,
		Cache:     c,
		Session:   mw.SessionOptions{RejectExpired: cfg.Auth.RejectExpiredTokens},
		RateLimit: rateLimit,
	})

	healthDeps := healthctrl.Deps{
		Cache:      c,
		Version:    cfg.App.Version,
		BackendURL: client.BaseURL(),
	}
	if breaker != nil {
		healthDeps.Breaker = breaker
	}

	trusted, err := mw.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("server.trusted_proxies: %w", err)
	}

	// RequestID y Logging van por fuera de Recover: un panic queda logueado
	// con su request id y el 500.
	handler := router.New(router.Deps{
		Forwarder:      fwd,
		Session:        sessionctrl.NewControllers(sessionctrl.Config{Resolver: res, Cookies: cookieOpts}),
		Health:         healthctrl.NewControllers(healthDeps),
		Metrics:        metricsHandler,
		TenantCacheTTL: cfg.Cache.TenantTTL,
	},
		mw.WithRequestID(),
		mw.WithClientIP(trusted),
		mw.WithLogging(),
		mw.WithRecover(),
		mw.WithMetrics(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(cfg.Server.CORSAllowedOrigins),
	)

	return handler, cleanup, nil
}

func buildCache(cfg *config.Config) (cache.Client, error) {
	switch cfg.Cache.Kind {
	case "none":
		return cache.None{}, nil
	case "redis":
		c, err := cache.New(cache.Config{
			Driver:     "redis",
			Addr:       cfg.Cache.Redis.Addr,
			DB:         cfg.Cache.Redis.DB,
			Prefix:     cfg.Cache.Redis.Prefix,
			DefaultTTL: cfg.Cache.TenantTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		return c, nil
	default:
		return cache.New(cache.Config{Driver: "memory", DefaultTTL: cfg.Cache.TenantTTL})
	}
}
