package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod | test
		Env     string `yaml:"env"`
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr               string        `yaml:"addr"`
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
		// TrustedProxies: IPs/CIDRs cuyo X-Forwarded-For se acepta. Vacío = sólo RemoteAddr.
		TrustedProxies     []string      `yaml:"trusted_proxies"`
		ReadTimeout        time.Duration `yaml:"read_timeout"`
		WriteTimeout       time.Duration `yaml:"write_timeout"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// Backend: API externa a la que se reenvía todo.
	Backend struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"backend"`

	Auth struct {
		// Rechaza localmente (401) JWTs con exp vencido antes de llamar al backend.
		RejectExpiredTokens bool `yaml:"reject_expired_tokens"`

		Cookies struct {
			AccessToken       string `yaml:"access_token"`
			LegacyAccessToken string `yaml:"legacy_access_token"`
			Tenant            string `yaml:"tenant"`
			LegacyTenant      string `yaml:"legacy_tenant"`
		} `yaml:"cookies"`

		Session struct {
			Domain   string        `yaml:"domain"`
			SameSite string        `yaml:"samesite"`
			Secure   bool          `yaml:"secure"`
			TTL      time.Duration `yaml:"ttl"`
		} `yaml:"session"`
	} `yaml:"auth"`

	Cache struct {
		// none | memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		TenantTTL time.Duration `yaml:"tenant_ttl"`
	} `yaml:"cache"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		// login, register, forgot y reset comparten límite por IP.
		Auth struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"auth"`
	} `yaml:"rate"`

	Breaker struct {
		Enabled     bool          `yaml:"enabled"`
		MaxFailures uint32        `yaml:"max_failures"`
		OpenTimeout time.Duration `yaml:"open_timeout"`
		Interval    time.Duration `yaml:"interval"`
	} `yaml:"breaker"`

	Tracing struct {
		Enabled  bool   `yaml:"enabled"`
		Exporter string `yaml:"exporter"`
	} `yaml:"tracing"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default devuelve la config con defaults y overrides de entorno aplicados.
func Default() *Config {
	var c Config
	c.applyDefaults()
	c.applyEnvOverrides()
	return &c
}

// Load lee el YAML de path. Si el archivo no existe se usan defaults;
// en ambos casos las variables de entorno pisan lo leído.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// sin archivo: defaults + env
		default:
			return nil, err
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// sane defaults
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "schoolgate"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 10 * time.Second
	}
	if c.Auth.Cookies.AccessToken == "" {
		c.Auth.Cookies.AccessToken = "tenant_access_token"
	}
	if c.Auth.Cookies.LegacyAccessToken == "" {
		c.Auth.Cookies.LegacyAccessToken = "accessToken"
	}
	if c.Auth.Cookies.Tenant == "" {
		c.Auth.Cookies.Tenant = "tenant_id"
	}
	if c.Auth.Cookies.LegacyTenant == "" {
		c.Auth.Cookies.LegacyTenant = "tenantId"
	}
	if c.Auth.Session.SameSite == "" {
		c.Auth.Session.SameSite = "Lax"
	}
	if c.Auth.Session.TTL == 0 {
		c.Auth.Session.TTL = 12 * time.Hour
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "schoolgate:"
	}
	if c.Cache.TenantTTL == 0 {
		c.Cache.TenantTTL = 5 * time.Minute
	}
	if c.Rate.Auth.Limit == 0 {
		c.Rate.Auth.Limit = 10
	}
	if c.Rate.Auth.Window == 0 {
		c.Rate.Auth.Window = time.Minute
	}
	if c.Breaker.MaxFailures == 0 {
		c.Breaker.MaxFailures = 5
	}
	if c.Breaker.OpenTimeout == 0 {
		c.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("APP_VERSION"); ok {
		c.App.Version = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvCSV("SERVER_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}

	// BACKEND (BACKEND_API_URL es el nombre que ya usa la UI)
	if v, ok := getEnvStr("BACKEND_API_URL"); ok {
		c.Backend.URL = v
	}
	if v, ok := getEnvDur("BACKEND_TIMEOUT"); ok {
		c.Backend.Timeout = v
	}

	// AUTH
	if v, ok := getEnvBool("AUTH_REJECT_EXPIRED_TOKENS"); ok {
		c.Auth.RejectExpiredTokens = v
	}
	if v, ok := getEnvStr("AUTH_COOKIE_ACCESS_TOKEN"); ok {
		c.Auth.Cookies.AccessToken = v
	}
	if v, ok := getEnvStr("AUTH_COOKIE_TENANT"); ok {
		c.Auth.Cookies.Tenant = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_DOMAIN"); ok {
		c.Auth.Session.Domain = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_SAMESITE"); ok {
		c.Auth.Session.SameSite = v
	}
	if v, ok := getEnvBool("AUTH_SESSION_SECURE"); ok {
		c.Auth.Session.Secure = v
	}
	if v, ok := getEnvDur("AUTH_SESSION_TTL"); ok {
		c.Auth.Session.TTL = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvDur("CACHE_TENANT_TTL"); ok {
		c.Cache.TenantTTL = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_AUTH_LIMIT"); ok {
		c.Rate.Auth.Limit = v
	}
	if v, ok := getEnvDur("RATE_AUTH_WINDOW"); ok {
		c.Rate.Auth.Window = v
	}

	// BREAKER
	if v, ok := getEnvBool("BREAKER_ENABLED"); ok {
		c.Breaker.Enabled = v
	}
	if v, ok := getEnvInt("BREAKER_MAX_FAILURES"); ok && v > 0 {
		c.Breaker.MaxFailures = uint32(v)
	}
	if v, ok := getEnvDur("BREAKER_OPEN_TIMEOUT"); ok {
		c.Breaker.OpenTimeout = v
	}

	// TRACING
	if v, ok := getEnvBool("TRACING_ENABLED"); ok {
		c.Tracing.Enabled = v
	}
	if v, ok := getEnvStr("TRACING_EXPORTER"); ok {
		c.Tracing.Exporter = strings.ToLower(v)
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// Validate rechaza valores que dejarían al gateway en un estado inútil.
func (c *Config) Validate() error {
	switch c.Cache.Kind {
	case "none", "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return errors.New("config: cache.redis.addr is required when cache.kind=redis")
		}
	default:
		return fmt.Errorf("config: unknown cache.kind %q", c.Cache.Kind)
	}
	switch c.Tracing.Exporter {
	case "", "noop", "stdout":
	default:
		return fmt.Errorf("config: unknown tracing.exporter %q", c.Tracing.Exporter)
	}
	for name, d := range map[string]time.Duration{
		"backend.timeout":         c.Backend.Timeout,
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"cache.tenant_ttl":        c.Cache.TenantTTL,
		"rate.auth.window":        c.Rate.Auth.Window,
	} {
		if d < 0 {
			return fmt.Errorf("config: %s must not be negative", name)
		}
	}
	if c.Rate.Enabled && c.Rate.Auth.Limit <= 0 {
		return errors.New("config: rate.auth.limit must be positive")
	}
	return nil
}
