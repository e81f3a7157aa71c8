// Package proxy forwards browser requests to the school backend. Each
// endpoint is a declarative Route; a single Forwarder executes all of them.
package proxy

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/schoolgate/internal/http/errors"
	"github.com/dropDatabas3/schoolgate/internal/resolver"
	"github.com/dropDatabas3/schoolgate/internal/upstream"
)

// Transform rewrites the request body before it is sent upstream.
type Transform func(body []byte, rc resolver.Context) ([]byte, error)

// SuccessHook runs after a 2xx backend answer and before the body is written.
// It may set headers or cookies on w.
type SuccessHook func(w http.ResponseWriter, r *http.Request, resp *upstream.Response)

// NotFoundFunc builds the body served with 200 when the backend answers 404.
type NotFoundFunc func(params map[string]string) []byte

// Eviction names a cached route whose entry is dropped after a 2xx answer of
// the evicting route. Upstream is filled with the evicting route's params.
type Eviction struct {
	Route    string
	Upstream string
}

// Route describes one forwarded endpoint.
type Route struct {
	// Name labels metrics, spans and logs.
	Name    string
	Method  string
	Pattern string
	// Upstream is the backend path template, relative to the base URL.
	// {param} placeholders are filled from the matching chi URL params.
	Upstream string

	RequireAuth   bool
	RequireTenant bool
	RateLimited   bool

	Transform Transform
	NotFound  NotFoundFunc
	// CacheTTL > 0 caches 200 answers of GET routes.
	CacheTTL  time.Duration
	Evicts    []Eviction
	OnSuccess SuccessHook
}

// Mode returns the token precedence used by the route.
func (rt Route) Mode() resolver.Mode {
	if rt.RequireTenant {
		return resolver.ModeTenantScoped
	}
	return resolver.ModeDefault
}

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Params returns the placeholder names of the upstream template.
func (rt Route) Params() []string {
	m := placeholderRE.FindAllStringSubmatch(rt.Upstream, -1)
	out := make([]string, 0, len(m))
	for _, g := range m {
		out = append(out, g[1])
	}
	return out
}

// Expand fills the upstream template. params hold decoded values; they are
// path-escaped here.
func (rt Route) Expand(params map[string]string) string {
	return expand(rt.Upstream, params)
}

func expand(tpl string, params map[string]string) string {
	return placeholderRE.ReplaceAllStringFunc(tpl, func(ph string) string {
		name := ph[1 : len(ph)-1]
		return url.PathEscape(params[name])
	})
}

// urlParams returns the decoded chi params of r. chi matches on RawPath when
// the request carries one, so its params are still escaped in that case.
func (rt Route) urlParams(r *http.Request) map[string]string {
	names := rt.Params()
	params := make(map[string]string, len(names))
	for _, n := range names {
		v := chi.URLParam(r, n)
		if r.URL.RawPath != "" {
			if dec, err := url.PathUnescape(v); err == nil {
				v = dec
			}
		}
		params[n] = v
	}
	return params
}

// InjectTenantID sets "tenantId" on a JSON object body to the resolved tenant.
// An empty body becomes {"tenantId": ...}. The resolved tenant wins over a
// value sent by the client.
func InjectTenantID(body []byte, rc resolver.Context) ([]byte, error) {
	if !rc.Tenant.Resolved() {
		return body, nil
	}
	obj := map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			return nil, httperrors.ErrInvalidJSON.WithDetail("body must be a JSON object").WithCause(err)
		}
		if obj == nil {
			obj = map[string]any{}
		}
	}
	obj["tenantId"] = rc.Tenant.ID
	return json.Marshal(obj)
}

type tenantPlaceholder struct {
	ID       string  `json:"id"`
	Name     *string `json:"name"`
	Domain   string  `json:"domain"`
	IsActive bool    `json:"isActive"`
}

// TenantPlaceholder answers an unknown tenant lookup so the UI keeps
// rendering. It reads the "id" param.
func TenantPlaceholder(params map[string]string) []byte {
	b, _ := json.Marshal(tenantPlaceholder{
		ID:       params["id"],
		Domain:   "unknown",
		IsActive: true,
	})
	return b
}

func hasBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
