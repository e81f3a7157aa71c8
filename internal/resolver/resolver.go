package resolver

import "github.com/dropDatabas3/schoolgate/internal/upstream"

// HeaderTenantID is the request header carrying an explicit tenant id. The
// same header is sent upstream.
const HeaderTenantID = "X-Tenant-ID"

// CookieNames lists the cookies the resolver reads. The namespaced names take
// priority over the legacy ones.
type CookieNames struct {
	AccessToken       string
	LegacyAccessToken string
	Tenant            string
	LegacyTenant      string
}

// DefaultCookieNames returns the names used by the school UI.
func DefaultCookieNames() CookieNames {
	return CookieNames{
		AccessToken:       "tenant_access_token",
		LegacyAccessToken: "accessToken",
		Tenant:            "tenant_id",
		LegacyTenant:      "tenantId",
	}
}

// Context is the per-request outcome. It is derived on every request and
// never stored.
type Context struct {
	Session        Session
	Tenant         TenantContext
	BackendBaseURL string
}

// Resolver holds the cookie names and the normalized backend base URL.
// It is safe for concurrent use.
type Resolver struct {
	names   CookieNames
	baseURL string
}

// New returns a Resolver. Empty cookie names fall back to the defaults and
// backendURL is normalized with upstream.NormalizeBaseURL.
func New(names CookieNames, backendURL string) *Resolver {
	def := DefaultCookieNames()
	if names.AccessToken == "" {
		names.AccessToken = def.AccessToken
	}
	if names.LegacyAccessToken == "" {
		names.LegacyAccessToken = def.LegacyAccessToken
	}
	if names.Tenant == "" {
		names.Tenant = def.Tenant
	}
	if names.LegacyTenant == "" {
		names.LegacyTenant = def.LegacyTenant
	}
	return &Resolver{names: names, baseURL: upstream.NormalizeBaseURL(backendURL)}
}

// Names returns the cookie names in use.
func (r *Resolver) Names() CookieNames { return r.names }

// BackendBaseURL returns the normalized backend base URL.
func (r *Resolver) BackendBaseURL() string { return r.baseURL }

// Session resolves the access token using the precedence of mode.
func (r *Resolver) Session(req Request, mode Mode) Session {
	return r.session(req, mode)
}

// Tenant resolves the tenant for a proxy route: namespaced cookie, legacy
// cookie, then the X-Tenant-ID header.
func (r *Resolver) Tenant(req Request) TenantContext {
	return r.tenant(req)
}

// PageTenant extends Tenant with the first URL path segment and the value the
// client persisted locally. Both are validated with ValidTenantID.
func (r *Resolver) PageTenant(req Request) TenantContext {
	return r.pageTenant(req)
}

// Resolve combines session and route-level tenant resolution.
func (r *Resolver) Resolve(req Request, mode Mode) Context {
	return Context{
		Session:        r.session(req, mode),
		Tenant:         r.tenant(req),
		BackendBaseURL: r.baseURL,
	}
}

// ResolvePage combines session and page-level tenant resolution.
func (r *Resolver) ResolvePage(req Request) Context {
	return Context{
		Session:        r.session(req, ModeDefault),
		Tenant:         r.pageTenant(req),
		BackendBaseURL: r.baseURL,
	}
}
