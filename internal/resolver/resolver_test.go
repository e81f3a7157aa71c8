package resolver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver() *Resolver {
	return New(CookieNames{}, "http://localhost:9000")
}

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestSession_Precedence(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name string
		req  Request
		mode Mode
		want string
	}{
		{
			name: "nothing present is unauthenticated",
			req:  Request{},
			want: "",
		},
		{
			name: "namespaced cookie wins over everything",
			req: Request{
				Cookies: map[string]string{"tenant_access_token": "ns", "accessToken": "legacy"},
				Headers: headers("Authorization", "Bearer hdr"),
			},
			want: "ns",
		},
		{
			name: "header beats legacy cookie in default mode",
			req: Request{
				Cookies: map[string]string{"accessToken": "legacy"},
				Headers: headers("Authorization", "Bearer hdr"),
			},
			want: "hdr",
		},
		{
			name: "legacy cookie beats header on tenant-scoped routes",
			req: Request{
				Cookies: map[string]string{"accessToken": "legacy"},
				Headers: headers("Authorization", "Bearer hdr"),
			},
			mode: ModeTenantScoped,
			want: "legacy",
		},
		{
			name: "bearer scheme is case-insensitive",
			req:  Request{Headers: headers("Authorization", "bearer   tok ")},
			want: "tok",
		},
		{
			name: "non-bearer schemes are ignored",
			req:  Request{Headers: headers("Authorization", "Basic dXNlcjpwYXNz")},
			want: "",
		},
		{
			name: "whitespace cookie counts as absent",
			req: Request{
				Cookies: map[string]string{"tenant_access_token": "   ", "accessToken": "legacy"},
			},
			want: "legacy",
		},
		{
			name: "empty bearer is absent",
			req:  Request{Headers: headers("Authorization", "Bearer ")},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Session(tt.req, tt.mode)
			assert.Equal(t, tt.want, got.AccessToken)
			assert.Equal(t, tt.want != "", got.Authenticated())
		})
	}
}

func TestTenant_Precedence(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name       string
		req        Request
		wantID     string
		wantSource Source
	}{
		{"missing", Request{}, "", SourceNone},
		{
			"namespaced cookie first",
			Request{Cookies: map[string]string{"tenant_id": "a", "tenantId": "b"}, Headers: headers(HeaderTenantID, "c")},
			"a", SourceCookie,
		},
		{
			"legacy cookie before header",
			Request{Cookies: map[string]string{"tenantId": "b"}, Headers: headers(HeaderTenantID, "c")},
			"b", SourceLegacyCookie,
		},
		{
			"header last",
			Request{Headers: headers("x-tenant-id", "c")},
			"c", SourceHeader,
		},
		{
			"route level ignores path and persisted value",
			Request{Path: "/acme-school/dashboard", PersistedTenant: "other"},
			"", SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Tenant(tt.req)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.wantSource, got.Source)
			assert.Equal(t, tt.wantID != "", got.Resolved())
		})
	}
}

func TestPageTenant(t *testing.T) {
	r := newTestResolver()
	const id = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"

	tests := []struct {
		name       string
		req        Request
		wantID     string
		wantSource Source
	}{
		{"uuid path segment", Request{Path: "/" + id + "/grades"}, id, SourcePath},
		{"uppercase uuid kept as given", Request{Path: "/3F2504E0-4F89-11D3-9A0C-0305E82C3301"}, "3F2504E0-4F89-11D3-9A0C-0305E82C3301", SourcePath},
		{"domain path segment", Request{Path: "/acme-school/dashboard"}, "acme-school", SourcePath},
		{"mixed case domain is lowercased", Request{Path: "/Acme.Edu"}, "acme.edu", SourcePath},
		{"query string ignored", Request{Path: "/acme?tab=1"}, "acme", SourcePath},
		{"api is reserved", Request{Path: "/api/tenants"}, "", SourceNone},
		{"_next is reserved", Request{Path: "/_next/static/chunk.js"}, "", SourceNone},
		{"favicon is reserved", Request{Path: "/favicon.ico"}, "", SourceNone},
		{"super-admin is reserved", Request{Path: "/super-admin"}, "", SourceNone},
		{"invalid token rejected", Request{Path: "/not_a_tenant!"}, "", SourceNone},
		{"leading hyphen rejected", Request{Path: "/-acme"}, "", SourceNone},
		{"root path falls to persisted", Request{Path: "/", PersistedTenant: "saved-school"}, "saved-school", SourcePersisted},
		{"reserved path falls to persisted", Request{Path: "/api", PersistedTenant: id}, id, SourcePersisted},
		{"invalid persisted value ignored", Request{Path: "/", PersistedTenant: "api"}, "", SourceNone},
		{
			"cookie beats path",
			Request{Cookies: map[string]string{"tenant_id": "cookie-school"}, Path: "/path-school"},
			"cookie-school", SourceCookie,
		},
		{
			"header beats path",
			Request{Headers: headers(HeaderTenantID, "hdr-school"), Path: "/path-school"},
			"hdr-school", SourceHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.PageTenant(tt.req)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.wantSource, got.Source)
		})
	}
}

func TestReservedSegmentsNeverResolve(t *testing.T) {
	r := newTestResolver()
	for seg := range reservedSegments {
		got := r.PageTenant(Request{Path: "/" + seg + "/x"})
		assert.False(t, got.Resolved(), "segment %q resolved as tenant", seg)

		_, ok := ValidTenantID(seg)
		assert.False(t, ok, "segment %q accepted", seg)
	}
}

func TestValidTenantID(t *testing.T) {
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"acme-school", "acme-school", true},
		{"ACME-School", "acme-school", true},
		{"school.acme.edu", "school.acme.edu", true},
		{"a", "a", true},
		{"", "", false},
		{"   ", "", false},
		{"acme-", "", false},
		{"acme..edu", "", false},
		{"acme_school", "", false},
		{string(long), "", false},
		{"API", "", false},
	}
	for _, tt := range tests {
		got, ok := ValidTenantID(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestResolve_BackendBaseURL(t *testing.T) {
	r := newTestResolver()
	ctx := r.Resolve(Request{}, ModeDefault)

	require.Equal(t, "http://127.0.0.1:9000/api/v1", ctx.BackendBaseURL)
	require.False(t, ctx.Session.Authenticated())
	require.False(t, ctx.Tenant.Resolved())
}

func TestResolvePage_Combined(t *testing.T) {
	r := newTestResolver()
	ctx := r.ResolvePage(Request{
		Cookies: map[string]string{"accessToken": "tok1"},
		Path:    "/acme-school",
	})

	require.Equal(t, "tok1", ctx.Session.AccessToken)
	require.Equal(t, "acme-school", ctx.Tenant.ID)
	require.Equal(t, SourcePath, ctx.Tenant.Source)
}

func TestNew_CustomCookieNames(t *testing.T) {
	r := New(CookieNames{AccessToken: "sg_token"}, "")
	names := r.Names()

	require.Equal(t, "sg_token", names.AccessToken)
	require.Equal(t, "accessToken", names.LegacyAccessToken)
	require.Equal(t, "http://127.0.0.1:8000/api/v1", r.BackendBaseURL())

	got := r.Session(Request{Cookies: map[string]string{"sg_token": "x", "tenant_access_token": "y"}}, ModeDefault)
	require.Equal(t, "x", got.AccessToken)
}

func TestFromHTTP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/enrollments", nil)
	req.AddCookie(&http.Cookie{Name: "tenantId", Value: "first"})
	req.AddCookie(&http.Cookie{Name: "tenantId", Value: "second"})
	req.Header.Set("Authorization", "Bearer abc")

	got := FromHTTP(req)
	require.Equal(t, "first", got.Cookies["tenantId"])

	r := newTestResolver()
	require.Equal(t, "abc", r.Session(got, ModeDefault).AccessToken)
	require.Equal(t, "first", r.Tenant(got).ID)
}
