package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/schoolgate/internal/cache"
	"github.com/dropDatabas3/schoolgate/internal/resolver"
	"github.com/dropDatabas3/schoolgate/internal/upstream"
)

type seen struct {
	Method   string
	Path     string
	RawPath  string
	Query    string
	Auth     string
	TenantID string
	Body     string
}

func newBackend(t *testing.T, h func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]seen) {
	t.Helper()
	var calls []seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		calls = append(calls, seen{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawPath:  r.URL.EscapedPath(),
			Query:    r.URL.RawQuery,
			Auth:     r.Header.Get("Authorization"),
			TenantID: r.Header.Get("X-Tenant-ID"),
			Body:     string(b),
		})
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func mount(f *Forwarder, routes ...Route) http.Handler {
	r := chi.NewRouter()
	for _, rt := range routes {
		r.Method(rt.Method, rt.Pattern, f.Handler(rt))
	}
	return r
}

func newForwarder(baseURL string, c cache.Client) *Forwarder {
	return New(Options{
		Backend: upstream.NewClient(upstream.Options{BaseURL: baseURL, Timeout: 2 * time.Second}),
		Cache:   c,
	})
}

func TestForwarder_EnrollmentsListForwardsContext(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"e1"}]`))
	})
	h := mount(newForwarder(srv.URL, nil), Route{
		Name: "enrollments.list", Method: http.MethodGet, Pattern: "/api/enrollments",
		Upstream: "/enrollments", RequireAuth: true, RequireTenant: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/enrollments?page=2", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: "tok1"})
	req.AddCookie(&http.Cookie{Name: "tenantId", Value: "acme-school"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"id":"e1"}]`, rec.Body.String())
	require.Len(t, *calls, 1)
	c := (*calls)[0]
	require.Equal(t, "/api/v1/enrollments", c.Path)
	require.Equal(t, "page=2", c.Query)
	require.Equal(t, "Bearer tok1", c.Auth)
	require.Equal(t, "acme-school", c.TenantID)
}

func TestForwarder_GuardsShortCircuit(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {})
	h := mount(newForwarder(srv.URL, nil), Route{
		Name: "grades.create", Method: http.MethodPost, Pattern: "/api/grades",
		Upstream: "/grades", RequireAuth: true, RequireTenant: true, Transform: InjectTenantID,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/grades", strings.NewReader(`{}`))
	req.AddCookie(&http.Cookie{Name: "tenantId", Value: "acme-school"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Authentication required")

	req = httptest.NewRequest(http.MethodPost, "/api/grades", strings.NewReader(`{}`))
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: "tok1"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Tenant context required")

	require.Empty(t, *calls)
}

func TestForwarder_InjectsTenantIntoBody(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"g1"}`))
	})
	h := mount(newForwarder(srv.URL, nil), Route{
		Name: "grades.create", Method: http.MethodPost, Pattern: "/api/grades",
		Upstream: "/grades", RequireAuth: true, RequireTenant: true, Transform: InjectTenantID,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/grades", strings.NewReader(`{"score":9.5,"tenantId":"other"}`))
	req.Header.Set("Authorization", "Bearer tok1")
	req.Header.Set("X-Tenant-ID", "acme-school")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, *calls, 1)
	require.JSONEq(t, `{"score":9.5,"tenantId":"acme-school"}`, (*calls)[0].Body)
}

func TestForwarder_ExpandsPathParams(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := mount(newForwarder(srv.URL, nil), Route{
		Name: "enrollments.delete", Method: http.MethodDelete, Pattern: "/api/enrollments/{id}",
		Upstream: "/enrollments/{id}", RequireAuth: true, RequireTenant: true,
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/enrollments/e-42", nil)
	req.Header.Set("Authorization", "Bearer tok1")
	req.Header.Set("X-Tenant-ID", "acme-school")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.String())
	require.Equal(t, "/api/v1/enrollments/e-42", (*calls)[0].Path)
	require.Equal(t, http.MethodDelete, (*calls)[0].Method)
}

func TestForwarder_TenantNotFoundDegrades(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"not found"}`))
	})
	h := mount(newForwarder(srv.URL, cache.NewMemory("", time.Minute)), Route{
		Name: "tenants.get", Method: http.MethodGet, Pattern: "/api/tenants/{id}",
		Upstream: "/tenants/{id}", NotFound: TenantPlaceholder, CacheTTL: time.Minute,
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenants/X", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"id":"X","name":null,"domain":"unknown","isActive":true}`, rec.Body.String())
	}
	require.Len(t, *calls, 2, "placeholder must not be cached")
}

func TestForwarder_EscapedParamsAreForwardedOnce(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := mount(newForwarder(srv.URL, nil), Route{
		Name: "tenants.get", Method: http.MethodGet, Pattern: "/api/tenants/{id}",
		Upstream: "/tenants/{id}", NotFound: TenantPlaceholder,
	})

	cases := []struct {
		path     string
		upstream string
		id       string
	}{
		{"/api/tenants/a%2Fb", "/api/v1/tenants/a%2Fb", "a/b"},
		{"/api/tenants/a%20b", "/api/v1/tenants/a%20b", "a b"},
		{"/api/tenants/caf%C3%A9", "/api/v1/tenants/caf%C3%A9", "café"},
	}
	for i, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		require.Equal(t, http.StatusOK, rec.Code, tc.path)
		require.Equal(t, tc.upstream, (*calls)[i].RawPath, tc.path)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.id, body["id"], tc.path)
	}
}

func TestForwarder_ActivateEvictsCachedTenant(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"acme","isActive":true}`))
	})
	h := mount(newForwarder(srv.URL, cache.NewMemory("", time.Minute)),
		Route{
			Name: "tenants.get", Method: http.MethodGet, Pattern: "/api/tenants/{id}",
			Upstream: "/tenants/{id}", CacheTTL: time.Minute,
		},
		Route{
			Name: "tenants.activate", Method: http.MethodPost, Pattern: "/api/tenants/{id}/activate",
			Upstream: "/tenants/{id}/activate", RequireAuth: true,
			Evicts: []Eviction{{Route: "tenants.get", Upstream: "/tenants/{id}"}},
		},
	)
	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenants/acme", nil))
		return rec
	}

	get()
	require.Equal(t, "HIT", get().Header().Get("X-Cache"))
	require.Len(t, *calls, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/tenants/acme/activate", nil)
	req.Header.Set("Authorization", "Bearer tok1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get()
	require.Empty(t, rec.Header().Get("X-Cache"))
	require.Len(t, *calls, 3)
	require.Equal(t, "/api/v1/tenants/acme", (*calls)[2].Path)
}

// strictCache refuses writes under a cancelled context, like a redis client does.
type strictCache struct{ cache.Client }

func (c strictCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Client.Set(ctx, key, value, ttl)
}

func TestForwarder_CachesEvenIfFirstClientLeaves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		cancel()
		_, _ = w.Write([]byte(`{"id":"acme"}`))
	})
	h := mount(newForwarder(srv.URL, strictCache{cache.NewMemory("", time.Minute)}), Route{
		Name: "tenants.get", Method: http.MethodGet, Pattern: "/api/tenants/{id}",
		Upstream: "/tenants/{id}", CacheTTL: time.Minute,
	})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tenants/acme", nil).WithContext(ctx))
	require.Error(t, ctx.Err())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenants/acme", nil))
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	require.Len(t, *calls, 1)
}

func TestForwarder_CachesTenantLookups(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"acme","name":"Acme","domain":"acme.edu","isActive":true}`))
	})
	h := mount(newForwarder(srv.URL, cache.NewMemory("", time.Minute)), Route{
		Name: "tenants.get", Method: http.MethodGet, Pattern: "/api/tenants/{id}",
		Upstream: "/tenants/{id}", NotFound: TenantPlaceholder, CacheTTL: time.Minute,
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenants/acme", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("X-Cache"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenants/acme", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	require.Contains(t, rec.Body.String(), `"Acme"`)
	require.Len(t, *calls, 1)
}

func TestForwarder_SingleflightDedupesMisses(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		_, _ = w.Write([]byte(`{"id":"acme"}`))
	}))
	defer srv.Close()

	h := mount(newForwarder(srv.URL, cache.NewMemory("", time.Minute)), Route{
		Name: "tenants.get", Method: http.MethodGet, Pattern: "/api/tenants/{id}",
		Upstream: "/tenants/{id}", CacheTTL: time.Minute,
	})

	const n = 5
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenants/acme", nil))
			done <- rec.Code
		}()
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	for i := 0; i < n; i++ {
		require.Equal(t, http.StatusOK, <-done)
	}
	require.LessOrEqual(t, atomic.LoadInt32(&hits), int32(n))
	require.GreaterOrEqual(t, atomic.LoadInt32(&hits), int32(1))
}

func TestForwarder_BackendStatusPassesThrough(t *testing.T) {
	srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":{"email":"taken"}}`))
	})
	h := mount(newForwarder(srv.URL, nil), Route{
		Name: "auth.register", Method: http.MethodPost, Pattern: "/api/auth/register",
		Upstream: "/auth/register", RequireTenant: true, Transform: InjectTenantID,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"a@b.c"}`))
	req.Header.Set("X-Tenant-ID", "acme-school")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.JSONEq(t, `{"errors":{"email":"taken"}}`, rec.Body.String())
}

func TestForwarder_NonJSONErrorIsFramed(t *testing.T) {
	srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})
	h := mount(newForwarder(srv.URL, nil), Route{
		Name: "tenants.by_domain", Method: http.MethodGet, Pattern: "/api/tenants/by-domain/{domain}",
		Upstream: "/tenants/domain/{domain}",
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenants/by-domain/acme.edu", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Bad Gateway", body["message"])
}

type timeoutBackend struct{}

func (timeoutBackend) Do(ctx context.Context, _ upstream.Call) (*upstream.Response, error) {
	return nil, upstream.ErrUpstreamTimeout
}

type openBackend struct{}

func (openBackend) Do(ctx context.Context, _ upstream.Call) (*upstream.Response, error) {
	return nil, upstream.ErrCircuitOpen
}

func TestForwarder_ErrorMapping(t *testing.T) {
	rt := Route{Name: "tenants.get", Method: http.MethodGet, Pattern: "/api/tenants/{id}", Upstream: "/tenants/{id}"}

	rec := httptest.NewRecorder()
	mount(New(Options{Backend: timeoutBackend{}}), rt).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenants/a", nil))
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	rec = httptest.NewRecorder()
	mount(New(Options{Backend: openBackend{}}), rt).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenants/a", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestForwarder_OnSuccessHook(t *testing.T) {
	srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"accessToken":"new-token"}`))
	})
	var got string
	h := mount(newForwarder(srv.URL, nil), Route{
		Name: "auth.login", Method: http.MethodPost, Pattern: "/api/auth/login",
		Upstream: "/auth/login", RequireTenant: true,
		OnSuccess: func(w http.ResponseWriter, r *http.Request, resp *upstream.Response) {
			got = string(resp.Body)
			w.Header().Set("X-Hook", "ran")
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	req.Header.Set("X-Tenant-ID", "acme-school")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ran", rec.Header().Get("X-Hook"))
	require.Contains(t, got, "new-token")
}

func TestFrameBody(t *testing.T) {
	cases := []struct {
		name   string
		status int
		method string
		body   string
		want   string
		ok     bool
	}{
		{"json passes", 200, http.MethodGet, `{"a":1}`, `{"a":1}`, true},
		{"empty 2xx", 200, http.MethodGet, "", `{}`, true},
		{"text 2xx", 201, http.MethodPost, "created", `{"message":"created"}`, true},
		{"text error", 500, http.MethodGet, "oops", `{"message":"Internal Server Error"}`, true},
		{"empty error", 404, http.MethodGet, "", `{"message":"Not Found"}`, true},
		{"no content", 204, http.MethodDelete, "", "", false},
		{"head", 200, http.MethodHead, `{"a":1}`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := frameBody(tc.status, tc.method, []byte(tc.body))
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.JSONEq(t, tc.want, string(got))
			}
		})
	}
}

func TestInjectTenantID(t *testing.T) {
	rc := resolver.Context{Tenant: resolver.TenantContext{ID: "acme"}}

	out, err := InjectTenantID(nil, rc)
	require.NoError(t, err)
	require.JSONEq(t, `{"tenantId":"acme"}`, string(out))

	out, err = InjectTenantID([]byte(`{"n":12345678901234567890}`), rc)
	require.NoError(t, err)
	require.JSONEq(t, `{"n":12345678901234567890,"tenantId":"acme"}`, string(out))

	_, err = InjectTenantID([]byte(`[1,2]`), rc)
	require.Error(t, err)

	out, err = InjectTenantID([]byte(`{"x":1}`), resolver.Context{})
	require.NoError(t, err)
	require.Equal(t, `{"x":1}`, string(out))
}

func TestRouteExpand(t *testing.T) {
	rt := Route{Upstream: "/courses/{courseId}/grades"}
	require.Equal(t, []string{"courseId"}, rt.Params())
	require.Equal(t, "/courses/a%2Fb/grades", rt.Expand(map[string]string{"courseId": "a/b"}))
	require.Equal(t, resolver.ModeDefault, rt.Mode())
	require.Equal(t, resolver.ModeTenantScoped, Route{RequireTenant: true}.Mode())
}
