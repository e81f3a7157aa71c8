package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/schoolgate/internal/resolver"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc, ok := GetResolved(r.Context())
		if !ok {
			http.Error(w, "no resolution", http.StatusInternalServerError)
			return
		}
		w.Header().Set("X-Resolved-Tenant", rc.Tenant.ID)
		w.Header().Set("X-Resolved-Token", rc.Session.AccessToken)
		w.WriteHeader(http.StatusOK)
	})
}

func guarded(mode resolver.Mode, opts SessionOptions) http.Handler {
	res := resolver.New(resolver.CookieNames{}, "")
	return Chain(okHandler(),
		WithResolution(res, mode),
		RequireSession(opts),
		RequireTenant(),
	)
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGuard_TenantCookieWithoutTokenIs401(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/enrollments", nil)
	req.AddCookie(&http.Cookie{Name: "tenantId", Value: "acme-school"})
	rec := httptest.NewRecorder()

	guarded(resolver.ModeTenantScoped, SessionOptions{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Authentication required", decodeErr(t, rec)["message"])
	require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestGuard_TokenWithoutTenantIs400(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/enrollments", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: "tok1"})
	rec := httptest.NewRecorder()

	guarded(resolver.ModeTenantScoped, SessionOptions{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Tenant context required", decodeErr(t, rec)["message"])
}

func TestGuard_NothingIs401First(t *testing.T) {
	rec := httptest.NewRecorder()
	guarded(resolver.ModeTenantScoped, SessionOptions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireTenant_IndependentOfAuth(t *testing.T) {
	res := resolver.New(resolver.CookieNames{}, "")
	h := Chain(okHandler(), WithResolution(res, resolver.ModeDefault), RequireTenant())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGuard_PassesResolvedContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/enrollments", nil)
	req.AddCookie(&http.Cookie{Name: "tenant_access_token", Value: "ns-token"})
	req.Header.Set("X-Tenant-ID", "acme-school")
	rec := httptest.NewRecorder()

	guarded(resolver.ModeTenantScoped, SessionOptions{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "acme-school", rec.Header().Get("X-Resolved-Tenant"))
	require.Equal(t, "ns-token", rec.Header().Get("X-Resolved-Token"))
}

func TestRequireSession_RejectsExpiredJWT(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": now.Add(-time.Minute).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/enrollments", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("X-Tenant-ID", "acme")

	rec := httptest.NewRecorder()
	guarded(resolver.ModeDefault, SessionOptions{RejectExpired: true, Now: func() time.Time { return now }}).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_EXPIRED", decodeErr(t, rec)["code"])

	rec = httptest.NewRecorder()
	guarded(resolver.ModeDefault, SessionOptions{}).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "expiry check is opt-in")
}

func TestRequireSession_OpaqueTokenPasses(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer opaque")
	req.Header.Set("X-Tenant-ID", "acme")
	rec := httptest.NewRecorder()

	guarded(resolver.ModeDefault, SessionOptions{RejectExpired: true}).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
