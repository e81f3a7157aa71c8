package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dropDatabas3/schoolgate/internal/claims"
	dto "github.com/dropDatabas3/schoolgate/internal/http/dto/session"
	httperrors "github.com/dropDatabas3/schoolgate/internal/http/errors"
	"github.com/dropDatabas3/schoolgate/internal/http/helpers"
	mw "github.com/dropDatabas3/schoolgate/internal/http/middlewares"
	"github.com/dropDatabas3/schoolgate/internal/observability/logger"
	"github.com/dropDatabas3/schoolgate/internal/resolver"
	"github.com/dropDatabas3/schoolgate/internal/upstream"
	"github.com/dropDatabas3/schoolgate/internal/validation"
)

// SessionController maneja GET /api/session, POST /api/session/tenant y el
// hook de login.
type SessionController struct {
	res     *resolver.Resolver
	cookies helpers.CookieOptions
	now     func() time.Time
}

// NewSessionController crea un nuevo session controller.
func NewSessionController(cfg Config) *SessionController {
	return &SessionController{
		res:     cfg.Resolver,
		cookies: cfg.Cookies,
		now:     time.Now,
	}
}

// Get resuelve sesión y tenant a nivel página. La UI manda el path actual
// (?path=) y el tenant que tenga guardado (?persisted_tenant=).
func (c *SessionController) Get(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Op("SessionController.Get"))

	req := resolver.FromHTTP(r)
	q := r.URL.Query()
	req.Path = q.Get("path")
	req.PersistedTenant = q.Get("persisted_tenant")

	rc := c.res.ResolvePage(req)
	resp := dto.SessionResponse{
		Authenticated: rc.Session.Authenticated(),
		TenantID:      rc.Tenant.ID,
		TenantSource:  string(rc.Tenant.Source),
	}
	if rc.Session.Authenticated() {
		if info, err := claims.Peek(rc.Session.AccessToken); err == nil {
			resp.Subject = info.Subject
			if !info.ExpiresAt.IsZero() {
				exp := info.ExpiresAt.UTC()
				resp.ExpiresAt = &exp
				resp.Expired = info.Expired(c.now())
			}
		}
	}

	log.Debug("session resolved",
		logger.Authenticated(resp.Authenticated),
		logger.TenantSource(resp.TenantSource),
	)
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// SwitchTenant valida el tenant pedido y deja las cookies de tenant
// (namespaced y legacy) para los requests siguientes.
func (c *SessionController) SwitchTenant(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Op("SessionController.SwitchTenant"))

	var req dto.SwitchTenantRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	id, _ := resolver.ValidTenantID(req.TenantID)

	c.setTenantCookies(w, id)

	log.Info("tenant switched", logger.TenantID(id))
	helpers.WriteJSON(w, http.StatusOK, dto.SwitchTenantResponse{TenantID: id, TenantName: req.TenantName})
}

// LoginSucceeded toma el access token de la respuesta del backend y lo deja
// en la cookie namespaced (HttpOnly). Si el login resolvió tenant, también
// persiste las cookies de tenant.
func (c *SessionController) LoginSucceeded(w http.ResponseWriter, r *http.Request, resp *upstream.Response) {
	log := logger.From(r.Context()).With(logger.Op("SessionController.LoginSucceeded"))

	var toks dto.LoginTokens
	if err := json.Unmarshal(resp.Body, &toks); err != nil || toks.Token() == "" {
		log.Warn("login answer without access token")
		return
	}

	names := c.res.Names()
	http.SetCookie(w, helpers.BuildCookie(names.AccessToken, toks.Token(), c.cookies))

	if rc, ok := mw.GetResolved(r.Context()); ok && rc.Tenant.Resolved() {
		c.setTenantCookies(w, rc.Tenant.ID)
	}
	log.Debug("session cookies set")
}

func (c *SessionController) setTenantCookies(w http.ResponseWriter, tenantID string) {
	names := c.res.Names()
	http.SetCookie(w, helpers.BuildClientCookie(names.Tenant, tenantID, c.cookies))
	http.SetCookie(w, helpers.BuildClientCookie(names.LegacyTenant, tenantID, c.cookies))
}
