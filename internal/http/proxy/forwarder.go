package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/schoolgate/internal/cache"
	httperrors "github.com/dropDatabas3/schoolgate/internal/http/errors"
	"github.com/dropDatabas3/schoolgate/internal/http/helpers"
	mw "github.com/dropDatabas3/schoolgate/internal/http/middlewares"
	"github.com/dropDatabas3/schoolgate/internal/metrics"
	"github.com/dropDatabas3/schoolgate/internal/observability/logger"
	"github.com/dropDatabas3/schoolgate/internal/resolver"
	"github.com/dropDatabas3/schoolgate/internal/upstream"
)

// Backend is the upstream client used by the Forwarder.
type Backend interface {
	Do(ctx context.Context, call upstream.Call) (*upstream.Response, error)
}

// Options configures a Forwarder.
type Options struct {
	Backend  Backend
	Resolver *resolver.Resolver
	// Cache stores cacheable answers. nil disables caching.
	Cache   cache.Client
	Session mw.SessionOptions
	// RateLimit wraps routes marked RateLimited. nil disables it.
	RateLimit mw.Middleware
}

// Forwarder turns Routes into http.Handlers.
type Forwarder struct {
	backend   Backend
	res       *resolver.Resolver
	cache     cache.Client
	session   mw.SessionOptions
	rateLimit mw.Middleware
	sf        singleflight.Group
}

// New builds a Forwarder.
func New(opts Options) *Forwarder {
	res := opts.Resolver
	if res == nil {
		res = resolver.New(resolver.CookieNames{}, "")
	}
	return &Forwarder{
		backend:   opts.Backend,
		res:       res,
		cache:     opts.Cache,
		session:   opts.Session,
		rateLimit: opts.RateLimit,
	}
}

// Handler returns the handler for rt with its guards applied: rate limit,
// resolution, session (401) and then tenant (400).
func (f *Forwarder) Handler(rt Route) http.Handler {
	var mws []mw.Middleware
	if rt.RateLimited {
		mws = append(mws, f.rateLimit)
	}
	mws = append(mws, mw.WithResolution(f.res, rt.Mode()))
	if rt.RequireAuth {
		mws = append(mws, mw.RequireSession(f.session))
	}
	if rt.RequireTenant {
		mws = append(mws, mw.RequireTenant())
	}
	return mw.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.serve(rt, w, r)
	}), mws...)
}

func (f *Forwarder) serve(rt Route, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := rt.urlParams(r)
	call := upstream.Call{
		Route:     rt.Name,
		Method:    rt.Method,
		Path:      rt.Expand(params),
		RawQuery:  r.URL.RawQuery,
		RequestID: mw.GetRequestID(ctx),
	}
	log := logger.From(ctx).With(logger.Route(rt.Name), logger.Upstream(call.Path))

	rc, _ := mw.GetResolved(ctx)
	call.Token = rc.Session.AccessToken
	call.TenantID = rc.Tenant.ID

	if hasBody(rt.Method) {
		body, err := helpers.ReadBody(w, r)
		if err != nil {
			httperrors.WriteError(w, err)
			return
		}
		if rt.Transform != nil {
			if body, err = rt.Transform(body, rc); err != nil {
				httperrors.WriteError(w, err)
				return
			}
		}
		call.Body = body
	}

	var (
		resp *upstream.Response
		err  error
	)
	if f.cacheable(rt) {
		resp, err = f.cached(ctx, rt, call)
	} else {
		resp, err = f.backend.Do(ctx, call)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Debug("client went away", logger.Err(err))
			return
		}
		appErr := httperrors.FromError(err)
		if appErr.HTTPStatus >= 500 {
			log.Warn("upstream call failed", logger.Status(appErr.HTTPStatus), logger.Err(err))
		}
		httperrors.WriteError(w, appErr)
		return
	}

	if resp.Status == http.StatusNotFound && rt.NotFound != nil {
		log.Debug("upstream 404 degraded to placeholder")
		helpers.WriteRawJSON(w, http.StatusOK, rt.NotFound(params))
		return
	}

	if resp.Status >= 200 && resp.Status < 300 {
		f.evict(ctx, rt, params)
		if rt.OnSuccess != nil {
			rt.OnSuccess(w, r, resp)
		}
	}

	log.Debug("upstream answered", logger.UpstreamStatus(resp.Status))
	writeUpstream(w, r, resp)
}

func (f *Forwarder) cacheable(rt Route) bool {
	return f.cache != nil && rt.CacheTTL > 0 && rt.Method == http.MethodGet
}

// cached serves GET answers from the cache. Concurrent misses for the same
// key share one backend call. Only 200 JSON bodies are stored.
func (f *Forwarder) cached(ctx context.Context, rt Route, call upstream.Call) (*upstream.Response, error) {
	key := cacheKey(call)
	log := logger.From(ctx).With(logger.Key(key))

	val, err := f.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.TenantCacheLookups.WithLabelValues("hit").Inc()
		h := http.Header{}
		h.Set("X-Cache", "HIT")
		return &upstream.Response{Status: http.StatusOK, Header: h, Body: []byte(val)}, nil
	case cache.IsNotFound(err):
		metrics.TenantCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.TenantCacheLookups.WithLabelValues("error").Inc()
		log.Warn("cache get failed", logger.Err(err))
	}

	// The shared call outlives the first caller; the upstream timeout still bounds it.
	v, err, _ := f.sf.Do(key, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		resp, err := f.backend.Do(shared, call)
		if err != nil {
			return nil, err
		}
		if resp.Status == http.StatusOK && json.Valid(resp.Body) {
			if err := f.cache.Set(shared, key, string(resp.Body), rt.CacheTTL); err != nil {
				log.Warn("cache set failed", logger.Err(err))
			}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*upstream.Response), nil
}

// evict drops the cache entries named by rt.Evicts. Failures are logged; the
// entry then lives until its TTL.
func (f *Forwarder) evict(ctx context.Context, rt Route, params map[string]string) {
	if f.cache == nil {
		return
	}
	for _, e := range rt.Evicts {
		key := cacheKey(upstream.Call{Route: e.Route, Path: expand(e.Upstream, params)})
		if err := f.cache.Delete(context.WithoutCancel(ctx), key); err != nil {
			logger.From(ctx).Warn("cache evict failed", logger.Key(key), logger.Err(err))
		}
	}
}

func cacheKey(call upstream.Call) string {
	k := "proxy:" + call.Route + ":" + call.Path
	if call.RawQuery != "" {
		k += "?" + call.RawQuery
	}
	return k
}

// passthroughHeaders are copied from the backend answer.
var passthroughHeaders = []string{
	"Retry-After",
	"WWW-Authenticate",
	"X-Total-Count",
	"X-Cache",
}

func writeUpstream(w http.ResponseWriter, r *http.Request, resp *upstream.Response) {
	for _, h := range passthroughHeaders {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	body, ok := frameBody(resp.Status, r.Method, resp.Body)
	if !ok {
		w.WriteHeader(resp.Status)
		return
	}
	helpers.WriteRawJSON(w, resp.Status, body)
}

type messageBody struct {
	Message string `json:"message"`
}

// frameBody guarantees a JSON body for the client. ok is false when the
// answer must not carry a body at all.
func frameBody(status int, method string, body []byte) ([]byte, bool) {
	if status == http.StatusNoContent || status == http.StatusNotModified || method == http.MethodHead {
		return nil, false
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return body, true
	}
	if status >= 400 {
		msg := http.StatusText(status)
		if msg == "" {
			msg = "Upstream error"
		}
		b, _ := json.Marshal(messageBody{Message: msg})
		return b, true
	}
	if trimmed == "" {
		return []byte("{}"), true
	}
	b, _ := json.Marshal(messageBody{Message: trimmed})
	return b, true
}
