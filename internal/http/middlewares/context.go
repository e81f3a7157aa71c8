package middlewares

import (
	"context"

	"github.com/dropDatabas3/schoolgate/internal/resolver"
)

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
	// ctxResolvedKey guarda el resolver.Context del request
	ctxResolvedKey ctxKey = "resolved"
	// ctxMetaKey guarda datos que se completan después de WithLogging
	ctxMetaKey ctxKey = "meta"
	// ctxClientIPKey guarda la IP resuelta por WithClientIP
	ctxClientIPKey ctxKey = "client_ip"
)

// requestMeta la crea WithLogging y la completan middlewares posteriores
// (tenant resuelto), así el log final los incluye.
type requestMeta struct {
	tenantID     string
	tenantSource string
}

// =================================================================================
// CONTEXT SETTERS
// =================================================================================

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

func contextWithMeta(ctx context.Context, m *requestMeta) context.Context {
	return context.WithValue(ctx, ctxMetaKey, m)
}

// WithResolved inyecta el resultado de la resolución de sesión/tenant.
func WithResolved(ctx context.Context, rc resolver.Context) context.Context {
	if m, ok := ctx.Value(ctxMetaKey).(*requestMeta); ok && rc.Tenant.Resolved() {
		m.tenantID = rc.Tenant.ID
		m.tenantSource = string(rc.Tenant.Source)
	}
	return context.WithValue(ctx, ctxResolvedKey, rc)
}

// =================================================================================
// CONTEXT GETTERS
// =================================================================================

// GetRequestID obtiene el request ID del contexto ("" si no hay).
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}

// GetResolved obtiene el resultado de la resolución.
// ok es false si WithResolution no se aplicó.
func GetResolved(ctx context.Context) (resolver.Context, bool) {
	rc, ok := ctx.Value(ctxResolvedKey).(resolver.Context)
	return rc, ok
}
