package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/schoolgate/internal/observability/logger"
)

// WithLogging registra cada request con campos estructurados e inyecta en el
// contexto un logger con request_id, method, path y client_ip. Va por fuera de
// WithRecover para que un panic también deje su línea con status 500.
// El nivel depende del status: 5xx error, 4xx warn, resto info.
//
// Ejemplo de log (prod):
//
//	{"level":"warn","msg":"request completed with client error","request_id":"abc123","method":"GET","path":"/api/enrollments","client_ip":"203.0.113.7","status":400,"bytes":61,"duration_ms":1,"tenant_id":""}
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Obtener request ID (ya debería estar en header por WithRequestID)
			requestID := w.Header().Get("X-Request-ID")
			if requestID == "" {
				requestID = GetRequestID(r.Context())
			}

			ctx := logger.Scoped(r.Context(),
				logger.RequestID(requestID),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.ClientIP(clientIP(r)),
			)
			reqLog := logger.From(ctx)

			meta := &requestMeta{}
			ctx = contextWithMeta(ctx, meta)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.statusOrOK()
			fields := []logger.Field{
				logger.Status(status),
				logger.Bytes(rec.bytes),
				logger.DurationMs(time.Since(start).Milliseconds()),
			}
			if meta.tenantID != "" {
				fields = append(fields, logger.TenantID(meta.tenantID), logger.TenantSource(meta.tenantSource))
			}

			switch {
			case status >= 500:
				reqLog.Error("request failed", fields...)
			case status >= 400:
				reqLog.Warn("request completed with client error", fields...)
			default:
				reqLog.Info("request completed", fields...)
			}
		})
	}
}
