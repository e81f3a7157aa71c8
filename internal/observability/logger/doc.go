// Package logger provides a singleton Zap logger with context-based scoping.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada request del gateway lleva su propio logger "scoped"
//     con request_id, tenant_id y route, sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Levels: debug, info, warn, error (configurable via LOG_LEVEL o log.level en YAML).
//
// # Usage
//
// Inicialización (una vez en cmd/gateway):
//
//	logger.Init(logger.Config{
//	    Env:         cfg.App.Env,
//	    Level:       cfg.Log.Level,
//	    ServiceName: "schoolgate",
//	})
//	defer logger.Sync()
//
// En middlewares y forwarder (con contexto):
//
//	log := logger.From(ctx)
//	log.Warn("upstream timeout", logger.Route(rt.Name), logger.TenantID(tid))
//
// Sin contexto (fallback a singleton):
//
//	logger.L().Info("gateway listening")
package logger
