package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

var (
	rootOnce sync.Once
	root     *zap.Logger
)

// Init fija el logger raíz del gateway. Sólo cuenta la primera llamada.
func Init(cfg Config) {
	rootOnce.Do(func() { root = build(cfg) })
}

// L devuelve el logger raíz. Sin Init previo arranca uno de desarrollo.
func L() *zap.Logger {
	Init(Config{Level: "info"})
	return root
}

// Sync vacía el buffer del logger raíz (defer en main).
func Sync() error {
	if root == nil {
		return nil
	}
	return root.Sync()
}

type ctxKey struct{}

// ToContext deja l como logger del request.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From devuelve el logger del request o, si ningún middleware lo puso, el raíz.
func From(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
			return l
		}
	}
	return L()
}

// Scoped agrega campos al logger del request: el tenant resuelto, la ruta...
// Los logs posteriores del mismo request los llevan.
func Scoped(ctx context.Context, fields ...Field) context.Context {
	return ToContext(ctx, From(ctx).With(fields...))
}
