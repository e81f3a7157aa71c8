package upstream

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUpstreamTimeout is returned when the backend does not answer within
	// the configured timeout. It maps to 504 and is never retried.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrCircuitOpen is returned while the breaker rejects calls. Maps to 503.
	ErrCircuitOpen = errors.New("upstream circuit open")
)

// WithTimeout runs call with a context that expires after d. If call settles
// first its own result is returned; if the deadline fires first
// ErrUpstreamTimeout is returned without waiting for a call that ignores
// cancellation. The derived context is cancelled on every return path.
// Cancellation of ctx itself is reported as ctx.Err(), not as a timeout.
// A non-positive d runs call directly on ctx.
func WithTimeout[T any](ctx context.Context, d time.Duration, call func(context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return call(ctx)
	}

	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call(cctx)
		done <- result{v: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && cctx.Err() != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, ErrUpstreamTimeout
		}
		return res.v, res.err
	case <-cctx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, ErrUpstreamTimeout
	}
}
