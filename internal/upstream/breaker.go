package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/dropDatabas3/schoolgate/internal/metrics"
	"github.com/dropDatabas3/schoolgate/internal/observability/logger"
)

const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker in front of the backend.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
	// Interval clears the failure counts while closed. Zero uses the default.
	Interval time.Duration
}

// Breaker fails fast while the backend keeps failing. Transport errors,
// timeouts and 5xx answers count as failures; 4xx answers do not.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[*Response]
}

// serverStatusError carries a 5xx response through the breaker so it counts
// as a failure without losing the body.
type serverStatusError struct {
	resp *Response
}

func (e *serverStatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.resp.Status)
}

// NewBreaker builds a Breaker. Zero values fall back to defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.Set(float64(to))
			logger.L().With(logger.Component("upstream")).Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// el cliente se fue: no es culpa del backend
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{cb: cb}
}

// State returns the current breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Execute runs fn through the breaker. Open or saturated circuits return
// ErrCircuitOpen.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) (*Response, error)) (*Response, error) {
	resp, err := b.cb.Execute(func() (*Response, error) {
		r, err := fn(ctx)
		if err == nil && r != nil && r.Status >= 500 {
			return nil, &serverStatusError{resp: r}
		}
		return r, err
	})
	if err != nil {
		var se *serverStatusError
		if errors.As(err, &se) {
			return se.resp, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}
	return resp, nil
}
