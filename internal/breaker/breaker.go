// Package breaker wraps PS-dependent calls in a circuit breaker so a
// saturated or unreachable store fails fast with StorageUnavailable
// instead of piling up goroutines on a dead connection pool (spec_full §5,
// "addition — circuit breaking").
package breaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned in place of the wrapped call's error whenever the
// breaker is open or in half-open probing has exhausted its allowance.
// Callers (Allocator, Resolver) treat this identically to a transient
// storage error.
var ErrOpen = errors.New("breaker: circuit open, short-circuiting to storage unavailable")

// Config mirrors config.CircuitBreakerConfig, with durations instead of
// second counts; this package does not import the config package.
type Config struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// Breaker wraps a gobreaker.CircuitBreaker over `any`, with a typed
// Execute helper so callers keep compile-time result types.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

// New builds a Breaker from cfg. It trips open after ConsecutiveFailures
// consecutive failures and stays open for Timeout before allowing
// MaxRequests probe calls through in the half-open state.
func New(cfg Config) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// Execute runs fn through the breaker, preserving fn's result type.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrOpen
		}
		return zero, err
	}
	return result.(T), nil
}

// State reports the breaker's current state for /health reporting.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
