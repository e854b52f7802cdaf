package rate

import (
	"context"
	"time"
)

const (
	// DefaultMaxAttempts is the per-key attempt budget within one window.
	DefaultMaxAttempts = 5
	// DefaultWindow is the fixed window length.
	DefaultWindow = 15 * time.Minute
)

// Config holds rate limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

// Decision is the outcome of a single [Limiter.Allow] call.
type Decision struct {
	Allowed bool
	// RetryAfter is how long until the current window expires. Only
	// meaningful when Allowed is false.
	RetryAfter time.Duration
}

// CounterStore abstracts the fixed-window counter backend so the
// limiter works against Redis in production and an in-process map in
// tests or single-node deployments.
//
// Incr must atomically record one attempt against key, starting a new
// window when none is active, and return the attempt count within the
// current window together with the time remaining in it.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Reset(ctx context.Context, key string) error
}

// Limiter enforces a fixed-window attempt budget per key. The check
// and the recording are a single store operation, so concurrent
// callers cannot slip past the budget between a read and a write.
type Limiter struct {
	store  CounterStore
	config Config
}

// New creates a [Limiter] over the given counter store.
func New(store CounterStore, cfg Config) *Limiter {
	return &Limiter{
		store:  store,
		config: cfg.withDefaults(),
	}
}

// Allow records one attempt for key and reports whether it fits the
// budget. Counting before checking means even rejected attempts are
// recorded, so hammering a limited key never shortens the wait.
//
// Store failures deny the attempt and surface the error: when the
// limiter cannot count, it fails closed rather than open.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, remaining, err := l.store.Incr(ctx, key, l.config.Window)
	if err != nil {
		return Decision{Allowed: false}, err
	}

	if count > int64(l.config.MaxAttempts) {
		return Decision{Allowed: false, RetryAfter: remaining}, nil
	}

	return Decision{Allowed: true}, nil
}

// Reset clears the attempt counter for key. Called after a successful
// login so a legitimate subject does not carry stale failures into the
// next window.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}

// MaxAttempts reports the configured per-window budget.
func (l *Limiter) MaxAttempts() int {
	return l.config.MaxAttempts
}

// Window reports the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.config.Window
}
