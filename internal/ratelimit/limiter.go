package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/jamoran1356/promptmind/internal/models"
)

// DefaultLimit applies to endpoints without a configured budget.
const DefaultLimit = 100

// DefaultWindow is the fixed counter window.
const DefaultWindow = 60 * time.Second

// CounterStore persists fixed-window counters keyed by
// (identifier, endpoint).
//
// Hit must apply the whole window transition atomically per key: create the
// counter with count=1 when absent, reset it when resetAt has passed,
// increment it while under limit, and leave it untouched at the limit. Two
// concurrent hits on a counter with one slot left must not both be admitted.
type CounterStore interface {
	// Hit registers a request and reports whether it is within the limit.
	Hit(ctx context.Context, identifier, endpoint string, limit int, window time.Duration) (bool, error)

	// GetCounter returns the current counter, or nil if none exists.
	GetCounter(ctx context.Context, identifier, endpoint string) (*models.RateLimitCounter, error)
}

// Limiter decides whether a request is inside its endpoint budget.
//
// Store failures admit the request: the limiter fails open so an unreachable
// counter store degrades limiting, not traffic.
type Limiter struct {
	store  CounterStore
	window time.Duration
	limits map[string]int
	log    *slog.Logger
}

func NewLimiter(store CounterStore, window time.Duration, limits map[string]int, log *slog.Logger) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		store:  store,
		window: window,
		limits: limits,
		log:    log,
	}
}

// Allow checks the request against the configured budget for endpoint.
func (l *Limiter) Allow(ctx context.Context, identifier, endpoint string) bool {
	return l.AllowLimit(ctx, identifier, endpoint, l.limitFor(endpoint))
}

// AllowLimit checks the request against an explicit budget, overriding the
// configured one.
func (l *Limiter) AllowLimit(ctx context.Context, identifier, endpoint string, limit int) bool {
	allowed, err := l.store.Hit(ctx, identifier, endpoint, limit, l.window)
	if err != nil {
		l.log.Error("rate limit check failed, allowing request", "identifier", identifier, "endpoint", endpoint, "err", err)
		return true
	}
	return allowed
}

// Remaining reports how many requests are left in the current window. It is
// read-only and returns the full budget when no counter exists, the window
// has expired, or the store is unreachable.
func (l *Limiter) Remaining(ctx context.Context, identifier, endpoint string) int {
	limit := l.limitFor(endpoint)

	counter, err := l.store.GetCounter(ctx, identifier, endpoint)
	if err != nil {
		l.log.Error("rate limit lookup failed", "identifier", identifier, "endpoint", endpoint, "err", err)
		return limit
	}
	if counter == nil || !counter.ResetAt.After(time.Now()) {
		return limit
	}

	remaining := limit - counter.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (l *Limiter) limitFor(endpoint string) int {
	if limit, ok := l.limits[endpoint]; ok {
		return limit
	}
	return DefaultLimit
}
