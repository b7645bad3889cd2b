// Package ratelimit implements a fixed-window request limiter over the
// shared cache client. Counters live in Redis so limits hold across
// multiple server instances.
//
// Failure policy: if the counting store is unreachable the limiter fails
// open and allows the request. Availability is preferred over strict quota
// enforcement; during a store outage the limiter provides no guarantee.
// This is a deliberate tradeoff, not a bug.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/webstack/webstack/internal/logging"
	"github.com/webstack/webstack/internal/server/cache"
)

const keyPrefix = "ratelimit"

// Limiter counts actions per identifier within a counter-expiry window.
//
// The window re-arms on every increment, so a counter lives until the
// identifier has been quiet for a full window. Good enough for abuse
// mitigation, not a precise quota.
type Limiter struct {
	cache  *cache.Client
	logger logging.Logger
}

// New builds a Limiter on top of the shared cache client.
func New(c *cache.Client, logger logging.Logger) *Limiter {
	return &Limiter{cache: c, logger: logger}
}

func counterKey(identifier, action string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, action, identifier)
}

// Allow atomically increments the counter for (action, identifier) and
// reports whether the post-increment count is within maxRequests. The
// counter expires window after its most recent increment.
func (l *Limiter) Allow(ctx context.Context, identifier, action string, maxRequests int, window time.Duration) bool {
	count, err := l.cache.Increment(ctx, counterKey(identifier, action), window)
	if err != nil {
		// Fail open: an unreachable counter store must not block all traffic.
		l.logger.Warn(ctx, "rate limiter store unavailable, allowing request",
			"action", action, "error", err.Error())
		return true
	}
	return count <= int64(maxRequests)
}

// CurrentUsage returns the counter's current value, zero when no counter
// exists for the pair.
func (l *Limiter) CurrentUsage(ctx context.Context, identifier, action string) (int, error) {
	val, err := l.cache.Get(ctx, counterKey(identifier, action))
	if err == cache.ErrCacheMiss {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt rate limit counter: %w", err)
	}
	return n, nil
}

// ResetTime returns when the current window ends, or nil when no counter
// exists.
func (l *Limiter) ResetTime(ctx context.Context, identifier, action string) (*time.Time, error) {
	ttl, err := l.cache.TTL(ctx, counterKey(identifier, action))
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, nil
	}
	t := time.Now().Add(ttl)
	return &t, nil
}
