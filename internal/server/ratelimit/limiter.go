// Package ratelimit keeps short-lived "recently seen" markers keyed by an
// arbitrary string, plus fixed-window counters. The password-reset flow keys
// markers by normalized email and counters by client address.
package ratelimit

import (
	"context"
	"time"
)

// Limiter is a TTL key set. Implementations must be safe for concurrent use.
type Limiter interface {
	// Get reports whether key is present and not yet expired.
	Get(ctx context.Context, key string) (bool, error)

	// Set marks key for ttl, replacing any existing marker.
	Set(ctx context.Context, key string, ttl time.Duration) error

	// SetIfAbsent marks key for ttl only if it is not already present and
	// reports whether it did. Check and set happen atomically.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Incr adds one to the counter at key and returns the new value. The
	// first increment starts a window of ttl; the counter vanishes when the
	// window ends.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Delete clears key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
