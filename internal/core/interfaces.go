package core

import (
	"context"
	"time"
)

// KeyVerifier checks a presented API key. It returns false for any key that
// does not match; an error means the check itself could not run.
type KeyVerifier interface {
	Verify(key string) (bool, error)
}

// RateLimitStore abstracts the backing store for rate limiting. The API
// process uses MemoryRateLimitStore.
type RateLimitStore interface {
	// IncrementAndCheck counts one request for key and reports whether it
	// fits within limit for the current window.
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)
}

// RateLimitResult is the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}
