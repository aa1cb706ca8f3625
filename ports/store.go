package ports

import (
	"context"
	"time"
)

// Store interface for token invalidation
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
	// ClaimToken invalidates tokenID and reports whether this call was the one that did it.
	ClaimToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error)
}

// GrantStore keeps short-lived authorization state: pending requests, pins and codes.
// Get and Take return core.ErrNotFound for missing or expired keys.
type GrantStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Take(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Incr atomically adds one to the counter at key and returns the new value.
	// A new counter expires after ttl.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
