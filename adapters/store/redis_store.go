package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/zeroturbo/core"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of ports.Store and ports.GrantStore
type RedisStore struct {
	client      *redis.Client
	prefix      string
	grantPrefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:      client,
		prefix:      "zeroturbo:invalidated:",
		grantPrefix: "zeroturbo:grant:",
	}
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	key := s.prefix + tokenID

	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	return nil
}

// ClaimToken marks a token as invalidated only if no one else has yet
func (s *RedisStore) ClaimToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	key := s.prefix + tokenID

	ok, err := s.client.SetNX(ctx, key, "1", expiry).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim token: %w", err)
	}

	return ok, nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	key := s.prefix + tokenID

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}

	return val > 0, nil
}

// Put stores a grant value with expiration
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.grantPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store grant: %w", err)
	}
	return nil
}

// Get returns a grant value without consuming it
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.grantPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load grant: %w", err)
	}
	return val, nil
}

// Take atomically reads and deletes a grant value
func (s *RedisStore) Take(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.GetDel(ctx, s.grantPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take grant: %w", err)
	}
	return val, nil
}

// Delete removes a grant
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.grantPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

// Incr increments a counter, setting its expiry when this call created it
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	key = s.grantPrefix + key

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("failed to expire counter: %w", err)
		}
	}
	return n, nil
}
