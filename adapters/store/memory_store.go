package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/layer-3/zeroturbo/core"
)

type grant struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-memory implementation of ports.Store and ports.GrantStore
type MemoryStore struct {
	invalidatedTokens map[string]time.Time
	grants            map[string]grant
	mu                sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invalidatedTokens: make(map[string]time.Time),
		grants:            make(map[string]grant),
	}
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invalidate(tokenID, expiry)
	return nil
}

// ClaimToken invalidates a token unless it already is, reporting whether it won
func (s *MemoryStore) ClaimToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiryTime, exists := s.invalidatedTokens[tokenID]; exists && time.Now().Before(expiryTime) {
		return false, nil
	}
	s.invalidate(tokenID, expiry)
	return true, nil
}

// invalidate must be called with mu held
func (s *MemoryStore) invalidate(tokenID string, expiry time.Duration) {
	expiryTime := time.Now().Add(expiry)
	s.invalidatedTokens[tokenID] = expiryTime

	go func() {
		time.Sleep(expiry)

		s.mu.Lock()
		defer s.mu.Unlock()

		// Only delete if the expiry time hasn't changed
		if storedExpiry, exists := s.invalidatedTokens[tokenID]; exists && !storedExpiry.After(expiryTime) {
			delete(s.invalidatedTokens, tokenID)
		}
	}()
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	if time.Now().After(expiryTime) {
		return false, nil
	}

	return true, nil
}

// Put stores a grant value until ttl elapses
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(key, append([]byte(nil), value...), ttl)
	return nil
}

// put must be called with mu held
func (s *MemoryStore) put(key string, value []byte, ttl time.Duration) {
	expiresAt := time.Now().Add(ttl)
	s.grants[key] = grant{value: value, expiresAt: expiresAt}

	time.AfterFunc(ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		// A later Put of the same key owns its own expiry
		if g, exists := s.grants[key]; exists && !g.expiresAt.After(expiresAt) {
			delete(s.grants, key)
		}
	})
}

// Get returns a grant value without consuming it
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	if time.Now().After(g.expiresAt) {
		delete(s.grants, key)
		return nil, core.ErrNotFound
	}
	return append([]byte(nil), g.value...), nil
}

// Incr adds one to a counter, starting a fresh one with ttl when none is live
func (s *MemoryStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[key]
	if !ok || time.Now().After(g.expiresAt) {
		s.put(key, []byte("1"), ttl)
		return 1, nil
	}

	n, err := strconv.ParseInt(string(g.value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %q holds a non-integer value: %w", key, err)
	}
	n++
	g.value = []byte(strconv.FormatInt(n, 10))
	s.grants[key] = g
	return n, nil
}

// Take returns a grant value and removes it, so only one caller ever sees it
func (s *MemoryStore) Take(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[key]
	delete(s.grants, key)
	if !ok || time.Now().After(g.expiresAt) {
		return nil, core.ErrNotFound
	}
	return g.value, nil
}

// Delete removes a grant
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.grants, key)
	return nil
}
