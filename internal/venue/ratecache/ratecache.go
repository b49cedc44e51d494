// Package ratecache backs the registry's last_rate_limit_reset bookkeeping
// (spec section 4.2, "reserved for future pacing decisions"): per venue, the
// time until which its circuit breaker is expected to stay open, recorded by
// the registry whenever an adapter call fails with the circuit open. The
// default store is in-memory; an optional Redis-backed store lets the value survive
// process restarts when the registry is horizontally scaled.
package ratecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records and retrieves the last known rate-limit reset time per venue.
type Store interface {
	Set(ctx context.Context, venueID string, resetAt time.Time) error
	Get(ctx context.Context, venueID string) (time.Time, bool, error)
}

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	resets map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{resets: make(map[string]time.Time)}
}

func (s *MemoryStore) Set(_ context.Context, venueID string, resetAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[venueID] = resetAt
	return nil
}

func (s *MemoryStore) Get(_ context.Context, venueID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.resets[venueID]
	return t, ok, nil
}

// RedisStore persists reset times in Redis under a fixed key prefix, for
// deployments running more than one registry process against one venue set.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing redis.Client. ttl bounds how long a stale
// reset hint is trusted; zero means no expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "tradebot:ratelimit:reset:", ttl: ttl}
}

func (s *RedisStore) key(venueID string) string {
	return s.prefix + venueID
}

func (s *RedisStore) Set(ctx context.Context, venueID string, resetAt time.Time) error {
	return s.client.Set(ctx, s.key(venueID), resetAt.Format(time.RFC3339Nano), s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, venueID string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, s.key(venueID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("ratecache: redis get %s: %w", venueID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("ratecache: parse reset time for %s: %w", venueID, err)
	}
	return t, true, nil
}
