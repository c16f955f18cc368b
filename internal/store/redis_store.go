package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parlorhq/session-service/internal/domain"
)

type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = "session"
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) key(opaque string) string {
	return fmt.Sprintf("%s:%s", s.prefix, opaque)
}

func (s *RedisSessionStore) Get(ctx context.Context, opaque string) (*domain.Record, error) {
	data, err := s.client.Get(ctx, s.key(opaque)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A blob we cannot decode is as good as evicted.
		return nil, ErrNotFound
	}
	if rec.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, opaque string, rec domain.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session store: ttl must be positive, got %v", ttl)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session store: encode record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(opaque), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, opaque string) error {
	if err := s.client.Del(ctx, s.key(opaque)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping reports point-in-time backend availability for readiness probes.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
