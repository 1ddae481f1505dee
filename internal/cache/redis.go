package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares insight views between API instances.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Set keeps the key past its logical expiry so it can serve as a stale
// fallback; freshness is decided by Entry.ExpiresAt.
func (s *RedisStore) Set(ctx context.Context, key string, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ttl := time.Until(e.ExpiresAt) + staleRetention
	if ttl <= 0 {
		ttl = staleRetention
	}
	return s.rdb.Set(ctx, key, raw, ttl).Err()
}

// Expire rewrites each entry's logical expiry and keeps the redis TTL, so the
// value remains available as a stale fallback.
func (s *RedisStore) Expire(ctx context.Context, at time.Time, keys ...string) error {
	for _, key := range keys {
		e, err := s.Get(ctx, key)
		if err != nil {
			return err
		}
		if e == nil || !e.ExpiresAt.After(at) {
			continue
		}
		e.ExpiresAt = at
		raw, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := s.rdb.SetArgs(ctx, key, raw, redis.SetArgs{KeepTTL: true}).Err(); err != nil {
			return err
		}
	}
	return nil
}
