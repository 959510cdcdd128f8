package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionTTL matches how long the backend kept server-side carts.
const SessionTTL = 30 * 24 * time.Hour

// RedisStore keys values by session so several devices can share one Redis.
// Each write refreshes the TTL.
type RedisStore struct {
	client  *redis.Client
	session string
	ttl     time.Duration
}

func NewRedisStore(client *redis.Client, session string) *RedisStore {
	return &RedisStore{client: client, session: session, ttl: SessionTTL}
}

func (s *RedisStore) key(k string) string {
	return "shop:" + s.session + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.key(key), value, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
