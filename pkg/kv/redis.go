package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type redisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ScanKeys(ctx context.Context, match string) ([]string, error)
	KVKey(key string) string
}

// RedisStore keeps values as plain redis strings under the kv namespace.
type RedisStore struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisStore builds a redis-backed store. A zero ttl keeps values forever.
func NewRedisStore(client redisClient, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.client.KVKey(key))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.client.KVKey(key), string(value), s.ttl); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.client.KVKey(key)); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	namespace := s.client.KVKey("")
	if !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	raw, err := s.client.ScanKeys(ctx, namespace+prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("kv scan %s: %w", prefix, err)
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, namespace))
	}
	return keys, nil
}
