package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisStore implements Store on go-redis, for deployments where multiple
// pipeline workers share one cache. TTL handling is native; PurgeExpired is
// a no-op.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis at the given URL (redis://...) and verifies the
// connection. prefix namespaces all keys.
func NewRedis(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrap(err, "cache: redis ping")
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: redis get %s", key)
	}
	return val, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return eris.Wrapf(err, "cache: redis set %s", key)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return eris.Wrapf(err, "cache: redis del %s", key)
	}
	return nil
}

// PurgeExpired is a no-op: Redis evicts expired keys itself.
func (r *RedisStore) PurgeExpired(context.Context) (int, error) {
	return 0, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
