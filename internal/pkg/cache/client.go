package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client is the cache contract used by repositories and the rate limiter.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Incr increments a counter and starts its window on the first hit.
	// A zero window creates a counter that never expires.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = redis.Nil

// ProductVersionKey holds the generation counter of a product's cache entries.
// It has no TTL and is never deleted.
func ProductVersionKey(id int64) string {
	return fmt.Sprintf("product:%d:version", id)
}

// ProductKey is the cache key of a product row read at the given generation.
func ProductKey(id int64, version string) string {
	return fmt.Sprintf("product:%d:v%s", id, version)
}

// ProductVersion returns the current generation of a product. A missing counter is "0".
func ProductVersion(ctx context.Context, c Client, id int64) (string, error) {
	v, err := c.Get(ctx, ProductVersionKey(id))
	if errors.Is(err, ErrCacheMiss) {
		return "0", nil
	}
	return v, err
}

// InvalidateProduct bumps the generation. A read that started before the bump writes
// under the old key, which is never served again.
func InvalidateProduct(ctx context.Context, c Client, id int64) error {
	_, err := c.Incr(ctx, ProductVersionKey(id), 0)
	return err
}

// RedisClient implements Client on go-redis.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient connects to addr and pings it. The caller decides whether an
// unreachable cache is fatal.
func NewRedisClient(addr string) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	return &RedisClient{rdb: rdb}, nil
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (c *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

// Incr creates the counter with its window and increments it in one MULTI, so a
// counter never exists without a TTL.
func (c *RedisClient) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, window)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Close releases the underlying connection pool.
func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

// Noop is used when no Redis address is configured: every read misses and
// every counter stays at one.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, error) { return "", ErrCacheMiss }

func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (Noop) Incr(context.Context, string, time.Duration) (int64, error) { return 1, nil }
