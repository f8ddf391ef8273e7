// Package presence implements the blocking presence-check key/value
// client the resolver's step 3 depends on (spec.md §4.7: "query the
// external key/value client for uid; if missing, drop the task").
// Grounded in kalbasit-ncps's use of redis/go-redis/v9 as its own
// cache/lock client — same library, same "does this key exist" shape.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the contract command/resolver code depends on, independent
// of the concrete backend.
type Client interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// RedisClient backs Client with a real redis/go-redis/v9 connection.
type RedisClient struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRedisClient dials addr lazily (go-redis connects on first use).
func NewRedisClient(addr string, timeout time.Duration) *RedisClient {
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	return &RedisClient{
		rdb:     redis.NewClient(&redis.Options{Addr: addr}),
		timeout: timeout,
	}
}

func (c *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, fmt.Errorf("presence: exists %q timed out: %w", key, err)
		}
		return false, fmt.Errorf("presence: exists %q: %w", key, err)
	}
	return n > 0, nil
}

func (c *RedisClient) Close() error { return c.rdb.Close() }

// StaticClient is an in-memory Client for tests: every key in Present is
// considered to exist.
type StaticClient struct {
	Present map[string]bool
}

func NewStaticClient() *StaticClient { return &StaticClient{Present: make(map[string]bool)} }

func (c *StaticClient) Exists(ctx context.Context, key string) (bool, error) {
	return c.Present[key], nil
}
