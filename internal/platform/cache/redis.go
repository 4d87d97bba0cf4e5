// Package cache opens the Redis client shared by the catalog cache.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Options parses target, which is either host:port or a redis:// URL
// carrying credentials and a database number.
func Options(target string) (*redis.Options, error) {
	if strings.Contains(target, "://") {
		opts, err := redis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("platform/cache: parse url: %w", err)
		}
		return opts, nil
	}
	if target == "" {
		return nil, fmt.Errorf("platform/cache: empty redis address")
	}
	return &redis.Options{Addr: target}, nil
}

// New connects to target and pings it once.
func New(ctx context.Context, target string) (*redis.Client, error) {
	opts, err := Options(target)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
