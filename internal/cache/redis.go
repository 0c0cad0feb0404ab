package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/edustack/academy-api/internal/config"
)

// RedisProvider backs the cache with a Redis server.
type RedisProvider struct {
	cfg    appconfig.CacheConfig
	client *redis.Client
}

// NewRedis returns an uninitialized Redis provider. The connection is
// established in Initialize so an unreachable server fails soft at
// bootstrap.
func NewRedis(cfg appconfig.CacheConfig) *RedisProvider {
	return &RedisProvider{cfg: cfg}
}

// Name implements Provider.
func (p *RedisProvider) Name() string { return "redis" }

// Initialize connects and pings the server.
func (p *RedisProvider) Initialize(ctx context.Context) error {
	timeout := p.cfg.Timeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p.client = redis.NewClient(&redis.Options{
		Addr:         p.cfg.Addr,
		Password:     p.cfg.Password,
		DB:           p.cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("pinging redis at %s: %w", p.cfg.Addr, err)
	}
	return nil
}

// Get implements Provider.
func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := p.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Set implements Provider.
func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := p.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete implements Provider. Deleting an absent key is not an error.
func (p *RedisProvider) Delete(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Probe implements Provider.
func (p *RedisProvider) Probe(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return p.client.Ping(ctx).Err()
}

// Close implements Provider.
func (p *RedisProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
