// Package cache provides an ephemeral key/value layer with Redis and
// in-process backends. Callers treat a miss and an unavailable backend
// differently: ErrCacheMiss means "not cached", anything else means the
// layer itself failed.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Provider is the contract every cache backend implements.
type Provider interface {
	Name() string
	Initialize(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Probe(ctx context.Context) error
	Close() error
}
