package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryProvider is an in-process cache for single-node deployments and
// tests. Expired entries are dropped lazily on read and swept on write.
type MemoryProvider struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory returns an in-process cache provider.
func NewMemory() *MemoryProvider {
	return &MemoryProvider{entries: make(map[string]memoryEntry)}
}

// Name implements Provider.
func (p *MemoryProvider) Name() string { return "memory" }

// Initialize implements Provider.
func (p *MemoryProvider) Initialize(ctx context.Context) error { return nil }

// Get implements Provider.
func (p *MemoryProvider) Get(ctx context.Context, key string) ([]byte, error) {
	p.mu.RLock()
	e, ok := p.entries[key]
	p.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		p.mu.Lock()
		delete(p.entries, key)
		p.mu.Unlock()
		return nil, ErrCacheMiss
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set implements Provider.
func (p *MemoryProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	p.mu.Lock()
	p.sweepLocked()
	p.entries[key] = memoryEntry{value: stored, expiresAt: expiresAt}
	p.mu.Unlock()
	return nil
}

// Delete implements Provider.
func (p *MemoryProvider) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	delete(p.entries, key)
	p.mu.Unlock()
	return nil
}

// Probe implements Provider.
func (p *MemoryProvider) Probe(ctx context.Context) error { return nil }

// Close implements Provider.
func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	p.entries = make(map[string]memoryEntry)
	p.mu.Unlock()
	return nil
}

// sweepLocked drops expired entries. Caller holds the write lock.
func (p *MemoryProvider) sweepLocked() {
	now := time.Now()
	for k, e := range p.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(p.entries, k)
		}
	}
}
