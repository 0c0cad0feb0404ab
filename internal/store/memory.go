package store

import (
	"context"
	"sync"
)

type memKey struct {
	collection, key string
}

// MemoryProvider keeps documents in process memory. Useful for tests and
// for running without a database.
type MemoryProvider struct {
	mu   sync.RWMutex
	docs map[memKey][]byte
}

// NewMemory returns an in-process document store.
func NewMemory() *MemoryProvider {
	return &MemoryProvider{docs: make(map[memKey][]byte)}
}

// Name implements Provider.
func (p *MemoryProvider) Name() string { return "memory" }

// Initialize implements Provider.
func (p *MemoryProvider) Initialize(ctx context.Context) error { return nil }

// Put implements Provider.
func (p *MemoryProvider) Put(ctx context.Context, doc Document) error {
	if err := ValidateRef(doc.Collection, doc.Key); err != nil {
		return err
	}
	data := make([]byte, len(doc.Data))
	copy(data, doc.Data)

	p.mu.Lock()
	p.docs[memKey{doc.Collection, doc.Key}] = data
	p.mu.Unlock()
	return nil
}

// Get implements Provider.
func (p *MemoryProvider) Get(ctx context.Context, collection, key string) (*Document, error) {
	if err := ValidateRef(collection, key); err != nil {
		return nil, err
	}
	p.mu.RLock()
	data, ok := p.docs[memKey{collection, key}]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(data))
	copy(out, data)
	return &Document{Collection: collection, Key: key, Data: out}, nil
}

// Delete implements Provider.
func (p *MemoryProvider) Delete(ctx context.Context, collection, key string) error {
	if err := ValidateRef(collection, key); err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.docs, memKey{collection, key})
	p.mu.Unlock()
	return nil
}

// Probe implements Provider.
func (p *MemoryProvider) Probe(ctx context.Context) error { return nil }

// Close implements Provider.
func (p *MemoryProvider) Close() error { return nil }
