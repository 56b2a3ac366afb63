package persist

import (
	"context"
	"sync"
)

// InMemoryPersistor is a thread-safe, map backed Persistor. Entries do not
// survive the process. It is the default when no backend is configured.
type InMemoryPersistor struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewInMemoryPersistor creates an empty in-memory store.
func NewInMemoryPersistor() *InMemoryPersistor {
	return &InMemoryPersistor{
		data: make(map[string]string),
	}
}

// GetItem retrieves an entry.
func (p *InMemoryPersistor) GetItem(_ context.Context, key string) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	value, ok := p.data[key]
	return value, ok, nil
}

// SetItem stores an entry.
func (p *InMemoryPersistor) SetItem(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[key] = value
	return nil
}

// RemoveItem deletes an entry.
func (p *InMemoryPersistor) RemoveItem(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, key)
	return nil
}

// Clear deletes every entry.
func (p *InMemoryPersistor) Clear(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = make(map[string]string)
	return nil
}

// Len returns the number of stored entries.
func (p *InMemoryPersistor) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.data)
}

// Close is a no-op for the in-memory implementation.
func (p *InMemoryPersistor) Close() error {
	return nil
}
