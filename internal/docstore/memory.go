package docstore

import (
	"context"
	"sync"
)

// MemoryDriver is the in-memory reference backend used by tests and by
// the resolver's own test suite, the analogue of the teacher having no
// persistence at all for its in-RAM-only mode.
type MemoryDriver struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{docs: make(map[string]Document)}
}

func (m *MemoryDriver) Query(ctx context.Context, id string, projection []string) (Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, false, nil
	}
	return projected(doc, projection), true, nil
}

func (m *MemoryDriver) Insert(ctx context.Context, id string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[id]; exists {
		return ErrDuplicateKey
	}
	m.docs[id] = doc
	return nil
}

func (m *MemoryDriver) Upsert(ctx context.Context, id string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = doc
	return nil
}

// MemoryFactory hands out a single shared MemoryDriver regardless of
// collection name; sufficient for tests which use one logical collection.
type MemoryFactory struct {
	driver *MemoryDriver
}

func NewMemoryFactory() *MemoryFactory { return &MemoryFactory{driver: NewMemoryDriver()} }

func (f *MemoryFactory) Open(collection string) (Driver, error) { return f.driver, nil }
