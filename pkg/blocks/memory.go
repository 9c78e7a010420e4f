package blocks

import (
	"context"
	"sync"
)

// MemoryStore keeps blocks in process memory. Useful for tests and
// single-instance deployments.
type MemoryStore struct {
	docs map[string]*Document
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory block store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*Document),
	}
}

func (m *MemoryStore) Save(ctx context.Context, name string, block Block) error {
	doc, err := encode(name, block)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[name] = doc
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, name string, into Block) error {
	m.mu.RLock()
	doc, exists := m.docs[name]
	m.mu.RUnlock()

	if !exists {
		return ErrNotFound
	}
	return decode(doc, into)
}

func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[name]; !exists {
		return ErrNotFound
	}
	delete(m.docs, name)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, *doc)
	}
	return docs, nil
}
