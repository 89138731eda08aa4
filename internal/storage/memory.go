package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps uploaded objects in memory. Used by tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	// Err, when set, is returned by every Save. Lets tests simulate upload
	// failures.
	Err error
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Save records the object bytes under objectName.
func (m *MemoryStore) Save(_ context.Context, objectName, _ string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.objects[objectName] = append([]byte(nil), data...)
	return nil
}

// Object returns the stored bytes and whether the object exists.
func (m *MemoryStore) Object(objectName string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectName]
	return data, ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// NoOpStore discards every upload. Useful for dry runs where document bytes
// are fetched but not persisted.
type NoOpStore struct{}

// Save for NoOpStore does nothing and always returns nil.
func (NoOpStore) Save(_ context.Context, _, _ string, _ []byte) error {
	return nil
}
