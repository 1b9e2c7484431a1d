package object

import (
	"bytes"
	"fmt"
	"sync"
)

type memoryEntry struct {
	objType ObjectType
	data    []byte
}

// MemoryBackend keeps objects in a map. It is used by tests and by
// in-memory repositories.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[Hash]memoryEntry
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[Hash]memoryEntry)}
}

func (m *MemoryBackend) Get(h Hash) (ObjectType, []byte, error) {
	m.mu.RLock()
	e, ok := m.objects[h]
	m.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("%s: %w", h, ErrNotFound)
	}
	return e.objType, bytes.Clone(e.data), nil
}

func (m *MemoryBackend) Put(h Hash, objType ObjectType, data []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[h]; ok {
		return false, nil
	}
	m.objects[h] = memoryEntry{objType: objType, data: bytes.Clone(data)}
	return true, nil
}

func (m *MemoryBackend) Has(h Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[h]
	return ok, nil
}

// Len returns the number of stored objects.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
