package storage

import (
	"context"
	"sync"
)

// MemoryStore is a process-local KV. Failures can be injected per key.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string]string
	failGet map[string]error
	failSet map[string]error
	writes  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:    map[string]string{},
		failGet: map[string]error{},
		failSet: map[string]error{},
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failGet[key]; err != nil {
		return "", err
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failSet[key]; err != nil {
		return err
	}
	m.data[key] = value
	m.writes++
	return nil
}

// Put seeds a value without counting it as a write.
func (m *MemoryStore) Put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// FailGet makes Get on key return err. A nil err clears it.
func (m *MemoryStore) FailGet(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failGet, key)
		return
	}
	m.failGet[key] = err
}

// FailSet makes Set on key return err. A nil err clears it.
func (m *MemoryStore) FailSet(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failSet, key)
		return
	}
	m.failSet[key] = err
}

// Writes counts successful Set calls.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
