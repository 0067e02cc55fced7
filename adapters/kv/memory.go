package kv

import (
	"sync"

	"github.com/Ravi16329/English-Teacher/domain/repositories"
)

// MemoryStore is an in-memory key-value capability used in tests and as a
// fallback when the durable store cannot be opened
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string

	// FailWrites makes Set and Delete fail, for exercising degraded
	// persistence paths in tests
	FailWrites error
}

var _ repositories.KeyValue = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	delete(s.values, key)
	return nil
}

// Len returns the number of stored keys
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
