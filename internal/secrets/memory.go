package secrets

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store, used in tests and as the system store
// on platforms without a keychain.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore creates an in-memory store seeded with values.
func NewMemoryStore(values ...map[string]string) *MemoryStore {
	s := &MemoryStore{secrets: make(map[string]string)}
	for _, m := range values {
		for k, v := range m {
			s.secrets[k] = v
		}
	}
	return s
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[key] = value
	return nil
}

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.secrets[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return val, nil
}

func (s *MemoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.secrets))
	for k := range s.secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, key)
	return nil
}

func (s *MemoryStore) GetMultiple(keys []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := s.secrets[key]; ok {
			result[key] = val
		}
	}
	return result, nil
}
