// Package storage provides the persisted key-value document store backing
// the wallet vault. Values are opaque documents; callers decide what goes
// in them. The vault encrypts seed material before it ever reaches a Store,
// so implementations hold ciphertext and plaintext metadata only.
package storage

import (
	"sync"
)

// ErrKeyNotFound is returned when a key has no stored document.
var ErrKeyNotFound = &StorageError{Message: "key not found"}

// StorageError represents a storage-layer error.
type StorageError struct {
	Message string
}

func (e *StorageError) Error() string {
	return e.Message
}

// Store is the persisted document store consumed by the vault.
type Store interface {
	// Get retrieves the document stored under key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)
	// Put stores value under key, replacing any previous document.
	Put(key string, value []byte) error
	// Delete removes the document under key. Deleting a missing key is not
	// an error.
	Delete(key string) error
	// Close releases any underlying resources.
	Close() error
}

// MemoryStore is an in-memory Store used in dev mode and tests.
type MemoryStore struct {
	items map[string][]byte
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string][]byte),
	}
}

// Get retrieves a document by key.
func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put stores a document by key.
func (s *MemoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.items[key] = stored
	return nil
}

// Delete removes a document by key.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

var _ Store = (*MemoryStore)(nil)
