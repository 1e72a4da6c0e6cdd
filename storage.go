package tss

import (
	"fmt"
	"sync"
)

// SecureStorage is an opaque byte store with atomic put/get semantics. The
// engine round-trips shares through it as opaque blobs and assumes nothing
// about the storage medium; hardware-backed implementations live with the
// caller.
type SecureStorage interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
}

// InMemoryStorage is a SecureStorage for tests and single-process callers.
type InMemoryStorage struct {
	lock sync.RWMutex
	data map[string][]byte
}

// NewInMemoryStorage creates an empty in-memory store.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{data: make(map[string][]byte)}
}

func (s *InMemoryStorage) Put(key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	copied := make([]byte, len(value))
	copy(copied, value)
	s.data[key] = copied
	return nil
}

func (s *InMemoryStorage) Get(key string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return nil, ErrStorageKeyNotFound.WithDetails("%s", key)
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied, nil
}

func (s *InMemoryStorage) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if blob, ok := s.data[key]; ok {
		zeroize(blob)
	}
	delete(s.data, key)
	return nil
}

// shareStorageKey names a share blob inside a SecureStorage.
func shareStorageKey(keyID string, index uint32) string {
	return fmt.Sprintf("tss/share/%s/%d", keyID, index)
}

// StoreShare serializes a share and writes it to storage under a key
// derived from its key ID and index.
func StoreShare(storage SecureStorage, share *KeyShare) error {
	blob, err := MarshalShare(share)
	if err != nil {
		return err
	}
	defer zeroize(blob)
	return storage.Put(shareStorageKey(share.Metadata.KeyID, share.Index), blob)
}

// LoadShare reads a share back from storage.
func LoadShare(storage SecureStorage, keyID string, index uint32) (*KeyShare, error) {
	blob, err := storage.Get(shareStorageKey(keyID, index))
	if err != nil {
		return nil, err
	}
	defer zeroize(blob)
	return UnmarshalShare(blob)
}
