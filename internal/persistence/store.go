// Package persistence saves and restores the combined simulation, market and
// portfolio state through pluggable stores and codecs.
package persistence

import (
	"context"
	"errors"
	"sync"
)

// Backend names
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// ErrNoState is returned by Store.Load when nothing has been saved yet
var ErrNoState = errors.New("no saved state")

// Store persists one opaque state blob
type Store interface {
	// Name identifies the backend in logs and events
	Name() string
	Save(ctx context.Context, blob []byte) error
	// Load returns ErrNoState when nothing has been saved
	Load(ctx context.Context) ([]byte, error)
}

// MemoryStore keeps the blob in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	blob []byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Name() string { return BackendMemory }

func (s *MemoryStore) Save(_ context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = append([]byte(nil), blob...)
	return nil
}

func (s *MemoryStore) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.blob == nil {
		return nil, ErrNoState
	}
	return append([]byte(nil), s.blob...), nil
}
