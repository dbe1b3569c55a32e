package storage

import (
	"context"

	"github.com/atelier-ops/atelier-sync/internal/store"
)

// MemoryFactory hands out a single in-process store. It backs local
// development and tests.
type MemoryFactory struct {
	store *store.MemoryStore
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory creates a factory around an empty MemoryStore
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{store: store.NewMemoryStore()}
}

// CreateStore returns the shared MemoryStore
func (m *MemoryFactory) CreateStore(_ context.Context) (store.Store, error) {
	return m.store, nil
}

// CheckReadiness always succeeds
func (*MemoryFactory) CheckReadiness(_ context.Context) error {
	return nil
}

// Cleanup is a no-op
func (*MemoryFactory) Cleanup() {}
