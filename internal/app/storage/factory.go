// Package storage picks and builds the data store backing the sync job.
package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/atelier-ops/atelier-sync/internal/config"
	"github.com/atelier-ops/atelier-sync/internal/store"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// Factory creates the data store and manages the resources behind it
type Factory interface {
	// CreateStore returns the store used by the orchestrator, the identity
	// resolver and the run log endpoint
	CreateStore(ctx context.Context) (store.Store, error)

	// CheckReadiness reports whether the store can serve requests
	CheckReadiness(ctx context.Context) error

	// Cleanup releases any resources held by this factory. It should be
	// called when the application shuts down.
	Cleanup()
}

// NewStorageFactory returns a DatabaseFactory when cfg configures a
// database and a MemoryFactory otherwise
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...DatabaseFactoryOption) (Factory, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Database == nil {
		slog.Warn("No database configured, using in-memory store; data is lost on restart")
		return NewMemoryFactory(), nil
	}
	return NewDatabaseFactory(ctx, cfg.Database, opts...)
}
