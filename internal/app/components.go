package app

import (
	"github.com/atelier-ops/atelier-sync/internal/app/storage"
	"github.com/atelier-ops/atelier-sync/internal/store"
	pkgsync "github.com/atelier-ops/atelier-sync/internal/sync"
	"github.com/atelier-ops/atelier-sync/internal/sync/coordinator"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Coordinator runs the scheduled syncs
	Coordinator coordinator.Coordinator

	// Orchestrator serves every sync invocation
	Orchestrator *pkgsync.Orchestrator

	// Store is the data store shared by every component
	Store store.Store

	// StorageFactory owns the resources behind Store
	StorageFactory storage.Factory

	// closers release auxiliary clients such as the Redis connection
	closers []func() error
}
