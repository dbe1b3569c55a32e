// Package store contains the data store contract used by the sync job and
// the dashboard, with a Postgres and an in-memory implementation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Columns owned by the sync job on every synced table
const (
	ColumnID       = "id"
	ColumnHash     = "tiny_hash"
	ColumnSyncedAt = "tiny_synced_at"
)

// RunLogTable is the append-only audit table for sync runs
const RunLogTable = "tiny_sync_logs"

var (
	// ErrNotFound is returned when no row matches a lookup
	ErrNotFound = errors.New("record not found")

	// ErrRelationMissing is returned when the target table does not exist
	ErrRelationMissing = errors.New("relation missing")

	// ErrPermissionDenied is returned when the store rejects access to a table
	ErrPermissionDenied = errors.New("permission denied")
)

// Fields maps column names to values. A nil value is written as NULL.
type Fields map[string]any

// Record is the sync-owned view of a local row
type Record struct {
	ID        string
	LinkageID string
	Hash      string
	SyncedAt  *time.Time
}

// RunLog is one row of the sync audit log
type RunLog struct {
	ID             uuid.UUID       `json:"id"`
	EntityType     string          `json:"entityType"`
	Operation      string          `json:"operation"`
	Status         string          `json:"status"`
	ItemsProcessed int             `json:"itemsProcessed"`
	ItemsCreated   int             `json:"itemsCreated"`
	ItemsUpdated   int             `json:"itemsUpdated"`
	ItemsSkipped   int             `json:"itemsSkipped"`
	APICallsUsed   int             `json:"apiCallsUsed"`
	Summary        json.RawMessage `json:"summary"`
	CreatedBy      string          `json:"createdBy"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// RunLogFilter narrows ListRunLogs. Zero values mean no filter; results are
// newest first.
type RunLogFilter struct {
	EntityType string
	Limit      int
}

// SyncStore is the narrow adapter the reconciliation loop writes through.
//
//go:generate mockgen -destination=mocks/mock_sync_store.go -package=mocks github.com/atelier-ops/atelier-sync/internal/store SyncStore
type SyncStore interface {
	// FindByLinkage returns the row whose linkageColumn equals linkageID, or ErrNotFound
	FindByLinkage(ctx context.Context, table, linkageColumn, linkageID string) (*Record, error)
	// Insert creates a row and returns its id
	Insert(ctx context.Context, table string, fields Fields) (string, error)
	// Update overwrites the given columns of the row with the given id
	Update(ctx context.Context, table, id string, fields Fields) error
	// InsertRunLog appends a run summary to the audit log
	InsertRunLog(ctx context.Context, log *RunLog) error
	// ListRunLogs returns recent run summaries
	ListRunLogs(ctx context.Context, filter RunLogFilter) ([]RunLog, error)
}

// RoleLister lists the roles granted to a user
type RoleLister interface {
	ListRoles(ctx context.Context, userID string) ([]string, error)
}

// Querier is the generic table contract used by the dashboard screens
type Querier interface {
	// Select returns one page of rows plus the exact count of matching rows
	Select(ctx context.Context, table string, q Query) (*Page, error)
	// Delete removes rows matching all equality filters and returns how many were removed
	Delete(ctx context.Context, table string, eq map[string]any) (int64, error)
}

// Store is everything a backing data store provides
type Store interface {
	SyncStore
	RoleLister
	Querier
}
