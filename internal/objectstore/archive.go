package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/atelier-ops/atelier-sync/internal/store"
)

// ArchivePrefix is the key prefix of archived run summaries
const ArchivePrefix = "tiny-sync"

// Archiver stores a copy of each persisted run summary
//
//go:generate mockgen -destination=mocks/mock_archiver.go -package=mocks github.com/atelier-ops/atelier-sync/internal/objectstore Archiver
type Archiver interface {
	ArchiveRun(ctx context.Context, run *store.RunLog) error
}

// RunArchiver writes run summaries as JSON objects into one bucket
type RunArchiver struct {
	store  Store
	bucket string
}

// NewRunArchiver creates a RunArchiver
func NewRunArchiver(s Store, bucket string) *RunArchiver {
	return &RunArchiver{store: s, bucket: bucket}
}

// RunKey returns the object key for a run: tiny-sync/<entity>/<run-id>.json
func RunKey(run *store.RunLog) string {
	return path.Join(ArchivePrefix, run.EntityType, run.ID.String()+".json")
}

// ArchiveRun implements Archiver
func (a *RunArchiver) ArchiveRun(ctx context.Context, run *store.RunLog) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.ID, err)
	}
	return a.store.Upload(ctx, a.bucket, RunKey(run), bytes.NewReader(data), int64(len(data)), "application/json")
}
