package tinysync

import (
	"github.com/atelier-ops/atelier-sync/internal/store"
	"github.com/atelier-ops/atelier-sync/internal/sync"
)

// SyncResponse is the body of a successful sync run
type SyncResponse struct {
	OK      bool                `json:"ok"`
	DryRun  bool                `json:"dryRun"`
	Entity  string              `json:"entity"`
	Stats   sync.Stats          `json:"stats"`
	Summary []sync.SummaryEntry `json:"summary"`
}

// TestOnlyResponse is the body of a successful connectivity test
type TestOnlyResponse struct {
	OK bool `json:"ok"`
}

// RunsResponse lists recent run logs
type RunsResponse struct {
	OK   bool           `json:"ok"`
	Runs []store.RunLog `json:"runs"`
}

// NewResponse builds the success body for a run result. Only the preview
// of the summary is returned; the run log keeps the full list.
func NewResponse(result *sync.Result) any {
	if result.TestOnly {
		return TestOnlyResponse{OK: true}
	}
	summary := result.Preview()
	if summary == nil {
		summary = []sync.SummaryEntry{}
	}
	return SyncResponse{
		OK:      true,
		DryRun:  result.DryRun,
		Entity:  result.Entity,
		Stats:   result.Stats,
		Summary: summary,
	}
}
