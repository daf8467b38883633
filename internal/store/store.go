// Package store persists run history and per-deal outcomes so results can
// be compared across runs.
package store

import (
	"context"
	"encoding/json"

	"github.com/sells-group/retrieval-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the retrieval pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, dealsTotal int) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, report json.RawMessage) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Deal outcomes
	RecordOutcome(ctx context.Context, outcome model.DealOutcome) error
	ListOutcomes(ctx context.Context, runID string) ([]model.DealOutcome, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
