package store

import (
	"context"

	"github.com/matref/property-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the validation pipeline:
// run bookkeeping, per-stage results, record snapshots, and the
// production/staging/backup property tables used by deployment.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, filter []string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stage results: persisted immediately after each stage completes so
	// they survive a later stage's failure.
	SaveStageResult(ctx context.Context, runID string, result *model.StageResult) error
	ListStageResults(ctx context.Context, runID string) ([]model.StageResult, error)

	// Record snapshots
	SaveSnapshot(ctx context.Context, runID string, records []model.PropertyRecord) error
	LatestSnapshot(ctx context.Context) (string, []model.PropertyRecord, error)

	// Deployment tables
	ReplaceStaging(ctx context.Context, records []model.PropertyRecord) error
	CountStaging(ctx context.Context) (int, error)
	BackupProduction(ctx context.Context) (string, error)
	DeployToProduction(ctx context.Context, records []model.PropertyRecord) error
	RestoreBackup(ctx context.Context, handle string) error
	ListProduction(ctx context.Context) ([]model.PropertyRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
