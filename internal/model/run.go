package model

import "time"

// StageStatus tracks one stage's lifecycle within a run.
// Transitions: pending -> in_progress -> {completed|failed}.
// A failed stage is terminal for the run.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
	StageSkipped    StageStatus = "skipped"
)

// RunStatus is the overall pipeline run state.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// StageResult is the persisted summary of one stage execution.
type StageResult struct {
	Stage    int            `json:"stage"`
	Name     string         `json:"name"`
	Status   StageStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Summary  map[string]any `json:"summary,omitempty"`
}

// RunResult is the run-level artifact: combined stage summaries plus
// aggregate statistics. It is written whether the run completed or
// aborted partway.
type RunResult struct {
	StagesCompleted int            `json:"stages_completed"`
	TotalProperties int            `json:"total_properties_processed"`
	SuccessRate     float64        `json:"success_rate"`
	QualityMetrics  map[string]any `json:"quality_metrics,omitempty"`
	Errors          []string       `json:"errors,omitempty"`
	Stages          []StageResult  `json:"stages"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         time.Time      `json:"ended_at"`
	Duration        float64        `json:"total_duration_secs"`
}

// Run is a persisted pipeline run.
type Run struct {
	ID        string     `json:"id"`
	Filter    []string   `json:"materials_filter,omitempty"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
