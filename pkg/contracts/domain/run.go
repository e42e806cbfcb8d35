package domain

import "time"

// RunStatus is the lifecycle state of one pipeline run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// StageResult is the recorded outcome of one stage of a run.
type StageResult struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	Rows       int        `json:"rows"`
	Issues     int        `json:"issues"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunRecord summarizes a finished run for the manifest and the result store.
type RunRecord struct {
	RunID       string        `json:"run_id" db:"run_id"`
	Status      RunStatus     `json:"status" db:"status"`
	StartedAt   time.Time     `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty" db:"finished_at"`
	DurationMS  int64         `json:"duration_ms" db:"duration_ms"`
	PanelRows   int           `json:"panel_rows" db:"panel_rows"`
	SummaryRows int           `json:"summary_rows" db:"summary_rows"`
	IssueCount  int           `json:"issue_count" db:"issue_count"`
	Outputs     []string      `json:"outputs,omitempty" db:"-"`
	Stages      []StageResult `json:"stages" db:"-"`
	Error       string        `json:"error,omitempty" db:"error"`
}
