package operations

import (
	"sync"
	"time"

	"sbscli/internal/aggregate"
	"sbscli/pkg/contracts/domain"
)

// Inputs names the source files of a run. Stages skip loading a table that
// is already present in the state.
type Inputs struct {
	Registry   string `json:"registry,omitempty"`
	Employment string `json:"employment,omitempty"`
	Turnover   string `json:"turnover,omitempty"`
}

// RunState represents the complete state of a pipeline run. Stages run
// sequentially and hand their results on through the data fields.
type RunState struct {
	mu sync.RWMutex

	ID        string
	Status    domain.RunStatus
	StartTime time.Time
	EndTime   *time.Time
	Error     error

	steps map[string]*StepState
	order []string

	Inputs     Inputs
	Firms      []domain.Firm
	Employment domain.Series
	Turnover   domain.Series
	Panel      []domain.PanelRecord
	Tables     aggregate.Tables
	Reports    []domain.Report
	Outputs    []string
}

// NewRunState creates a new run state
func NewRunState(id string, inputs Inputs) *RunState {
	return &RunState{
		ID:         id,
		Status:     domain.RunStatusPending,
		StartTime:  time.Now(),
		steps:      make(map[string]*StepState),
		Inputs:     inputs,
		Employment: domain.Series{Measure: domain.MeasureEmployment},
		Turnover:   domain.Series{Measure: domain.MeasureTurnover},
	}
}

// Start marks the run as running
func (s *RunState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = domain.RunStatusRunning
	s.StartTime = time.Now()
}

// Complete marks the run as completed
func (s *RunState) Complete() {
	s.finish(domain.RunStatusCompleted, nil)
}

// Fail marks the run as failed
func (s *RunState) Fail(err error) {
	s.finish(domain.RunStatusFailed, err)
}

// Cancel marks the run as cancelled
func (s *RunState) Cancel(err error) {
	s.finish(domain.RunStatusCancelled, err)
}

func (s *RunState) finish(status domain.RunStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = status
	s.Error = err
}

// GetStatus returns the run status
func (s *RunState) GetStatus() domain.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// AddStep registers the state of the next stage in run order.
func (s *RunState) AddStep(step *StepState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.steps[step.ID]; !ok {
		s.order = append(s.order, step.ID)
	}
	s.steps[step.ID] = step
}

// GetStep returns the state of a specific stage
func (s *RunState) GetStep(id string) *StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps[id]
}

// Steps returns the stage states in run order.
func (s *RunState) Steps() []*StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*StepState, len(s.order))
	for i, id := range s.order {
		out[i] = s.steps[id]
	}
	return out
}

// AddReport records the diagnostics of a check. Empty reports are kept so
// the issues file lists every check that ran.
func (s *RunState) AddReport(r domain.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reports = append(s.Reports, r)
}

// IssueCount returns the number of issues across all reports.
func (s *RunState) IssueCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.Reports {
		n += len(r.Issues)
	}
	return n
}

// AddOutput records a written output file.
func (s *RunState) AddOutput(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Outputs = append(s.Outputs, path)
}

// Duration returns the duration of the run
func (s *RunState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// Record snapshots the run for the manifest and the result store.
func (s *RunState) Record() domain.RunRecord {
	steps := s.Steps()
	results := make([]domain.StageResult, len(steps))
	for i, step := range steps {
		results[i] = step.Result()
	}
	issues := s.IssueCount()
	duration := s.Duration()

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := domain.RunRecord{
		RunID:       s.ID,
		Status:      s.Status,
		StartedAt:   s.StartTime,
		FinishedAt:  s.EndTime,
		DurationMS:  duration.Milliseconds(),
		PanelRows:   len(s.Panel),
		SummaryRows: s.Tables.Rows(),
		IssueCount:  issues,
		Outputs:     append([]string(nil), s.Outputs...),
		Stages:      results,
	}
	if s.Error != nil {
		rec.Error = s.Error.Error()
	}
	return rec
}
