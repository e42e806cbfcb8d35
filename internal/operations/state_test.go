package operations_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbscli/internal/aggregate"
	"sbscli/internal/operations"
	"sbscli/pkg/contracts/domain"
)

func TestStepStateTransitions(t *testing.T) {
	tests := []struct {
		name       string
		transition func(*operations.StepState)
		wantStatus operations.StepStatus
		check      func(*testing.T, *operations.StepState)
	}{
		{
			name:       "Start",
			transition: func(s *operations.StepState) { s.Start() },
			wantStatus: operations.StepStatusActive,
			check: func(t *testing.T, s *operations.StepState) {
				assert.NotNil(t, s.StartTime)
				assert.Nil(t, s.EndTime)
			},
		},
		{
			name: "Complete",
			transition: func(s *operations.StepState) {
				s.Start()
				s.Complete(42)
			},
			wantStatus: operations.StepStatusCompleted,
			check: func(t *testing.T, s *operations.StepState) {
				assert.NotNil(t, s.EndTime)
				assert.Equal(t, 42, s.Rows)
			},
		},
		{
			name: "Fail",
			transition: func(s *operations.StepState) {
				s.Start()
				s.Fail(errors.New("broken"))
			},
			wantStatus: operations.StepStatusFailed,
			check: func(t *testing.T, s *operations.StepState) {
				assert.NotNil(t, s.EndTime)
				assert.EqualError(t, s.Error, "broken")
			},
		},
		{
			name:       "Skip",
			transition: func(s *operations.StepState) { s.Skip("previous stage failed") },
			wantStatus: operations.StepStatusSkipped,
			check: func(t *testing.T, s *operations.StepState) {
				assert.Nil(t, s.StartTime)
				assert.Equal(t, "previous stage failed", s.Message)
				assert.Zero(t, s.Duration())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := operations.NewStepState("test", "Test Stage")
			assert.Equal(t, operations.StepStatusPending, s.GetStatus())

			tt.transition(s)
			assert.Equal(t, tt.wantStatus, s.GetStatus())
			tt.check(t, s)
		})
	}
}

func TestStepStateResult(t *testing.T) {
	s := operations.NewStepState("clean", "Cleaning")
	s.Start()
	s.AddIssues(2)
	s.AddIssues(1)
	s.Fail(errors.New("bad data"))

	r := s.Result()
	assert.Equal(t, "clean", r.ID)
	assert.Equal(t, "Cleaning", r.Name)
	assert.Equal(t, "failed", r.Status)
	assert.Equal(t, 3, r.Issues)
	assert.Equal(t, "bad data", r.Error)
	require.NotNil(t, r.StartedAt)
	require.NotNil(t, r.FinishedAt)
	assert.GreaterOrEqual(t, r.DurationMS, int64(0))
}

func TestRunStateLifecycle(t *testing.T) {
	state := operations.NewRunState("run-1", operations.Inputs{Registry: "firms.csv"})
	assert.Equal(t, domain.RunStatusPending, state.GetStatus())
	assert.Equal(t, domain.MeasureEmployment, state.Employment.Measure)
	assert.Equal(t, domain.MeasureTurnover, state.Turnover.Measure)

	state.Start()
	assert.Equal(t, domain.RunStatusRunning, state.GetStatus())
	assert.Nil(t, state.EndTime)

	time.Sleep(time.Millisecond)
	state.Complete()
	assert.Equal(t, domain.RunStatusCompleted, state.GetStatus())
	require.NotNil(t, state.EndTime)
	assert.Greater(t, state.Duration(), time.Duration(0))
}

func TestRunStateStepsKeepRunOrder(t *testing.T) {
	state := operations.NewRunState("run-2", operations.Inputs{})
	for _, id := range []string{"load", "validate", "clean"} {
		state.AddStep(operations.NewStepState(id, id))
	}
	// Re-registering keeps the original position.
	state.AddStep(operations.NewStepState("load", "Load again"))

	steps := state.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, "load", steps[0].ID)
	assert.Equal(t, "Load again", steps[0].Name)
	assert.Equal(t, "validate", steps[1].ID)
	assert.Equal(t, "clean", steps[2].ID)
	assert.Nil(t, state.GetStep("missing"))
}

func TestRunStateRecord(t *testing.T) {
	state := operations.NewRunState("run-3", operations.Inputs{})
	state.AddStep(operations.NewStepState("load", "Load"))
	state.Start()

	state.Panel = make([]domain.PanelRecord, 5)
	state.Tables = aggregate.Tables{
		domain.LevelYear:       make([]domain.IndicatorSummary, 2),
		domain.LevelYearSector: make([]domain.IndicatorSummary, 3),
	}
	state.AddReport(domain.Report{Stage: "validate", Issues: []domain.Issue{{Code: domain.CodeOrphanKey}}})
	state.AddReport(domain.Report{Stage: "check_panel"})
	state.AddOutput("panel.csv")
	state.Fail(errors.New("disk full"))

	rec := state.Record()
	assert.Equal(t, "run-3", rec.RunID)
	assert.Equal(t, domain.RunStatusFailed, rec.Status)
	assert.Equal(t, 5, rec.PanelRows)
	assert.Equal(t, 5, rec.SummaryRows)
	assert.Equal(t, 1, rec.IssueCount)
	assert.Equal(t, []string{"panel.csv"}, rec.Outputs)
	assert.Equal(t, "disk full", rec.Error)
	require.Len(t, rec.Stages, 1)
	assert.Equal(t, "pending", rec.Stages[0].Status)
}
