package operations_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbscli/internal/infrastructure"
	"sbscli/internal/operations"
	"sbscli/internal/operations/testutil"
	"sbscli/pkg/contracts/domain"
)

func newManager(t *testing.T, stages ...operations.Stage) (*operations.Manager, *testutil.RecordingStore) {
	t.Helper()
	st := &testutil.RecordingStore{}
	m := operations.NewManager(stages, operations.NewConfig(), nil).WithStore(st)
	return m, st
}

func TestManagerExecuteSequential(t *testing.T) {
	var order []string
	record := func(id string, rows int) *testutil.MockStage {
		return &testutil.MockStage{
			IDValue:   id,
			NameValue: id,
			ExecuteFunc: func(ctx context.Context, state *operations.RunState) (int, error) {
				order = append(order, id)
				return rows, nil
			},
		}
	}

	manager, st := newManager(t, record("a", 3), record("b", 5), record("c", 0))
	state := operations.NewRunState("run-seq", operations.Inputs{})

	require.NoError(t, manager.Execute(context.Background(), state))

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, domain.RunStatusCompleted, state.GetStatus())
	require.NotNil(t, state.EndTime)

	steps := state.Steps()
	require.Len(t, steps, 3)
	for _, step := range steps {
		assert.Equal(t, operations.StepStatusCompleted, step.GetStatus(), step.ID)
	}
	assert.Equal(t, 3, state.GetStep("a").Rows)
	assert.Equal(t, 5, state.GetStep("b").Rows)

	run, ok := st.LastRun()
	require.True(t, ok)
	assert.Equal(t, "run-seq", run.RunID)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Len(t, run.Stages, 3)
}

func TestManagerStageFailureSkipsRemaining(t *testing.T) {
	cause := errors.New("boom")
	first := testutil.CreateSuccessfulStage("first", 1)
	failing := testutil.CreateFailingStage("second", cause)
	last := testutil.CreateSuccessfulStage("third", 1)

	manager, st := newManager(t, first, failing, last)
	state := operations.NewRunState("run-fail", operations.Inputs{})

	err := manager.Execute(context.Background(), state)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, operations.ErrorTypeExecution, operations.GetErrorType(err))

	assert.Equal(t, domain.RunStatusFailed, state.GetStatus())
	assert.Equal(t, operations.StepStatusCompleted, state.GetStep("first").GetStatus())
	assert.Equal(t, operations.StepStatusFailed, state.GetStep("second").GetStatus())
	assert.Equal(t, operations.StepStatusSkipped, state.GetStep("third").GetStatus())
	assert.Contains(t, state.GetStep("third").Message, "second")
	assert.Equal(t, 0, last.GetExecuteCalls())

	run, ok := st.LastRun()
	require.True(t, ok)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "boom")
}

func TestManagerCancelledBeforeStart(t *testing.T) {
	stage := testutil.CreateSuccessfulStage("only", 1)
	manager, st := newManager(t, stage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := operations.NewRunState("run-cancel", operations.Inputs{})
	err := manager.Execute(ctx, state)

	require.Error(t, err)
	assert.True(t, operations.IsCancellation(err))
	assert.Equal(t, domain.RunStatusCancelled, state.GetStatus())
	assert.Equal(t, operations.StepStatusSkipped, state.GetStep("only").GetStatus())
	assert.Equal(t, 0, stage.GetExecuteCalls())

	// The run is still recorded after cancellation.
	run, ok := st.LastRun()
	require.True(t, ok)
	assert.Equal(t, domain.RunStatusCancelled, run.Status)
}

func TestManagerCancelledDuringStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	canceller := &testutil.MockStage{
		IDValue:   "cancel",
		NameValue: "cancel",
		ExecuteFunc: func(ctx context.Context, state *operations.RunState) (int, error) {
			cancel()
			<-ctx.Done()
			return 0, ctx.Err()
		},
	}
	next := testutil.CreateSuccessfulStage("next", 1)
	manager, _ := newManager(t, canceller, next)

	state := operations.NewRunState("run-mid-cancel", operations.Inputs{})
	err := manager.Execute(ctx, state)

	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeCancellation, operations.GetErrorType(err))
	assert.Equal(t, domain.RunStatusCancelled, state.GetStatus())
	assert.Equal(t, operations.StepStatusSkipped, state.GetStep("next").GetStatus())
}

func TestManagerStageTimeout(t *testing.T) {
	cfg := operations.NewConfig()
	cfg.SetStageTimeout("slow", 20*time.Millisecond)

	manager := operations.NewManager([]operations.Stage{
		testutil.CreateSlowStage("slow", time.Second),
	}, cfg, nil)

	state := operations.NewRunState("run-timeout", operations.Inputs{})
	err := manager.Execute(context.Background(), state)

	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeTimeout, operations.GetErrorType(err))
	assert.False(t, operations.IsCancellation(err))
	assert.Equal(t, domain.RunStatusFailed, state.GetStatus())
}

func TestManagerRunTakesRunIDFromContext(t *testing.T) {
	manager, _ := newManager(t, testutil.CreateSuccessfulStage("a", 1))

	ctx := infrastructure.WithRunID(context.Background(), "run-from-ctx")
	state, err := manager.Run(ctx, operations.Inputs{Registry: "firms.csv"})

	require.NoError(t, err)
	assert.Equal(t, "run-from-ctx", state.ID)
	assert.Equal(t, "firms.csv", state.Inputs.Registry)

	state, err = manager.Run(context.Background(), operations.Inputs{})
	require.NoError(t, err)
	assert.NotEmpty(t, state.ID)
}

func TestManagerWritesManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "manifest.json")
	manager, _ := newManager(t,
		testutil.CreateSuccessfulStage("a", 2),
		testutil.CreateFailingStage("b", errors.New("bad input")),
	)
	manager.WithManifest(path)

	state := operations.NewRunState("run-manifest", operations.Inputs{Turnover: "turnover.csv"})
	require.Error(t, manager.Execute(context.Background(), state))

	m, err := operations.ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "run-manifest", m.RunID)
	assert.Equal(t, domain.RunStatusFailed, m.Status)
	assert.Equal(t, "turnover.csv", m.Inputs.Turnover)
	require.Len(t, m.Stages, 2)
	assert.Equal(t, "completed", m.Stages[0].Status)
	assert.Equal(t, 2, m.Stages[0].Rows)
	assert.Equal(t, "failed", m.Stages[1].Status)
	assert.Contains(t, m.Stages[1].Error, "bad input")
}

func TestManagerWithTracer(t *testing.T) {
	tracer, err := operations.NewRunTracer(infrastructure.NoopProviders())
	require.NoError(t, err)

	manager, _ := newManager(t, testutil.CreateSuccessfulStage("a", 10))
	manager.WithTracer(tracer)

	state := operations.NewRunState("run-traced", operations.Inputs{})
	require.NoError(t, manager.Execute(context.Background(), state))
	assert.Equal(t, domain.RunStatusCompleted, state.GetStatus())
}
