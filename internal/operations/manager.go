package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sbscli/internal/infrastructure"
	"sbscli/internal/store"
)

// saveTimeout bounds the run bookkeeping done after the stages finished.
const saveTimeout = 30 * time.Second

// Manager runs the pipeline stages in order against one run state
type Manager struct {
	stages       []Stage
	config       *Config
	logger       *slog.Logger
	tracer       *RunTracer
	store        store.Store
	manifestPath string
}

// NewManager creates a new run manager
func NewManager(stages []Stage, config *Config, logger *slog.Logger) *Manager {
	if config == nil {
		config = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	tracer, _ := NewRunTracer(infrastructure.NoopProviders())
	return &Manager{
		stages: stages,
		config: config,
		logger: infrastructure.WithComponent(logger, "operations"),
		tracer: tracer,
		store:  &store.NopStore{},
	}
}

// WithTracer replaces the no-op run tracer
func (m *Manager) WithTracer(tracer *RunTracer) *Manager {
	if tracer != nil {
		m.tracer = tracer
	}
	return m
}

// WithStore records every finished run in st
func (m *Manager) WithStore(st store.Store) *Manager {
	if st != nil {
		m.store = st
	}
	return m
}

// WithManifest writes the run manifest to path after every run
func (m *Manager) WithManifest(path string) *Manager {
	m.manifestPath = path
	return m
}

// Stages returns the configured stages in run order
func (m *Manager) Stages() []Stage {
	return m.stages
}

// Run executes a new run over inputs. The run ID is taken from ctx when
// present.
func (m *Manager) Run(ctx context.Context, inputs Inputs) (*RunState, error) {
	ctx = infrastructure.EnsureRunID(ctx)
	state := NewRunState(infrastructure.GetRunID(ctx), inputs)
	return state, m.Execute(ctx, state)
}

// Execute runs every stage against state. A failing stage stops the run and
// every later stage is marked skipped. The run is recorded in the store and
// the manifest whatever its outcome.
func (m *Manager) Execute(ctx context.Context, state *RunState) error {
	ctx = infrastructure.WithRunID(ctx, state.ID)
	ctx, span := m.tracer.TraceRun(ctx, state.ID)
	defer span.End()

	for _, stage := range m.stages {
		state.AddStep(NewStepState(stage.ID(), stage.Name()))
	}

	state.Start()
	m.logger.InfoContext(ctx, "run_started",
		slog.String("run_id", state.ID),
		slog.Int("stage_count", len(m.stages)))

	err := m.executeSequential(ctx, state)

	switch {
	case err == nil:
		state.Complete()
	case IsCancellation(err):
		state.Cancel(err)
	default:
		state.Fail(err)
	}
	m.tracer.RecordRun(ctx, span, state)
	m.finish(ctx, state)

	return err
}

// executeSequential executes stages one by one
func (m *Manager) executeSequential(ctx context.Context, state *RunState) error {
	for i, stage := range m.stages {
		if err := ctx.Err(); err != nil {
			m.logger.WarnContext(ctx, "run_cancelled",
				slog.String("run_id", state.ID),
				slog.String("stage", stage.ID()))
			m.skipRemaining(state, i, "run cancelled")
			return NewCancellationError(stage.ID(), err)
		}

		m.logger.InfoContext(ctx, "executing_stage",
			slog.String("run_id", state.ID),
			slog.String("stage", stage.ID()),
			slog.Int("stage_number", i+1),
			slog.Int("total_stages", len(m.stages)))

		if err := m.executeStage(ctx, state, stage); err != nil {
			m.skipRemaining(state, i+1, fmt.Sprintf("previous stage %s failed", stage.ID()))
			return err
		}
	}

	m.logger.InfoContext(ctx, "all_stages_completed",
		slog.String("run_id", state.ID))
	return nil
}

// executeStage executes a single stage under its timeout
func (m *Manager) executeStage(ctx context.Context, state *RunState, stage Stage) error {
	step := state.GetStep(stage.ID())
	if step == nil {
		return NewFatalError("stage state not found: "+stage.ID(), nil)
	}

	timeout := m.config.GetStageTimeout(stage.ID())
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stageCtx, span := m.tracer.TraceStage(stageCtx, state.ID, stage.ID())
	defer span.End()

	step.Start()
	start := time.Now()
	rows, err := stage.Execute(stageCtx, state)
	duration := time.Since(start)

	if err != nil {
		opErr := m.classify(ctx, stageCtx, stage.ID(), timeout, err)
		step.Fail(opErr)
		m.tracer.RecordStage(ctx, span, stage.ID(), duration, rows, step.Result().Issues, opErr)

		m.logger.ErrorContext(ctx, "stage_execution_failed",
			slog.String("run_id", state.ID),
			slog.String("stage", stage.ID()),
			slog.String("error_type", string(opErr.Type)),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return opErr
	}

	step.Complete(rows)
	m.tracer.RecordStage(ctx, span, stage.ID(), duration, rows, step.Result().Issues, nil)
	m.logger.InfoContext(ctx, "stage_completed",
		slog.String("run_id", state.ID),
		slog.String("stage", stage.ID()),
		slog.Int("rows", rows),
		slog.Duration("duration", duration))
	return nil
}

// classify tells apart a caller cancellation, a stage timeout and a stage failure.
func (m *Manager) classify(runCtx, stageCtx context.Context, stageID string, timeout time.Duration, err error) *OperationError {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr
	}
	switch {
	case runCtx.Err() != nil:
		return NewCancellationError(stageID, err)
	case errors.Is(stageCtx.Err(), context.DeadlineExceeded):
		return NewTimeoutError(stageID, timeout.String(), err)
	}
	return NewExecutionError(stageID, err)
}

// skipRemaining marks every stage from index from on as skipped
func (m *Manager) skipRemaining(state *RunState, from int, reason string) {
	for _, stage := range m.stages[from:] {
		if step := state.GetStep(stage.ID()); step != nil && step.GetStatus() == StepStatusPending {
			step.Skip(reason)
		}
	}
}

// finish records the run in the store and the manifest. Both run on a
// context detached from cancellation so a cancelled run is still recorded.
func (m *Manager) finish(ctx context.Context, state *RunState) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if err := m.store.SaveRun(ctx, state.Record()); err != nil {
		m.logger.ErrorContext(ctx, "run_record_failed",
			slog.String("run_id", state.ID),
			slog.String("error", err.Error()))
	}

	if m.manifestPath != "" && m.config.WriteManifest {
		if err := WriteManifest(m.manifestPath, state, m.logger); err != nil {
			m.logger.ErrorContext(ctx, "manifest_write_failed",
				slog.String("run_id", state.ID),
				slog.String("error", err.Error()))
		}
	}

	m.logger.InfoContext(ctx, "run_finished",
		slog.String("run_id", state.ID),
		slog.String("status", string(state.GetStatus())),
		slog.Duration("duration", state.Duration()),
		slog.Int("issues", state.IssueCount()))
}
