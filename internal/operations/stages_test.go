package operations_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbscli/internal/config"
	apperrors "sbscli/internal/errors"
	"sbscli/internal/operations"
	"sbscli/internal/store"
	"sbscli/internal/store/sqlite"
	"sbscli/internal/synth"
	"sbscli/internal/testutil"
	"sbscli/internal/validation"
	"sbscli/pkg/contracts/domain"
)

func testOptions(t *testing.T) *operations.StageOptions {
	t.Helper()
	dir := t.TempDir()
	pipeline := config.Default().Pipeline
	pipeline.ReferenceYear = 2024
	return &operations.StageOptions{
		Paths:    config.NewPaths(dir, config.PathsConfig{InputDir: "in", OutputDir: "out"}),
		Pipeline: pipeline,
	}
}

func preloadedState(id string) *operations.RunState {
	ds := testutil.NewSmallDataset()
	state := operations.NewRunState(id, operations.Inputs{})
	state.Firms = ds.Firms
	state.Employment = ds.Employment
	state.Turnover = ds.Turnover
	return state
}

func runPipeline(t *testing.T, opts *operations.StageOptions, state *operations.RunState) error {
	t.Helper()
	stages, err := operations.NewPipeline(nil, opts)
	require.NoError(t, err)
	manager := operations.NewManager(stages, operations.NewConfig(), nil).
		WithManifest(opts.Paths.ManifestJSON)
	if opts.Store != nil {
		manager.WithStore(opts.Store)
	}
	return manager.Execute(context.Background(), state)
}

func TestNewPipelineStageOrder(t *testing.T) {
	opts := testOptions(t)

	stages, err := operations.NewPipeline(nil, opts)
	require.NoError(t, err)
	var ids []string
	for _, s := range stages {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []string{"load", "validate", "clean", "integrate", "derive", "aggregate", "export"}, ids)

	opts.Store = &store.NopStore{}
	stages, err = operations.NewPipeline(nil, opts)
	require.NoError(t, err)
	assert.Equal(t, operations.StageIDPersist, stages[len(stages)-1].ID())

	opts.Pipeline.WriteSQLite = false
	stages, err = operations.NewPipeline(nil, opts)
	require.NoError(t, err)
	assert.Equal(t, operations.StageIDExport, stages[len(stages)-1].ID())
}

func TestNewPipelineRejectsBadConfig(t *testing.T) {
	_, err := operations.NewPipeline(nil, nil)
	assert.Error(t, err)

	opts := testOptions(t)
	opts.Pipeline.LagMode = "fortnightly"
	_, err = operations.NewPipeline(nil, opts)
	assert.Error(t, err)
}

func TestPipelineEndToEnd(t *testing.T) {
	opts := testOptions(t)
	st, err := sqlite.New(filepath.Join(t.TempDir(), "sbs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	opts.Store = st

	state := preloadedState("run-e2e")
	require.NoError(t, runPipeline(t, opts, state))
	assert.Equal(t, domain.RunStatusCompleted, state.GetStatus())

	// One panel row per employment key.
	assert.Len(t, state.Panel, 72)
	assert.Equal(t, 72, state.GetStep(operations.StageIDIntegrate).Rows)

	// F3 had a gap in February 2022 that is interpolated.
	for _, r := range state.Panel {
		require.NotNil(t, r.EmployeesMonthly, "%s %s", r.FirmID, r.Month)
	}

	require.Len(t, state.Tables, 4)
	assert.Len(t, state.Tables[domain.LevelYear], 2)
	assert.Len(t, state.Tables[domain.LevelYearSector], 4)
	assert.Len(t, state.Tables[domain.LevelYearRegion], 4)
	assert.Len(t, state.Tables[domain.LevelYearSectorRegion], 6)

	for _, path := range []string{
		opts.Paths.PanelCSV,
		opts.Paths.SummaryCSV(domain.LevelYear),
		opts.Paths.SummaryCSV(domain.LevelYearSectorRegion),
		opts.Paths.WorkbookXLSX,
		opts.Paths.IssuesJSON,
		opts.Paths.ManifestJSON,
	} {
		assert.FileExists(t, path)
	}
	assert.Contains(t, state.Outputs, opts.Paths.PanelCSV)
	assert.Contains(t, state.Outputs, opts.Paths.IssuesJSON)

	ctx := context.Background()
	yearly, err := st.ListSummaries(ctx, store.SummaryFilter{Level: domain.LevelYear})
	require.NoError(t, err)
	require.Len(t, yearly, 2)
	assert.Equal(t, 2022, yearly[0].Year)
	assert.Equal(t, 3, yearly[0].NFirms)

	panel, err := st.FirmPanel(ctx, "F1")
	require.NoError(t, err)
	assert.Len(t, panel, 24)

	run, err := st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-e2e", run.RunID)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 72, run.PanelRows)
	assert.Equal(t, 16, run.SummaryRows)

	manifest, err := operations.ReadManifest(opts.Paths.ManifestJSON)
	require.NoError(t, err)
	assert.Equal(t, "run-e2e", manifest.RunID)
	assert.Len(t, manifest.Stages, 8)
}

func TestPipelineStructuralAbort(t *testing.T) {
	opts := testOptions(t)
	opts.Pipeline.Structural = "abort"

	state := preloadedState("run-abort")
	state.Employment.Observations = append(state.Employment.Observations,
		testutil.Observations(synth.OrphanFirmID, testutil.Month(2022, time.January), testutil.F(3))...)

	err := runPipeline(t, opts, state)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStructural))
	assert.Equal(t, domain.RunStatusFailed, state.GetStatus())

	assert.Equal(t, operations.StepStatusFailed, state.GetStep(operations.StageIDValidate).GetStatus())
	assert.Equal(t, operations.StepStatusSkipped, state.GetStep(operations.StageIDClean).GetStatus())
	assert.Equal(t, operations.StepStatusSkipped, state.GetStep(operations.StageIDExport).GetStatus())
	assert.NoFileExists(t, opts.Paths.PanelCSV)

	// The failed run still leaves a manifest behind.
	manifest, err := operations.ReadManifest(opts.Paths.ManifestJSON)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, manifest.Status)
	assert.Equal(t, 1, manifest.IssueCount)
}

func TestPipelineStructuralWarnContinues(t *testing.T) {
	opts := testOptions(t)

	state := preloadedState("run-warn")
	state.Employment.Observations = append(state.Employment.Observations,
		testutil.Observations(synth.OrphanFirmID, testutil.Month(2022, time.January), testutil.F(3))...)

	require.NoError(t, runPipeline(t, opts, state))
	assert.Equal(t, domain.RunStatusCompleted, state.GetStatus())
	assert.Len(t, state.Panel, 73)
	assert.Equal(t, 1, state.GetStep(operations.StageIDValidate).Issues)

	require.NotEmpty(t, state.Reports)
	assert.Equal(t, validation.StageName, state.Reports[0].Stage)
	assert.Equal(t, domain.CodeOrphanKey, state.Reports[0].Issues[0].Code)
	assert.Equal(t, []string{synth.OrphanFirmID}, state.Reports[0].Issues[0].Keys)
}

func TestPipelineFromGeneratedFiles(t *testing.T) {
	opts := testOptions(t)
	opts.Pipeline.WriteXLSX = false

	gen := synth.DefaultOptions()
	gen.Firms = 20
	gen.Months = 14
	ds := synth.NewGenerator(gen, nil).Generate()
	files, err := synth.Write(context.Background(), opts.Paths.InputDir, ds, nil)
	require.NoError(t, err)

	state := operations.NewRunState("run-files", operations.Inputs{
		Registry:   files.Registry,
		Employment: files.Employment,
		Turnover:   files.Turnover,
	})
	require.NoError(t, runPipeline(t, opts, state))

	assert.Equal(t, domain.RunStatusCompleted, state.GetStatus())
	assert.Len(t, state.Panel, len(state.Employment.Observations))
	assert.NoFileExists(t, opts.Paths.WorkbookXLSX)
	assert.Greater(t, state.IssueCount(), 0)
}

func TestLoadStageRequiresInputs(t *testing.T) {
	stage := operations.NewLoadStage(nil)
	state := operations.NewRunState("run-load", operations.Inputs{})

	_, err := stage.Execute(context.Background(), state)
	assert.ErrorContains(t, err, "registry")
}

func TestLoadStageRejectsUnsupportedSource(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "firms.txt")
	require.NoError(t, os.WriteFile(notes, []byte("firm_id\nF1\n"), 0o644))

	stage := operations.NewLoadStage(nil)
	state := operations.NewRunState("run-load-txt", operations.Inputs{Registry: notes})

	_, err := stage.Execute(context.Background(), state)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	state = operations.NewRunState("run-load-missing", operations.Inputs{Registry: filepath.Join(dir, "firms.csv")})
	_, err = stage.Execute(context.Background(), state)
	assert.ErrorContains(t, err, "does not exist")
}
