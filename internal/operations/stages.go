package operations

import (
	"context"
	"fmt"
	"log/slog"

	"sbscli/internal/aggregate"
	"sbscli/internal/config"
	"sbscli/internal/dataprocessing"
	"sbscli/internal/exporter"
	"sbscli/internal/indicators"
	"sbscli/internal/quality"
	"sbscli/internal/store"
	"sbscli/internal/validation"
	"sbscli/pkg/contracts/domain"
)

// Stage names
const (
	StageNameLoad      = "Load Sources"
	StageNameValidate  = "Structural Validation"
	StageNameClean     = "Cleaning"
	StageNameIntegrate = "Panel Integration"
	StageNameDerive    = "Indicator Derivation"
	StageNameAggregate = "Aggregation"
	StageNameExport    = "Export"
	StageNamePersist   = "Persist Results"
)

// StageOptions holds the dependencies shared by the pipeline stages
type StageOptions struct {
	Paths    *config.Paths
	Pipeline config.PipelineConfig
	Store    store.Store
}

// qualityOptions maps the pipeline configuration onto the consistency checker.
func (o *StageOptions) qualityOptions() quality.Options {
	opts := quality.DefaultOptions()
	if o.Pipeline.MinEmployment > 0 {
		opts.MinEmployment = o.Pipeline.MinEmployment
	}
	if o.Pipeline.MaxProduct > 0 {
		opts.MaxProductivity = o.Pipeline.MaxProduct
	}
	opts.Policy = domain.Policy(o.Pipeline.Quality)
	return opts
}

// recordReport stores a check report on the run and counts its issues on the stage.
func recordReport(state *RunState, stageID string, report domain.Report) {
	state.AddReport(report)
	if step := state.GetStep(stageID); step != nil {
		step.AddIssues(len(report.Issues))
	}
}

// stageLogger scopes a logger to one stage
func stageLogger(logger *slog.Logger, stageID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("stage", stageID))
}

// LoadStage reads the registry and the two monthly sources
type LoadStage struct {
	BaseStage
	parser *dataprocessing.Parser
	files  *validation.FileValidator
	logger *slog.Logger
}

// NewLoadStage creates a new load stage
func NewLoadStage(logger *slog.Logger) *LoadStage {
	logger = stageLogger(logger, StageIDLoad)
	return &LoadStage{
		BaseStage: NewBaseStage(StageIDLoad, StageNameLoad),
		parser:    dataprocessing.NewParser(logger),
		files:     validation.NewFileValidator(logger),
		logger:    logger,
	}
}

func (s *LoadStage) source(kind, path string) error {
	if path == "" {
		return fmt.Errorf("no %s input configured", kind)
	}
	return s.files.ValidateSourceFile(path)
}

// Execute loads every table that is not already present in the state
func (s *LoadStage) Execute(ctx context.Context, state *RunState) (int, error) {
	if state.Firms == nil {
		if err := s.source("registry", state.Inputs.Registry); err != nil {
			return 0, err
		}
		firms, err := s.parser.ReadRegistry(state.Inputs.Registry)
		if err != nil {
			return 0, err
		}
		state.Firms = firms
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if state.Employment.Observations == nil {
		if err := s.source("employment", state.Inputs.Employment); err != nil {
			return 0, err
		}
		series, err := s.parser.ReadSeries(state.Inputs.Employment, domain.MeasureEmployment)
		if err != nil {
			return 0, err
		}
		state.Employment = series
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if state.Turnover.Observations == nil {
		if err := s.source("turnover", state.Inputs.Turnover); err != nil {
			return 0, err
		}
		series, err := s.parser.ReadSeries(state.Inputs.Turnover, domain.MeasureTurnover)
		if err != nil {
			return 0, err
		}
		state.Turnover = series
	}

	rows := len(state.Firms) + len(state.Employment.Observations) + len(state.Turnover.Observations)
	s.logger.InfoContext(ctx, "Sources loaded",
		slog.Int("firms", len(state.Firms)),
		slog.Int("employment_rows", len(state.Employment.Observations)),
		slog.Int("turnover_rows", len(state.Turnover.Observations)))
	return rows, nil
}

// ValidateStage checks key integrity before any correction is applied
type ValidateStage struct {
	BaseStage
	validator *validation.StructuralValidator
}

// NewValidateStage creates a new structural validation stage
func NewValidateStage(logger *slog.Logger, options *StageOptions) *ValidateStage {
	return &ValidateStage{
		BaseStage: NewBaseStage(StageIDValidate, StageNameValidate),
		validator: validation.NewStructuralValidator(
			stageLogger(logger, StageIDValidate),
			domain.Policy(options.Pipeline.Structural)),
	}
}

// Execute validates the raw registry and sources
func (s *ValidateStage) Execute(ctx context.Context, state *RunState) (int, error) {
	report, err := s.validator.Validate(ctx, state.Firms, state.Employment, state.Turnover)
	recordReport(state, s.ID(), report)
	if err != nil {
		return 0, err
	}
	return len(state.Firms), nil
}

// CleanStage applies the cleaning rules and checks the cleaned sources
type CleanStage struct {
	BaseStage
	cleaner *dataprocessing.Cleaner
	checker *quality.Checker
	logger  *slog.Logger
}

// NewCleanStage creates a new cleaning stage
func NewCleanStage(logger *slog.Logger, options *StageOptions) *CleanStage {
	logger = stageLogger(logger, StageIDClean)
	return &CleanStage{
		BaseStage: NewBaseStage(StageIDClean, StageNameClean),
		cleaner: dataprocessing.NewCleaner(logger, dataprocessing.CleanerOptions{
			ReferenceYear: options.Pipeline.EffectiveReferenceYear(),
			Workers:       options.Pipeline.Workers,
		}),
		checker: quality.NewChecker(logger, options.qualityOptions()),
		logger:  logger,
	}
}

// Execute cleans the registry and both monthly sources
func (s *CleanStage) Execute(ctx context.Context, state *RunState) (int, error) {
	firms, stats := s.cleaner.CleanFirms(ctx, state.Firms)

	employment, empStats, err := s.cleaner.CleanSeries(ctx, state.Employment)
	if err != nil {
		return 0, err
	}
	turnover, turnStats, err := s.cleaner.CleanSeries(ctx, state.Turnover)
	if err != nil {
		return 0, err
	}
	stats.Add(empStats)
	stats.Add(turnStats)

	state.Firms = firms
	state.Employment = employment
	state.Turnover = turnover

	s.logger.InfoContext(ctx, "Cleaning rules applied",
		slog.Int("corrections", stats.Total()),
		slog.Any("stats", stats))

	report, err := s.checker.CheckCleaned(ctx, employment, turnover)
	recordReport(state, s.ID(), report)
	if err != nil {
		return 0, err
	}
	return len(employment.Observations) + len(turnover.Observations), nil
}

// IntegrateStage joins the cleaned sources into the panel
type IntegrateStage struct {
	BaseStage
	integrator *dataprocessing.Integrator
}

// NewIntegrateStage creates a new integration stage
func NewIntegrateStage(logger *slog.Logger) *IntegrateStage {
	return &IntegrateStage{
		BaseStage:  NewBaseStage(StageIDIntegrate, StageNameIntegrate),
		integrator: dataprocessing.NewIntegrator(stageLogger(logger, StageIDIntegrate)),
	}
}

// Execute builds the firm-month panel
func (s *IntegrateStage) Execute(ctx context.Context, state *RunState) (int, error) {
	panel, err := s.integrator.Integrate(ctx, state.Firms, state.Employment, state.Turnover)
	if err != nil {
		return 0, err
	}
	state.Panel = panel
	return len(panel), nil
}

// DeriveStage computes the per-firm indicators and checks the panel
type DeriveStage struct {
	BaseStage
	deriver *indicators.Deriver
	checker *quality.Checker
}

// NewDeriveStage creates a new indicator stage. An unknown lag mode is a configuration error.
func NewDeriveStage(logger *slog.Logger, options *StageOptions) (*DeriveStage, error) {
	mode, err := indicators.ParseLagMode(options.Pipeline.LagMode)
	if err != nil {
		return nil, err
	}
	logger = stageLogger(logger, StageIDDerive)
	return &DeriveStage{
		BaseStage: NewBaseStage(StageIDDerive, StageNameDerive),
		deriver: indicators.NewDeriver(logger, indicators.Options{
			LagMode: mode,
			Workers: options.Pipeline.Workers,
		}),
		checker: quality.NewChecker(logger, options.qualityOptions()),
	}, nil
}

// Execute derives the indicators in place of the integrated panel
func (s *DeriveStage) Execute(ctx context.Context, state *RunState) (int, error) {
	panel, err := s.deriver.Derive(ctx, state.Panel)
	if err != nil {
		return 0, err
	}
	state.Panel = panel

	report, err := s.checker.CheckPanel(ctx, panel)
	recordReport(state, s.ID(), report)
	if err != nil {
		return 0, err
	}
	return len(panel), nil
}

// AggregateStage summarizes the derived panel at every level
type AggregateStage struct {
	BaseStage
	aggregator *aggregate.Aggregator
	checker    *quality.Checker
}

// NewAggregateStage creates a new aggregation stage
func NewAggregateStage(logger *slog.Logger, options *StageOptions) *AggregateStage {
	logger = stageLogger(logger, StageIDAggregate)
	return &AggregateStage{
		BaseStage:  NewBaseStage(StageIDAggregate, StageNameAggregate),
		aggregator: aggregate.NewAggregator(logger),
		checker:    quality.NewChecker(logger, options.qualityOptions()),
	}
}

// Execute aggregates the panel and checks the summary tables
func (s *AggregateStage) Execute(ctx context.Context, state *RunState) (int, error) {
	tables, err := s.aggregator.Aggregate(ctx, state.Panel)
	if err != nil {
		return 0, err
	}
	state.Tables = tables

	report, err := s.checker.CheckSummaries(ctx, tables)
	recordReport(state, s.ID(), report)
	if err != nil {
		return 0, err
	}
	return tables.Rows(), nil
}

// IssuesFile is the document written to issues.json
type IssuesFile struct {
	RunID   string          `json:"run_id"`
	Total   int             `json:"total"`
	Reports []domain.Report `json:"reports"`
}

// ExportStage writes the panel, the summaries and the issue log
type ExportStage struct {
	BaseStage
	paths     *config.Paths
	writeXLSX bool
	panel     *exporter.PanelExporter
	summaries *exporter.SummaryExporter
	workbook  *exporter.WorkbookExporter
	files     *validation.FileValidator
	logger    *slog.Logger
}

// NewExportStage creates a new export stage
func NewExportStage(logger *slog.Logger, options *StageOptions) *ExportStage {
	logger = stageLogger(logger, StageIDExport)
	return &ExportStage{
		BaseStage: NewBaseStage(StageIDExport, StageNameExport),
		paths:     options.Paths,
		writeXLSX: options.Pipeline.WriteXLSX,
		panel:     exporter.NewPanelExporter(options.Paths, logger),
		summaries: exporter.NewSummaryExporter(options.Paths, logger),
		workbook:  exporter.NewWorkbookExporter(options.Paths, logger),
		files:     validation.NewFileValidator(logger),
		logger:    logger,
	}
}

// Execute writes every output file of the run
func (s *ExportStage) Execute(ctx context.Context, state *RunState) (int, error) {
	if err := s.files.ValidateOutputDirectory(s.paths.OutputDir); err != nil {
		return 0, err
	}

	path, err := s.panel.WritePanel(ctx, state.Panel)
	if err != nil {
		return 0, err
	}
	state.AddOutput(path)

	paths, err := s.summaries.WriteSummaries(ctx, state.Tables)
	if err != nil {
		return 0, err
	}
	for _, p := range paths {
		state.AddOutput(p)
	}

	if s.writeXLSX {
		path, err := s.workbook.WriteWorkbook(ctx, state.Tables)
		if err != nil {
			return 0, err
		}
		state.AddOutput(path)
	}

	state.mu.RLock()
	issues := IssuesFile{RunID: state.ID, Reports: append([]domain.Report(nil), state.Reports...)}
	state.mu.RUnlock()
	for _, r := range issues.Reports {
		issues.Total += len(r.Issues)
	}
	if err := exporter.WriteJSON(s.paths.IssuesJSON, issues, s.logger); err != nil {
		return 0, err
	}
	state.AddOutput(s.paths.IssuesJSON)

	return len(state.Panel) + state.Tables.Rows(), nil
}

// PersistStage stores the panel and the summaries in the result store
type PersistStage struct {
	BaseStage
	store  store.Store
	logger *slog.Logger
}

// NewPersistStage creates a new persistence stage
func NewPersistStage(logger *slog.Logger, st store.Store) *PersistStage {
	return &PersistStage{
		BaseStage: NewBaseStage(StageIDPersist, StageNamePersist),
		store:     st,
		logger:    stageLogger(logger, StageIDPersist),
	}
}

// Execute replaces the stored panel and the stored summary levels
func (s *PersistStage) Execute(ctx context.Context, state *RunState) (int, error) {
	if err := s.store.SavePanel(ctx, state.ID, state.Panel); err != nil {
		return 0, err
	}
	if err := s.store.SaveSummaries(ctx, state.ID, state.Tables); err != nil {
		return 0, err
	}
	rows := len(state.Panel) + state.Tables.Rows()
	s.logger.InfoContext(ctx, "Results persisted", slog.Int("rows", rows))
	return rows, nil
}

// NewPipeline returns the stages of a full run in execution order. The
// persist stage is included only when a store is configured and enabled.
func NewPipeline(logger *slog.Logger, options *StageOptions) ([]Stage, error) {
	if options == nil || options.Paths == nil {
		return nil, fmt.Errorf("stage options require paths")
	}
	derive, err := NewDeriveStage(logger, options)
	if err != nil {
		return nil, err
	}

	stages := []Stage{
		NewLoadStage(logger),
		NewValidateStage(logger, options),
		NewCleanStage(logger, options),
		NewIntegrateStage(logger),
		derive,
		NewAggregateStage(logger, options),
		NewExportStage(logger, options),
	}
	if options.Store != nil && options.Pipeline.WriteSQLite {
		stages = append(stages, NewPersistStage(logger, options.Store))
	}
	return stages, nil
}
