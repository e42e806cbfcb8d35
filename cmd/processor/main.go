// Command processor runs the SBS panel pipeline over the registry,
// employment and turnover inputs and writes the panel, summaries and
// quality report.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sbscli/internal/config"
	"sbscli/internal/infrastructure"
	"sbscli/internal/operations"
	"sbscli/internal/store"
	"sbscli/internal/store/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("processor failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("processor", flag.ContinueOnError)
	registry := fs.String("registry", "", "firm registry CSV (defaults to <input_dir>/firms.csv)")
	employment := fs.String("employment", "", "monthly employment CSV (defaults to <input_dir>/employment.csv)")
	turnover := fs.String("turnover", "", "monthly turnover CSV (defaults to <input_dir>/turnover.csv)")
	outDir := fs.String("out", "", "output directory (overrides paths.output_dir)")
	dbFile := fs.String("db", "", "SQLite database file (overrides paths.database_file)")
	configFile := fs.String("config", "", "YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if *outDir != "" {
		cfg.Paths.OutputDir = *outDir
	}
	if *dbFile != "" {
		cfg.Paths.DatabaseFile = *dbFile
	}

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		if err := providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	var st store.Store
	if cfg.Pipeline.WriteSQLite {
		db, err := sqlite.New(paths.DatabaseFile)
		if err != nil {
			return err
		}
		defer db.Close()
		st = db
	}

	stages, err := operations.NewPipeline(logger, &operations.StageOptions{
		Paths:    paths,
		Pipeline: cfg.Pipeline,
		Store:    st,
	})
	if err != nil {
		return err
	}
	tracer, err := operations.NewRunTracer(providers)
	if err != nil {
		return err
	}

	manager := operations.NewManager(stages, operations.NewConfig(), logger).
		WithTracer(tracer).
		WithManifest(paths.ManifestJSON)
	if st != nil {
		manager.WithStore(st)
	}

	state, runErr := manager.Run(ctx, operations.Inputs{
		Registry:   orDefault(*registry, paths.RegistryCSV),
		Employment: orDefault(*employment, paths.EmploymentCSV),
		Turnover:   orDefault(*turnover, paths.TurnoverCSV),
	})
	if state != nil {
		printSummary(stdout, state)
	}
	return runErr
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func printSummary(w io.Writer, state *operations.RunState) {
	rec := state.Record()
	fmt.Fprintf(w, "run %s %s in %dms\n", rec.RunID, rec.Status, rec.DurationMS)
	for _, s := range rec.Stages {
		fmt.Fprintf(w, "  %-10s %-9s rows=%d issues=%d\n", s.ID, s.Status, s.Rows, s.Issues)
	}
	fmt.Fprintf(w, "panel rows: %d, summary rows: %d, issues: %d\n", rec.PanelRows, rec.SummaryRows, rec.IssueCount)
	for _, out := range rec.Outputs {
		fmt.Fprintf(w, "  wrote %s\n", out)
	}
}
