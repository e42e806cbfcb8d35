// Command synth writes a synthetic registry, employment and turnover input
// set with injected defects, for exercising the processor.
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
	"sbscli/internal/dataprocessing"
	"sbscli/internal/infrastructure"
	"sbscli/internal/synth"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("synth failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	defaults := config.Default().Synth

	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	firms := fs.Int("firms", defaults.Firms, "number of firms")
	months := fs.Int("months", defaults.Months, "number of months per firm")
	start := fs.String("start", defaults.StartMonth, "first month, YYYY-MM")
	seed := fs.Int64("seed", defaults.Seed, "random seed; 0 picks a random one")
	outDir := fs.String("out", "", "output directory (defaults to paths.input_dir)")
	configFile := fs.String("config", "", "YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if !explicit["firms"] {
		*firms = cfg.Synth.Firms
	}
	if !explicit["months"] {
		*months = cfg.Synth.Months
	}
	if !explicit["start"] && cfg.Synth.StartMonth != "" {
		*start = cfg.Synth.StartMonth
	}
	if !explicit["seed"] {
		*seed = cfg.Synth.Seed
	}
	if *firms < 1 || *months < 1 {
		return fmt.Errorf("firms and months must be positive, got %d and %d", *firms, *months)
	}

	startMonth, err := dataprocessing.ParseMonth(*start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	dir := *outDir
	if dir == "" {
		paths, err := config.ResolvePaths(cfg.Paths)
		if err != nil {
			return err
		}
		dir = paths.InputDir
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	opts := synth.DefaultOptions()
	opts.Firms = *firms
	opts.Months = *months
	opts.Start = startMonth
	opts.Seed = *seed
	opts.NullRate = cfg.Synth.NullRate

	ds := synth.NewGenerator(opts, logger).Generate()
	files, err := synth.Write(ctx, dir, ds, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "wrote %d firms, %d months\n", len(ds.Firms), opts.Months)
	fmt.Fprintf(stdout, "  %s\n  %s\n  %s\n", files.Registry, files.Employment, files.Turnover)
	return nil
}
