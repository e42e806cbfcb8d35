// Command web serves the read-only reporting API over the result store
// written by the processor.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"sbscli/internal/app"
	"sbscli/internal/config"
	"sbscli/internal/infrastructure"
	"sbscli/internal/store/sqlite"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		slog.Error("web server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("web", flag.ContinueOnError)
	dbFile := fs.String("db", "", "SQLite database file (overrides paths.database_file)")
	addr := fs.String("addr", "", "listen address, e.g. :8080 (overrides server.port)")
	configFile := fs.String("config", "", "YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if *dbFile != "" {
		cfg.Paths.DatabaseFile = *dbFile
	}
	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}

	st, err := sqlite.New(paths.DatabaseFile)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Info("opened result store", slog.String("path", paths.DatabaseFile))

	application, err := app.NewApplication(cfg, st, providers, logger, *addr)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}
