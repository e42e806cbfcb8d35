package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"sbscli/pkg/contracts/domain"
)

// Paths contains all the application paths.
// Every output file of a run is resolved here.
type Paths struct {
	BaseDir      string
	InputDir     string
	OutputDir    string
	LogsDir      string
	DatabaseFile string

	// Well-known input files
	RegistryCSV   string
	EmploymentCSV string
	TurnoverCSV   string

	// Well-known output files
	PanelCSV     string
	WorkbookXLSX string
	ManifestJSON string
	IssuesJSON   string
}

// GetPaths resolves paths relative to the executable directory.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	return NewPaths(filepath.Dir(exe), Default().Paths), nil
}

// ResolvePaths resolves cfg against its BaseDir, falling back to the working directory.
func ResolvePaths(cfg PathsConfig) (*Paths, error) {
	base := cfg.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	return NewPaths(base, cfg), nil
}

// NewPaths builds the path set rooted at base.
func NewPaths(base string, cfg PathsConfig) *Paths {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	inputDir := abs(cfg.InputDir)
	outputDir := abs(cfg.OutputDir)

	return &Paths{
		BaseDir:      base,
		InputDir:     inputDir,
		OutputDir:    outputDir,
		LogsDir:      abs(cfg.LogsDir),
		DatabaseFile: abs(cfg.DatabaseFile),

		RegistryCSV:   filepath.Join(inputDir, "firms.csv"),
		EmploymentCSV: filepath.Join(inputDir, "employment.csv"),
		TurnoverCSV:   filepath.Join(inputDir, "turnover.csv"),

		PanelCSV:     filepath.Join(outputDir, "panel.csv"),
		WorkbookXLSX: filepath.Join(outputDir, "summaries.xlsx"),
		ManifestJSON: filepath.Join(outputDir, "manifest.json"),
		IssuesJSON:   filepath.Join(outputDir, "issues.json"),
	}
}

// SummaryCSV returns the output path of one aggregation level.
func (p *Paths) SummaryCSV(level domain.AggregationLevel) string {
	return filepath.Join(p.OutputDir, fmt.Sprintf("summary_%s.csv", level))
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.InputDir,
		p.OutputDir,
		p.LogsDir,
	}
	if p.DatabaseFile != "" {
		directories = append(directories, filepath.Dir(p.DatabaseFile))
	}

	for _, dir := range directories {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved paths at debug level
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("input", p.InputDir),
			slog.String("output", p.OutputDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("registry", p.RegistryCSV),
			slog.String("employment", p.EmploymentCSV),
			slog.String("turnover", p.TurnoverCSV),
			slog.String("panel", p.PanelCSV),
			slog.String("database", p.DatabaseFile),
		))
}
