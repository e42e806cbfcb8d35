package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. SBS_PIPELINE_WORKERS.
const EnvPrefix = "SBS"

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Synth     SynthConfig     `yaml:"synth" envconfig:"SYNTH"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/sbs.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	BaseDir      string `yaml:"base_dir" envconfig:"BASE_DIR"`
	InputDir     string `yaml:"input_dir" envconfig:"INPUT_DIR" default:"data/input"`
	OutputDir    string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"data/output"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
	DatabaseFile string `yaml:"database_file" envconfig:"DATABASE_FILE" default:"data/output/sbs.db"`
}

// PipelineConfig tunes the integration and indicator stages.
type PipelineConfig struct {
	Workers       int     `yaml:"workers" envconfig:"WORKERS" default:"4" validate:"min=1,max=256"`
	ReferenceYear int     `yaml:"reference_year" envconfig:"REFERENCE_YEAR" validate:"omitempty,min=1900"`
	LagMode       string  `yaml:"lag_mode" envconfig:"LAG_MODE" default:"calendar" validate:"oneof=calendar rows"`
	Structural    string  `yaml:"structural_policy" envconfig:"STRUCTURAL_POLICY" default:"warn" validate:"oneof=warn abort"`
	Quality       string  `yaml:"quality_policy" envconfig:"QUALITY_POLICY" default:"warn" validate:"oneof=warn abort"`
	MinEmployment float64 `yaml:"min_employment" envconfig:"MIN_EMPLOYMENT" default:"1" validate:"gte=0"`
	MaxProduct    float64 `yaml:"max_productivity" envconfig:"MAX_PRODUCTIVITY" default:"10000000" validate:"gt=0"`
	WriteXLSX     bool    `yaml:"write_xlsx" envconfig:"WRITE_XLSX" default:"true"`
	WriteSQLite   bool    `yaml:"write_sqlite" envconfig:"WRITE_SQLITE" default:"true"`
}

// TelemetryConfig selects trace and metric exporters.
type TelemetryConfig struct {
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" default:"prometheus" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1" validate:"gte=0,lte=1"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
}

// ServerConfig contains HTTP server configuration for the reporting API
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"50"`
}

// SynthConfig drives the synthetic source generator.
type SynthConfig struct {
	Firms      int     `yaml:"firms" envconfig:"FIRMS" default:"500"`
	Months     int     `yaml:"months" envconfig:"MONTHS" default:"24"`
	StartMonth string  `yaml:"start_month" envconfig:"START_MONTH" default:"2022-01"`
	Seed       int64   `yaml:"seed" envconfig:"SEED" default:"42"`
	NullRate   float64 `yaml:"null_rate" envconfig:"NULL_RATE" default:"0.05"`
}

// Load loads configuration from environment variables and an optional config file.
// An empty configFile searches the usual locations.
func Load(configFile string) (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config. Values set explicitly in the
// environment win; otherwise a value present in the file replaces the default.
func mergeConfigs(fileConfig, envConfig Config) Config {
	set := func(name string) bool {
		_, ok := os.LookupEnv(EnvPrefix + "_" + name)
		return ok
	}

	if fileConfig.Logging.Level != "" && !set("LOGGING_LEVEL") {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	if fileConfig.Logging.Output != "" && !set("LOGGING_OUTPUT") {
		envConfig.Logging.Output = fileConfig.Logging.Output
	}
	if fileConfig.Logging.FilePath != "" && !set("LOGGING_FILE_PATH") {
		envConfig.Logging.FilePath = fileConfig.Logging.FilePath
	}

	if fileConfig.Paths.BaseDir != "" && !set("PATHS_BASE_DIR") {
		envConfig.Paths.BaseDir = fileConfig.Paths.BaseDir
	}
	if fileConfig.Paths.InputDir != "" && !set("PATHS_INPUT_DIR") {
		envConfig.Paths.InputDir = fileConfig.Paths.InputDir
	}
	if fileConfig.Paths.OutputDir != "" && !set("PATHS_OUTPUT_DIR") {
		envConfig.Paths.OutputDir = fileConfig.Paths.OutputDir
	}
	if fileConfig.Paths.LogsDir != "" && !set("PATHS_LOGS_DIR") {
		envConfig.Paths.LogsDir = fileConfig.Paths.LogsDir
	}
	if fileConfig.Paths.DatabaseFile != "" && !set("PATHS_DATABASE_FILE") {
		envConfig.Paths.DatabaseFile = fileConfig.Paths.DatabaseFile
	}

	if fileConfig.Pipeline.Workers != 0 && !set("PIPELINE_WORKERS") {
		envConfig.Pipeline.Workers = fileConfig.Pipeline.Workers
	}
	if fileConfig.Pipeline.ReferenceYear != 0 && !set("PIPELINE_REFERENCE_YEAR") {
		envConfig.Pipeline.ReferenceYear = fileConfig.Pipeline.ReferenceYear
	}
	if fileConfig.Pipeline.LagMode != "" && !set("PIPELINE_LAG_MODE") {
		envConfig.Pipeline.LagMode = fileConfig.Pipeline.LagMode
	}
	if fileConfig.Pipeline.Structural != "" && !set("PIPELINE_STRUCTURAL_POLICY") {
		envConfig.Pipeline.Structural = fileConfig.Pipeline.Structural
	}
	if fileConfig.Pipeline.Quality != "" && !set("PIPELINE_QUALITY_POLICY") {
		envConfig.Pipeline.Quality = fileConfig.Pipeline.Quality
	}
	if fileConfig.Pipeline.MaxProduct != 0 && !set("PIPELINE_MAX_PRODUCTIVITY") {
		envConfig.Pipeline.MaxProduct = fileConfig.Pipeline.MaxProduct
	}

	if fileConfig.Telemetry.TraceExporter != "" && !set("TELEMETRY_TRACE_EXPORTER") {
		envConfig.Telemetry.TraceExporter = fileConfig.Telemetry.TraceExporter
	}
	if fileConfig.Telemetry.MetricExporter != "" && !set("TELEMETRY_METRIC_EXPORTER") {
		envConfig.Telemetry.MetricExporter = fileConfig.Telemetry.MetricExporter
	}

	if fileConfig.Server.Port != 0 && !set("SERVER_PORT") {
		envConfig.Server.Port = fileConfig.Server.Port
	}

	if fileConfig.Synth.Firms != 0 && !set("SYNTH_FIRMS") {
		envConfig.Synth.Firms = fileConfig.Synth.Firms
	}
	if fileConfig.Synth.Months != 0 && !set("SYNTH_MONTHS") {
		envConfig.Synth.Months = fileConfig.Synth.Months
	}
	if fileConfig.Synth.Seed != 0 && !set("SYNTH_SEED") {
		envConfig.Synth.Seed = fileConfig.Synth.Seed
	}

	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	v := validator.New()
	if err := v.Struct(c.Pipeline); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := v.Struct(c.Telemetry); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Synth.Firms < 0 || c.Synth.Months < 0 {
		return fmt.Errorf("synth firms and months must not be negative")
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Paths.LogsDir, "sbs.log")
	}

	return nil
}

// EffectiveReferenceYear returns the configured reference year or the current one.
func (p PipelineConfig) EffectiveReferenceYear() int {
	if p.ReferenceYear > 0 {
		return p.ReferenceYear
	}
	return time.Now().Year()
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/sbs.log",
		},
		Paths: PathsConfig{
			InputDir:     "data/input",
			OutputDir:    "data/output",
			LogsDir:      "logs",
			DatabaseFile: "data/output/sbs.db",
		},
		Pipeline: PipelineConfig{
			Workers:       4,
			LagMode:       "calendar",
			Structural:    "warn",
			Quality:       "warn",
			MinEmployment: 1,
			MaxProduct:    1e7,
			WriteXLSX:     true,
			WriteSQLite:   true,
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1,
			Environment:    "development",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    100,
			RateLimitBurst:  50,
		},
		Synth: SynthConfig{
			Firms:      500,
			Months:     24,
			StartMonth: "2022-01",
			Seed:       42,
			NullRate:   0.05,
		},
	}
}
