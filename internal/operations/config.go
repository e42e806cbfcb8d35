package operations

import (
	"time"
)

// Stage IDs in run order
const (
	StageIDLoad      = "load"
	StageIDValidate  = "validate"
	StageIDClean     = "clean"
	StageIDIntegrate = "integrate"
	StageIDDerive    = "derive"
	StageIDAggregate = "aggregate"
	StageIDExport    = "export"
	StageIDPersist   = "persist"
)

// Default timeouts
const (
	DefaultStageTimeout  = 10 * time.Minute
	DefaultLoadTimeout   = 5 * time.Minute
	DefaultExportTimeout = 5 * time.Minute
)

// Config represents the run execution configuration
type Config struct {
	// Stage-specific timeouts
	StageTimeouts map[string]time.Duration `json:"stage_timeouts"`

	// Whether to write manifest.json after every run
	WriteManifest bool `json:"write_manifest"`
}

// NewConfig returns the default run configuration
func NewConfig() *Config {
	return &Config{
		StageTimeouts: map[string]time.Duration{
			StageIDLoad:    DefaultLoadTimeout,
			StageIDExport:  DefaultExportTimeout,
			StageIDPersist: DefaultExportTimeout,
		},
		WriteManifest: true,
	}
}

// GetStageTimeout returns the timeout for a specific stage
func (c *Config) GetStageTimeout(stageID string) time.Duration {
	if timeout, ok := c.StageTimeouts[stageID]; ok && timeout > 0 {
		return timeout
	}
	return DefaultStageTimeout
}

// SetStageTimeout sets the timeout for a specific stage
func (c *Config) SetStageTimeout(stageID string, timeout time.Duration) {
	if c.StageTimeouts == nil {
		c.StageTimeouts = make(map[string]time.Duration)
	}
	c.StageTimeouts[stageID] = timeout
}
