package operations

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"sbscli/internal/exporter"
	"sbscli/pkg/contracts/domain"
)

// Manifest is the run summary written next to the outputs
type Manifest struct {
	domain.RunRecord
	GeneratedAt time.Time `json:"generated_at"`
	Inputs      Inputs    `json:"inputs"`
}

// NewManifest snapshots a run state
func NewManifest(state *RunState) Manifest {
	return Manifest{
		RunRecord:   state.Record(),
		GeneratedAt: time.Now().UTC(),
		Inputs:      state.Inputs,
	}
}

// WriteManifest writes the manifest of a run to path
func WriteManifest(path string, state *RunState, logger *slog.Logger) error {
	return exporter.WriteJSON(path, NewManifest(state), logger)
}

// ReadManifest loads a manifest written by WriteManifest
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}
