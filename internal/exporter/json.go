package exporter

import (
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"

	"sbscli/internal/errors"
)

// WriteJSON writes v as indented JSON to path, replacing the file atomically.
func WriteJSON(path string, v interface{}, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	err := atomicWrite(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
	if err != nil {
		return errors.NewStorageError("failed to write "+filepath.Base(path), err).WithContext("path", path)
	}

	logger.Debug("JSON file written", slog.String("path", path))
	return nil
}
