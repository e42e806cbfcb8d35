package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"sbscli/internal/config"
	"sbscli/internal/errors"
)

// utf8BOM lets spreadsheet tools detect the encoding of exported CSV files.
const utf8BOM = "\ufeff"

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance. Relative file paths are
// resolved against the output directory of paths.
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{paths: paths, logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options. The file is
// replaced atomically; readers never observe a partial file.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	w.logger.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	err := atomicWrite(fullPath, func(out io.Writer) error {
		if options.BOMPrefix {
			if _, err := io.WriteString(out, utf8BOM); err != nil {
				return fmt.Errorf("failed to write BOM: %w", err)
			}
		}

		writer := csv.NewWriter(out)
		if len(options.Headers) > 0 {
			if err := writer.Write(options.Headers); err != nil {
				return fmt.Errorf("failed to write headers: %w", err)
			}
		}
		if err := writer.WriteAll(options.Records); err != nil {
			return fmt.Errorf("failed to write records: %w", err)
		}
		return writer.Error()
	})
	if err != nil {
		w.logger.Error("CSV export failed",
			slog.String("full_path", fullPath),
			slog.String("error", err.Error()))
		return errors.NewStorageError("failed to write "+filepath.Base(fullPath), err).
			WithContext("path", fullPath)
	}

	w.logger.Debug("CSV file written", slog.String("full_path", fullPath))
	return nil
}

// WriteSimpleCSV is a convenience method for simple CSV writing
func (w *CSVWriter) WriteSimpleCSV(filePath string, headers []string, records [][]string) error {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   headers,
		Records:   records,
		BOMPrefix: true,
	})
}

// resolvePath resolves the full path for a file
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.paths == nil || w.paths.OutputDir == "" {
		return filePath
	}
	return filepath.Join(w.paths.OutputDir, filePath)
}

// StreamWriter provides streaming CSV writing for large datasets. Records go
// to a temporary file that Close renames into place.
type StreamWriter struct {
	file   *os.File
	target string
	writer *csv.Writer
	closed bool
}

// CreateStreamWriter creates a new streaming CSV writer
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	fullPath := w.resolvePath(filePath)

	file, err := createTemp(fullPath)
	if err != nil {
		return nil, errors.NewStorageError("failed to create "+filepath.Base(fullPath), err)
	}

	if _, err := file.WriteString(utf8BOM); err != nil {
		discard(file)
		return nil, fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			discard(file)
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	return &StreamWriter{file: file, target: fullPath, writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	if s.closed {
		return fmt.Errorf("stream writer is closed")
	}
	return s.writer.Write(record)
}

// Close flushes the stream and moves the file into place.
func (s *StreamWriter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		discard(s.file)
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return commit(s.file, s.target)
}

// Abort discards everything written so far.
func (s *StreamWriter) Abort() {
	if s.closed {
		return
	}
	s.closed = true
	discard(s.file)
}

// atomicWrite writes path through a temporary file in the same directory.
func atomicWrite(path string, write func(io.Writer) error) error {
	file, err := createTemp(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		discard(file)
		return err
	}
	return commit(file, path)
}

func createTemp(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
}

func commit(file *os.File, path string) error {
	if err := file.Sync(); err != nil {
		discard(file)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(file.Name(), 0644); err != nil {
		os.Remove(file.Name())
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(file.Name(), path); err != nil {
		os.Remove(file.Name())
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func discard(file *os.File) {
	file.Close()
	os.Remove(file.Name())
}
