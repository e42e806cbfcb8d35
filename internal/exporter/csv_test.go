package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbscli/internal/config"
	"sbscli/internal/errors"
)

func setupWriter(t *testing.T) (*CSVWriter, string) {
	t.Helper()
	dir := t.TempDir()
	paths := config.NewPaths(dir, config.PathsConfig{OutputDir: "out"})
	return NewCSVWriter(paths, nil), paths.OutputDir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := strings.TrimPrefix(string(data), utf8BOM)
	records, err := csv.NewReader(strings.NewReader(content)).ReadAll()
	require.NoError(t, err)
	return records
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	tests := []struct {
		name    string
		options WriteOptions
		wantBOM bool
		want    [][]string
	}{
		{
			name: "headers and records",
			options: WriteOptions{
				Headers: []string{"firm_id", "value"},
				Records: [][]string{{"F1", "1.5"}, {"F2", ""}},
			},
			want: [][]string{{"firm_id", "value"}, {"F1", "1.5"}, {"F2", ""}},
		},
		{
			name: "with BOM",
			options: WriteOptions{
				Headers:   []string{"a"},
				Records:   [][]string{{"x"}},
				BOMPrefix: true,
			},
			wantBOM: true,
			want:    [][]string{{"a"}, {"x"}},
		},
		{
			name: "quotes commas",
			options: WriteOptions{
				Records: [][]string{{"Müller, GmbH", "1"}},
			},
			want: [][]string{{"Müller, GmbH", "1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, outDir := setupWriter(t)
			require.NoError(t, w.WriteCSV("test.csv", tt.options))

			path := filepath.Join(outDir, "test.csv")
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBOM, strings.HasPrefix(string(data), utf8BOM))
			assert.Equal(t, tt.want, readCSV(t, path))
			assertNoTempFiles(t, outDir)
		})
	}
}

func TestCSVWriter_ReplacesExistingFile(t *testing.T) {
	w, outDir := setupWriter(t)
	require.NoError(t, w.WriteSimpleCSV("test.csv", []string{"a"}, [][]string{{"1"}, {"2"}, {"3"}}))
	require.NoError(t, w.WriteSimpleCSV("test.csv", []string{"a"}, [][]string{{"9"}}))

	assert.Equal(t, [][]string{{"a"}, {"9"}}, readCSV(t, filepath.Join(outDir, "test.csv")))
}

func TestCSVWriter_AbsolutePathBypassesOutputDir(t *testing.T) {
	w, _ := setupWriter(t)
	path := filepath.Join(t.TempDir(), "nested", "abs.csv")

	require.NoError(t, w.WriteSimpleCSV(path, []string{"a"}, nil))
	assert.FileExists(t, path)
}

func TestCSVWriter_FailureIsStorageError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	w := NewCSVWriter(nil, nil)
	err := w.WriteSimpleCSV(filepath.Join(blocker, "out.csv"), []string{"a"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeStorage))
}

func TestStreamWriter(t *testing.T) {
	w, outDir := setupWriter(t)
	path := filepath.Join(outDir, "stream.csv")

	stream, err := w.CreateStreamWriter("stream.csv", []string{"id", "value"})
	require.NoError(t, err)
	for _, rec := range [][]string{{"1", "a"}, {"2", "b"}} {
		require.NoError(t, stream.WriteRecord(rec))
	}

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "target appears only after Close")

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close(), "second close is a no-op")
	assert.Error(t, stream.WriteRecord([]string{"3", "c"}))

	assert.Equal(t, [][]string{{"id", "value"}, {"1", "a"}, {"2", "b"}}, readCSV(t, path))
	assertNoTempFiles(t, outDir)
}

func TestStreamWriter_Abort(t *testing.T) {
	w, outDir := setupWriter(t)

	stream, err := w.CreateStreamWriter("aborted.csv", []string{"id"})
	require.NoError(t, err)
	require.NoError(t, stream.WriteRecord([]string{"1"}))
	stream.Abort()

	assert.NoFileExists(t, filepath.Join(outDir, "aborted.csv"))
	assertNoTempFiles(t, outDir)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
