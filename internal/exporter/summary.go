package exporter

import (
	"context"
	"log/slog"

	"sbscli/internal/aggregate"
	"sbscli/internal/config"
	"sbscli/pkg/contracts/domain"
)

// SummaryExporter writes one CSV file per aggregation level.
type SummaryExporter struct {
	csvWriter *CSVWriter
	paths     *config.Paths
	logger    *slog.Logger
}

// NewSummaryExporter creates a new summary exporter
func NewSummaryExporter(paths *config.Paths, logger *slog.Logger) *SummaryExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryExporter{
		csvWriter: NewCSVWriter(paths, logger),
		paths:     paths,
		logger:    logger,
	}
}

// SummaryHeaders returns the columns of a level: the key columns it groups
// by followed by the statistics.
func SummaryHeaders(level domain.AggregationLevel) []string {
	headers := []string{"year"}
	if level.HasSector() {
		headers = append(headers, "sector_code")
	}
	if level.HasRegion() {
		headers = append(headers, "region_code")
	}
	return append(headers,
		"n_obs", "n_firms",
		"total_turnover", "avg_turnover_per_firm",
		"total_employees", "avg_employees_per_firm",
		"mean_productivity")
}

// SummaryRow converts a summary to its CSV cells in SummaryHeaders order.
func SummaryRow(s domain.IndicatorSummary) []string {
	row := []string{formatInt(s.Year)}
	if s.Level.HasSector() {
		row = append(row, s.SectorCode)
	}
	if s.Level.HasRegion() {
		row = append(row, s.RegionCode)
	}
	return append(row,
		formatInt(s.NObs),
		formatInt(s.NFirms),
		formatFloat(s.TotalTurnover),
		formatFloat(s.AvgTurnoverPerFirm),
		formatFloat(s.TotalEmployees),
		formatFloat(s.AvgEmployeesPerFirm),
		formatNullFloat(s.MeanProductivity))
}

// WriteSummaries writes summary_<level>.csv for every level present in
// tables, in level order, and returns the written paths.
func (e *SummaryExporter) WriteSummaries(ctx context.Context, tables aggregate.Tables) ([]string, error) {
	var written []string
	for _, level := range domain.AllLevels() {
		rows, ok := tables[level]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}

		records := make([][]string, len(rows))
		for i, s := range rows {
			records[i] = SummaryRow(s)
		}

		path := e.paths.SummaryCSV(level)
		if err := e.csvWriter.WriteSimpleCSV(path, SummaryHeaders(level), records); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	e.logger.InfoContext(ctx, "Summaries exported",
		slog.Int("files", len(written)),
		slog.Int("rows", tables.Rows()))
	return written, nil
}
