package exporter

import (
	"context"
	"fmt"
	"log/slog"

	"sbscli/internal/config"
	"sbscli/pkg/contracts/domain"
)

// PanelHeaders lists the panel.csv columns in output order.
var PanelHeaders = []string{
	"firm_id", "month", "employees_monthly", "turnover_monthly", "employees_firm",
	"sector_code", "region_code", "legal_form", "foundation_year",
	"turnover_yoy", "emp_growth", "productivity", "seasonal_index",
	"month_num", "year",
}

// PanelExporter writes the derived panel.
type PanelExporter struct {
	csvWriter *CSVWriter
	paths     *config.Paths
	logger    *slog.Logger
}

// NewPanelExporter creates a new panel exporter
func NewPanelExporter(paths *config.Paths, logger *slog.Logger) *PanelExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PanelExporter{
		csvWriter: NewCSVWriter(paths, logger),
		paths:     paths,
		logger:    logger,
	}
}

// WritePanel streams the panel to panel.csv, one row per firm-month.
func (e *PanelExporter) WritePanel(ctx context.Context, panel []domain.PanelRecord) (string, error) {
	path := e.paths.PanelCSV

	stream, err := e.csvWriter.CreateStreamWriter(path, PanelHeaders)
	if err != nil {
		return "", err
	}
	for i, r := range panel {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				stream.Abort()
				return "", err
			}
		}
		if err := stream.WriteRecord(PanelRow(r)); err != nil {
			stream.Abort()
			return "", fmt.Errorf("failed to write panel row %d: %w", i+1, err)
		}
	}
	if err := stream.Close(); err != nil {
		return "", err
	}

	e.logger.InfoContext(ctx, "Panel exported",
		slog.String("path", path),
		slog.Int("rows", len(panel)))
	return path, nil
}

// PanelRow converts a record to its CSV cells in PanelHeaders order.
func PanelRow(r domain.PanelRecord) []string {
	return []string{
		r.FirmID,
		formatDate(r.Month),
		formatNullFloat(r.EmployeesMonthly),
		formatNullFloat(r.TurnoverMonthly),
		formatNullInt(r.EmployeesFirm),
		r.SectorCode,
		r.RegionCode,
		r.LegalForm,
		formatNullInt(r.FoundationYear),
		formatNullFloat(r.TurnoverYoY),
		formatNullFloat(r.EmpGrowth),
		formatNullFloat(r.Productivity),
		formatNullFloat(r.SeasonalIndex),
		formatInt(r.MonthNum),
		formatInt(r.Year),
	}
}
