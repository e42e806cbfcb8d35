package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"sbscli/internal/aggregate"
	"sbscli/internal/config"
	"sbscli/internal/errors"
	"sbscli/pkg/contracts/domain"
)

// defaultSheet is the sheet excelize creates with every new workbook.
const defaultSheet = "Sheet1"

// WorkbookExporter writes all summary levels into one workbook, one sheet per level.
type WorkbookExporter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewWorkbookExporter creates a new workbook exporter
func NewWorkbookExporter(paths *config.Paths, logger *slog.Logger) *WorkbookExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookExporter{paths: paths, logger: logger}
}

// WriteWorkbook writes summaries.xlsx. Missing values are left blank.
func (e *WorkbookExporter) WriteWorkbook(ctx context.Context, tables aggregate.Tables) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create header style: %w", err)
	}

	first := true
	for _, level := range domain.AllLevels() {
		rows, ok := tables[level]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		sheet := string(level)
		if first {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return "", fmt.Errorf("failed to rename sheet: %w", err)
			}
			first = false
		} else if _, err := f.NewSheet(sheet); err != nil {
			return "", fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}

		if err := writeSheet(f, sheet, level, rows, headerStyle); err != nil {
			return "", err
		}
	}

	path := e.paths.WorkbookXLSX
	err = atomicWrite(path, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
	if err != nil {
		return "", errors.NewStorageError("failed to write workbook", err).WithContext("path", path)
	}

	e.logger.InfoContext(ctx, "Workbook exported",
		slog.String("path", path),
		slog.Int("sheets", len(f.GetSheetList())))
	return path, nil
}

func writeSheet(f *excelize.File, sheet string, level domain.AggregationLevel, rows []domain.IndicatorSummary, headerStyle int) error {
	headers := SummaryHeaders(level)
	cells := make([]interface{}, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header of %s: %w", sheet, err)
	}

	for i, s := range rows {
		values := summaryValues(s)
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

// summaryValues returns typed cell values so numbers stay numeric in the workbook.
func summaryValues(s domain.IndicatorSummary) []interface{} {
	values := []interface{}{s.Year}
	if s.Level.HasSector() {
		values = append(values, s.SectorCode)
	}
	if s.Level.HasRegion() {
		values = append(values, s.RegionCode)
	}
	values = append(values,
		s.NObs, s.NFirms,
		s.TotalTurnover, s.AvgTurnoverPerFirm,
		s.TotalEmployees, s.AvgEmployeesPerFirm)
	if s.MeanProductivity != nil {
		values = append(values, *s.MeanProductivity)
	} else {
		values = append(values, nil)
	}
	return values
}
