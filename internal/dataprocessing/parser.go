package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"

	"sbscli/internal/errors"
	"sbscli/pkg/contracts/domain"
)

// Input column names after header normalization.
const (
	ColFirmID          = "firm_id"
	ColRegionCode      = "region_code"
	ColSectorCode      = "sector_code"
	ColLegalForm       = "legal_form"
	ColEmployees       = "employees"
	ColFoundationYear  = "foundation_year"
	ColRevenueLastYear = "revenue_last_year"
	ColMonth           = "month"
	ColTurnover        = "turnover"
)

var monthLayouts = []string{"2006-01-02", "2006-01", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// Table is a header row plus the data rows of one input file.
type Table struct {
	Source string
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable normalizes the header and indexes the columns. The first
// occurrence of a repeated column name wins.
func NewTable(source string, header []string, rows [][]string) *Table {
	t := &Table{
		Source: source,
		Header: make([]string, len(header)),
		Rows:   rows,
		index:  make(map[string]int, len(header)),
	}
	for i, h := range header {
		name := NormalizeHeader(h)
		t.Header[i] = name
		if _, dup := t.index[name]; !dup && name != "" {
			t.index[name] = i
		}
	}
	return t
}

// Has reports whether the table carries column col.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Value returns the trimmed cell of row under col, or "" when absent.
func (t *Table) Value(row []string, col string) string {
	idx, ok := t.index[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (t *Table) require(cols ...string) error {
	for _, col := range cols {
		if !t.Has(col) {
			return errors.NewParsingError(fmt.Sprintf("%s: missing required column %q", t.Source, col), nil).
				WithContext("columns", t.Header)
		}
	}
	return nil
}

// Parser reads the registry and the monthly sources from CSV or XLSX files.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ReadTable loads path as a table, choosing the reader by extension.
func (p *Parser) ReadTable(path string) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		t, err = readXLSX(path)
	default:
		t, err = readCSVFile(path)
	}
	if err != nil {
		return nil, err
	}

	p.logger.Info("Input table loaded",
		slog.String("file", path),
		slog.Int("columns", len(t.Header)),
		slog.Int("rows", len(t.Rows)))
	return t, nil
}

// ReadRegistry loads and parses the business register.
func (p *Parser) ReadRegistry(path string) ([]domain.Firm, error) {
	t, err := p.ReadTable(path)
	if err != nil {
		return nil, err
	}
	return ParseRegistry(t)
}

// ReadSeries loads and parses one monthly source.
func (p *Parser) ReadSeries(path string, measure domain.Measure) (domain.Series, error) {
	t, err := p.ReadTable(path)
	if err != nil {
		return domain.Series{Measure: measure}, err
	}
	return ParseSeries(t, measure)
}

// ReadCSV parses CSV content from r.
func ReadCSV(source string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("%s: malformed CSV", source), err)
	}
	if len(records) == 0 {
		return nil, errors.NewParsingError(fmt.Sprintf("%s: file has no header row", source), nil)
	}
	return NewTable(source, records[0], dropEmptyRows(records[1:])), nil
}

func readCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()
	return ReadCSV(path, f)
}

func readXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to open workbook %s", path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewParsingError(fmt.Sprintf("%s: workbook has no sheets", path), nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("%s: failed to read sheet %q", path, sheets[0]), err)
	}
	if len(rows) == 0 {
		return nil, errors.NewParsingError(fmt.Sprintf("%s: sheet %q has no header row", path, sheets[0]), nil)
	}
	return NewTable(path, rows[0], dropEmptyRows(rows[1:])), nil
}

func dropEmptyRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// ParseRegistry converts a registry table into firms.
func ParseRegistry(t *Table) ([]domain.Firm, error) {
	if err := t.require(ColFirmID); err != nil {
		return nil, err
	}

	firms := make([]domain.Firm, 0, len(t.Rows))
	for i, row := range t.Rows {
		line := i + 1
		id := t.Value(row, ColFirmID)
		if id == "" {
			return nil, rowError(t, line, ColFirmID, "empty firm_id", nil)
		}

		employees, err := parseIntCell(t.Value(row, ColEmployees))
		if err != nil {
			return nil, rowError(t, line, ColEmployees, "invalid integer", err)
		}
		founded, err := parseIntCell(t.Value(row, ColFoundationYear))
		if err != nil {
			return nil, rowError(t, line, ColFoundationYear, "invalid integer", err)
		}
		revenue, err := parseFloatCell(t.Value(row, ColRevenueLastYear))
		if err != nil {
			return nil, rowError(t, line, ColRevenueLastYear, "invalid number", err)
		}

		firms = append(firms, domain.Firm{
			FirmID:              id,
			RegionCode:          t.Value(row, ColRegionCode),
			SectorCode:          t.Value(row, ColSectorCode),
			LegalForm:           t.Value(row, ColLegalForm),
			EmployeesRegistered: employees,
			FoundationYear:      founded,
			RevenueLastYear:     revenue,
		})
	}
	return firms, nil
}

// ValueColumn returns the input column that carries measure.
func ValueColumn(measure domain.Measure) string {
	if measure == domain.MeasureTurnover {
		return ColTurnover
	}
	return ColEmployees
}

// ParseSeries converts a monthly source table into observations.
func ParseSeries(t *Table, measure domain.Measure) (domain.Series, error) {
	series := domain.Series{Measure: measure}
	valueCol := ValueColumn(measure)
	if err := t.require(ColFirmID, ColMonth, valueCol); err != nil {
		return series, err
	}

	series.Observations = make([]domain.MonthlyObservation, 0, len(t.Rows))
	for i, row := range t.Rows {
		line := i + 1
		id := t.Value(row, ColFirmID)
		if id == "" {
			return series, rowError(t, line, ColFirmID, "empty firm_id", nil)
		}
		month, err := ParseMonth(t.Value(row, ColMonth))
		if err != nil {
			return series, rowError(t, line, ColMonth, "invalid month", err)
		}
		value, err := parseFloatCell(t.Value(row, valueCol))
		if err != nil {
			return series, rowError(t, line, valueCol, "invalid number", err)
		}

		series.Observations = append(series.Observations, domain.MonthlyObservation{
			FirmID:     id,
			Month:      month,
			Value:      value,
			SectorCode: t.Value(row, ColSectorCode),
			RegionCode: t.Value(row, ColRegionCode),
		})
	}
	return series, nil
}

func rowError(t *Table, line int, col, msg string, cause error) error {
	return errors.NewParsingError(fmt.Sprintf("%s data row %d column %s: %s", t.Source, line, col, msg), cause).
		WithContext("row", line).
		WithContext("column", col)
}

// NormalizeHeader converts a column name to lower snake case:
// "Firm ID", "firmId" and "FIRM_ID" all become "firm_id".
func NormalizeHeader(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\ufeff")

	var b strings.Builder
	runes := []rune(s)
	pendingSep := false
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if unicode.IsUpper(r) && i > 0 && b.Len() > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					pendingSep = true
				}
			}
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingSep = true
		}
	}
	return b.String()
}

// ParseMonth accepts YYYY-MM-DD, YYYY-MM or RFC 3339 and truncates to the month start in UTC.
func ParseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.MonthStart(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized month %q", s)
}

// IsMissing reports whether a cell denotes a missing value.
func IsMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "na", "n/a", "nan", "null":
		return true
	}
	return false
}

func parseFloatCell(s string) (*float64, error) {
	if IsMissing(s) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil, err
	}
	return domain.Float(v), nil
}

func parseIntCell(s string) (*int, error) {
	f, err := parseFloatCell(s)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) {
		return nil, fmt.Errorf("%q is not a whole number", s)
	}
	return domain.Int(int(*f)), nil
}
