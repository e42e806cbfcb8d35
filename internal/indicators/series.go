package indicators

import (
	"fmt"

	"sbscli/pkg/contracts/domain"
)

// LagMode selects how "N periods back" is resolved.
type LagMode string

const (
	// LagCalendar looks up the row exactly N calendar months earlier.
	LagCalendar LagMode = "calendar"
	// LagRows takes the row N positions earlier in the firm's sorted rows,
	// whatever its month. Gaps in the series shift the comparison.
	LagRows LagMode = "rows"
)

// ParseLagMode validates a configured lag mode. Empty means calendar.
func ParseLagMode(s string) (LagMode, error) {
	switch LagMode(s) {
	case "", LagCalendar:
		return LagCalendar, nil
	case LagRows:
		return LagRows, nil
	}
	return "", fmt.Errorf("unknown lag mode %q", s)
}

// FirmSeries is the month-ordered panel rows of one firm. Rows are shared
// with the caller's slice, so indicators are written in place.
type FirmSeries struct {
	rows    []domain.PanelRecord
	byMonth map[int]int
}

// NewFirmSeries indexes rows, which must belong to one firm and be sorted by month.
func NewFirmSeries(rows []domain.PanelRecord) *FirmSeries {
	byMonth := make(map[int]int, len(rows))
	for i, r := range rows {
		k := monthIndex(r)
		if _, dup := byMonth[k]; !dup {
			byMonth[k] = i
		}
	}
	return &FirmSeries{rows: rows, byMonth: byMonth}
}

// Len returns the number of rows.
func (s *FirmSeries) Len() int { return len(s.rows) }

// Row returns row i.
func (s *FirmSeries) Row(i int) *domain.PanelRecord { return &s.rows[i] }

// At returns the row back positions before row i.
func (s *FirmSeries) At(i, back int) (*domain.PanelRecord, bool) {
	j := i - back
	if j < 0 || j >= len(s.rows) {
		return nil, false
	}
	return &s.rows[j], true
}

// MonthsBack returns the row dated exactly n calendar months before row i.
func (s *FirmSeries) MonthsBack(i, n int) (*domain.PanelRecord, bool) {
	if i < 0 || i >= len(s.rows) {
		return nil, false
	}
	j, ok := s.byMonth[monthIndex(s.rows[i])-n]
	if !ok {
		return nil, false
	}
	return &s.rows[j], true
}

// Lag resolves the row n periods before row i under mode.
func (s *FirmSeries) Lag(i, n int, mode LagMode) (*domain.PanelRecord, bool) {
	if mode == LagRows {
		return s.At(i, n)
	}
	return s.MonthsBack(i, n)
}

func monthIndex(r domain.PanelRecord) int {
	return r.Month.Year()*12 + int(r.Month.Month()) - 1
}
