package testutil

import (
	"time"

	"sbscli/pkg/contracts/domain"
)

// Month returns the first day of the given month in UTC.
func Month(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// F is shorthand for a non-null float.
func F(v float64) *float64 { return domain.Float(v) }

// I is shorthand for a non-null int.
func I(v int) *int { return domain.Int(v) }

// Firm builds a registry row.
func Firm(id, sector, region string) domain.Firm {
	return domain.Firm{
		FirmID:              id,
		SectorCode:          sector,
		RegionCode:          region,
		LegalForm:           "GmbH",
		EmployeesRegistered: I(10),
		FoundationYear:      I(2005),
		RevenueLastYear:     F(1_000_000),
	}
}

// Observations builds consecutive monthly observations for one firm
// starting at start. A nil entry is a missing value.
func Observations(firmID string, start time.Time, values ...*float64) []domain.MonthlyObservation {
	out := make([]domain.MonthlyObservation, len(values))
	for i, v := range values {
		out[i] = domain.MonthlyObservation{
			FirmID: firmID,
			Month:  start.AddDate(0, i, 0),
			Value:  v,
		}
	}
	return out
}

// Series wraps observations as a measure table.
func Series(measure domain.Measure, obs ...[]domain.MonthlyObservation) domain.Series {
	s := domain.Series{Measure: measure}
	for _, o := range obs {
		s.Observations = append(s.Observations, o...)
	}
	return s
}

// Constant returns n copies of v.
func Constant(n int, v float64) []*float64 {
	out := make([]*float64, n)
	for i := range out {
		out[i] = F(v)
	}
	return out
}

// PanelRows builds firm-month panel rows with the given employees and turnover.
// Both slices must have the same length.
func PanelRows(firmID, sector, region string, start time.Time, employees, turnover []*float64) []domain.PanelRecord {
	out := make([]domain.PanelRecord, len(employees))
	for i := range employees {
		out[i] = domain.PanelRecord{
			FirmID:           firmID,
			Month:            start.AddDate(0, i, 0),
			EmployeesMonthly: employees[i],
			TurnoverMonthly:  turnover[i],
			SectorCode:       sector,
			RegionCode:       region,
		}
	}
	return out
}

// SmallDataset is a consistent three-firm input set covering two years.
type SmallDataset struct {
	Firms      []domain.Firm
	Employment domain.Series
	Turnover   domain.Series
}

// NewSmallDataset builds the dataset. Firm F3 has a gap in employment and
// F2 has no turnover in its first month.
func NewSmallDataset() SmallDataset {
	start := Month(2022, time.January)
	firms := []domain.Firm{
		Firm("F1", "C10", "R1"),
		Firm("F2", "C10", "R2"),
		Firm("F3", "G47", "R1"),
	}

	emp := Series(domain.MeasureEmployment,
		Observations("F1", start, Constant(24, 10)...),
		Observations("F2", start, Constant(24, 4)...),
		Observations("F3", start, append([]*float64{F(20), nil}, Constant(22, 22)...)...),
	)

	f2Turnover := append([]*float64{nil}, Constant(23, 8000)...)
	turn := Series(domain.MeasureTurnover,
		Observations("F1", start, Constant(24, 50000)...),
		Observations("F2", start, f2Turnover...),
		Observations("F3", start, Constant(24, 120000)...),
	)

	return SmallDataset{Firms: firms, Employment: emp, Turnover: turn}
}
