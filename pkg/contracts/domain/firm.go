package domain

import (
	"time"
)

// Firm is one row of the business register.
type Firm struct {
	FirmID              string   `json:"firm_id" db:"firm_id" validate:"required"`
	RegionCode          string   `json:"region_code" db:"region_code"`
	SectorCode          string   `json:"sector_code" db:"sector_code"`
	LegalForm           string   `json:"legal_form" db:"legal_form"`
	EmployeesRegistered *int     `json:"employees_registered" db:"employees_registered" validate:"omitempty,min=0"`
	FoundationYear      *int     `json:"foundation_year" db:"foundation_year"`
	RevenueLastYear     *float64 `json:"revenue_last_year" db:"revenue_last_year"`
}

// GroupKey returns the (sector, region) cell used for imputation.
func (f Firm) GroupKey() SectorRegion {
	return SectorRegion{SectorCode: f.SectorCode, RegionCode: f.RegionCode}
}

// SectorRegion identifies a classification cell.
type SectorRegion struct {
	SectorCode string
	RegionCode string
}

// Measure identifies which quantity a monthly series carries.
type Measure string

const (
	MeasureEmployment Measure = "employment"
	MeasureTurnover   Measure = "turnover"
)

// MonthlyObservation is one firm-month value from a survey source.
type MonthlyObservation struct {
	FirmID     string    `json:"firm_id" db:"firm_id"`
	Month      time.Time `json:"month" db:"month"`
	Value      *float64  `json:"value" db:"value"`
	SectorCode string    `json:"sector_code,omitempty" db:"sector_code"`
	RegionCode string    `json:"region_code,omitempty" db:"region_code"`
}

// Key returns the (firm, month) identity of the observation, with the month
// truncated to its first instant.
func (o MonthlyObservation) Key() FirmMonth {
	return FirmMonth{FirmID: o.FirmID, Month: MonthStart(o.Month)}
}

// FirmMonth is the composite key of every monthly table.
type FirmMonth struct {
	FirmID string
	Month  time.Time
}

// Series is a named monthly source table.
type Series struct {
	Measure      Measure
	Observations []MonthlyObservation
}

// FirmIDs returns the distinct firm IDs of the series in first-seen order.
func (s Series) FirmIDs() []string {
	seen := make(map[string]bool, len(s.Observations))
	ids := make([]string, 0)
	for _, obs := range s.Observations {
		if !seen[obs.FirmID] {
			seen[obs.FirmID] = true
			ids = append(ids, obs.FirmID)
		}
	}
	return ids
}

// MonthStart truncates t to the first instant of its calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween returns the number of calendar months from a to b.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
