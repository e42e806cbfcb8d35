package domain

import (
	"time"
)

// PanelRecord is one firm-month of the integrated panel.
type PanelRecord struct {
	FirmID           string    `json:"firm_id" db:"firm_id"`
	Month            time.Time `json:"month" db:"month"`
	EmployeesMonthly *float64  `json:"employees_monthly" db:"employees_monthly"`
	TurnoverMonthly  *float64  `json:"turnover_monthly" db:"turnover_monthly"`
	EmployeesFirm    *int      `json:"employees_firm" db:"employees_firm"`
	SectorCode       string    `json:"sector_code" db:"sector_code"`
	RegionCode       string    `json:"region_code" db:"region_code"`
	LegalForm        string    `json:"legal_form" db:"legal_form"`
	FoundationYear   *int      `json:"foundation_year" db:"foundation_year"`

	// Derived indicators
	TurnoverYoY   *float64 `json:"turnover_yoy" db:"turnover_yoy"`
	EmpGrowth     *float64 `json:"emp_growth" db:"emp_growth"`
	Productivity  *float64 `json:"productivity" db:"productivity"`
	SeasonalIndex *float64 `json:"seasonal_index" db:"seasonal_index"`
	MonthNum      int      `json:"month_num" db:"month_num"`
	Year          int      `json:"year" db:"year"`
}

// Key returns the (firm, month) identity of the record.
func (p PanelRecord) Key() FirmMonth {
	return FirmMonth{FirmID: p.FirmID, Month: MonthStart(p.Month)}
}

// PanelLess orders records by firm and then month.
func PanelLess(a, b PanelRecord) bool {
	if a.FirmID != b.FirmID {
		return a.FirmID < b.FirmID
	}
	return a.Month.Before(b.Month)
}
