package domain

// AggregationLevel names one grouping of the panel.
type AggregationLevel string

const (
	LevelYear             AggregationLevel = "year"
	LevelYearSector       AggregationLevel = "year_sector"
	LevelYearRegion       AggregationLevel = "year_region"
	LevelYearSectorRegion AggregationLevel = "year_sector_region"
)

// AllLevels lists every aggregation level in output order.
func AllLevels() []AggregationLevel {
	return []AggregationLevel{LevelYear, LevelYearSector, LevelYearRegion, LevelYearSectorRegion}
}

// HasSector reports whether the level groups by sector.
func (l AggregationLevel) HasSector() bool {
	return l == LevelYearSector || l == LevelYearSectorRegion
}

// HasRegion reports whether the level groups by region.
func (l AggregationLevel) HasRegion() bool {
	return l == LevelYearRegion || l == LevelYearSectorRegion
}

// IsValid reports whether l is a known level.
func (l AggregationLevel) IsValid() bool {
	switch l {
	case LevelYear, LevelYearSector, LevelYearRegion, LevelYearSectorRegion:
		return true
	}
	return false
}

// IndicatorSummary is one group of an aggregation level.
// SectorCode and RegionCode are empty when they are not part of the level key.
type IndicatorSummary struct {
	Level               AggregationLevel `json:"level" db:"level"`
	Year                int              `json:"year" db:"year"`
	SectorCode          string           `json:"sector_code,omitempty" db:"sector_code"`
	RegionCode          string           `json:"region_code,omitempty" db:"region_code"`
	NObs                int              `json:"n_obs" db:"n_obs"`
	NFirms              int              `json:"n_firms" db:"n_firms"`
	TotalTurnover       float64          `json:"total_turnover" db:"total_turnover"`
	AvgTurnoverPerFirm  float64          `json:"avg_turnover_per_firm" db:"avg_turnover_per_firm"`
	TotalEmployees      float64          `json:"total_employees" db:"total_employees"`
	AvgEmployeesPerFirm float64          `json:"avg_employees_per_firm" db:"avg_employees_per_firm"`
	MeanProductivity    *float64         `json:"mean_productivity" db:"mean_productivity"`
}
