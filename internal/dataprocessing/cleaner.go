package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"sbscli/internal/config"
	"sbscli/pkg/contracts/domain"
)

// CleanerOptions configures the cleaning rules.
type CleanerOptions struct {
	// ReferenceYear is the upper bound of plausible foundation years.
	ReferenceYear int
	// Workers bounds the goroutines used for per-firm series cleaning.
	Workers int
}

// CleaningStats counts the corrections applied per rule.
type CleaningStats struct {
	RevenueSignFlipped   int `json:"revenue_sign_flipped"`
	EmployeesImputed     int `json:"employees_imputed"`
	EmployeesUnimputable int `json:"employees_unimputable"`
	FoundationYearNulled int `json:"foundation_year_nulled"`
	NegativeValuesNulled int `json:"negative_values_nulled"`
	ValuesInterpolated   int `json:"values_interpolated"`
	EmptySeries          int `json:"empty_series"`
}

// Add accumulates other into s.
func (s *CleaningStats) Add(other CleaningStats) {
	s.RevenueSignFlipped += other.RevenueSignFlipped
	s.EmployeesImputed += other.EmployeesImputed
	s.EmployeesUnimputable += other.EmployeesUnimputable
	s.FoundationYearNulled += other.FoundationYearNulled
	s.NegativeValuesNulled += other.NegativeValuesNulled
	s.ValuesInterpolated += other.ValuesInterpolated
	s.EmptySeries += other.EmptySeries
}

// Total returns the number of corrections of every kind.
func (s CleaningStats) Total() int {
	return s.RevenueSignFlipped + s.EmployeesImputed + s.FoundationYearNulled +
		s.NegativeValuesNulled + s.ValuesInterpolated
}

// Cleaner applies the rule-based corrections to the registry and the monthly sources.
type Cleaner struct {
	logger *slog.Logger
	opts   CleanerOptions
}

// NewCleaner creates a cleaning engine. A zero ReferenceYear means the current year.
func NewCleaner(logger *slog.Logger, opts CleanerOptions) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ReferenceYear == 0 {
		opts.ReferenceYear = time.Now().Year()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Cleaner{logger: logger, opts: opts}
}

// CleanFirms returns a corrected copy of the registry: negative revenue is
// made positive, missing head counts take the rounded median of their
// (sector, region) group, and implausible foundation years are nulled.
func (c *Cleaner) CleanFirms(ctx context.Context, firms []domain.Firm) ([]domain.Firm, CleaningStats) {
	var stats CleaningStats
	out := make([]domain.Firm, len(firms))

	for i, f := range firms {
		f.EmployeesRegistered = domain.CopyInt(f.EmployeesRegistered)
		f.FoundationYear = domain.CopyInt(f.FoundationYear)
		f.RevenueLastYear = domain.CopyFloat(f.RevenueLastYear)

		if f.RevenueLastYear != nil && *f.RevenueLastYear < 0 {
			*f.RevenueLastYear = math.Abs(*f.RevenueLastYear)
			stats.RevenueSignFlipped++
		}
		if y := f.FoundationYear; y != nil && (*y < config.MinFoundationYear || *y > c.opts.ReferenceYear) {
			f.FoundationYear = nil
			stats.FoundationYearNulled++
		}
		out[i] = f
	}

	medians := groupMedians(out)
	for i := range out {
		if out[i].EmployeesRegistered != nil {
			continue
		}
		if m, ok := medians[out[i].GroupKey()]; ok {
			out[i].EmployeesRegistered = domain.Int(m)
			stats.EmployeesImputed++
		} else {
			stats.EmployeesUnimputable++
		}
	}

	c.logger.InfoContext(ctx, "Registry cleaned",
		slog.Int("firms", len(out)),
		slog.Int("revenue_sign_flipped", stats.RevenueSignFlipped),
		slog.Int("employees_imputed", stats.EmployeesImputed),
		slog.Int("employees_unimputable", stats.EmployeesUnimputable),
		slog.Int("foundation_year_nulled", stats.FoundationYearNulled),
		slog.Int("reference_year", c.opts.ReferenceYear))
	return out, stats
}

// groupMedians computes the median registered head count of every
// (sector, region) cell with at least one known value, rounded to the
// nearest whole employee.
func groupMedians(firms []domain.Firm) map[domain.SectorRegion]int {
	groups := make(map[domain.SectorRegion][]float64)
	for _, f := range firms {
		if f.EmployeesRegistered != nil {
			k := f.GroupKey()
			groups[k] = append(groups[k], float64(*f.EmployeesRegistered))
		}
	}

	medians := make(map[domain.SectorRegion]int, len(groups))
	for k, values := range groups {
		medians[k] = int(math.Round(Median(values)))
	}
	return medians
}

// Median returns the median of values, averaging the two middle elements
// for even lengths. It returns NaN for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// CleanSeries returns a cleaned copy of a monthly source ordered by firm and
// month. Negative employment is nulled, then every firm's gaps are filled by
// time-weighted linear interpolation with flat extrapolation at the edges.
// Firms with no known value are kept unchanged and reported.
func (c *Cleaner) CleanSeries(ctx context.Context, s domain.Series) (domain.Series, CleaningStats, error) {
	firms := SplitByFirm(s.Observations)
	perFirm := make([]CleaningStats, len(firms))

	err := ForEachPartition(ctx, len(firms), c.opts.Workers, func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			perFirm[i] = c.cleanFirmSeries(ctx, s.Measure, firms[i])
		}
		return nil
	})
	if err != nil {
		return domain.Series{Measure: s.Measure}, CleaningStats{}, err
	}

	var stats CleaningStats
	out := domain.Series{Measure: s.Measure, Observations: make([]domain.MonthlyObservation, 0, len(s.Observations))}
	for i, fs := range firms {
		stats.Add(perFirm[i])
		out.Observations = append(out.Observations, fs.Observations...)
	}

	c.logger.InfoContext(ctx, "Series cleaned",
		slog.String("measure", string(s.Measure)),
		slog.Int("firms", len(firms)),
		slog.Int("observations", len(out.Observations)),
		slog.Int("negative_values_nulled", stats.NegativeValuesNulled),
		slog.Int("values_interpolated", stats.ValuesInterpolated),
		slog.Int("empty_series", stats.EmptySeries))
	return out, stats, nil
}

func (c *Cleaner) cleanFirmSeries(ctx context.Context, measure domain.Measure, fs FirmSeries) CleaningStats {
	var stats CleaningStats

	hasValue := false
	for i := range fs.Observations {
		v := fs.Observations[i].Value
		if v == nil {
			continue
		}
		if measure == domain.MeasureEmployment && *v < 0 {
			fs.Observations[i].Value = nil
			stats.NegativeValuesNulled++
			continue
		}
		hasValue = true
	}

	if !hasValue {
		stats.EmptySeries++
		c.logger.WarnContext(ctx, "Series has no values to interpolate",
			slog.String("firm_id", fs.FirmID),
			slog.String("measure", string(measure)),
			slog.Int("observations", len(fs.Observations)))
		return stats
	}

	stats.ValuesInterpolated = interpolateSeries(fs.Observations)
	return stats
}
