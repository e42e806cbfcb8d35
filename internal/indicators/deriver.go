package indicators

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"sbscli/internal/config"
	"sbscli/internal/dataprocessing"
	"sbscli/pkg/contracts/domain"
)

// Options configures indicator derivation.
type Options struct {
	LagMode LagMode
	Workers int
}

// Deriver computes the per-firm time-series indicators of the panel.
type Deriver struct {
	logger *slog.Logger
	opts   Options
}

// NewDeriver creates an indicator deriver
func NewDeriver(logger *slog.Logger, opts Options) *Deriver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LagMode == "" {
		opts.LagMode = LagCalendar
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Deriver{logger: logger, opts: opts}
}

// Derive returns a copy of panel, sorted by firm and month, with TurnoverYoY,
// EmpGrowth, Productivity, SeasonalIndex, MonthNum and Year filled in.
// Undefined indicators are nil.
func (d *Deriver) Derive(ctx context.Context, panel []domain.PanelRecord) ([]domain.PanelRecord, error) {
	out := make([]domain.PanelRecord, len(panel))
	for i, r := range panel {
		r.EmployeesMonthly = domain.CopyFloat(r.EmployeesMonthly)
		r.TurnoverMonthly = domain.CopyFloat(r.TurnoverMonthly)
		r.EmployeesFirm = domain.CopyInt(r.EmployeesFirm)
		r.FoundationYear = domain.CopyInt(r.FoundationYear)
		out[i] = r
	}
	sort.SliceStable(out, func(i, j int) bool { return domain.PanelLess(out[i], out[j]) })

	bounds := firmBounds(out)
	err := dataprocessing.ForEachPartition(ctx, len(bounds), d.opts.Workers, func(ctx context.Context, lo, hi int) error {
		for _, b := range bounds[lo:hi] {
			deriveFirm(NewFirmSeries(out[b[0]:b[1]]), d.opts.LagMode)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var yoy, growth, productivity int
	for _, r := range out {
		if r.TurnoverYoY != nil {
			yoy++
		}
		if r.EmpGrowth != nil {
			growth++
		}
		if r.Productivity != nil {
			productivity++
		}
	}
	d.logger.InfoContext(ctx, "Indicators derived",
		slog.Int("rows", len(out)),
		slog.Int("firms", len(bounds)),
		slog.String("lag_mode", string(d.opts.LagMode)),
		slog.Int("turnover_yoy", yoy),
		slog.Int("emp_growth", growth),
		slog.Int("productivity", productivity))
	return out, nil
}

// firmBounds returns the [start, end) row range of every firm in a sorted panel.
func firmBounds(panel []domain.PanelRecord) [][2]int {
	var bounds [][2]int
	start := 0
	for i := 1; i <= len(panel); i++ {
		if i == len(panel) || panel[i].FirmID != panel[start].FirmID {
			bounds = append(bounds, [2]int{start, i})
			start = i
		}
	}
	return bounds
}

func deriveFirm(s *FirmSeries, mode LagMode) {
	mean := meanTurnover(s)

	for i := 0; i < s.Len(); i++ {
		row := s.Row(i)
		row.Year = row.Month.Year()
		row.MonthNum = int(row.Month.Month())

		row.TurnoverYoY = nil
		if lag, ok := s.Lag(i, config.AnnualLag, mode); ok {
			row.TurnoverYoY = GrowthRate(row.TurnoverMonthly, lag.TurnoverMonthly)
		}
		row.EmpGrowth = nil
		if lag, ok := s.Lag(i, config.MonthlyLag, mode); ok {
			row.EmpGrowth = GrowthRate(row.EmployeesMonthly, lag.EmployeesMonthly)
		}
		row.Productivity = Ratio(row.TurnoverMonthly, row.EmployeesMonthly)
		row.SeasonalIndex = Ratio(row.TurnoverMonthly, mean)
	}
}

func meanTurnover(s *FirmSeries) *float64 {
	var sum float64
	n := 0
	for i := 0; i < s.Len(); i++ {
		if v := s.Row(i).TurnoverMonthly; v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return domain.Float(sum / float64(n))
}

// GrowthRate returns (current - previous) / previous, or nil when either is
// missing, previous is zero, or the result is not finite.
func GrowthRate(current, previous *float64) *float64 {
	if current == nil || previous == nil || *previous == 0 {
		return nil
	}
	return Ratio(domain.Float(*current-*previous), previous)
}

// Ratio returns num / den, or nil when either is missing, den is zero, or
// the result is not finite.
func Ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	r := *num / *den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	return &r
}
