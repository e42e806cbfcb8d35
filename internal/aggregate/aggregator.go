package aggregate

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"sbscli/pkg/contracts/domain"
)

// Tables holds the summary rows of every aggregation level.
type Tables map[domain.AggregationLevel][]domain.IndicatorSummary

// Rows returns the total number of summary rows.
func (t Tables) Rows() int {
	n := 0
	for _, rows := range t {
		n += len(rows)
	}
	return n
}

// Aggregator summarizes the derived panel by year, sector and region.
type Aggregator struct {
	logger *slog.Logger
	levels []domain.AggregationLevel
}

// NewAggregator creates an aggregator for the given levels, or all levels when none are given.
func NewAggregator(logger *slog.Logger, levels ...domain.AggregationLevel) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(levels) == 0 {
		levels = domain.AllLevels()
	}
	return &Aggregator{logger: logger, levels: levels}
}

// Aggregate computes every configured level concurrently. Each level is an
// independent pass over the panel.
func (a *Aggregator) Aggregate(ctx context.Context, panel []domain.PanelRecord) (Tables, error) {
	tables := make(Tables, len(a.levels))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, level := range a.levels {
		level := level
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows := Summarize(level, panel)

			mu.Lock()
			tables[level] = rows
			mu.Unlock()

			a.logger.DebugContext(gctx, "Aggregation level computed",
				slog.String("level", string(level)),
				slog.Int("groups", len(rows)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "Panel aggregated",
		slog.Int("panel_rows", len(panel)),
		slog.Int("levels", len(tables)),
		slog.Int("summary_rows", tables.Rows()))
	return tables, nil
}

type groupKey struct {
	year   int
	sector string
	region string
}

type accumulator struct {
	obs       int
	firms     map[string]struct{}
	turnover  float64
	employees float64
	prodSum   float64
	prodN     int
}

// Summarize computes the summary rows of one level, sorted by key. Missing
// values are excluded from sums and means; a group whose values are all
// missing has zero totals and a nil mean productivity.
func Summarize(level domain.AggregationLevel, panel []domain.PanelRecord) []domain.IndicatorSummary {
	groups := make(map[groupKey]*accumulator)
	for _, r := range panel {
		k := groupKey{year: r.Month.Year()}
		if level.HasSector() {
			k.sector = r.SectorCode
		}
		if level.HasRegion() {
			k.region = r.RegionCode
		}

		acc, ok := groups[k]
		if !ok {
			acc = &accumulator{firms: make(map[string]struct{})}
			groups[k] = acc
		}
		acc.obs++
		acc.firms[r.FirmID] = struct{}{}
		if v := r.TurnoverMonthly; v != nil && finite(*v) {
			acc.turnover += *v
		}
		if v := r.EmployeesMonthly; v != nil && finite(*v) {
			acc.employees += *v
		}
		if v := r.Productivity; v != nil && finite(*v) {
			acc.prodSum += *v
			acc.prodN++
		}
	}

	out := make([]domain.IndicatorSummary, 0, len(groups))
	for k, acc := range groups {
		nFirms := len(acc.firms)
		s := domain.IndicatorSummary{
			Level:               level,
			Year:                k.year,
			SectorCode:          k.sector,
			RegionCode:          k.region,
			NObs:                acc.obs,
			NFirms:              nFirms,
			TotalTurnover:       acc.turnover,
			AvgTurnoverPerFirm:  acc.turnover / float64(nFirms),
			TotalEmployees:      acc.employees,
			AvgEmployeesPerFirm: acc.employees / float64(nFirms),
		}
		if acc.prodN > 0 {
			s.MeanProductivity = domain.Float(acc.prodSum / float64(acc.prodN))
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// Less orders summary rows by year, sector and region.
func Less(a, b domain.IndicatorSummary) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.SectorCode != b.SectorCode {
		return a.SectorCode < b.SectorCode
	}
	return a.RegionCode < b.RegionCode
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
