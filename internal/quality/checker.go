package quality

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"sbscli/internal/errors"
	"sbscli/internal/validation"
	"sbscli/pkg/contracts/domain"
)

// Stage names used on issues raised by the checker.
const (
	StageCleaned   = "check_cleaned"
	StagePanel     = "check_panel"
	StageSummaries = "check_summaries"
)

// maxIssueKeys bounds the keys carried on a single issue. Count always holds the full total.
const maxIssueKeys = 50

// Options configures the plausibility bounds.
type Options struct {
	MinEmployment   float64
	MaxProductivity float64
	Policy          domain.Policy
}

// DefaultOptions returns the standard bounds with the warn policy.
func DefaultOptions() Options {
	return Options{
		MinEmployment:   1,
		MaxProductivity: 1e7,
		Policy:          domain.PolicyWarn,
	}
}

// Checker raises non-fatal diagnostics after cleaning, derivation and aggregation.
type Checker struct {
	logger *slog.Logger
	opts   Options
}

// NewChecker creates a consistency checker
func NewChecker(logger *slog.Logger, opts Options) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Policy == "" {
		opts.Policy = domain.PolicyWarn
	}
	return &Checker{logger: logger, opts: opts}
}

// CheckCleaned flags implausibly low employment and firms whose series are
// still entirely missing after cleaning.
func (c *Checker) CheckCleaned(ctx context.Context, employment, turnover domain.Series) (domain.Report, error) {
	report := domain.Report{Stage: StageCleaned}

	var low []string
	for _, obs := range employment.Observations {
		if obs.Value != nil && *obs.Value < c.opts.MinEmployment {
			low = append(low, validation.FormatKey(obs.Key()))
		}
	}
	if len(low) > 0 {
		report.Add(domain.Issue{
			Kind:    domain.IssueDataQuality,
			Code:    domain.CodeLowEmployment,
			Source:  string(domain.MeasureEmployment),
			Message: fmt.Sprintf("%d employment values below %g", len(low), c.opts.MinEmployment),
			Count:   len(low),
			Keys:    limitKeys(low),
		})
	}

	for _, s := range []domain.Series{employment, turnover} {
		if empty := emptyFirms(s); len(empty) > 0 {
			report.Add(domain.Issue{
				Kind:    domain.IssueDataQuality,
				Code:    domain.CodeEmptySeries,
				Source:  string(s.Measure),
				Message: fmt.Sprintf("%d firms have no %s values", len(empty), s.Measure),
				Count:   len(empty),
				Keys:    limitKeys(empty),
			})
		}
	}

	return c.finish(ctx, report)
}

// CheckPanel flags implausible productivity and reports the employees/turnover
// correlation and the number of rows without turnover.
func (c *Checker) CheckPanel(ctx context.Context, panel []domain.PanelRecord) (domain.Report, error) {
	report := domain.Report{Stage: StagePanel}

	var implausible []string
	var emp, turn []float64
	missingTurnover := 0
	for _, row := range panel {
		if p := row.Productivity; p != nil && (*p < 0 || *p > c.opts.MaxProductivity) {
			implausible = append(implausible, validation.FormatKey(row.Key()))
		}
		if row.TurnoverMonthly == nil {
			missingTurnover++
		}
		if row.EmployeesMonthly != nil && row.TurnoverMonthly != nil {
			emp = append(emp, *row.EmployeesMonthly)
			turn = append(turn, *row.TurnoverMonthly)
		}
	}

	if len(implausible) > 0 {
		report.Add(domain.Issue{
			Kind:    domain.IssueDataQuality,
			Code:    domain.CodeImplausibleProduct,
			Message: fmt.Sprintf("%d rows with productivity outside [0, %g]", len(implausible), c.opts.MaxProductivity),
			Count:   len(implausible),
			Keys:    limitKeys(implausible),
		})
	}

	if missingTurnover > 0 {
		report.Add(domain.Issue{
			Kind:    domain.IssueInformational,
			Code:    domain.CodeMissingTurnover,
			Message: fmt.Sprintf("%d of %d panel rows have no turnover", missingTurnover, len(panel)),
			Count:   missingTurnover,
		})
	}

	corr := domain.Issue{
		Kind:  domain.IssueInformational,
		Code:  domain.CodeEmploymentTurnoverCor,
		Count: len(emp),
	}
	if r, ok := Pearson(emp, turn); ok {
		corr.Value = domain.Float(r)
		corr.Message = fmt.Sprintf("employees/turnover correlation %.4f over %d rows", r, len(emp))
	} else {
		corr.Message = fmt.Sprintf("employees/turnover correlation undefined over %d rows", len(emp))
	}
	report.Add(corr)

	return c.finish(ctx, report)
}

// CheckSummaries flags negative totals, groups with more firms than
// observations, and non-finite means.
func (c *Checker) CheckSummaries(ctx context.Context, tables map[domain.AggregationLevel][]domain.IndicatorSummary) (domain.Report, error) {
	report := domain.Report{Stage: StageSummaries}

	levels := make([]domain.AggregationLevel, 0, len(tables))
	for level := range tables {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	for _, level := range levels {
		var negative, overcount, nonFinite []string
		for _, s := range tables[level] {
			key := SummaryKey(s)
			if s.TotalTurnover < 0 || s.TotalEmployees < 0 {
				negative = append(negative, key)
			}
			if s.NFirms > s.NObs {
				overcount = append(overcount, key)
			}
			if !finite(s.AvgTurnoverPerFirm) || !finite(s.AvgEmployeesPerFirm) ||
				(s.MeanProductivity != nil && !finite(*s.MeanProductivity)) {
				nonFinite = append(nonFinite, key)
			}
		}

		add := func(code string, keys []string, what string) {
			if len(keys) == 0 {
				return
			}
			report.Add(domain.Issue{
				Kind:    domain.IssueDataQuality,
				Code:    code,
				Source:  string(level),
				Message: fmt.Sprintf("%d %s groups with %s", len(keys), level, what),
				Count:   len(keys),
				Keys:    limitKeys(keys),
			})
		}
		add(domain.CodeNegativeTotal, negative, "negative totals")
		add(domain.CodeFirmCountExceedsObs, overcount, "more firms than observations")
		add(domain.CodeNonFiniteMean, nonFinite, "non-finite means")
	}

	return c.finish(ctx, report)
}

// finish logs the report and applies the quality policy.
func (c *Checker) finish(ctx context.Context, report domain.Report) (domain.Report, error) {
	for _, issue := range report.Issues {
		attrs := []any{
			slog.String("stage", issue.Stage),
			slog.String("code", issue.Code),
			slog.Int("count", issue.Count),
		}
		if issue.Source != "" {
			attrs = append(attrs, slog.String("source", issue.Source))
		}
		if issue.Value != nil {
			attrs = append(attrs, slog.Float64("value", *issue.Value))
		}

		if issue.Kind == domain.IssueInformational {
			c.logger.InfoContext(ctx, issue.Message, attrs...)
		} else {
			c.logger.WarnContext(ctx, "Data quality warning", append(attrs, slog.String("detail", issue.Message))...)
		}
	}

	enforced := report.Enforced()
	if c.opts.Policy == domain.PolicyAbort && len(enforced) > 0 {
		return report, errors.NewDataQualityError(
			fmt.Sprintf("%s found %d data quality issues", report.Stage, len(enforced)),
			len(enforced))
	}
	return report, nil
}

// SummaryKey renders the group key of a summary row, e.g. "2023/C10/R1".
func SummaryKey(s domain.IndicatorSummary) string {
	key := fmt.Sprintf("%d", s.Year)
	if s.Level.HasSector() {
		key += "/" + s.SectorCode
	}
	if s.Level.HasRegion() {
		key += "/" + s.RegionCode
	}
	return key
}

func emptyFirms(s domain.Series) []string {
	hasValue := make(map[string]bool)
	for _, obs := range s.Observations {
		if obs.Value != nil {
			hasValue[obs.FirmID] = true
		} else if _, seen := hasValue[obs.FirmID]; !seen {
			hasValue[obs.FirmID] = false
		}
	}

	var empty []string
	for id, ok := range hasValue {
		if !ok {
			empty = append(empty, id)
		}
	}
	sort.Strings(empty)
	return empty
}

func limitKeys(keys []string) []string {
	if len(keys) <= maxIssueKeys {
		return keys
	}
	return keys[:maxIssueKeys]
}
