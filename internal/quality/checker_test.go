package quality

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbscli/internal/errors"
	"sbscli/internal/testutil"
	"sbscli/pkg/contracts/domain"
)

func issueByCode(r domain.Report, code string) *domain.Issue {
	for i := range r.Issues {
		if r.Issues[i].Code == code {
			return &r.Issues[i]
		}
	}
	return nil
}

func TestCheckCleaned(t *testing.T) {
	start := testutil.Month(2023, time.January)
	emp := testutil.Series(domain.MeasureEmployment,
		testutil.Observations("F1", start, testutil.F(5), testutil.F(0.5), testutil.F(6)),
		testutil.Observations("F2", start, nil, nil),
	)
	turn := testutil.Series(domain.MeasureTurnover,
		testutil.Observations("F1", start, testutil.F(100), testutil.F(100), testutil.F(100)),
	)

	logger, handler := testutil.NewTestLogger(t)
	report, err := NewChecker(logger, DefaultOptions()).CheckCleaned(context.Background(), emp, turn)
	require.NoError(t, err)

	low := issueByCode(report, domain.CodeLowEmployment)
	require.NotNil(t, low)
	assert.Equal(t, []string{"F1@2023-02"}, low.Keys)
	assert.Equal(t, StageCleaned, low.Stage)

	empty := issueByCode(report, domain.CodeEmptySeries)
	require.NotNil(t, empty)
	assert.Equal(t, []string{"F2"}, empty.Keys)
	assert.Equal(t, "employment", empty.Source)

	assert.True(t, handler.Contains(slog.LevelWarn, "Data quality warning"))
}

func TestCheckPanel(t *testing.T) {
	start := testutil.Month(2023, time.January)
	panel := testutil.PanelRows("F1", "C10", "R1", start,
		[]*float64{testutil.F(1), testutil.F(2), testutil.F(3), testutil.F(4)},
		[]*float64{testutil.F(10), testutil.F(20), testutil.F(30), nil},
	)
	panel[0].Productivity = testutil.F(10)
	panel[1].Productivity = testutil.F(2e7)
	panel[2].Productivity = testutil.F(-1)

	report, err := NewChecker(nil, DefaultOptions()).CheckPanel(context.Background(), panel)
	require.NoError(t, err)

	implausible := issueByCode(report, domain.CodeImplausibleProduct)
	require.NotNil(t, implausible)
	assert.Equal(t, 2, implausible.Count)
	assert.Equal(t, []string{"F1@2023-02", "F1@2023-03"}, implausible.Keys)

	missing := issueByCode(report, domain.CodeMissingTurnover)
	require.NotNil(t, missing)
	assert.Equal(t, domain.IssueInformational, missing.Kind)
	assert.Equal(t, 1, missing.Count)

	corr := issueByCode(report, domain.CodeEmploymentTurnoverCor)
	require.NotNil(t, corr)
	require.NotNil(t, corr.Value)
	assert.InDelta(t, 1.0, *corr.Value, 1e-12)
	assert.Equal(t, 3, corr.Count)
}

func TestCheckPanel_AbortIgnoresInformational(t *testing.T) {
	start := testutil.Month(2023, time.January)
	panel := testutil.PanelRows("F1", "C10", "R1", start,
		[]*float64{testutil.F(1), testutil.F(2)},
		[]*float64{nil, testutil.F(20)},
	)

	opts := DefaultOptions()
	opts.Policy = domain.PolicyAbort
	report, err := NewChecker(nil, opts).CheckPanel(context.Background(), panel)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Count(domain.IssueDataQuality))
	assert.Equal(t, 2, report.Count(domain.IssueInformational))

	panel[1].Productivity = testutil.F(-5)
	_, err = NewChecker(nil, opts).CheckPanel(context.Background(), panel)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeDataQuality))
}

func TestCheckSummaries(t *testing.T) {
	nan := math.NaN()
	tables := map[domain.AggregationLevel][]domain.IndicatorSummary{
		domain.LevelYear: {
			{Level: domain.LevelYear, Year: 2023, NObs: 12, NFirms: 1, TotalTurnover: 100, AvgTurnoverPerFirm: 100},
		},
		domain.LevelYearSector: {
			{Level: domain.LevelYearSector, Year: 2023, SectorCode: "C10", NObs: 1, NFirms: 2, TotalTurnover: -5},
			{Level: domain.LevelYearSector, Year: 2023, SectorCode: "G47", NObs: 3, NFirms: 1, MeanProductivity: &nan},
		},
	}

	report, err := NewChecker(nil, DefaultOptions()).CheckSummaries(context.Background(), tables)
	require.NoError(t, err)
	require.Len(t, report.Issues, 3)

	neg := issueByCode(report, domain.CodeNegativeTotal)
	require.NotNil(t, neg)
	assert.Equal(t, []string{"2023/C10"}, neg.Keys)
	assert.Equal(t, "year_sector", neg.Source)

	over := issueByCode(report, domain.CodeFirmCountExceedsObs)
	require.NotNil(t, over)
	assert.Equal(t, []string{"2023/C10"}, over.Keys)

	nonFinite := issueByCode(report, domain.CodeNonFiniteMean)
	require.NotNil(t, nonFinite)
	assert.Equal(t, []string{"2023/G47"}, nonFinite.Keys)
}

func TestSummaryKey(t *testing.T) {
	tests := []struct {
		s    domain.IndicatorSummary
		want string
	}{
		{domain.IndicatorSummary{Level: domain.LevelYear, Year: 2022, SectorCode: "x"}, "2022"},
		{domain.IndicatorSummary{Level: domain.LevelYearRegion, Year: 2022, RegionCode: "R1"}, "2022/R1"},
		{domain.IndicatorSummary{Level: domain.LevelYearSectorRegion, Year: 2022, SectorCode: "C10", RegionCode: "R1"}, "2022/C10/R1"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, SummaryKey(tt.s))
		})
	}
}

func TestPearson(t *testing.T) {
	tests := []struct {
		name   string
		x, y   []float64
		want   float64
		wantOK bool
	}{
		{"perfect positive", []float64{1, 2, 3}, []float64{2, 4, 6}, 1, true},
		{"perfect negative", []float64{1, 2, 3}, []float64{3, 2, 1}, -1, true},
		{"constant side", []float64{1, 1, 1}, []float64{1, 2, 3}, 0, false},
		{"single pair", []float64{1}, []float64{1}, 0, false},
		{"length mismatch", []float64{1, 2}, []float64{1}, 0, false},
		{"non-finite skipped", []float64{1, 2, math.Inf(1), 3}, []float64{1, 2, 5, 3}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := Pearson(tt.x, tt.y)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, r, 1e-12)
		})
	}
}
