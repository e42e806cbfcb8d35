package indicators

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbscli/internal/testutil"
	"sbscli/pkg/contracts/domain"
)

func derive(t *testing.T, mode LagMode, panel []domain.PanelRecord) []domain.PanelRecord {
	t.Helper()
	out, err := NewDeriver(nil, Options{LagMode: mode, Workers: 3}).Derive(context.Background(), panel)
	require.NoError(t, err)
	return out
}

func TestDerive_AnnualLag(t *testing.T) {
	turnover := append(testutil.Constant(12, 100), testutil.F(200))
	panel := testutil.PanelRows("F1", "C10", "R1", testutil.Month(2022, time.January),
		testutil.Constant(13, 5), turnover)

	for _, mode := range []LagMode{LagCalendar, LagRows} {
		t.Run(string(mode), func(t *testing.T) {
			out := derive(t, mode, panel)
			require.Len(t, out, 13)
			for i := 0; i < 12; i++ {
				assert.Nil(t, out[i].TurnoverYoY, "row %d", i+1)
			}
			require.NotNil(t, out[12].TurnoverYoY)
			assert.Equal(t, 1.0, *out[12].TurnoverYoY)
		})
	}
}

func TestDerive_GapHandlingByLagMode(t *testing.T) {
	// January 2022 .. December 2022 with June missing, then January 2023.
	var rows []domain.PanelRecord
	start := testutil.Month(2022, time.January)
	for i := 0; i <= 12; i++ {
		if i == 5 {
			continue
		}
		v := 100.0
		if i == 12 {
			v = 150
		}
		rows = append(rows, domain.PanelRecord{
			FirmID:           "F1",
			Month:            start.AddDate(0, i, 0),
			EmployeesMonthly: testutil.F(1),
			TurnoverMonthly:  testutil.F(v),
		})
	}

	calendar := derive(t, LagCalendar, rows)
	last := calendar[len(calendar)-1]
	require.NotNil(t, last.TurnoverYoY)
	assert.InDelta(t, 0.5, *last.TurnoverYoY, 1e-12)
	// July has no June to compare against
	assert.Nil(t, calendar[5].EmpGrowth)

	byRows := derive(t, LagRows, rows)
	assert.Nil(t, byRows[len(byRows)-1].TurnoverYoY, "only 11 earlier rows exist")
	assert.NotNil(t, byRows[5].EmpGrowth, "rows mode compares July with May")
}

func TestDerive_EmploymentGrowth(t *testing.T) {
	panel := testutil.PanelRows("F1", "C10", "R1", testutil.Month(2023, time.January),
		[]*float64{testutil.F(10), testutil.F(12), nil, testutil.F(6), testutil.F(0), testutil.F(3)},
		testutil.Constant(6, 1))

	out := derive(t, LagCalendar, panel)
	assert.Nil(t, out[0].EmpGrowth)
	assert.InDelta(t, 0.2, *out[1].EmpGrowth, 1e-12)
	assert.Nil(t, out[2].EmpGrowth, "current missing")
	assert.Nil(t, out[3].EmpGrowth, "lag missing")
	assert.InDelta(t, -1.0, *out[4].EmpGrowth, 1e-12)
	assert.Nil(t, out[5].EmpGrowth, "lag zero")
}

func TestDerive_ProductivityDivisionByZero(t *testing.T) {
	panel := testutil.PanelRows("F1", "C10", "R1", testutil.Month(2023, time.January),
		[]*float64{testutil.F(0), nil, testutil.F(4)},
		[]*float64{testutil.F(100), testutil.F(100), nil})

	out := derive(t, LagCalendar, panel)
	for i, r := range out {
		assert.Nil(t, r.Productivity, "row %d", i)
	}

	out = derive(t, LagCalendar, testutil.PanelRows("F1", "C10", "R1", testutil.Month(2023, time.January),
		[]*float64{testutil.F(4)}, []*float64{testutil.F(100)}))
	assert.Equal(t, 25.0, *out[0].Productivity)
}

func TestDerive_SeasonalIndex(t *testing.T) {
	panel := testutil.PanelRows("F1", "C10", "R1", testutil.Month(2023, time.January),
		testutil.Constant(4, 1),
		[]*float64{testutil.F(50), testutil.F(150), nil, testutil.F(100)})
	panel = append(panel, testutil.PanelRows("F2", "C10", "R1", testutil.Month(2023, time.January),
		testutil.Constant(2, 1), []*float64{testutil.F(0), testutil.F(0)})...)
	panel = append(panel, testutil.PanelRows("F3", "C10", "R1", testutil.Month(2023, time.January),
		testutil.Constant(1, 1), []*float64{nil})...)

	out := derive(t, LagCalendar, panel)
	assert.InDelta(t, 0.5, *out[0].SeasonalIndex, 1e-12)
	assert.InDelta(t, 1.5, *out[1].SeasonalIndex, 1e-12)
	assert.Nil(t, out[2].SeasonalIndex)
	assert.InDelta(t, 1.0, *out[3].SeasonalIndex, 1e-12)
	assert.Nil(t, out[4].SeasonalIndex, "zero mean")
	assert.Nil(t, out[6].SeasonalIndex, "no turnover at all")
}

func TestDerive_CalendarFieldsAndOrdering(t *testing.T) {
	panel := []domain.PanelRecord{
		{FirmID: "F2", Month: testutil.Month(2023, time.March)},
		{FirmID: "F1", Month: testutil.Month(2024, time.February)},
		{FirmID: "F1", Month: testutil.Month(2023, time.December)},
	}

	out := derive(t, LagCalendar, panel)
	assert.Equal(t, "F1", out[0].FirmID)
	assert.Equal(t, 2023, out[0].Year)
	assert.Equal(t, 12, out[0].MonthNum)
	assert.Equal(t, 2024, out[1].Year)
	assert.Equal(t, 2, out[1].MonthNum)
	assert.Equal(t, "F2", out[2].FirmID)

	// input order untouched
	assert.Equal(t, "F2", panel[0].FirmID)
}

func TestDerive_FirmsAreIndependent(t *testing.T) {
	start := testutil.Month(2023, time.January)
	panel := append(
		testutil.PanelRows("F1", "C10", "R1", start, testutil.Constant(2, 10), testutil.Constant(2, 1)),
		testutil.PanelRows("F2", "C10", "R1", start.AddDate(0, 1, 0), testutil.Constant(1, 20), testutil.Constant(1, 1))...)

	out := derive(t, LagRows, panel)
	assert.Nil(t, out[2].EmpGrowth, "first row of F2 never looks at F1")
}

func TestDerive_NoInfiniteValues(t *testing.T) {
	panel := testutil.PanelRows("F1", "C10", "R1", testutil.Month(2023, time.January),
		[]*float64{testutil.F(1e-320), testutil.F(1e-320)},
		[]*float64{testutil.F(1e308), testutil.F(1e308)})

	for _, r := range derive(t, LagCalendar, panel) {
		if r.Productivity != nil {
			assert.False(t, math.IsInf(*r.Productivity, 0))
		}
	}
}

func TestGrowthRateAndRatio(t *testing.T) {
	assert.Nil(t, GrowthRate(nil, testutil.F(1)))
	assert.Nil(t, GrowthRate(testutil.F(1), nil))
	assert.Nil(t, GrowthRate(testutil.F(1), testutil.F(0)))
	assert.Equal(t, -0.5, *GrowthRate(testutil.F(1), testutil.F(2)))

	assert.Nil(t, Ratio(testutil.F(1), testutil.F(0)))
	assert.Nil(t, Ratio(nil, testutil.F(2)))
	assert.Equal(t, 0.5, *Ratio(testutil.F(1), testutil.F(2)))

	huge := math.MaxFloat64
	tiny := math.SmallestNonzeroFloat64
	assert.Nil(t, Ratio(&huge, &tiny), "overflow to +Inf")
	neg := -huge
	assert.Nil(t, Ratio(&neg, &tiny), "overflow to -Inf")
	assert.Nil(t, GrowthRate(&huge, &tiny))
}

func TestDerive_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	panel := testutil.PanelRows("F1", "C10", "R1", testutil.Month(2023, time.January), testutil.Constant(2, 1), testutil.Constant(2, 1))

	_, err := NewDeriver(nil, Options{}).Derive(ctx, panel)
	assert.ErrorIs(t, err, context.Canceled)
}
