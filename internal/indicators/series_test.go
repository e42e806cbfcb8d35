package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbscli/internal/testutil"
	"sbscli/pkg/contracts/domain"
)

func TestFirmSeries_Accessors(t *testing.T) {
	rows := []domain.PanelRecord{
		{FirmID: "F1", Month: testutil.Month(2023, time.January)},
		{FirmID: "F1", Month: testutil.Month(2023, time.February)},
		{FirmID: "F1", Month: testutil.Month(2023, time.April)},
	}
	s := NewFirmSeries(rows)
	require.Equal(t, 3, s.Len())

	prev, ok := s.At(2, 1)
	require.True(t, ok)
	assert.Equal(t, time.February, prev.Month.Month())

	_, ok = s.At(0, 1)
	assert.False(t, ok)

	_, ok = s.MonthsBack(2, 1)
	assert.False(t, ok, "March is missing")

	jan, ok := s.MonthsBack(2, 3)
	require.True(t, ok)
	assert.Equal(t, time.January, jan.Month.Month())

	viaLag, ok := s.Lag(2, 1, LagRows)
	require.True(t, ok)
	assert.Same(t, prev, viaLag)
}

func TestFirmSeries_MonthsBackAcrossYears(t *testing.T) {
	rows := []domain.PanelRecord{
		{FirmID: "F1", Month: testutil.Month(2022, time.November)},
		{FirmID: "F1", Month: testutil.Month(2023, time.November)},
	}
	s := NewFirmSeries(rows)

	lag, ok := s.MonthsBack(1, 12)
	require.True(t, ok)
	assert.Equal(t, 2022, lag.Month.Year())
}

func TestParseLagMode(t *testing.T) {
	for in, want := range map[string]LagMode{"": LagCalendar, "calendar": LagCalendar, "rows": LagRows} {
		got, err := ParseLagMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLagMode("weekly")
	assert.Error(t, err)
}
