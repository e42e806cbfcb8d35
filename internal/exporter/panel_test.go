package exporter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbscli/internal/config"
	"sbscli/internal/testutil"
	"sbscli/pkg/contracts/domain"
)

func TestPanelRow(t *testing.T) {
	r := domain.PanelRecord{
		FirmID:           "F1",
		Month:            testutil.Month(2023, time.March),
		EmployeesMonthly: testutil.F(12),
		TurnoverMonthly:  nil,
		EmployeesFirm:    testutil.I(10),
		SectorCode:       "C10",
		RegionCode:       "R1",
		LegalForm:        "GmbH",
		FoundationYear:   nil,
		EmpGrowth:        testutil.F(0.2),
		MonthNum:         3,
		Year:             2023,
	}

	row := PanelRow(r)
	require.Len(t, row, len(PanelHeaders))
	assert.Equal(t, []string{
		"F1", "2023-03-01", "12", "", "10", "C10", "R1", "GmbH", "",
		"", "0.2", "", "", "3", "2023",
	}, row)
}

func TestPanelExporter_WritePanel(t *testing.T) {
	paths := config.NewPaths(t.TempDir(), config.PathsConfig{OutputDir: "out"})
	panel := testutil.PanelRows("F1", "C10", "R1", testutil.Month(2023, time.January),
		testutil.Constant(3, 2), []*float64{testutil.F(10), nil, testutil.F(30)})

	path, err := NewPanelExporter(paths, nil).WritePanel(context.Background(), panel)
	require.NoError(t, err)
	assert.Equal(t, paths.PanelCSV, path)

	records := readCSV(t, path)
	require.Len(t, records, 4)
	assert.Equal(t, PanelHeaders, records[0])
	assert.Equal(t, "2023-02-01", records[2][1])
	assert.Equal(t, "", records[2][3], "missing turnover is an empty cell")
}

func TestPanelExporter_Cancelled(t *testing.T) {
	paths := config.NewPaths(t.TempDir(), config.PathsConfig{OutputDir: "out"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPanelExporter(paths, nil).WritePanel(ctx, testutil.PanelRows("F1", "C10", "R1",
		testutil.Month(2023, time.January), testutil.Constant(1, 1), testutil.Constant(1, 1)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, paths.PanelCSV)
}
