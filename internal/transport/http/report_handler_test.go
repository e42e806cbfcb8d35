package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sbscli/internal/errors"
	"sbscli/internal/services"
	"sbscli/internal/testutil"
	"sbscli/pkg/contracts/domain"
)

func newTestRouter(t *testing.T, st *testutil.MemoryStore) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	h := NewReportHandler(services.NewReportService(st, logger), nil, logger)
	r := chi.NewRouter()
	r.Mount("/api/v1", h.Routes())
	return r
}

func seededStore() *testutil.MemoryStore {
	start := testutil.Month(2023, time.January)
	return &testutil.MemoryStore{
		Summaries: []domain.IndicatorSummary{
			{Level: domain.LevelYear, Year: 2022, NFirms: 3, TotalTurnover: 1000},
			{Level: domain.LevelYear, Year: 2023, NFirms: 4, TotalTurnover: 1500},
			{Level: domain.LevelYearSector, Year: 2023, SectorCode: "C10", NFirms: 2},
			{Level: domain.LevelYearSector, Year: 2023, SectorCode: "G47", NFirms: 2},
		},
		Panel: testutil.PanelRows("F1", "C10", "R1", start,
			testutil.Constant(2, 10), testutil.Constant(2, 5000)),
		Runs: []domain.RunRecord{{RunID: "run-7", Status: domain.RunStatusCompleted, PanelRows: 2}},
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.ErrorCode
}

func TestReportHandler_GetSummaries(t *testing.T) {
	router := newTestRouter(t, seededStore())

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCount  int
		wantCode   string
	}{
		{name: "whole level", target: "/api/v1/summaries/year", wantStatus: http.StatusOK, wantCount: 2},
		{name: "year filter", target: "/api/v1/summaries/year?year=2023", wantStatus: http.StatusOK, wantCount: 1},
		{name: "sector filter", target: "/api/v1/summaries/year_sector?sector=G47", wantStatus: http.StatusOK, wantCount: 1},
		{name: "empty level", target: "/api/v1/summaries/year_region", wantStatus: http.StatusOK, wantCount: 0},
		{name: "unknown level", target: "/api/v1/summaries/decade", wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "non-numeric year", target: "/api/v1/summaries/year?year=abc", wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "year out of range", target: "/api/v1/summaries/year?year=99", wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, router, tt.target)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, rec))
				return
			}
			var page services.SummaryPage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
			assert.Equal(t, tt.wantCount, page.Count)
			assert.Len(t, page.Rows, tt.wantCount)
		})
	}
}

func TestReportHandler_GetSummariesStoreFailure(t *testing.T) {
	st := seededStore()
	st.Err = apperrors.NewStorageError("sqlite: query summaries", errors.New("database is locked"))

	rec := get(t, newTestRouter(t, st), "/api/v1/summaries/year")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "STORAGE_ERROR", errorCode(t, rec))
}

func TestReportHandler_GetFirmPanel(t *testing.T) {
	router := newTestRouter(t, seededStore())

	rec := get(t, router, "/api/v1/firms/F1/panel")
	require.Equal(t, http.StatusOK, rec.Code)
	var panel services.FirmPanel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &panel))
	assert.Equal(t, "F1", panel.FirmID)
	assert.Equal(t, 2, panel.Months)
	require.NotNil(t, panel.Rows[0].EmployeesMonthly)
	assert.Equal(t, 10.0, *panel.Rows[0].EmployeesMonthly)

	rec = get(t, router, "/api/v1/firms/F404/panel")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = get(t, router, "/api/v1/firms/F1%3BDROP/panel")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandler_GetLatestRun(t *testing.T) {
	rec := get(t, newTestRouter(t, seededStore()), "/api/v1/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var run domain.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "run-7", run.RunID)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)

	rec = get(t, newTestRouter(t, &testutil.MemoryStore{}), "/api/v1/runs/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
