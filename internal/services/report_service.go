package services

import (
	"context"
	"fmt"
	"log/slog"

	"sbscli/internal/errors"
	"sbscli/internal/store"
	"sbscli/pkg/contracts/domain"
)

// ReportService answers read queries over the stored pipeline output.
type ReportService struct {
	store  store.Store
	logger *slog.Logger
}

// SummaryPage is a filtered slice of one aggregation table.
type SummaryPage struct {
	Level domain.AggregationLevel   `json:"level"`
	Count int                       `json:"count"`
	Rows  []domain.IndicatorSummary `json:"rows"`
}

// FirmPanel is the monthly history of a single firm.
type FirmPanel struct {
	FirmID string               `json:"firm_id"`
	Months int                  `json:"months"`
	Rows   []domain.PanelRecord `json:"rows"`
}

// NewReportService creates a report service over st.
func NewReportService(st store.Store, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		store:  st,
		logger: logger.With(slog.String("service", "report")),
	}
}

// Summaries returns the summary rows matching filter. An empty result is not
// an error.
func (s *ReportService) Summaries(ctx context.Context, filter store.SummaryFilter) (*SummaryPage, error) {
	rows, err := s.store.ListSummaries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	if rows == nil {
		rows = []domain.IndicatorSummary{}
	}

	s.logger.DebugContext(ctx, "summaries loaded",
		slog.String("level", string(filter.Level)),
		slog.Int("count", len(rows)))

	return &SummaryPage{Level: filter.Level, Count: len(rows), Rows: rows}, nil
}

// FirmPanel returns the panel rows of firmID, or NOT_FOUND when the firm has
// none.
func (s *ReportService) FirmPanel(ctx context.Context, firmID string) (*FirmPanel, error) {
	rows, err := s.store.FirmPanel(ctx, firmID)
	if err != nil {
		return nil, fmt.Errorf("firm panel %s: %w", firmID, err)
	}
	if len(rows) == 0 {
		return nil, errors.NewNotFoundError("firm " + firmID)
	}
	return &FirmPanel{FirmID: firmID, Months: len(rows), Rows: rows}, nil
}

// LatestRun returns the metadata of the most recent pipeline run.
func (s *ReportService) LatestRun(ctx context.Context) (*domain.RunRecord, error) {
	run, err := s.store.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errors.NewNotFoundError("run")
	}
	return run, nil
}
