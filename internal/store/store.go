// Package store persists pipeline results for the reporting API.
package store

import (
	"context"

	"sbscli/pkg/contracts/domain"
)

// Store holds the latest panel, its summaries and run metadata.
type Store interface {
	SaveRun(ctx context.Context, run domain.RunRecord) error
	SavePanel(ctx context.Context, runID string, panel []domain.PanelRecord) error
	SaveSummaries(ctx context.Context, runID string, tables map[domain.AggregationLevel][]domain.IndicatorSummary) error
	ListSummaries(ctx context.Context, filter SummaryFilter) ([]domain.IndicatorSummary, error)
	FirmPanel(ctx context.Context, firmID string) ([]domain.PanelRecord, error)
	LatestRun(ctx context.Context) (*domain.RunRecord, error)
	Close() error
}

// SummaryFilter selects summary rows of one level. Zero fields match everything.
type SummaryFilter struct {
	Level      domain.AggregationLevel `query:"level" validate:"required,level"`
	Year       int                     `query:"year" validate:"omitempty,min=1900,max=2200"`
	SectorCode string                  `query:"sector" validate:"omitempty,max=16,alphanum"`
	RegionCode string                  `query:"region" validate:"omitempty,max=16,alphanum"`
}

// Matches reports whether s passes the filter.
func (f SummaryFilter) Matches(s domain.IndicatorSummary) bool {
	if s.Level != f.Level {
		return false
	}
	if f.Year != 0 && s.Year != f.Year {
		return false
	}
	if f.SectorCode != "" && s.SectorCode != f.SectorCode {
		return false
	}
	return f.RegionCode == "" || s.RegionCode == f.RegionCode
}

// NopStore discards writes and finds nothing.
type NopStore struct{}

func (s *NopStore) SaveRun(ctx context.Context, run domain.RunRecord) error {
	return nil
}

func (s *NopStore) SavePanel(ctx context.Context, runID string, panel []domain.PanelRecord) error {
	return nil
}

func (s *NopStore) SaveSummaries(ctx context.Context, runID string, tables map[domain.AggregationLevel][]domain.IndicatorSummary) error {
	return nil
}

func (s *NopStore) ListSummaries(ctx context.Context, filter SummaryFilter) ([]domain.IndicatorSummary, error) {
	return nil, nil
}

func (s *NopStore) FirmPanel(ctx context.Context, firmID string) ([]domain.PanelRecord, error) {
	return nil, nil
}

func (s *NopStore) LatestRun(ctx context.Context) (*domain.RunRecord, error) {
	return nil, nil
}

func (s *NopStore) Close() error {
	return nil
}
