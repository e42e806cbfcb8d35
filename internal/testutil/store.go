package testutil

import (
	"context"
	"sync"

	"sbscli/internal/errors"
	"sbscli/internal/store"
	"sbscli/pkg/contracts/domain"
)

// MemoryStore is an in-memory store.Store for handler and service tests.
// Err, when set, is returned by every read.
type MemoryStore struct {
	mu        sync.Mutex
	Runs      []domain.RunRecord
	Panel     []domain.PanelRecord
	Summaries []domain.IndicatorSummary
	Err       error
	PingErr   error
}

func (m *MemoryStore) SaveRun(ctx context.Context, run domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs = append(m.Runs, run)
	return nil
}

func (m *MemoryStore) SavePanel(ctx context.Context, runID string, panel []domain.PanelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Panel = append([]domain.PanelRecord(nil), panel...)
	return nil
}

func (m *MemoryStore) SaveSummaries(ctx context.Context, runID string, tables map[domain.AggregationLevel][]domain.IndicatorSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Summaries[:0]
	for _, s := range m.Summaries {
		if _, replaced := tables[s.Level]; !replaced {
			kept = append(kept, s)
		}
	}
	for _, rows := range tables {
		kept = append(kept, rows...)
	}
	m.Summaries = kept
	return nil
}

func (m *MemoryStore) ListSummaries(ctx context.Context, filter store.SummaryFilter) ([]domain.IndicatorSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []domain.IndicatorSummary
	for _, s := range m.Summaries {
		if filter.Matches(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) FirmPanel(ctx context.Context, firmID string) ([]domain.PanelRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []domain.PanelRecord
	for _, r := range m.Panel {
		if r.FirmID == firmID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) LatestRun(ctx context.Context) (*domain.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Runs) == 0 {
		return nil, errors.NewNotFoundError("run")
	}
	run := m.Runs[len(m.Runs)-1]
	return &run, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MemoryStore) Close() error {
	return nil
}
