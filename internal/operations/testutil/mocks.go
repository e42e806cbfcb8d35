package testutil

import (
	"context"
	"sync"
	"time"

	"sbscli/internal/operations"
	"sbscli/internal/store"
	"sbscli/pkg/contracts/domain"
)

// MockStage is a configurable mock implementation of the stage interface
type MockStage struct {
	IDValue   string
	NameValue string

	// Configurable function
	ExecuteFunc func(ctx context.Context, state *operations.RunState) (int, error)

	// Call tracking
	mu           sync.Mutex
	ExecuteCalls int
}

// ID returns the stage ID
func (m *MockStage) ID() string {
	return m.IDValue
}

// Name returns the stage name
func (m *MockStage) Name() string {
	return m.NameValue
}

// Execute runs the mock execute function
func (m *MockStage) Execute(ctx context.Context, state *operations.RunState) (int, error) {
	m.mu.Lock()
	m.ExecuteCalls++
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, state)
	}
	return 0, nil
}

// GetExecuteCalls returns the number of Execute calls
func (m *MockStage) GetExecuteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// CreateSuccessfulStage returns a stage that reports rows produced rows
func CreateSuccessfulStage(id string, rows int) *MockStage {
	return &MockStage{
		IDValue:   id,
		NameValue: id + " stage",
		ExecuteFunc: func(ctx context.Context, state *operations.RunState) (int, error) {
			return rows, nil
		},
	}
}

// CreateFailingStage returns a stage that always fails with err
func CreateFailingStage(id string, err error) *MockStage {
	return &MockStage{
		IDValue:   id,
		NameValue: id + " stage",
		ExecuteFunc: func(ctx context.Context, state *operations.RunState) (int, error) {
			return 0, err
		},
	}
}

// CreateSlowStage returns a stage that waits for d or until ctx is done
func CreateSlowStage(id string, d time.Duration) *MockStage {
	return &MockStage{
		IDValue:   id,
		NameValue: id + " stage",
		ExecuteFunc: func(ctx context.Context, state *operations.RunState) (int, error) {
			select {
			case <-time.After(d):
				return 1, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		},
	}
}

// RecordingStore is a no-op store that keeps the saved run records
type RecordingStore struct {
	store.NopStore

	mu   sync.Mutex
	Runs []domain.RunRecord
}

// SaveRun records run
func (s *RecordingStore) SaveRun(ctx context.Context, run domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Runs = append(s.Runs, run)
	return nil
}

// LastRun returns the most recently saved run
func (s *RecordingStore) LastRun() (domain.RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Runs) == 0 {
		return domain.RunRecord{}, false
	}
	return s.Runs[len(s.Runs)-1], true
}
