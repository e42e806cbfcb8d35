package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"sbscli/internal/testutil"
)

func TestHealthService_HealthCheck(t *testing.T) {
	hs := NewHealthService("1.2.3", nil, nil)
	status := hs.HealthCheck(context.Background())

	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Contains(t, status.Runtime, "go_version")
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthService_ReadinessCheck(t *testing.T) {
	tests := []struct {
		name       string
		store      Pinger
		wantStatus string
	}{
		{name: "store answers", store: &testutil.MemoryStore{}, wantStatus: "ready"},
		{name: "store down", store: &testutil.MemoryStore{PingErr: errors.New("locked")}, wantStatus: "not_ready"},
		{name: "no store", store: nil, wantStatus: "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			status := NewHealthService("dev", tt.store, logger).ReadinessCheck(context.Background())
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, tt.wantStatus, status.Services["store"].Status)
		})
	}
}
