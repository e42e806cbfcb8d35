package operations_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"sbscli/internal/infrastructure"
	"sbscli/internal/operations"
	"sbscli/internal/operations/testutil"
)

func newRecordingProviders(t *testing.T) (*infrastructure.OTelProviders, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	providers := infrastructure.NoopProviders()
	providers.Tracer = tp.Tracer("test")
	providers.Meter = mp.Meter("test")
	return providers, spans, reader
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumInt64(m metricdata.Metrics) int64 {
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRunTracerRecordsSpansAndMetrics(t *testing.T) {
	providers, spans, reader := newRecordingProviders(t)
	tracer, err := operations.NewRunTracer(providers)
	require.NoError(t, err)

	withIssues := &testutil.MockStage{
		IDValue:   "check",
		NameValue: "check",
		ExecuteFunc: func(ctx context.Context, state *operations.RunState) (int, error) {
			state.GetStep("check").AddIssues(2)
			return 4, nil
		},
	}
	manager := operations.NewManager([]operations.Stage{
		testutil.CreateSuccessfulStage("load", 6),
		withIssues,
	}, nil, nil).WithTracer(tracer)

	state := operations.NewRunState("run-otel", operations.Inputs{})
	require.NoError(t, manager.Execute(context.Background(), state))

	var names []string
	for _, s := range spans.Ended() {
		names = append(names, s.Name())
		assert.Equal(t, codes.Ok, s.Status().Code, s.Name())
	}
	assert.ElementsMatch(t, []string{"pipeline.run", "pipeline.stage.load", "pipeline.stage.check"}, names)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	rows, ok := findMetric(rm, "sbs_rows_processed_total")
	require.True(t, ok)
	assert.Equal(t, int64(10), sumInt64(rows))

	issues, ok := findMetric(rm, "sbs_issues_total")
	require.True(t, ok)
	assert.Equal(t, int64(2), sumInt64(issues))

	runs, ok := findMetric(rm, "sbs_runs_total")
	require.True(t, ok)
	assert.Equal(t, int64(1), sumInt64(runs))

	_, ok = findMetric(rm, "sbs_stage_duration_seconds")
	assert.True(t, ok)
}

func TestRunTracerMarksFailedStage(t *testing.T) {
	providers, spans, _ := newRecordingProviders(t)
	tracer, err := operations.NewRunTracer(providers)
	require.NoError(t, err)

	manager := operations.NewManager([]operations.Stage{
		testutil.CreateFailingStage("broken", errors.New("no input")),
	}, nil, nil).WithTracer(tracer)

	state := operations.NewRunState("run-otel-fail", operations.Inputs{})
	require.Error(t, manager.Execute(context.Background(), state))

	statuses := map[string]codes.Code{}
	for _, s := range spans.Ended() {
		statuses[s.Name()] = s.Status().Code
	}
	assert.Equal(t, codes.Error, statuses["pipeline.stage.broken"])
	assert.Equal(t, codes.Error, statuses["pipeline.run"])
}
