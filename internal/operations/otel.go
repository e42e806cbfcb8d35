package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"sbscli/internal/infrastructure"
	"sbscli/pkg/contracts/domain"
)

// RunTracer provides OpenTelemetry instrumentation for pipeline runs
type RunTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewRunTracer creates a run tracer from the given providers
func NewRunTracer(providers *infrastructure.OTelProviders) (*RunTracer, error) {
	if providers == nil {
		providers = infrastructure.NoopProviders()
	}
	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	return &RunTracer{tracer: providers.Tracer, metrics: metrics}, nil
}

// TraceRun creates the root span of a run
func (rt *RunTracer) TraceRun(ctx context.Context, runID string) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("run.id", runID)),
	)
}

// TraceStage creates a child span for one stage
func (rt *RunTracer) TraceStage(ctx context.Context, runID, stageID string) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "pipeline.stage."+stageID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("stage.id", stageID),
		),
	)
}

// RecordStage records stage duration, produced rows and raised issues
func (rt *RunTracer) RecordStage(ctx context.Context, span trace.Span, stageID string, duration time.Duration, rows, issues int, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", stageID),
		attribute.String("status", status),
	)

	rt.metrics.StageDuration.Record(ctx, duration.Seconds(), attrs)
	if rows > 0 {
		rt.metrics.RowsProcessed.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("stage", stageID)))
	}
	if issues > 0 {
		rt.metrics.IssuesTotal.Add(ctx, int64(issues), metric.WithAttributes(attribute.String("stage", stageID)))
	}

	span.SetAttributes(
		attribute.String("stage.status", status),
		attribute.Float64("stage.duration_seconds", duration.Seconds()),
		attribute.Int("stage.rows", rows),
		attribute.Int("stage.issues", issues),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "stage completed")
}

// RecordRun records the outcome of a whole run
func (rt *RunTracer) RecordRun(ctx context.Context, span trace.Span, state *RunState) {
	status := state.GetStatus()
	rt.metrics.RunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))

	span.SetAttributes(
		attribute.String("run.status", string(status)),
		attribute.Float64("run.duration_seconds", state.Duration().Seconds()),
		attribute.Int("run.issues", state.IssueCount()),
	)
	if status == domain.RunStatusCompleted {
		span.SetStatus(codes.Ok, "run completed")
	} else {
		span.SetStatus(codes.Error, fmt.Sprintf("run finished with status %s", status))
	}
}
