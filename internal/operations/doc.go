// Package operations runs the SBS pipeline as a sequence of stages over a
// shared run state.
//
// Core Components:
//
// Manager: executes the stages in order, applies per-stage timeouts, marks
// the remaining stages skipped after a failure, and records every run in the
// result store and in manifest.json.
//
// Stage: one unit of work (load, validate, clean, integrate, derive,
// aggregate, export, persist). Stages read their inputs from the RunState
// and hand their results on through it.
//
// RunState and StepState: the runtime state of a run and of each stage,
// snapshotted into a domain.RunRecord for the manifest and the store.
//
// RunTracer: OpenTelemetry spans per run and per stage, plus the stage
// duration, row and issue metrics.
//
// Example usage:
//
//	stages, err := operations.NewPipeline(logger, &operations.StageOptions{
//		Paths:    paths,
//		Pipeline: cfg.Pipeline,
//		Store:    st,
//	})
//	if err != nil {
//		return err
//	}
//	manager := operations.NewManager(stages, operations.NewConfig(), logger).
//		WithTracer(tracer).
//		WithStore(st).
//		WithManifest(paths.ManifestJSON)
//	state, err := manager.Run(ctx, operations.Inputs{
//		Registry:   "firms.csv",
//		Employment: "employment.csv",
//		Turnover:   "turnover.csv",
//	})
package operations
