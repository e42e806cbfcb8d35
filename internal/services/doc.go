// Package services implements the read side of the SBS reporting API.
// It sits between the HTTP handlers and the store so that handlers only
// translate requests and responses.
//
// # Available Services
//
//   - ReportService: summary tables, firm panels and run metadata
//   - HealthService: liveness and store readiness
//
// # Error Handling
//
// Services return *errors.AppError values (NOT_FOUND, STORAGE) wrapped with
// context. errors.ToAPIError maps them onto HTTP responses.
//
// # Testing
//
// Services are tested against testutil.MemoryStore:
//
//	st := &testutil.MemoryStore{Runs: runs}
//	run, err := services.NewReportService(st, logger).LatestRun(ctx)
package services
