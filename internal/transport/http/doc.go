// Package http implements the HTTP handlers of the SBS reporting API.
// Handlers only parse requests, validate them with middleware.Validator and
// render responses; queries go through the services package.
//
// # Routes
//
//	GET /api/v1/summaries/{level}?year=&sector=&region=
//	GET /api/v1/firms/{firmID}/panel
//	GET /api/v1/runs/latest
//	GET /health
//	GET /health/ready
//
// Errors are rendered by errors.ErrorHandler as
//
//	{"success": false, "error": {"status_code": 404, "error_code": "NOT_FOUND", ...}}
package http
