package config

// Application constants
const (
	AppName    = "SBS Panel"
	AppVersion = "1.0.0"

	// Plausibility bounds
	MinFoundationYear      = 1900
	DefaultMinEmployment   = 1.0
	DefaultMaxProductivity = 1e7

	// Lag lengths of the growth indicators, in months
	AnnualLag  = 12
	MonthlyLag = 1

	// Date layouts accepted on input
	MonthLayout = "2006-01"
	DateLayout  = "2006-01-02"

	// API Endpoints
	APIBasePath       = "/api/v1"
	SummariesEndpoint = "/api/v1/summaries"
	FirmsEndpoint     = "/api/v1/firms"
	RunsEndpoint      = "/api/v1/runs"
	HealthEndpoint    = "/health"
	MetricsEndpoint   = "/metrics"
)
