// Package dataprocessing turns raw registry and monthly survey tables into
// the integrated firm-month panel.
//
// # Reading inputs
//
// Parser loads CSV or XLSX tables. Column names are normalized to lower snake
// case, months are truncated to the first day of the month in UTC, and empty
// cells as well as NA, NaN and null are read as missing values.
//
// # Cleaning
//
// Cleaner corrects the registry (revenue sign, group-median head count
// imputation, implausible foundation years) and fills gaps in every firm's
// monthly series by linear interpolation over elapsed time, with flat
// extrapolation at the edges. Series are cleaned per firm across a bounded
// pool of goroutines:
//
//	cleaner := dataprocessing.NewCleaner(logger, dataprocessing.CleanerOptions{
//		ReferenceYear: 2024,
//		Workers:       4,
//	})
//	firms, stats := cleaner.CleanFirms(ctx, firms)
//	employment, stats, err := cleaner.CleanSeries(ctx, employment)
//
// # Integration
//
// Integrator left-joins employment with turnover and registry attributes.
// The employment source anchors the panel: every distinct (firm, month) it
// carries yields exactly one row.
package dataprocessing
