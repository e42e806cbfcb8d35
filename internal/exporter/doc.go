// Package exporter writes pipeline results to disk.
//
// CSVWriter is the core: it writes through a temporary file in the target
// directory and renames it into place, so a crashed run never leaves a
// truncated output behind. StreamWriter does the same for row-at-a-time
// output of large tables.
//
// On top of it sit the result writers:
//
//	PanelExporter     panel.csv, one row per firm-month
//	SummaryExporter   summary_<level>.csv for each aggregation level
//	WorkbookExporter  summaries.xlsx with one sheet per level
//	WriteJSON         manifest.json and issues.json
//
// Dates are written as ISO-8601 (YYYY-MM-DD). Missing values are empty cells.
package exporter
