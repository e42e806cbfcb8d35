package exporter

import (
	"strconv"
	"time"

	"sbscli/internal/config"
)

// formatFloat formats a float64 with the shortest representation that
// round-trips, so exported values read back unchanged.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatNullFloat formats a nullable float; missing values are empty cells.
func formatNullFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatNullInt formats a nullable int; missing values are empty cells.
func formatNullInt(i *int) string {
	if i == nil {
		return ""
	}
	return formatInt(*i)
}

// formatDate formats a month as an ISO-8601 date.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(config.DateLayout)
}
