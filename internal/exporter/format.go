package exporter

import (
	"fmt"
)

// formatRate formats a guarded rate for tabular output. An undefined rate
// (nil) becomes an empty cell, never "0.00".
func formatRate(r *float64) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *r)
}

// formatInt formats an int64 value for CSV output.
func formatInt(i int64) string {
	return fmt.Sprintf("%d", i)
}

// formatBool formats a boolean value for CSV output.
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
