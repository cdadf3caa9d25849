// Package core holds the time-tracking domain: entries, the clock state
// machine, and the duration/hour arithmetic shared by views and export.
//
// Hour figures are always floored, never rounded: a 125-minute interval is
// reported as 2.0h. This matches the billing convention the invoice template
// was built around.
package core

import (
	"fmt"
	"math"
)

// FloorHours converts minutes to hours with one decimal place, flooring.
//
// Examples:
//
//	FloorHours(370) -> 6.1
//	FloorHours(125) -> 2.0
func FloorHours(minutes int64) float64 {
	return math.Floor(float64(minutes)/6.0) / 10.0
}

// FormatHours renders a floored hour figure for display, e.g. "6.1".
func FormatHours(minutes int64) string {
	return fmt.Sprintf("%.1f", FloorHours(minutes))
}

// FloorOneDecimal floors an arbitrary figure to one decimal place. Used for
// the invoice subtotal so the billed amount never rounds up.
func FloorOneDecimal(v float64) float64 {
	return math.Floor(v*10.0) / 10.0
}
