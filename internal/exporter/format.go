package exporter

import "strconv"

// formatNumeric renders an optional numeric value without exponent
// notation, using the fewest digits that parse back to the same float64.
// Nil renders as the empty string so unmatched facts keep empty cells.
func formatNumeric(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}
