package live

import (
	"strconv"
	"strings"
)

// fmtInt converts an int to string.
func fmtInt(value int) string {
	return strconv.Itoa(value)
}

// fmtFloat renders a value the way the wire carries it, without exponent
// noise for typical loss and norm magnitudes.
func fmtFloat(value float64) string {
	return strconv.FormatFloat(value, 'g', 6, 64)
}

// fmtProb renders a probability with fixed precision for column alignment.
func fmtProb(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}

// displayToken makes whitespace tokens visible in table cells.
func displayToken(token string) string {
	switch token {
	case " ":
		return "␣"
	case "\n":
		return "\\n"
	case "\t":
		return "\\t"
	default:
		return token
	}
}

// truncate shortens a string for single-line display.
func truncate(text string, limit int) string {
	normalized := strings.ReplaceAll(text, "\n", " ")
	if len(normalized) <= limit {
		return normalized
	}
	if limit <= 3 {
		return normalized[:limit]
	}
	return normalized[:limit-3] + "..."
}
