package actionplan

import (
	"fmt"
	"strconv"
	"time"
)

// ParseOffset parses a signed offset expression like "-1h", "-30m", "+2d"
// into a time.Duration. It is a total parser: every syntactically valid
// offset maps to a duration, and anything else is rejected at plan
// creation rather than at execution time.
func ParseOffset(expr string) (time.Duration, error) {
	if len(expr) < 2 {
		return 0, fmt.Errorf("actionplan: invalid offset %q", expr)
	}

	sign := time.Duration(1)
	rest := expr
	switch expr[0] {
	case '+':
		rest = expr[1:]
	case '-':
		sign = -1
		rest = expr[1:]
	}
	if rest == "" {
		return 0, fmt.Errorf("actionplan: invalid offset %q", expr)
	}

	unit := rest[len(rest)-1]
	numPart := rest[:len(rest)-1]
	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("actionplan: invalid offset %q: %w", expr, err)
	}

	var unitDuration time.Duration
	switch unit {
	case 's':
		unitDuration = time.Second
	case 'm':
		unitDuration = time.Minute
	case 'h':
		unitDuration = time.Hour
	case 'd':
		unitDuration = 24 * time.Hour
	default:
		return 0, fmt.Errorf("actionplan: unknown offset unit %q in %q", string(unit), expr)
	}

	return sign * time.Duration(n*float64(unitDuration)), nil
}
