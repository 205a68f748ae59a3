package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pulsebridge/pulsebridge/pkg/types"
)

// condition is a parsed rule expression of the form "field operator value".
//
// bpm is the only field. Readings reach the engine already validated, so
// thresholds at or below zero never match. Examples:
//
//	bpm > 120
//	bpm <= 40
//	bpm >= 180
type condition struct {
	field     string
	op        string
	threshold float64
}

// parseCondition parses expr, rejecting unknown fields and operators.
func parseCondition(expr string) (condition, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("condition %q: want \"field operator value\"", expr)
	}
	c := condition{field: parts[0], op: parts[1]}

	if c.field != "bpm" {
		return condition{}, fmt.Errorf("condition %q: unknown field %q", expr, c.field)
	}
	switch c.op {
	case ">", ">=", "<", "<=", "==":
	default:
		return condition{}, fmt.Errorf("condition %q: unknown operator %q", expr, c.op)
	}
	v, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return condition{}, fmt.Errorf("condition %q: threshold: %w", expr, err)
	}
	c.threshold = v
	return c, nil
}

// eval returns whether rec satisfies c and the value that was compared.
func (c condition) eval(rec types.Record) (bool, float64) {
	v := rec.BPM
	return compareFloat(v, c.op, c.threshold), v
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
