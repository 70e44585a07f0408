// Package quantity defines the structured physical-quantity value used across
// kineticore: a (magnitude, unit, uncertainty) triple plus a read-only unit
// registry for normalising recorded values to SI base units. Human-readable
// rendering is a display concern; the engine always works on the structured
// form.
package quantity

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Quantity is a physical value with an optional symmetric uncertainty.
// The zero value is "no value"; use Ptr fields on records that need to
// distinguish absent from zero.
type Quantity struct {
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Uncertainty float64 `json:"uncertainty,omitempty"`
}

// New constructs a quantity without uncertainty.
func New(value float64, unit string) Quantity {
	return Quantity{Value: value, Unit: unit}
}

// NewWithUncertainty constructs a quantity carrying a symmetric error bar.
func NewWithUncertainty(value, uncertainty float64, unit string) Quantity {
	return Quantity{Value: value, Unit: unit, Uncertainty: uncertainty}
}

// Equal reports exact equality of the stored representation. Grouping keys
// are recorded setpoints, so no tolerance is applied: bitwise-identical
// values group together, near-equal values do not.
func (q Quantity) Equal(other Quantity) bool {
	return q.Value == other.Value && q.Unit == other.Unit
}

// IsFinite reports whether the magnitude is a usable number.
func (q Quantity) IsFinite() bool {
	return !math.IsNaN(q.Value) && !math.IsInf(q.Value, 0)
}

// String renders the quantity for logs and diagnostics. Display formatting
// beyond this belongs to the caller.
func (q Quantity) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatFloat(q.Value, 'g', -1, 64))
	if q.Uncertainty != 0 {
		b.WriteString("±")
		b.WriteString(strconv.FormatFloat(q.Uncertainty, 'g', -1, 64))
	}
	if q.Unit != "" {
		b.WriteString(" ")
		b.WriteString(q.Unit)
	}
	return b.String()
}

// Parse reads a quantity from its textual form: "<value>[±<uncertainty>] [unit]".
// Used when ingesting raw uploads; stored records keep the structured triple.
func Parse(s string) (Quantity, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return Quantity{}, fmt.Errorf("parse quantity: empty input")
	}
	numeric := fields[0]
	unit := strings.Join(fields[1:], " ")

	var q Quantity
	q.Unit = unit
	if idx := strings.Index(numeric, "±"); idx >= 0 {
		value, err := strconv.ParseFloat(numeric[:idx], 64)
		if err != nil {
			return Quantity{}, fmt.Errorf("parse quantity %q: %w", s, err)
		}
		unc, err := strconv.ParseFloat(numeric[idx+len("±"):], 64)
		if err != nil {
			return Quantity{}, fmt.Errorf("parse quantity %q: %w", s, err)
		}
		q.Value = value
		q.Uncertainty = unc
		return q, nil
	}
	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	q.Value = value
	return q, nil
}
