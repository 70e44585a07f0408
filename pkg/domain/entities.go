// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by kineticore.
package domain

import (
	"fmt"
	"time"

	"kineticore/pkg/quantity"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityObservation identifies a single uploaded measurement record.
	EntityObservation EntityType = "observation"
	// EntityRateGroup identifies a rate result group.
	EntityRateGroup EntityType = "rate_group"
	// EntityEaGroup identifies an activation-energy result group.
	EntityEaGroup EntityType = "ea_group"
	// EntityOrderGroup identifies a reaction-order result group.
	EntityOrderGroup EntityType = "order_group"
	// EntityPooledSample identifies the pooled per-dataset sample collection.
	EntityPooledSample EntityType = "pooled_sample"
	// EntitySimParams identifies fitted simulation parameters for a dataset.
	EntitySimParams EntityType = "sim_params"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Derived holds the quantities computed from an observation's raw fields.
// Every field is optional: a derivation that cannot run leaves nil behind
// and the downstream grouping steps skip the observation.
type Derived struct {
	PartialPressure *quantity.Quantity `json:"partial_pressure,omitempty"`
	SpaceTime       *quantity.Quantity `json:"space_time,omitempty"`
	Conversion      *quantity.Quantity `json:"conversion,omitempty"`
	Rate            *quantity.Quantity `json:"rate,omitempty"`
}

// Observation is one uploaded measurement: raw recorded fields plus the
// derived quantities computed from them. Raw values are stored in SI base
// units; DerivedAt tracks derivation staleness against UpdatedAt.
type Observation struct {
	Base
	Dataset     string                       `json:"dataset"`
	IsActive    bool                         `json:"is_active"`
	IsSimulated bool                         `json:"is_simulated"`
	Raw         map[string]quantity.Quantity `json:"raw"`
	Derived     Derived                      `json:"derived"`
	DerivedAt   *time.Time                   `json:"derived_at,omitempty"`
}

// RawValue looks up a raw field, reporting presence.
func (o Observation) RawValue(field string) (quantity.Quantity, bool) {
	q, ok := o.Raw[field]
	return q, ok
}

// NeedsDerivation reports whether the derivation chain must re-run: never
// derived yet, or the record changed since the last derivation.
func (o Observation) NeedsDerivation() bool {
	return o.DerivedAt == nil || o.UpdatedAt.After(*o.DerivedAt)
}

// FitCoefficient is one fitted parameter with its standard error.
type FitCoefficient struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Uncertainty float64 `json:"uncertainty"`
}

// PlotSeries is one renderable series of a group's result plot.
type PlotSeries struct {
	Label string    `json:"label"`
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
}

// FitResult is the outcome of a group regression: fitted coefficients, the
// goodness of fit, and the renderable series of the result plot, the last
// of which is a densely sampled fit curve.
type FitResult struct {
	Coefficients []FitCoefficient `json:"coefficients"`
	RSquared     float64          `json:"r_squared"`
	Series       []PlotSeries     `json:"series"`
}

// Coefficient returns the named coefficient, reporting presence.
func (f FitResult) Coefficient(name string) (FitCoefficient, bool) {
	for _, c := range f.Coefficients {
		if c.Name == name {
			return c, true
		}
	}
	return FitCoefficient{}, false
}

// SimParams holds the simulation parameters fitted for one dataset. The
// fitted values replace the configured globals only when the fit quality
// clears the acceptance threshold.
type SimParams struct {
	Base
	Dataset          string   `json:"dataset"`
	PressureToArea   *float64 `json:"pressure_to_area,omitempty"`
	PressureToAreaR2 float64  `json:"pressure_to_area_r2"`
	PreFactor        *float64 `json:"pre_factor,omitempty"`
	ActivationEnergy *float64 `json:"activation_energy,omitempty"`
	ReactionOrder    *float64 `json:"reaction_order,omitempty"`
	KineticR2        float64  `json:"kinetic_r2"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured for rule evaluation
// and incremental pipeline updates.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}

// NotFoundError reports a lookup against a missing entity.
type NotFoundError struct {
	Entity EntityType
	ID     int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}
