package domain

import "kineticore/pkg/quantity"

// Group is the behavior shared by all result groups: positionally aligned
// member columns, a dirty flag driving incremental regression, and
// idempotent member removal.
type Group interface {
	GroupID() int64
	GroupDataset() string
	Members() []int64
	Contains(id int64) bool
	// Remove drops the member and its aligned column rows. Removing an id
	// that is not a member is a no-op returning false. A successful removal
	// marks the group dirty.
	Remove(id int64) bool
	MarkDirty()
	IsDirty() bool
	ClearDirty()
}

// GroupMeta carries the fields common to every result group. Dirty groups
// are re-fitted on the next regression sweep; Diagnostic carries the
// per-group error or warning message from the last fit attempt.
type GroupMeta struct {
	Base
	Dataset    string  `json:"dataset"`
	MemberIDs  []int64 `json:"member_ids"`
	Dirty      bool    `json:"dirty"`
	Diagnostic string  `json:"diagnostic,omitempty"`
}

// GroupID returns the group's record id.
func (g GroupMeta) GroupID() int64 { return g.ID }

// GroupDataset returns the dataset the group belongs to.
func (g GroupMeta) GroupDataset() string { return g.Dataset }

// Members returns the member id column.
func (g GroupMeta) Members() []int64 { return g.MemberIDs }

// Contains reports membership of an id.
func (g GroupMeta) Contains(id int64) bool {
	return g.memberIndex(id) >= 0
}

// MarkDirty flags the group for the next regression sweep.
func (g *GroupMeta) MarkDirty() { g.Dirty = true }

// IsDirty reports whether the group awaits re-regression.
func (g GroupMeta) IsDirty() bool { return g.Dirty }

// ClearDirty resets the flag after a completed regression.
func (g *GroupMeta) ClearDirty() { g.Dirty = false }

func (g GroupMeta) memberIndex(id int64) int {
	for i, m := range g.MemberIDs {
		if m == id {
			return i
		}
	}
	return -1
}

// RateGroup collects observations sharing a {pressure, temperature} setpoint.
// Columns are parallel to MemberIDs: space time, conversion, and the active
// and simulated flags of each member observation. The fit is the nonlinear
// regression conversion = k·τ through the origin; K is the fitted rate
// constant carried to the activation-energy and reaction-order families.
type RateGroup struct {
	GroupMeta
	Pressure    quantity.Quantity  `json:"pressure"`
	Temperature quantity.Quantity  `json:"temperature"`
	Tau         []float64          `json:"tau"`
	Conversion  []float64          `json:"conversion"`
	Active      []bool             `json:"active"`
	Simulated   []bool             `json:"simulated"`
	Fit         *FitResult         `json:"fit,omitempty"`
	K           *quantity.Quantity `json:"k,omitempty"`
}

// MatchesKey reports whether an observation's derived setpoints select this
// group. Key comparison is exact: setpoints are recorded values, not
// measurements.
func (g RateGroup) MatchesKey(pressure, temperature quantity.Quantity) bool {
	return g.Pressure.Equal(pressure) && g.Temperature.Equal(temperature)
}

// Append adds a member observation with its aligned column values and marks
// the group dirty.
func (g *RateGroup) Append(id int64, tau, conversion float64, active, simulated bool) {
	g.MemberIDs = append(g.MemberIDs, id)
	g.Tau = append(g.Tau, tau)
	g.Conversion = append(g.Conversion, conversion)
	g.Active = append(g.Active, active)
	g.Simulated = append(g.Simulated, simulated)
	g.Dirty = true
}

// Remove implements Group.
func (g *RateGroup) Remove(id int64) bool {
	i := g.memberIndex(id)
	if i < 0 {
		return false
	}
	g.MemberIDs = append(g.MemberIDs[:i], g.MemberIDs[i+1:]...)
	g.Tau = append(g.Tau[:i], g.Tau[i+1:]...)
	g.Conversion = append(g.Conversion[:i], g.Conversion[i+1:]...)
	g.Active = append(g.Active[:i], g.Active[i+1:]...)
	g.Simulated = append(g.Simulated[:i], g.Simulated[i+1:]...)
	g.Dirty = true
	return true
}

// EaGroup collects rate groups sharing a pressure setpoint. Members are rate
// group ids; the columns carry each member's temperature setpoint and fitted
// rate constant. The fit is ln k vs 1/T, yielding the apparent activation
// energy and pre-exponential factor.
type EaGroup struct {
	GroupMeta
	Pressure         quantity.Quantity  `json:"pressure"`
	Temperature      []float64          `json:"temperature"`
	Rate             []float64          `json:"rate"`
	Fit              *FitResult         `json:"fit,omitempty"`
	ActivationEnergy *quantity.Quantity `json:"activation_energy,omitempty"`
	PreFactor        *quantity.Quantity `json:"pre_factor,omitempty"`
}

// MatchesKey reports whether a rate group's pressure setpoint selects this group.
func (g EaGroup) MatchesKey(pressure quantity.Quantity) bool {
	return g.Pressure.Equal(pressure)
}

// Append adds a member rate group with its aligned column values and marks
// the group dirty.
func (g *EaGroup) Append(id int64, temperature, rate float64) {
	g.MemberIDs = append(g.MemberIDs, id)
	g.Temperature = append(g.Temperature, temperature)
	g.Rate = append(g.Rate, rate)
	g.Dirty = true
}

// Remove implements Group.
func (g *EaGroup) Remove(id int64) bool {
	i := g.memberIndex(id)
	if i < 0 {
		return false
	}
	g.MemberIDs = append(g.MemberIDs[:i], g.MemberIDs[i+1:]...)
	g.Temperature = append(g.Temperature[:i], g.Temperature[i+1:]...)
	g.Rate = append(g.Rate[:i], g.Rate[i+1:]...)
	g.Dirty = true
	return true
}

// OrderGroup collects rate groups sharing a temperature setpoint. Members
// are rate group ids; the columns carry each member's pressure setpoint and
// fitted rate constant. The fit is log10 k vs log10(p/1e5); the slope is the
// apparent reaction order.
type OrderGroup struct {
	GroupMeta
	Temperature quantity.Quantity  `json:"temperature"`
	Pressure    []float64          `json:"pressure"`
	Rate        []float64          `json:"rate"`
	Fit         *FitResult         `json:"fit,omitempty"`
	Order       *quantity.Quantity `json:"order,omitempty"`
}

// MatchesKey reports whether a rate group's temperature setpoint selects this group.
func (g OrderGroup) MatchesKey(temperature quantity.Quantity) bool {
	return g.Temperature.Equal(temperature)
}

// Append adds a member rate group with its aligned column values and marks
// the group dirty.
func (g *OrderGroup) Append(id int64, pressure, rate float64) {
	g.MemberIDs = append(g.MemberIDs, id)
	g.Pressure = append(g.Pressure, pressure)
	g.Rate = append(g.Rate, rate)
	g.Dirty = true
}

// Remove implements Group.
func (g *OrderGroup) Remove(id int64) bool {
	i := g.memberIndex(id)
	if i < 0 {
		return false
	}
	g.MemberIDs = append(g.MemberIDs[:i], g.MemberIDs[i+1:]...)
	g.Pressure = append(g.Pressure[:i], g.Pressure[i+1:]...)
	g.Rate = append(g.Rate[:i], g.Rate[i+1:]...)
	g.Dirty = true
	return true
}

// PooledSample is the single per-dataset pool of active observations that
// feeds the simulation parameter fits. Columns are parallel to MemberIDs.
type PooledSample struct {
	GroupMeta
	Tau          []float64 `json:"tau"`
	Pressure     []float64 `json:"pressure"`
	Temperature  []float64 `json:"temperature"`
	Conversion   []float64 `json:"conversion"`
	AreaReactant []float64 `json:"area_reactant"`
}

// Append adds a member observation with its aligned column values and marks
// the pool dirty.
func (g *PooledSample) Append(id int64, tau, pressure, temperature, conversion, areaReactant float64) {
	g.MemberIDs = append(g.MemberIDs, id)
	g.Tau = append(g.Tau, tau)
	g.Pressure = append(g.Pressure, pressure)
	g.Temperature = append(g.Temperature, temperature)
	g.Conversion = append(g.Conversion, conversion)
	g.AreaReactant = append(g.AreaReactant, areaReactant)
	g.Dirty = true
}

// Remove implements Group.
func (g *PooledSample) Remove(id int64) bool {
	i := g.memberIndex(id)
	if i < 0 {
		return false
	}
	g.MemberIDs = append(g.MemberIDs[:i], g.MemberIDs[i+1:]...)
	g.Tau = append(g.Tau[:i], g.Tau[i+1:]...)
	g.Pressure = append(g.Pressure[:i], g.Pressure[i+1:]...)
	g.Temperature = append(g.Temperature[:i], g.Temperature[i+1:]...)
	g.Conversion = append(g.Conversion[:i], g.Conversion[i+1:]...)
	g.AreaReactant = append(g.AreaReactant[:i], g.AreaReactant[i+1:]...)
	g.Dirty = true
	return true
}
