// Package results maintains the per-family result groups: membership of
// observations in rate groups, of rate groups in activation-energy and
// reaction-order groups, and the pooled per-dataset sample, plus the dirty
// sweep that re-runs each family's regression.
package results

import (
	"kineticore/internal/derive"
	"kineticore/pkg/domain"
)

type identified interface {
	GroupID() int64
}

// nextID yields the next monotonic group id: one past the highest id ever
// assigned in the family, never reusing ids of emptied groups.
func nextID[G identified](groups []G) int64 {
	var max int64
	for _, g := range groups {
		if id := g.GroupID(); id > max {
			max = id
		}
	}
	return max + 1
}

// UpsertRateMembership updates the rate family for one observation mutation.
//
// The removal pass scans every group and drops the observation wherever it
// appears, since an edit may have moved it to a different key. Insertion
// happens only for live, active observations whose derivation produced the
// grouped values; the key is exact equality of the derived partial pressure
// and the recorded reactor temperature within the observation's dataset.
// Returns true when any group was touched.
func UpsertRateMembership(groups *[]domain.RateGroup, obs domain.Observation, deleted bool) bool {
	touched := false
	for i := range *groups {
		if (*groups)[i].Remove(obs.ID) {
			touched = true
		}
	}

	if deleted || !obs.IsActive {
		return touched
	}
	tReactor, ok := obs.RawValue(derive.FieldReactorTemp)
	if !ok {
		return touched
	}
	if obs.Derived.PartialPressure == nil || obs.Derived.SpaceTime == nil || obs.Derived.Conversion == nil {
		return touched
	}
	pressure := *obs.Derived.PartialPressure

	for i := range *groups {
		g := &(*groups)[i]
		if g.Dataset == obs.Dataset && g.MatchesKey(pressure, tReactor) {
			g.Append(obs.ID, obs.Derived.SpaceTime.Value, obs.Derived.Conversion.Value, obs.IsActive, obs.IsSimulated)
			return true
		}
	}

	ng := domain.RateGroup{
		GroupMeta:   domain.GroupMeta{Base: domain.Base{ID: nextID(*groups)}, Dataset: obs.Dataset},
		Pressure:    pressure,
		Temperature: tReactor,
	}
	ng.Append(obs.ID, obs.Derived.SpaceTime.Value, obs.Derived.Conversion.Value, obs.IsActive, obs.IsSimulated)
	*groups = append(*groups, ng)
	return true
}

// UpsertEaMembership updates the activation-energy family for one rate
// group whose fit changed. Members of this family are rate group ids; a
// rate group contributes only when it carries a fitted rate constant and a
// clean diagnostic. Returns true when any group was touched.
func UpsertEaMembership(groups *[]domain.EaGroup, rg domain.RateGroup) bool {
	touched := false
	for i := range *groups {
		if (*groups)[i].Remove(rg.ID) {
			touched = true
		}
	}

	if rg.K == nil || rg.Diagnostic != "" {
		return touched
	}

	for i := range *groups {
		g := &(*groups)[i]
		if g.Dataset == rg.Dataset && g.MatchesKey(rg.Pressure) {
			g.Append(rg.ID, rg.Temperature.Value, rg.K.Value)
			return true
		}
	}

	ng := domain.EaGroup{
		GroupMeta: domain.GroupMeta{Base: domain.Base{ID: nextID(*groups)}, Dataset: rg.Dataset},
		Pressure:  rg.Pressure,
	}
	ng.Append(rg.ID, rg.Temperature.Value, rg.K.Value)
	*groups = append(*groups, ng)
	return true
}

// UpsertOrderMembership updates the reaction-order family for one rate
// group whose fit changed. The key is the rate group's temperature
// setpoint; the gate matches the activation-energy family.
func UpsertOrderMembership(groups *[]domain.OrderGroup, rg domain.RateGroup) bool {
	touched := false
	for i := range *groups {
		if (*groups)[i].Remove(rg.ID) {
			touched = true
		}
	}

	if rg.K == nil || rg.Diagnostic != "" {
		return touched
	}

	for i := range *groups {
		g := &(*groups)[i]
		if g.Dataset == rg.Dataset && g.MatchesKey(rg.Temperature) {
			g.Append(rg.ID, rg.Pressure.Value, rg.K.Value)
			return true
		}
	}

	ng := domain.OrderGroup{
		GroupMeta:   domain.GroupMeta{Base: domain.Base{ID: nextID(*groups)}, Dataset: rg.Dataset},
		Temperature: rg.Temperature,
	}
	ng.Append(rg.ID, rg.Pressure.Value, rg.K.Value)
	*groups = append(*groups, ng)
	return true
}

// UpsertPooledMembership maintains the single per-dataset pool of active
// observations feeding the simulation parameter fits. The pool is created
// lazily on the first contributing observation.
func UpsertPooledMembership(pools *[]domain.PooledSample, obs domain.Observation, deleted bool) bool {
	touched := false
	var pool *domain.PooledSample
	for i := range *pools {
		p := &(*pools)[i]
		if p.Remove(obs.ID) {
			touched = true
		}
		if p.Dataset == obs.Dataset {
			pool = p
		}
	}

	if deleted || !obs.IsActive {
		return touched
	}
	tReactor, okT := obs.RawValue(derive.FieldReactorTemp)
	aReactant, okA := obs.RawValue(derive.FieldAreaReactant)
	if !okT || !okA {
		return touched
	}
	if obs.Derived.PartialPressure == nil || obs.Derived.SpaceTime == nil || obs.Derived.Conversion == nil {
		return touched
	}

	if pool == nil {
		*pools = append(*pools, domain.PooledSample{
			GroupMeta: domain.GroupMeta{Base: domain.Base{ID: nextID(*pools)}, Dataset: obs.Dataset},
		})
		pool = &(*pools)[len(*pools)-1]
	}
	pool.Append(obs.ID,
		obs.Derived.SpaceTime.Value,
		obs.Derived.PartialPressure.Value,
		tReactor.Value,
		obs.Derived.Conversion.Value,
		aReactant.Value)
	return true
}
