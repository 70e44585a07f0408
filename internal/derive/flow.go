package derive

import (
	"fmt"
	"math"
	"time"

	"kineticore/pkg/domain"
	"kineticore/pkg/quantity"
)

// Raw field names recorded by the flow experiment.
const (
	FieldBathTemp     = "T_bath"
	FieldReactorTemp  = "T_reactor"
	FieldCatalystMass = "M_catalyst"
	FieldFlowRate     = "V_flow"
	FieldAreaReactant = "A_reactant"
	FieldAreaProduct  = "A_product"
)

// Flow derives partial pressure, space time, and conversion for
// flow-reactor observations. All inputs and outputs are in SI base units.
type Flow struct {
	consts Constants
}

// NewFlow builds a flow deriver from the given constants.
func NewFlow(consts Constants) Flow {
	return Flow{consts: consts}
}

// SaturationPressure evaluates the Antoine correlation for the configured
// substance at the bath temperature, returning pascal.
func (f Flow) SaturationPressure(tBath float64) (float64, error) {
	coeffs, ok := f.consts.Antoine[f.consts.Substance]
	if !ok {
		return 0, fmt.Errorf("derive: no Antoine coefficients for %q", f.consts.Substance)
	}
	denom := tBath + coeffs.C
	if denom == 0 {
		return 0, fmt.Errorf("derive: Antoine pole at T=%g K", tBath)
	}
	pSat := math.Pow(10, coeffs.A-coeffs.B/denom) * 1.0e5
	if !isFinite(pSat) || pSat <= 0 {
		return 0, fmt.Errorf("derive: saturation pressure not finite at T=%g K", tBath)
	}
	return pSat, nil
}

// SpaceTime computes tau = M_catalyst / (C * V_flow) with the reactant
// concentration from the ideal gas law at the bath temperature. The result
// is in kg*s/mol.
func (f Flow) SpaceTime(mCatalyst, vFlow, p, tBath float64) (float64, error) {
	if mCatalyst <= 0 || vFlow <= 0 || p <= 0 || tBath <= 0 {
		return 0, fmt.Errorf("derive: space time needs positive inputs")
	}
	conc := p / (f.consts.GasConstant * tBath)
	molarFlow := conc * vFlow
	return mCatalyst / molarFlow, nil
}

// Conversion computes the reactant conversion from the product peak area in
// reactor mode and the reactant peak area in bypass mode, capped at one.
func Conversion(aReactant, aProduct float64) (float64, error) {
	if aReactant == 0 {
		return 0, fmt.Errorf("derive: reactant peak area is zero")
	}
	conv := aProduct / aReactant
	if !isFinite(conv) {
		return 0, fmt.Errorf("derive: conversion not finite")
	}
	if conv > 1 {
		conv = 1
	}
	return conv, nil
}

// Derive fills the observation's derived quantities from its raw fields.
// Each step that cannot run leaves its output nil and the chain continues;
// the observation is stamped as derived either way so the pipeline does not
// retry until the record changes.
func (f Flow) Derive(obs *domain.Observation, now time.Time) {
	obs.Derived = domain.Derived{}

	tBath, okBath := rawMagnitude(obs, FieldBathTemp)
	if okBath {
		if pSat, err := f.SaturationPressure(tBath); err == nil {
			q := quantity.New(pSat, "Pa")
			obs.Derived.PartialPressure = &q

			mCat, okM := rawMagnitude(obs, FieldCatalystMass)
			vFlow, okV := rawMagnitude(obs, FieldFlowRate)
			if okM && okV {
				if tau, err := f.SpaceTime(mCat, vFlow, pSat, tBath); err == nil {
					q := quantity.New(tau, "kg*s/mol")
					obs.Derived.SpaceTime = &q
				}
			}
		}
	}

	aReactant, okR := rawMagnitude(obs, FieldAreaReactant)
	aProduct, okP := rawMagnitude(obs, FieldAreaProduct)
	if okR && okP {
		if conv, err := Conversion(aReactant, aProduct); err == nil {
			q := quantity.New(conv, "")
			obs.Derived.Conversion = &q
		}
	}

	stamp := now
	obs.DerivedAt = &stamp
}

func rawMagnitude(obs *domain.Observation, field string) (float64, bool) {
	q, ok := obs.RawValue(field)
	if !ok || !q.IsFinite() {
		return 0, false
	}
	return q.Value, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
