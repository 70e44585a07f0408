// Package simulate fits the simulation parameters of the flow experiment
// from a dataset's pooled observations and produces synthetic instrument
// readings from them: the pressure-to-peak-area factor and the plug-flow
// reactor kinetics (pre-exponential factor, activation energy, reaction
// order).
package simulate

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"kineticore/internal/derive"
	"kineticore/internal/regress"
	"kineticore/pkg/domain"
)

// ErrInsufficientData indicates the pool lacks the distinct values a fit needs.
var ErrInsufficientData = errors.New("insufficient distinct values in pooled sample")

// pfrSlices is the slice count for the numerical reactor integration.
const pfrSlices = 100

// Params are the kinetic parameters of the plug-flow reactor model. The
// pre-exponential factor is in exponential form: k = exp(A - Ea/(R*T)).
type Params struct {
	PreFactor        float64
	ActivationEnergy float64
	ReactionOrder    float64
}

// GlobalParams are the lab-wide fallback simulation parameters, used until
// a dataset accumulates enough data for its own fit.
type GlobalParams struct {
	PressureToArea float64
	Kinetics       Params
}

// DefaultGlobalParams returns the lab-calibrated fallback parameters.
func DefaultGlobalParams() GlobalParams {
	return GlobalParams{
		PressureToArea: 0.125,
		Kinetics:       Params{PreFactor: 29.453551, ActivationEnergy: 132648, ReactionOrder: 1.0},
	}
}

// AcceptRSquared is the fit quality a per-dataset parameter fit must reach
// before it overrides the global fallback.
const AcceptRSquared = 0.995

// PFRConversion integrates the plug-flow reactor over the space time in
// fixed slices and returns the reactant conversion at the outlet.
func PFRConversion(consts derive.Constants, tau, pressure, temperature float64, p Params) float64 {
	k := math.Exp(p.PreFactor - p.ActivationEnergy/(consts.GasConstant*temperature))
	tauSlice := tau / pfrSlices
	pIn := pressure
	for i := 0; i < pfrSlices; i++ {
		r := k * math.Pow(pIn/1.0e5, p.ReactionOrder)
		x := r * tauSlice
		pOut := (1 - x) * pIn
		if pOut < 0 {
			pOut = 0
		}
		pIn = pOut
	}
	return (pressure - pIn) / pressure
}

// FitPressureArea fits A_reactant = factor * p over the pooled sample.
// It needs more than two distinct pressures.
func FitPressureArea(pool domain.PooledSample) (factor, factorErr, rsq float64, err error) {
	if distinct(pool.Pressure) <= 2 {
		return 0, 0, 0, ErrInsufficientData
	}
	fit, err := regress.CurveFit(func(x float64, p []float64) float64 {
		return p[0] * x
	}, pool.Pressure, pool.AreaReactant, []float64{1e-3}, nil)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("pressure-area fit: %w", err)
	}
	return fit.Params[0], fit.Errors[0], fit.RSquared, nil
}

// FitKineticParams fits the reactor model parameters over the pooled
// (tau, p, T) -> conversion data. It needs more than two distinct values
// of each input. The initial guess is the global parameter set.
func FitKineticParams(consts derive.Constants, pool domain.PooledSample, guess Params) (Params, Params, float64, error) {
	if distinct(pool.Tau) <= 2 || distinct(pool.Pressure) <= 2 || distinct(pool.Temperature) <= 2 {
		return Params{}, Params{}, 0, ErrInsufficientData
	}

	// the model input is the sample index; the closure reads the pooled
	// columns directly
	idx := make([]float64, len(pool.MemberIDs))
	for i := range idx {
		idx[i] = float64(i)
	}
	model := func(x float64, p []float64) float64 {
		i := int(x)
		return PFRConversion(consts, pool.Tau[i], pool.Pressure[i], pool.Temperature[i],
			Params{PreFactor: p[0], ActivationEnergy: p[1], ReactionOrder: p[2]})
	}
	p0 := []float64{guess.PreFactor, guess.ActivationEnergy, guess.ReactionOrder}
	fit, err := regress.CurveFit(model, idx, pool.Conversion, p0, nil)
	if err != nil {
		return Params{}, Params{}, 0, fmt.Errorf("kinetic fit: %w", err)
	}
	fitted := Params{PreFactor: fit.Params[0], ActivationEnergy: fit.Params[1], ReactionOrder: fit.Params[2]}
	errs := Params{PreFactor: fit.Errors[0], ActivationEnergy: fit.Errors[1], ReactionOrder: fit.Errors[2]}
	return fitted, errs, fit.RSquared, nil
}

// Refit recomputes a dataset's simulation parameters from its pool,
// clearing any parameter whose fit cannot run.
func Refit(consts derive.Constants, global GlobalParams, pool domain.PooledSample, sp *domain.SimParams) {
	sp.Dataset = pool.Dataset

	if factor, _, rsq, err := FitPressureArea(pool); err == nil {
		sp.PressureToArea = &factor
		sp.PressureToAreaR2 = rsq
	} else {
		sp.PressureToArea = nil
		sp.PressureToAreaR2 = 0
	}

	if fitted, _, rsq, err := FitKineticParams(consts, pool, global.Kinetics); err == nil {
		sp.PreFactor = &fitted.PreFactor
		sp.ActivationEnergy = &fitted.ActivationEnergy
		sp.ReactionOrder = &fitted.ReactionOrder
		sp.KineticR2 = rsq
	} else {
		sp.PreFactor = nil
		sp.ActivationEnergy = nil
		sp.ReactionOrder = nil
		sp.KineticR2 = 0
	}
}

// Settings are the instrument settings a simulated run is requested for,
// in SI base units.
type Settings struct {
	CatalystMass float64
	FlowRate     float64
	ReactorTemp  float64
	BathTemp     float64
}

// Outcome is one simulated instrument reading.
type Outcome struct {
	AreaReactant float64
	AreaProduct  float64
	Pressure     float64
	Tau          float64
	Conversion   float64
}

// Simulator produces synthetic peak areas from instrument settings. The
// per-dataset fitted parameters override the globals only when their fit
// quality clears AcceptRSquared.
type Simulator struct {
	consts derive.Constants
	flow   derive.Flow
	global GlobalParams
	rng    *rand.Rand
}

// NewSimulator builds a simulator. A nil rng yields noise-free output,
// useful for tests.
func NewSimulator(consts derive.Constants, global GlobalParams, rng *rand.Rand) Simulator {
	return Simulator{consts: consts, flow: derive.NewFlow(consts), global: global, rng: rng}
}

// Run simulates one measurement. sp may be nil when the dataset has no
// fitted parameters yet.
func (s Simulator) Run(settings Settings, sp *domain.SimParams) (Outcome, error) {
	pSat, err := s.flow.SaturationPressure(settings.BathTemp)
	if err != nil {
		return Outcome{}, err
	}
	tau, err := s.flow.SpaceTime(settings.CatalystMass, settings.FlowRate, pSat, settings.BathTemp)
	if err != nil {
		return Outcome{}, err
	}

	factor := s.global.PressureToArea
	if sp != nil && sp.PressureToArea != nil && sp.PressureToAreaR2 >= AcceptRSquared {
		factor = *sp.PressureToArea
	}
	kin := s.global.Kinetics
	if sp != nil && sp.PreFactor != nil && sp.ActivationEnergy != nil && sp.ReactionOrder != nil && sp.KineticR2 >= AcceptRSquared {
		kin = Params{PreFactor: *sp.PreFactor, ActivationEnergy: *sp.ActivationEnergy, ReactionOrder: *sp.ReactionOrder}
	}

	areaReactant := pSat * factor
	conversion := PFRConversion(s.consts, tau, pSat, settings.ReactorTemp, kin)
	noise := 0.0
	if s.rng != nil {
		noise = s.rng.NormFloat64() * 2.5
	}
	areaProduct := conversion * (1 + noise/100) * areaReactant

	return Outcome{
		AreaReactant: areaReactant,
		AreaProduct:  areaProduct,
		Pressure:     pSat,
		Tau:          tau,
		Conversion:   conversion,
	}, nil
}

func distinct(vals []float64) int {
	seen := make(map[float64]struct{}, len(vals))
	for _, v := range vals {
		seen[v] = struct{}{}
	}
	return len(seen)
}
