package results

import (
	"fmt"
	"math"

	"kineticore/internal/derive"
	"kineticore/internal/regress"
	"kineticore/pkg/domain"
	"kineticore/pkg/quantity"
)

const fitCurvePoints = 100

// Runner re-evaluates the regression of every dirty group in a family.
// All three families share the distinct-count diagnostic policy: zero
// distinct independent values clears the fit silently, one distinct value
// clears the fit with an error message, two fits with an estimate warning,
// three or more fits cleanly.
type Runner struct {
	gasConstant float64
}

// NewRunner builds a runner from the physical constants configuration.
func NewRunner(consts derive.Constants) Runner {
	return Runner{gasConstant: consts.GasConstant}
}

// tierMessage renders the per-family diagnostic for the one and two
// distinct value tiers.
func tierMessage(distinct int, variable, output string) string {
	switch distinct {
	case 1:
		return fmt.Sprintf(
			"Only one distinct %s value. Need at least three to calculate the %s. "+
				"The %s cannot be calculated. Please add more data points.",
			variable, output, output)
	case 2:
		return fmt.Sprintf(
			"Only two distinct %s values. Need at least three to calculate the %s. "+
				"The calculated %s is only an estimate. Please add more data points.",
			variable, output, output)
	default:
		return ""
	}
}

// SweepRateGroups refits every dirty rate group and returns the ids of the
// groups it processed, in sweep order. The fit is conversion = k*tau
// through the origin; a synthetic (0, 0) point joins the fit input as a
// boundary condition but never counts toward the distinct-value tiers.
func (r Runner) SweepRateGroups(groups []domain.RateGroup) []int64 {
	var swept []int64
	for i := range groups {
		g := &groups[i]
		if !g.IsDirty() {
			continue
		}
		swept = append(swept, g.ID)
		g.Fit = nil
		g.K = nil
		g.Diagnostic = ""

		distinct := distinctCount(g.Tau)
		if distinct < 2 {
			g.Diagnostic = tierMessage(distinct, "space time", "rate")
			g.ClearDirty()
			continue
		}

		tau := append(append([]float64(nil), g.Tau...), 0)
		conv := append(append([]float64(nil), g.Conversion...), 0)
		fit, err := regress.CurveFit(func(x float64, p []float64) float64 {
			return p[0] * x
		}, tau, conv, []float64{1}, nil)
		if err != nil {
			g.Diagnostic = "The rate fit did not converge. Please review the data points."
			g.ClearDirty()
			continue
		}

		k := quantity.NewWithUncertainty(fit.Params[0], fit.Errors[0], "mol/(kg*s)")
		g.K = &k

		expX, expY, simX, simY := splitBySimulated(tau, conv, g.Simulated)
		fitX := fitCurveRange(tau)
		fitY := make([]float64, len(fitX))
		for j, x := range fitX {
			fitY[j] = k.Value * x
		}
		g.Fit = &domain.FitResult{
			Coefficients: []domain.FitCoefficient{{Name: "k", Value: fit.Params[0], Uncertainty: fit.Errors[0]}},
			RSquared:     fit.RSquared,
			Series: []domain.PlotSeries{
				{Label: "Exp", X: expX, Y: expY},
				{Label: "Sim", X: simX, Y: simY},
				{Label: "Fit", X: fitX, Y: fitY},
			},
		}
		g.Diagnostic = tierMessage(distinct, "space time", "rate")
		g.ClearDirty()
	}
	return swept
}

// SweepEaGroups refits every dirty activation-energy group. The fit is
// ln k against 1/T; the activation energy is the negated slope scaled by
// the gas constant and the pre-exponential factor is the intercept.
func (r Runner) SweepEaGroups(groups []domain.EaGroup) {
	for i := range groups {
		g := &groups[i]
		if !g.IsDirty() {
			continue
		}
		g.Fit = nil
		g.ActivationEnergy = nil
		g.PreFactor = nil
		g.Diagnostic = ""

		distinct := distinctCount(g.Temperature)
		if distinct < 2 {
			g.Diagnostic = tierMessage(distinct, "reactor temperature", "activation energy")
			g.ClearDirty()
			continue
		}

		x := make([]float64, len(g.Temperature))
		y := make([]float64, len(g.Rate))
		bad := false
		for j := range g.Temperature {
			if g.Temperature[j] <= 0 || g.Rate[j] <= 0 {
				bad = true
				break
			}
			x[j] = 1 / g.Temperature[j]
			y[j] = math.Log(g.Rate[j])
		}
		if bad {
			g.Diagnostic = "The activation energy fit needs positive temperatures and rates."
			g.ClearDirty()
			continue
		}

		fit, err := regress.LinearFit(x, y)
		if err != nil {
			g.Diagnostic = "The activation energy fit failed. Please review the data points."
			g.ClearDirty()
			continue
		}

		ea := quantity.NewWithUncertainty(-fit.Slope*r.gasConstant, fit.SlopeErr*r.gasConstant, "J/mol")
		pre := quantity.NewWithUncertainty(fit.Intercept, fit.InterceptErr, "")
		g.ActivationEnergy = &ea
		g.PreFactor = &pre

		fitX := fitCurveRange(x)
		fitY := make([]float64, len(fitX))
		for j, v := range fitX {
			fitY[j] = fit.Slope*v + fit.Intercept
		}
		g.Fit = &domain.FitResult{
			Coefficients: []domain.FitCoefficient{
				{Name: "Ea", Value: ea.Value, Uncertainty: ea.Uncertainty},
				{Name: "A_app", Value: pre.Value, Uncertainty: pre.Uncertainty},
			},
			RSquared: fit.RSquared,
			Series: []domain.PlotSeries{
				{Label: "Data", X: x, Y: y},
				{Label: "Fit", X: fitX, Y: fitY},
			},
		}
		g.Diagnostic = tierMessage(distinct, "reactor temperature", "activation energy")
		g.ClearDirty()
	}
}

// SweepOrderGroups refits every dirty reaction-order group. The fit is
// log10 k against log10(p/1e5); the slope is the apparent reaction order.
func (r Runner) SweepOrderGroups(groups []domain.OrderGroup) {
	for i := range groups {
		g := &groups[i]
		if !g.IsDirty() {
			continue
		}
		g.Fit = nil
		g.Order = nil
		g.Diagnostic = ""

		distinct := distinctCount(g.Pressure)
		if distinct < 2 {
			g.Diagnostic = tierMessage(distinct, "pressure", "reaction order")
			g.ClearDirty()
			continue
		}

		x := make([]float64, len(g.Pressure))
		y := make([]float64, len(g.Rate))
		bad := false
		for j := range g.Pressure {
			if g.Pressure[j] <= 0 || g.Rate[j] <= 0 {
				bad = true
				break
			}
			x[j] = math.Log10(g.Pressure[j] / 1.0e5)
			y[j] = math.Log10(g.Rate[j])
		}
		if bad {
			g.Diagnostic = "The reaction order fit needs positive pressures and rates."
			g.ClearDirty()
			continue
		}

		fit, err := regress.LinearFit(x, y)
		if err != nil {
			g.Diagnostic = "The reaction order fit failed. Please review the data points."
			g.ClearDirty()
			continue
		}

		order := quantity.NewWithUncertainty(fit.Slope, fit.SlopeErr, "")
		g.Order = &order

		fitX := fitCurveRange(x)
		fitY := make([]float64, len(fitX))
		for j, v := range fitX {
			fitY[j] = fit.Slope*v + fit.Intercept
		}
		g.Fit = &domain.FitResult{
			Coefficients: []domain.FitCoefficient{{Name: "order", Value: order.Value, Uncertainty: order.Uncertainty}},
			RSquared:     fit.RSquared,
			Series: []domain.PlotSeries{
				{Label: "Data", X: x, Y: y},
				{Label: "Fit", X: fitX, Y: fitY},
			},
		}
		g.Diagnostic = tierMessage(distinct, "pressure", "reaction order")
		g.ClearDirty()
	}
}

// distinctCount counts distinct values by exact float equality, matching
// the exact-key semantics of group membership.
func distinctCount(vals []float64) int {
	seen := make(map[float64]struct{}, len(vals))
	for _, v := range vals {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// splitBySimulated partitions measured points into experimental and
// simulated marker series. The trailing synthetic origin point, which has
// no provenance flag, renders with the experimental series.
func splitBySimulated(x, y []float64, simulated []bool) (expX, expY, simX, simY []float64) {
	for i := range x {
		if i < len(simulated) && simulated[i] {
			simX = append(simX, x[i])
			simY = append(simY, y[i])
			continue
		}
		expX = append(expX, x[i])
		expY = append(expY, y[i])
	}
	return expX, expY, simX, simY
}

// fitCurveRange samples the fit display curve over the data range with ten
// percent padding on both sides.
func fitCurveRange(vals []float64) []float64 {
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	pad := (hi - lo) * 0.1
	lo -= pad
	hi += pad
	out := make([]float64, fitCurvePoints)
	step := (hi - lo) / float64(fitCurvePoints-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}
