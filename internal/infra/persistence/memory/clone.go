package memory

import (
	"time"

	"kineticore/pkg/domain"
	"kineticore/pkg/quantity"
)

type quantityValue = quantity.Quantity

func cloneQuantityPtr(q *quantity.Quantity) *quantity.Quantity {
	if q == nil {
		return nil
	}
	cp := *q
	return &cp
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneFloatPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

func cloneFitResult(f *domain.FitResult) *domain.FitResult {
	if f == nil {
		return nil
	}
	cp := domain.FitResult{
		Coefficients: append([]domain.FitCoefficient(nil), f.Coefficients...),
		RSquared:     f.RSquared,
	}
	if f.Series != nil {
		cp.Series = make([]domain.PlotSeries, len(f.Series))
		for i, s := range f.Series {
			cp.Series[i] = domain.PlotSeries{
				Label: s.Label,
				X:     append([]float64(nil), s.X...),
				Y:     append([]float64(nil), s.Y...),
			}
		}
	}
	return &cp
}

func cloneObservation(o Observation) Observation {
	cp := o
	if o.Raw != nil {
		cp.Raw = make(map[string]quantityValue, len(o.Raw))
		for k, v := range o.Raw {
			cp.Raw[k] = v
		}
	}
	cp.Derived.PartialPressure = cloneQuantityPtr(o.Derived.PartialPressure)
	cp.Derived.SpaceTime = cloneQuantityPtr(o.Derived.SpaceTime)
	cp.Derived.Conversion = cloneQuantityPtr(o.Derived.Conversion)
	cp.Derived.Rate = cloneQuantityPtr(o.Derived.Rate)
	cp.DerivedAt = cloneTimePtr(o.DerivedAt)
	return cp
}

func cloneRateGroup(g RateGroup) RateGroup {
	cp := g
	cp.MemberIDs = append([]int64(nil), g.MemberIDs...)
	cp.Tau = append([]float64(nil), g.Tau...)
	cp.Conversion = append([]float64(nil), g.Conversion...)
	cp.Active = append([]bool(nil), g.Active...)
	cp.Simulated = append([]bool(nil), g.Simulated...)
	cp.Fit = cloneFitResult(g.Fit)
	cp.K = cloneQuantityPtr(g.K)
	return cp
}

func cloneEaGroup(g EaGroup) EaGroup {
	cp := g
	cp.MemberIDs = append([]int64(nil), g.MemberIDs...)
	cp.Temperature = append([]float64(nil), g.Temperature...)
	cp.Rate = append([]float64(nil), g.Rate...)
	cp.Fit = cloneFitResult(g.Fit)
	cp.ActivationEnergy = cloneQuantityPtr(g.ActivationEnergy)
	cp.PreFactor = cloneQuantityPtr(g.PreFactor)
	return cp
}

func cloneOrderGroup(g OrderGroup) OrderGroup {
	cp := g
	cp.MemberIDs = append([]int64(nil), g.MemberIDs...)
	cp.Pressure = append([]float64(nil), g.Pressure...)
	cp.Rate = append([]float64(nil), g.Rate...)
	cp.Fit = cloneFitResult(g.Fit)
	cp.Order = cloneQuantityPtr(g.Order)
	return cp
}

func clonePooledSample(p PooledSample) PooledSample {
	cp := p
	cp.MemberIDs = append([]int64(nil), p.MemberIDs...)
	cp.Tau = append([]float64(nil), p.Tau...)
	cp.Pressure = append([]float64(nil), p.Pressure...)
	cp.Temperature = append([]float64(nil), p.Temperature...)
	cp.Conversion = append([]float64(nil), p.Conversion...)
	cp.AreaReactant = append([]float64(nil), p.AreaReactant...)
	return cp
}

func cloneSimParams(p SimParams) SimParams {
	cp := p
	cp.PressureToArea = cloneFloatPtr(p.PressureToArea)
	cp.PreFactor = cloneFloatPtr(p.PreFactor)
	cp.ActivationEnergy = cloneFloatPtr(p.ActivationEnergy)
	cp.ReactionOrder = cloneFloatPtr(p.ReactionOrder)
	return cp
}
