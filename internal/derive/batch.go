package derive

import (
	"fmt"

	"kineticore/internal/regress"
	"kineticore/pkg/domain"
)

// BatchResult is the outcome of analysing one batch conductivity trace.
// Rate is nil-equivalent when the slope fit fails: Fitted stays empty and
// HasRate reports false, but the measured series is still usable.
type BatchResult struct {
	Rate     float64
	RateErr  float64
	RSquared float64
	Points   int
	HasRate  bool
	Measured domain.PlotSeries
	Fitted   domain.PlotSeries
}

// Batch analyses conductivity traces from the stirred batch reactor.
type Batch struct {
	consts Constants
}

// NewBatch builds a batch analyser from the given constants.
func NewBatch(consts Constants) Batch {
	return Batch{consts: consts}
}

// Analyze converts a conductivity trace into an initial reaction rate.
//
// The trace is normalised to conversion using its extreme conductivities,
// the initial-rate region ends at the configured threshold crossing, and a
// progressive zero-intercept slope fit over that region yields the rate
// via the reference concentration cBase (mol/m^3). The measured series is
// concentration over time; the fitted series covers the accepted window.
func (b Batch) Analyze(times, sigma []float64, cBase float64) (BatchResult, error) {
	if len(times) != len(sigma) {
		return BatchResult{}, fmt.Errorf("derive: trace length mismatch")
	}
	if len(times) < 2 {
		return BatchResult{}, fmt.Errorf("derive: trace too short")
	}
	if cBase <= 0 {
		return BatchResult{}, fmt.Errorf("derive: reference concentration must be positive")
	}

	sigma0, sigma100 := sigma[0], sigma[0]
	for _, s := range sigma {
		if s > sigma0 {
			sigma0 = s
		}
		if s < sigma100 {
			sigma100 = s
		}
	}
	if sigma0 == sigma100 {
		return BatchResult{}, fmt.Errorf("derive: conductivity trace is flat")
	}

	conv := make([]float64, len(sigma))
	for i, s := range sigma {
		conv[i] = (s - sigma0) / (sigma100 - sigma0)
	}

	// the initial-rate window ends where conversion first crosses the threshold
	minPoints := len(conv)
	for i, x := range conv {
		if x >= b.consts.BatchThreshold {
			minPoints = i
			break
		}
	}

	res := BatchResult{}
	res.Measured = domain.PlotSeries{Label: "Data", X: append([]float64(nil), times...)}
	res.Measured.Y = make([]float64, len(conv))
	for i, x := range conv {
		res.Measured.Y[i] = (1 - x) * cBase
	}

	slope, err := regress.ProgressiveSlope(times, conv, minPoints, b.consts.SlopeQuality)
	if err != nil {
		// partial result: the trace is displayable but carries no rate
		return res, nil
	}

	res.HasRate = true
	res.Rate = slope.Slope * cBase
	res.RateErr = slope.SlopeErr * cBase
	res.RSquared = slope.RSquared
	res.Points = slope.Points

	fitX := times[:slope.Points]
	res.Fitted = domain.PlotSeries{Label: "Fit", X: append([]float64(nil), fitX...)}
	res.Fitted.Y = make([]float64, len(fitX))
	c0 := res.Measured.Y[0]
	for i, tx := range fitX {
		res.Fitted.Y[i] = c0 - res.Rate*tx
	}
	return res, nil
}
