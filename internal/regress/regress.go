// Package regress provides the regression primitives behind the result
// group analyses: ordinary least squares, bounded Levenberg-Marquardt curve
// fitting, and the progressive initial-slope fit used by batch kinetics.
//
// All functions operate on plain float64 slices in base units. Failures are
// reported as errors; callers translate them into per-group diagnostics.
package regress

import (
	"errors"
	"math"
)

// Sentinel errors shared by all fitting routines.
var (
	// ErrInsufficientData indicates fewer points than the model needs.
	ErrInsufficientData = errors.New("insufficient data points")
	// ErrZeroVariance indicates the independent variable carries no spread.
	ErrZeroVariance = errors.New("zero variance in independent variable")
	// ErrNoConvergence indicates the iterative fit exhausted its iterations.
	ErrNoConvergence = errors.New("fit did not converge")
)

// LinearResult holds an ordinary least squares line fit.
type LinearResult struct {
	Slope        float64
	SlopeErr     float64
	Intercept    float64
	InterceptErr float64
	RSquared     float64
	Points       int
}

// LinearFit computes the ordinary least squares line y = slope*x + intercept
// with standard errors on both coefficients.
func LinearFit(x, y []float64) (LinearResult, error) {
	if len(x) != len(y) {
		return LinearResult{}, errors.New("x and y lengths differ")
	}
	n := len(x)
	if n < 2 {
		return LinearResult{}, ErrInsufficientData
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, sxy, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return LinearResult{}, ErrZeroVariance
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	var ssRes float64
	for i := 0; i < n; i++ {
		r := y[i] - (slope*x[i] + intercept)
		ssRes += r * r
	}

	res := LinearResult{Slope: slope, Intercept: intercept, Points: n}
	if syy == 0 {
		res.RSquared = 1
	} else {
		res.RSquared = 1 - ssRes/syy
	}
	if n > 2 {
		sigma2 := ssRes / float64(n-2)
		res.SlopeErr = math.Sqrt(sigma2 / sxx)
		res.InterceptErr = math.Sqrt(sigma2 * (1/float64(n) + meanX*meanX/sxx))
	}
	return res, nil
}

// SlopeResult holds a zero-intercept slope fit over a leading window of the data.
type SlopeResult struct {
	Slope    float64
	SlopeErr float64
	RSquared float64
	Points   int
}

// ProgressiveSlope fits y = slope*x through the origin over a growing leading
// window. The window starts at minPoints and grows one point at a time while
// the fit quality stays at or above threshold; the first window is always
// accepted so a poorly conditioned head of the trace still yields a slope.
// The returned result reflects the largest accepted window.
func ProgressiveSlope(x, y []float64, minPoints int, threshold float64) (SlopeResult, error) {
	if len(x) != len(y) {
		return SlopeResult{}, errors.New("x and y lengths differ")
	}
	if minPoints < 2 {
		minPoints = 2
	}
	if len(x) < minPoints {
		return SlopeResult{}, ErrInsufficientData
	}

	var accepted SlopeResult
	for i := minPoints; i <= len(x); i++ {
		res, err := zeroInterceptFit(x[:i], y[:i])
		if err != nil {
			return SlopeResult{}, err
		}
		if res.RSquared >= threshold || i == minPoints {
			accepted = res
			continue
		}
		break
	}
	return accepted, nil
}

// zeroInterceptFit solves y = slope*x by least squares.
func zeroInterceptFit(x, y []float64) (SlopeResult, error) {
	n := len(x)
	var sxx, sxy float64
	for i := 0; i < n; i++ {
		sxx += x[i] * x[i]
		sxy += x[i] * y[i]
	}
	if sxx == 0 {
		return SlopeResult{}, ErrZeroVariance
	}
	slope := sxy / sxx

	var sumY, ssRes float64
	for i := 0; i < n; i++ {
		sumY += y[i]
		r := y[i] - slope*x[i]
		ssRes += r * r
	}
	meanY := sumY / float64(n)
	var ssTot float64
	for i := 0; i < n; i++ {
		d := y[i] - meanY
		ssTot += d * d
	}

	res := SlopeResult{Slope: slope, Points: n}
	if ssTot == 0 {
		res.RSquared = 1
	} else {
		res.RSquared = 1 - ssRes/ssTot
	}
	if n > 1 {
		res.SlopeErr = math.Sqrt(ssRes / float64(n-1) / sxx)
	}
	return res, nil
}
