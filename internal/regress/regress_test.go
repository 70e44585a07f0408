package regress

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestLinearFitExactLine(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 2.5*v - 1.0
	}
	res, err := LinearFit(x, y)
	if err != nil {
		t.Fatalf("LinearFit returned error: %v", err)
	}
	if !almostEqual(res.Slope, 2.5, 1e-12) || !almostEqual(res.Intercept, -1.0, 1e-12) {
		t.Fatalf("fit = %+v", res)
	}
	if !almostEqual(res.RSquared, 1, 1e-12) {
		t.Fatalf("RSquared = %g, want 1", res.RSquared)
	}
	if res.SlopeErr > 1e-10 || res.InterceptErr > 1e-10 {
		t.Fatalf("exact data must yield near-zero coefficient errors: %+v", res)
	}
}

func TestLinearFitNoisyLine(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	y := []float64{0.1, 1.05, 1.9, 3.1, 3.95, 5.05, 5.9, 7.1}
	res, err := LinearFit(x, y)
	if err != nil {
		t.Fatalf("LinearFit returned error: %v", err)
	}
	if !almostEqual(res.Slope, 1, 0.05) {
		t.Fatalf("slope = %g, want about 1", res.Slope)
	}
	if res.SlopeErr <= 0 {
		t.Fatalf("noisy data must yield a positive slope error")
	}
	if res.RSquared < 0.99 {
		t.Fatalf("RSquared = %g", res.RSquared)
	}
}

func TestLinearFitErrors(t *testing.T) {
	if _, err := LinearFit([]float64{1}, []float64{2}); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("single point: err = %v", err)
	}
	if _, err := LinearFit([]float64{2, 2, 2}, []float64{1, 2, 3}); !errors.Is(err, ErrZeroVariance) {
		t.Fatalf("constant x: err = %v", err)
	}
	if _, err := LinearFit([]float64{1, 2}, []float64{1}); err == nil {
		t.Fatalf("length mismatch must error")
	}
}

func TestProgressiveSlopeCleanLine(t *testing.T) {
	// y = 3x round trip: every window passes the quality gate, so the
	// accepted window is the whole series.
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 3 * v
	}
	res, err := ProgressiveSlope(x, y, 3, 0.99)
	if err != nil {
		t.Fatalf("ProgressiveSlope returned error: %v", err)
	}
	if !almostEqual(res.Slope, 3, 1e-12) {
		t.Fatalf("slope = %g, want 3", res.Slope)
	}
	if res.Points != len(x) {
		t.Fatalf("points = %d, want %d", res.Points, len(x))
	}
}

func TestProgressiveSlopeStopsAtCurvature(t *testing.T) {
	// linear head, saturating tail: the window must stop growing when the
	// tail degrades the fit.
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	y := []float64{2, 4, 6, 8, 9.0, 9.4, 9.6, 9.7}
	res, err := ProgressiveSlope(x, y, 3, 0.99)
	if err != nil {
		t.Fatalf("ProgressiveSlope returned error: %v", err)
	}
	if res.Points >= len(x) {
		t.Fatalf("window must not cover the saturated tail, got %d points", res.Points)
	}
	if !almostEqual(res.Slope, 2, 0.1) {
		t.Fatalf("slope = %g, want about 2", res.Slope)
	}
}

func TestProgressiveSlopeFirstWindowFallback(t *testing.T) {
	// the first window is accepted even when below threshold
	x := []float64{1, 2, 3, 4}
	y := []float64{5, 1, 9, 2}
	res, err := ProgressiveSlope(x, y, 4, 0.99)
	if err != nil {
		t.Fatalf("ProgressiveSlope returned error: %v", err)
	}
	if res.Points != 4 {
		t.Fatalf("points = %d, want 4", res.Points)
	}
}

func TestProgressiveSlopeInsufficientData(t *testing.T) {
	if _, err := ProgressiveSlope([]float64{1, 2}, []float64{1, 2}, 5, 0.99); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v", err)
	}
}

func TestCurveFitLinearThroughOrigin(t *testing.T) {
	model := func(x float64, p []float64) float64 { return p[0] * x }
	x := []float64{0.5, 1, 1.5, 2, 2.5, 3}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 0.034 * v
	}
	res, err := CurveFit(model, x, y, []float64{1}, nil)
	if err != nil {
		t.Fatalf("CurveFit returned error: %v", err)
	}
	if !almostEqual(res.Params[0], 0.034, 1e-9) {
		t.Fatalf("k = %g, want 0.034", res.Params[0])
	}
	if !almostEqual(res.RSquared, 1, 1e-9) {
		t.Fatalf("RSquared = %g", res.RSquared)
	}
}

func TestCurveFitExponentialDecay(t *testing.T) {
	model := func(x float64, p []float64) float64 { return p[0] * math.Exp(-p[1]*x) }
	truth := []float64{2.0, 0.7}
	x := []float64{0, 0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = model(v, truth)
	}
	res, err := CurveFit(model, x, y, []float64{1, 1}, nil)
	if err != nil {
		t.Fatalf("CurveFit returned error: %v", err)
	}
	if !almostEqual(res.Params[0], truth[0], 1e-6) || !almostEqual(res.Params[1], truth[1], 1e-6) {
		t.Fatalf("params = %v, want %v", res.Params, truth)
	}
}

func TestCurveFitRespectsBounds(t *testing.T) {
	model := func(x float64, p []float64) float64 { return p[0] * x }
	x := []float64{1, 2, 3}
	y := []float64{5, 10, 15}
	bounds := &Bounds{Lower: []float64{0}, Upper: []float64{2}}
	res, err := CurveFit(model, x, y, []float64{1}, bounds)
	if err != nil {
		t.Fatalf("CurveFit returned error: %v", err)
	}
	if res.Params[0] > 2+1e-12 {
		t.Fatalf("fitted parameter %g escaped its upper bound", res.Params[0])
	}
}

func TestCurveFitErrors(t *testing.T) {
	model := func(x float64, p []float64) float64 { return p[0] * x }
	if _, err := CurveFit(model, []float64{1}, []float64{1}, []float64{1, 2}, nil); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v", err)
	}
	if _, err := CurveFit(model, []float64{1, 2}, []float64{1}, []float64{1}, nil); err == nil {
		t.Fatalf("length mismatch must error")
	}
}

func TestCurveFitReportsParameterErrors(t *testing.T) {
	model := func(x float64, p []float64) float64 { return p[0] * x }
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{1.1, 1.9, 3.2, 3.8, 5.1}
	res, err := CurveFit(model, x, y, []float64{1}, nil)
	if err != nil {
		t.Fatalf("CurveFit returned error: %v", err)
	}
	if res.Errors[0] <= 0 {
		t.Fatalf("noisy data must yield a positive parameter error, got %g", res.Errors[0])
	}
}
