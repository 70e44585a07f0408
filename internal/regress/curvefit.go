package regress

import (
	"errors"
	"math"
)

// ModelFunc evaluates a model at x with parameter vector p.
type ModelFunc func(x float64, p []float64) float64

// Bounds constrains each parameter to [Lower[i], Upper[i]] during fitting.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// CurveResult holds a nonlinear least squares fit.
type CurveResult struct {
	Params   []float64
	Errors   []float64
	RSquared float64
}

const (
	lmMaxIter   = 200
	lmInitDamp  = 1e-3
	lmTolerance = 1e-10
)

// CurveFit fits model parameters to (x, y) by damped least squares
// (Levenberg-Marquardt) starting from p0. When bounds are given, each
// iterate is projected back into the feasible box. Parameter standard
// errors come from the scaled inverse of the normal matrix.
func CurveFit(model ModelFunc, x, y, p0 []float64, bounds *Bounds) (CurveResult, error) {
	if len(x) != len(y) {
		return CurveResult{}, errors.New("x and y lengths differ")
	}
	n := len(x)
	np := len(p0)
	if np == 0 {
		return CurveResult{}, errors.New("no parameters to fit")
	}
	if n < np {
		return CurveResult{}, ErrInsufficientData
	}
	if bounds != nil && (len(bounds.Lower) != np || len(bounds.Upper) != np) {
		return CurveResult{}, errors.New("bounds length mismatch")
	}

	p := make([]float64, np)
	copy(p, p0)
	clamp(p, bounds)

	residuals := func(p []float64) ([]float64, float64) {
		r := make([]float64, n)
		var ss float64
		for i := 0; i < n; i++ {
			r[i] = y[i] - model(x[i], p)
			ss += r[i] * r[i]
		}
		return r, ss
	}

	r, cost := residuals(p)
	if !isFinite(cost) {
		return CurveResult{}, errors.New("model not finite at initial guess")
	}

	damp := lmInitDamp
	converged := false
	for iter := 0; iter < lmMaxIter; iter++ {
		jac := jacobian(model, x, p, bounds)

		// normal equations: (JtJ + damp*diag(JtJ)) step = Jt r
		jtj := make([][]float64, np)
		jtr := make([]float64, np)
		for a := 0; a < np; a++ {
			jtj[a] = make([]float64, np)
			for b := 0; b < np; b++ {
				var s float64
				for i := 0; i < n; i++ {
					s += jac[i][a] * jac[i][b]
				}
				jtj[a][b] = s
			}
			var s float64
			for i := 0; i < n; i++ {
				s += jac[i][a] * r[i]
			}
			jtr[a] = s
		}

		improved := false
		for attempt := 0; attempt < 10; attempt++ {
			lhs := make([][]float64, np)
			for a := 0; a < np; a++ {
				lhs[a] = make([]float64, np)
				copy(lhs[a], jtj[a])
				lhs[a][a] += damp * jtj[a][a]
				if lhs[a][a] == 0 {
					lhs[a][a] = damp
				}
			}
			step, err := solve(lhs, jtr)
			if err != nil {
				damp *= 10
				continue
			}
			trial := make([]float64, np)
			for a := 0; a < np; a++ {
				trial[a] = p[a] + step[a]
			}
			clamp(trial, bounds)
			trialR, trialCost := residuals(trial)
			if isFinite(trialCost) && trialCost < cost {
				relDrop := (cost - trialCost) / math.Max(cost, 1e-300)
				p, r, cost = trial, trialR, trialCost
				damp = math.Max(damp/10, 1e-12)
				improved = true
				if relDrop < lmTolerance || normSq(step) < lmTolerance {
					converged = true
				}
				break
			}
			damp *= 10
		}
		if converged {
			break
		}
		if !improved {
			// damping saturated without progress: the current point is a
			// stationary point of the damped problem
			converged = true
			break
		}
	}
	if !converged {
		return CurveResult{}, ErrNoConvergence
	}

	errs, err := paramErrors(model, x, p, bounds, cost, n)
	if err != nil {
		errs = make([]float64, np)
	}

	var sumY float64
	for i := 0; i < n; i++ {
		sumY += y[i]
	}
	meanY := sumY / float64(n)
	var ssTot float64
	for i := 0; i < n; i++ {
		d := y[i] - meanY
		ssTot += d * d
	}
	rsq := 1.0
	if ssTot != 0 {
		rsq = 1 - cost/ssTot
	}

	return CurveResult{Params: p, Errors: errs, RSquared: rsq}, nil
}

// jacobian computes forward-difference partial derivatives of the model.
func jacobian(model ModelFunc, x, p []float64, bounds *Bounds) [][]float64 {
	n := len(x)
	np := len(p)
	jac := make([][]float64, n)
	for i := range jac {
		jac[i] = make([]float64, np)
	}
	base := make([]float64, n)
	for i := 0; i < n; i++ {
		base[i] = model(x[i], p)
	}
	pp := make([]float64, np)
	for a := 0; a < np; a++ {
		copy(pp, p)
		h := 1e-8 * math.Max(math.Abs(p[a]), 1)
		pp[a] += h
		clamp(pp, bounds)
		if pp[a] == p[a] {
			pp[a] = p[a] - h
			clamp(pp, bounds)
			h = pp[a] - p[a]
			if h == 0 {
				continue
			}
		} else {
			h = pp[a] - p[a]
		}
		for i := 0; i < n; i++ {
			jac[i][a] = (model(x[i], pp) - base[i]) / h
		}
	}
	return jac
}

// paramErrors derives standard errors from the scaled inverse normal matrix.
func paramErrors(model ModelFunc, x, p []float64, bounds *Bounds, cost float64, n int) ([]float64, error) {
	np := len(p)
	jac := jacobian(model, x, p, bounds)
	jtj := make([][]float64, np)
	for a := 0; a < np; a++ {
		jtj[a] = make([]float64, np)
		for b := 0; b < np; b++ {
			var s float64
			for i := 0; i < n; i++ {
				s += jac[i][a] * jac[i][b]
			}
			jtj[a][b] = s
		}
	}
	inv, err := invert(jtj)
	if err != nil {
		return nil, err
	}
	sigma2 := 0.0
	if n > np {
		sigma2 = cost / float64(n-np)
	}
	errs := make([]float64, np)
	for a := 0; a < np; a++ {
		v := inv[a][a] * sigma2
		if v > 0 {
			errs[a] = math.Sqrt(v)
		}
	}
	return errs, nil
}

func clamp(p []float64, bounds *Bounds) {
	if bounds == nil {
		return
	}
	for i := range p {
		if p[i] < bounds.Lower[i] {
			p[i] = bounds.Lower[i]
		}
		if p[i] > bounds.Upper[i] {
			p[i] = bounds.Upper[i]
		}
	}
}

func normSq(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// solve performs Gaussian elimination with partial pivoting on a copy of A.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	m := make([][]float64, n)
	for i := 0; i < n; i++ {
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if m[pivot][col] == 0 {
			return nil, errors.New("singular matrix")
		}
		m[col], m[pivot] = m[pivot], m[col]
		for row := col + 1; row < n; row++ {
			f := m[row][col] / m[col][col]
			for k := col; k <= n; k++ {
				m[row][k] -= f * m[col][k]
			}
		}
	}
	out := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		s := m[row][n]
		for k := row + 1; k < n; k++ {
			s -= m[row][k] * out[k]
		}
		out[row] = s / m[row][row]
	}
	return out, nil
}

// invert computes the inverse of a square matrix by Gauss-Jordan elimination.
func invert(a [][]float64) ([][]float64, error) {
	n := len(a)
	m := make([][]float64, n)
	for i := 0; i < n; i++ {
		m[i] = make([]float64, 2*n)
		copy(m[i], a[i])
		m[i][n+i] = 1
	}
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if m[pivot][col] == 0 {
			return nil, errors.New("singular matrix")
		}
		m[col], m[pivot] = m[pivot], m[col]
		f := m[col][col]
		for k := 0; k < 2*n; k++ {
			m[col][k] /= f
		}
		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			f := m[row][col]
			for k := 0; k < 2*n; k++ {
				m[row][k] -= f * m[col][k]
			}
		}
	}
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = m[i][n:]
	}
	return out, nil
}
