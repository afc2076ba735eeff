// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package activeset

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// nnls solves min ‖E·u - f‖₂ subject to u ≥ 0 with the Lawson-Hanson
// active-set iteration. E is an m×k gonum dense matrix. Returns the
// solution u and the residual r = E·u - f, or ok=false when the iteration
// limit is hit.
func nnls(e *mat.Dense, f []float64, maxIter int) (u, r []float64, ok bool) {
	m, k := e.Dims()
	if maxIter <= 0 {
		maxIter = 3 * k
	}

	u = make([]float64, k)
	passive := make([]bool, k)
	w := make([]float64, k)
	resid := make([]float64, m)
	col := make([]float64, m)

	residual := func() {
		copy(resid, f)
		for j := 0; j < k; j++ {
			if u[j] == 0 {
				continue
			}
			mat.Col(col, j, e)
			for i := range resid {
				resid[i] -= u[j] * col[i]
			}
		}
	}
	dual := func() {
		// w = Eᵀ(f - E·u)
		for j := 0; j < k; j++ {
			mat.Col(col, j, e)
			sum := 0.0
			for i := range resid {
				sum += col[i] * resid[i]
			}
			w[j] = sum
		}
	}

	residual()
	dual()

	const tol = 1e-11
	for iter := 0; iter < maxIter; iter++ {
		// pick the most promising zero-bound coordinate
		t, best := -1, tol
		for j := 0; j < k; j++ {
			if !passive[j] && w[j] > best {
				t, best = j, w[j]
			}
		}
		if t < 0 {
			// r = E·u - f
			residual()
			for i := range resid {
				resid[i] = -resid[i]
			}
			r = resid
			return u, r, true
		}
		passive[t] = true

		for inner := 0; inner <= k; inner++ {
			s, solvable := passiveLeastSquares(e, f, passive)
			if !solvable {
				passive[t] = false
				break
			}
			smallest := math.Inf(1)
			for j := 0; j < k; j++ {
				if passive[j] {
					smallest = math.Min(smallest, s[j])
				}
			}
			if smallest > 0 {
				copy(u, s)
				break
			}
			// interpolate back to the feasible boundary
			alpha := math.Inf(1)
			for j := 0; j < k; j++ {
				if passive[j] && s[j] <= 0 {
					alpha = math.Min(alpha, u[j]/(u[j]-s[j]))
				}
			}
			for j := 0; j < k; j++ {
				if passive[j] {
					u[j] += alpha * (s[j] - u[j])
					if u[j] <= tol {
						u[j] = 0
						passive[j] = false
					}
				}
			}
		}
		residual()
		dual()
	}
	return u, nil, false
}

// passiveLeastSquares solves the unconstrained least-squares problem
// restricted to the passive columns, scattering the result back to full
// length with zeros elsewhere.
func passiveLeastSquares(e *mat.Dense, f []float64, passive []bool) ([]float64, bool) {
	m, k := e.Dims()
	columns := make([]int, 0, k)
	for j := 0; j < k; j++ {
		if passive[j] {
			columns = append(columns, j)
		}
	}
	if len(columns) == 0 {
		return make([]float64, k), true
	}
	sub := mat.NewDense(m, len(columns), nil)
	col := make([]float64, m)
	for p, j := range columns {
		mat.Col(col, j, e)
		sub.SetCol(p, col)
	}
	var qr mat.QR
	qr.Factorize(sub)
	rhs := mat.NewVecDense(m, append([]float64(nil), f...))
	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, rhs); err != nil {
		return nil, false
	}
	s := make([]float64, k)
	for p, j := range columns {
		s[j] = sol.AtVec(p)
	}
	return s, true
}

// ldp solves the least-distance problem min ‖x‖₂ subject to G·x ≥ h through
// one NNLS solve on the augmented matrix [Gᵀ; hᵀ]. It reports incompatible
// constraints when the NNLS residual vanishes. The returned multipliers
// satisfy x = Gᵀ·lambda with lambda ≥ 0.
func ldp(g [][]float64, h []float64, n, maxIter int) (x, lambda []float64, status Status) {
	mi := len(g)
	if mi == 0 {
		return make([]float64, n), nil, StatusOptimal
	}
	e := mat.NewDense(n+1, mi, nil)
	for j := 0; j < mi; j++ {
		for i := 0; i < n; i++ {
			e.Set(i, j, g[j][i])
		}
		e.Set(n, j, h[j])
	}
	f := make([]float64, n+1)
	f[n] = 1

	u, r, ok := nnls(e, f, maxIter)
	if !ok {
		return nil, nil, StatusError
	}
	rnorm := 0.0
	for _, v := range r {
		rnorm += v * v
	}
	if math.Sqrt(rnorm) <= 1e-10 {
		return nil, nil, StatusInfeasible
	}
	// x_i = -r_i / r_{n+1}, lambda = -u / r_{n+1}
	denom := r[n]
	x = make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = -r[i] / denom
	}
	lambda = make([]float64, mi)
	for j := 0; j < mi; j++ {
		lambda[j] = -u[j] / denom
	}
	return x, lambda, StatusOptimal
}
