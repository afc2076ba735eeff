// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package problems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvanaret/uno/linalg"
)

// derivativeCheck compares an analytic derivative against central
// differences at the given point.
func derivativeCheck(t *testing.T, name string, f func(x []float64) float64, df func(x, d []float64), x []float64) {
	t.Helper()
	const h = 1e-6
	n := len(x)
	analytic := make([]float64, n)
	df(x, analytic)
	for i := 0; i < n; i++ {
		forward := append([]float64(nil), x...)
		backward := append([]float64(nil), x...)
		forward[i] += h
		backward[i] -= h
		numeric := (f(forward) - f(backward)) / (2 * h)
		assert.InDelta(t, numeric, analytic[i], 1e-4, "%s: derivative mismatch in component %d", name, i)
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range Names() {
		model, err := Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, model.Name())
		assert.Positive(t, model.NumVariables())
	}
	_, err := Get("nonexistent")
	assert.Error(t, err)
}

func TestDerivativesMatchFiniteDifferences(t *testing.T) {
	points := map[string][]float64{
		"hs071":          {1.1, 4.9, 4.8, 1.2},
		"hs015":          {-1.5, 1.2},
		"rosenbrock":     {-1.2, 1},
		"infeasible-lp":  {0.3},
		"linear-start":   {3, 4},
		"narrow-channel": {1.5, 0.8},
	}
	for name, x := range points {
		model, err := Get(name)
		require.NoError(t, err)
		derivativeCheck(t, name+"/objective", model.Objective.Function, model.Objective.Derivative, x)
		for _, c := range model.Constraints {
			derivativeCheck(t, name+"/constraint", c.Function, c.Derivative, x)
		}
	}
}

// The Lagrangian Hessians must match finite differences of the Lagrangian
// gradient.
func TestHessiansMatchFiniteDifferences(t *testing.T) {
	points := map[string][]float64{
		"hs071":          {1.1, 4.9, 4.8, 1.2},
		"hs015":          {-1.5, 1.2},
		"rosenbrock":     {-1.2, 1},
		"linear-start":   {3, 4},
		"narrow-channel": {1.5, 0.8},
	}
	const h = 1e-6
	for name, x := range points {
		model, err := Get(name)
		require.NoError(t, err)
		if model.Hessian == nil {
			continue
		}
		n := model.NumVariables()
		m := model.NumConstraints()
		lambda := make([]float64, m)
		for j := range lambda {
			lambda[j] = 0.3 * float64(j+1)
		}
		gradient := func(x []float64) []float64 {
			g := make([]float64, n)
			model.Objective.Derivative(x, g)
			cg := make([]float64, n)
			for j, c := range model.Constraints {
				for i := range cg {
					cg[i] = 0
				}
				c.Derivative(x, cg)
				for i := range g {
					g[i] -= lambda[j] * cg[i]
				}
			}
			return g
		}

		hessian := linalg.NewCOOSymmetricMatrix(n, n*n)
		model.Hessian(x, 1, lambda, hessian)
		dense := hessian.Dense()
		for k := 0; k < n; k++ {
			forward := append([]float64(nil), x...)
			backward := append([]float64(nil), x...)
			forward[k] += h
			backward[k] -= h
			gf, gb := gradient(forward), gradient(backward)
			for i := 0; i < n; i++ {
				numeric := (gf[i] - gb[i]) / (2 * h)
				assert.InDelta(t, numeric, dense.At(i, k), 1e-3,
					"%s: Hessian mismatch at (%d, %d)", name, i, k)
			}
		}
	}
}
