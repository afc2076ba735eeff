// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package activeset

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/nlp"
)

func freeBounds(n int) []nlp.Bound {
	bounds := make([]nlp.Bound, n)
	for i := range bounds {
		bounds[i] = nlp.Bound{Lower: math.Inf(-1), Upper: math.Inf(1)}
	}
	return bounds
}

func identity(n int) *linalg.COOSymmetricMatrix {
	h := linalg.NewCOOSymmetricMatrix(n, n)
	h.AddIdentityMultiple(1)
	return h
}

func row(n int, entries map[int]float64, bounds nlp.Bound) Row {
	gradient := linalg.NewSparseVector(len(entries))
	for i := 0; i < n; i++ {
		if v, ok := entries[i]; ok {
			gradient.Insert(i, v)
		}
	}
	return Row{Gradient: gradient, Bounds: bounds}
}

func TestUnconstrainedQP(t *testing.T) {
	// min ½‖x‖² + gᵀx → x = -g
	sol := NewSolver().SolveQP(&Request{
		N:              2,
		VariableBounds: freeBounds(2),
		Gradient:       []float64{1, -2},
		Hessian:        identity(2),
	})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, -1.0, sol.X[0], 1e-8)
	assert.InDelta(t, 2.0, sol.X[1], 1e-8)
	assert.InDelta(t, -2.5, sol.Objective, 1e-8)
}

func TestEqualityConstrainedQP(t *testing.T) {
	// min ½‖x‖² s.t. x₁+x₂ = 2 → x = (1,1), λ = 1
	sol := NewSolver().SolveQP(&Request{
		N:              2,
		VariableBounds: freeBounds(2),
		Rows:           []Row{row(2, map[int]float64{0: 1, 1: 1}, nlp.Bound{Lower: 2, Upper: 2})},
		Gradient:       []float64{0, 0},
		Hessian:        identity(2),
	})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 1.0, sol.X[0], 1e-8)
	assert.InDelta(t, 1.0, sol.X[1], 1e-8)
	assert.InDelta(t, 1.0, sol.ConstraintMultipliers[0], 1e-8)
}

func TestInequalityConstrainedQP(t *testing.T) {
	// min ½‖x - (2,2)‖² s.t. x₁+x₂ ≤ 2 → x = (1,1), λ = -1 (upper side)
	sol := NewSolver().SolveQP(&Request{
		N:              2,
		VariableBounds: freeBounds(2),
		Rows:           []Row{row(2, map[int]float64{0: 1, 1: 1}, nlp.Bound{Lower: math.Inf(-1), Upper: 2})},
		Gradient:       []float64{-2, -2},
		Hessian:        identity(2),
	})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 1.0, sol.X[0], 1e-7)
	assert.InDelta(t, 1.0, sol.X[1], 1e-7)
	assert.InDelta(t, -1.0, sol.ConstraintMultipliers[0], 1e-6)
	assert.Contains(t, sol.ActiveConstraintUpperBound, 0)
}

func TestInactiveConstraintHasZeroMultiplier(t *testing.T) {
	// unconstrained minimum (-1, 0) already satisfies x₁+x₂ ≤ 5
	sol := NewSolver().SolveQP(&Request{
		N:              2,
		VariableBounds: freeBounds(2),
		Rows:           []Row{row(2, map[int]float64{0: 1, 1: 1}, nlp.Bound{Lower: math.Inf(-1), Upper: 5})},
		Gradient:       []float64{1, 0},
		Hessian:        identity(2),
	})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, -1.0, sol.X[0], 1e-8)
	assert.InDelta(t, 0.0, sol.ConstraintMultipliers[0], 1e-8)
}

func TestVariableBoundsRespected(t *testing.T) {
	// min ½‖x‖² + gᵀx with x ≥ -0.5: the bound clips the step
	sol := NewSolver().SolveQP(&Request{
		N:              1,
		VariableBounds: []nlp.Bound{{Lower: -0.5, Upper: math.Inf(1)}},
		Gradient:       []float64{2},
		Hessian:        identity(1),
	})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, -0.5, sol.X[0], 1e-8)
	assert.Contains(t, sol.ActiveLowerBounds, 0)
	// stationarity: x + g = z → z = 1.5
	assert.InDelta(t, 1.5, sol.LowerBoundMultipliers[0], 1e-6)
}

func TestInfeasibleConstraintsDetected(t *testing.T) {
	// x ≥ 1 and x ≤ 0 cannot hold together
	sol := NewSolver().SolveQP(&Request{
		N:              1,
		VariableBounds: freeBounds(1),
		Rows: []Row{
			row(1, map[int]float64{0: 1}, nlp.Bound{Lower: 1, Upper: math.Inf(1)}),
			row(1, map[int]float64{0: 1}, nlp.Bound{Lower: math.Inf(-1), Upper: 0}),
		},
		Gradient: []float64{0},
		Hessian:  identity(1),
	})
	assert.Equal(t, StatusInfeasible, sol.Status)
}

func TestLPPathReportsLinearObjective(t *testing.T) {
	// min x over -1 ≤ x ≤ 1: vertex at -1, linear model value -1
	sol := NewSolver().SolveLP(&Request{
		N:              1,
		VariableBounds: []nlp.Bound{{Lower: -1, Upper: 1}},
		Gradient:       []float64{1},
	})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, -1.0, sol.X[0], 1e-4)
	assert.InDelta(t, -1.0, sol.Objective, 1e-4)
}

func TestIndefiniteHessianTriggersWarning(t *testing.T) {
	h := linalg.NewCOOSymmetricMatrix(1, 1)
	h.Insert(0, 0, -1)
	sol := NewSolver().SolveQP(&Request{
		N:              1,
		VariableBounds: []nlp.Bound{{Lower: -1, Upper: 1}},
		Gradient:       []float64{0},
		Hessian:        h,
	})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.Equal(t, nlp.WarningNegativeCurvature, sol.Warning)
}

func TestNNLSSmallProblem(t *testing.T) {
	// min ‖E·u - f‖ with u ≥ 0; unconstrained optimum is positive, so the
	// bound is inactive
	e := mat2x2(1, 0, 0, 1)
	u, r, ok := nnls(e, []float64{1, 2}, 0)
	require.True(t, ok)
	assert.InDelta(t, 1.0, u[0], 1e-10)
	assert.InDelta(t, 2.0, u[1], 1e-10)
	assert.InDelta(t, 0.0, linalg.NormOfSlice(linalg.NormL2, r), 1e-10)
}

func TestNNLSClampsNegativeComponent(t *testing.T) {
	e := mat2x2(1, 0, 0, 1)
	u, _, ok := nnls(e, []float64{-1, 2}, 0)
	require.True(t, ok)
	assert.Equal(t, 0.0, u[0])
	assert.InDelta(t, 2.0, u[1], 1e-10)
}

func mat2x2(a, b, c, d float64) *mat.Dense {
	return mat.NewDense(2, 2, []float64{a, b, c, d})
}
