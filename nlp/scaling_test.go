// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvanaret/uno/linalg"
)

func badlyScaledModel() *Model {
	return &Model{
		ModelName: "badly-scaled",
		N:         1,
		Objective: Evaluation{
			Function:   func(x []float64) float64 { return 1e4 * x[0] * x[0] },
			Derivative: func(x, d []float64) { d[0] = 2e4 * x[0] },
		},
		Constraints: []Evaluation{
			{
				Function:   func(x []float64) float64 { return 1e3 * x[0] },
				Derivative: func(x, d []float64) { d[0] = 1e3 },
			},
		},
		Bounds: []Bound{{Lower: 1e3, Upper: 1e3}},
		X0:     []float64{1},
	}
}

func TestScalingCompute(t *testing.T) {
	problem := badlyScaledModel()
	it := NewIterate(1, 1)
	problem.InitialPrimalPoint(it.X)
	require.NoError(t, it.EvaluateObjectiveGradient(problem))
	require.NoError(t, it.EvaluateConstraintJacobian(problem))

	scaling := NewScaling(1)
	scaling.Compute(it.ObjectiveGradient, it.ConstraintJacobian, 100)
	assert.InDelta(t, 100.0/2e4, scaling.Objective, 1e-14)
	assert.InDelta(t, 100.0/1e3, scaling.Constraints[0], 1e-14)

	// well-scaled functions are left untouched
	unit := NewScaling(1)
	gradient := linalg.NewSparseVector(1)
	gradient.Insert(0, 1)
	jacobian := linalg.NewRectangularMatrix(1, 1)
	jacobian[0].Insert(0, 2)
	unit.Compute(gradient, jacobian, 100)
	assert.Equal(t, 1.0, unit.Objective)
	assert.Equal(t, 1.0, unit.Constraints[0])
}

func TestScaledProblemDelegates(t *testing.T) {
	problem := badlyScaledModel()
	scaling := NewScaling(1)
	scaling.Objective = 1e-2
	scaling.Constraints[0] = 1e-1
	scaled := NewScaledProblem(problem, scaling)

	x := []float64{2}
	assert.InDelta(t, 1e-2*4e4, scaled.EvaluateObjective(x), 1e-9)

	constraints := make([]float64, 1)
	scaled.EvaluateConstraints(x, constraints)
	assert.InDelta(t, 1e-1*2e3, constraints[0], 1e-9)
	assert.InDelta(t, 1e-1*1e3, scaled.ConstraintBounds()[0].Lower, 1e-9)
}

// Unscaling the solution of the scaled problem recovers a feasible point of
// the original within tolerance.
func TestUnscaleSolutionRoundTrip(t *testing.T) {
	problem := badlyScaledModel()
	scaling := NewScaling(1)
	scaling.Objective = 1e-2
	scaling.Constraints[0] = 1e-1
	scaled := NewScaledProblem(problem, scaling)

	it := NewIterate(1, 1)
	it.X[0] = 1
	require.NoError(t, it.EvaluateObjective(scaled))
	it.Multipliers.Constraints[0] = 4 // scaled-space multiplier

	scaledFeasibility := ConstraintViolation(scaled, []float64{1e-1 * 1e3}, linalg.NormL1)
	assert.Equal(t, 0.0, scaledFeasibility)

	UnscaleSolution(it, scaling)
	assert.InDelta(t, 1e4, it.Objective, 1e-9)
	// λ_orig = λ_scaled·s_c/s_f
	assert.InDelta(t, 4*1e-1/1e-2, it.Multipliers.Constraints[0], 1e-12)

	// the unscaled point is feasible for the original problem
	require.NoError(t, it.EvaluateConstraints(problem))
	assert.Equal(t, 0.0, ConstraintViolation(problem, it.Constraints, linalg.NormL1))
}
