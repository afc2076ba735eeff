// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package subproblem

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/nlp"
)

// convexModel is min (x₁-1)² + (x₂-2)² subject to x₁ + x₂ = 2.
func convexModel() *nlp.Model {
	return &nlp.Model{
		ModelName: "convex",
		N:         2,
		Objective: nlp.Evaluation{
			Function: func(x []float64) float64 {
				return (x[0]-1)*(x[0]-1) + (x[1]-2)*(x[1]-2)
			},
			Derivative: func(x, d []float64) {
				d[0] = 2 * (x[0] - 1)
				d[1] = 2 * (x[1] - 2)
			},
		},
		Constraints: []nlp.Evaluation{
			{
				Function:   func(x []float64) float64 { return x[0] + x[1] },
				Derivative: func(x, d []float64) { d[0], d[1] = 1, 1 },
			},
		},
		Hessian: func(x []float64, sigma float64, lambda []float64, h *linalg.COOSymmetricMatrix) {
			h.Insert(0, 0, 2*sigma)
			h.Insert(1, 1, 2*sigma)
		},
		Bounds: []nlp.Bound{{Lower: 2, Upper: 2}},
		X0:     []float64{0, 0},
	}
}

func TestQPSubproblemSolvesNewtonStep(t *testing.T) {
	problem := convexModel()
	qp, err := NewQPSubproblem(problem, "exact", false, linalg.NormInfty, zap.NewNop())
	require.NoError(t, err)

	it := nlp.NewIterate(2, 1)
	problem.InitialPrimalPoint(it.X)
	require.NoError(t, qp.Initialize(problem, it))

	qp.BuildCurrentSubproblem(problem, it, 1, math.Inf(1))
	direction, err := qp.Solve(problem, it)
	require.NoError(t, err)
	require.Equal(t, nlp.DirectionOptimal, direction.Status)

	// the QP on a quadratic objective with one linear equality reaches the
	// optimum (0.5, 1.5) in one step from (0, 0)
	assert.InDelta(t, 0.5, direction.Primals[0], 1e-7)
	assert.InDelta(t, 1.5, direction.Primals[1], 1e-7)
	assert.InDelta(t, 1.5, direction.Norm, 1e-7)
}

func TestPredictedReductionModelMatchesObjective(t *testing.T) {
	problem := convexModel()
	qp, err := NewQPSubproblem(problem, "exact", false, linalg.NormInfty, zap.NewNop())
	require.NoError(t, err)

	it := nlp.NewIterate(2, 1)
	require.NoError(t, qp.Initialize(problem, it))
	qp.BuildCurrentSubproblem(problem, it, 1, math.Inf(1))
	direction, err := qp.Solve(problem, it)
	require.NoError(t, err)

	model := qp.PredictedReductionModel(problem, direction)
	// at full step the model reports -direction.objective
	assert.InDelta(t, -direction.Objective, model(1), 1e-12)
	// at α = 0 there is no predicted decrease
	assert.InDelta(t, 0.0, model(0), 1e-12)
	// the model is O(1) per evaluation and continuous in α
	assert.InDelta(t, model(1), model(0.999999), 1e-4)
}

func TestElasticVariablesRelaxInfeasibleRows(t *testing.T) {
	// x ≥ 1 and x ≤ 0: infeasible without elastics, feasible with them
	problem := &nlp.Model{
		ModelName: "infeasible",
		N:         1,
		Objective: nlp.Evaluation{
			Function:   func(x []float64) float64 { return x[0] },
			Derivative: func(x, d []float64) { d[0] = 1 },
		},
		Constraints: []nlp.Evaluation{
			{Function: func(x []float64) float64 { return x[0] }, Derivative: func(x, d []float64) { d[0] = 1 }},
			{Function: func(x []float64) float64 { return x[0] }, Derivative: func(x, d []float64) { d[0] = 1 }},
		},
		Bounds: []nlp.Bound{
			{Lower: 1, Upper: math.Inf(1)},
			{Lower: math.Inf(-1), Upper: 0},
		},
		X0: []float64{0.1},
	}
	qp, err := NewQPSubproblem(problem, "identity", false, linalg.NormInfty, zap.NewNop())
	require.NoError(t, err)

	it := nlp.NewIterate(1, 2)
	problem.InitialPrimalPoint(it.X)
	require.NoError(t, qp.Initialize(problem, it))

	qp.BuildCurrentSubproblem(problem, it, 0, math.Inf(1))
	direction, err := qp.Solve(problem, it)
	require.NoError(t, err)
	require.Equal(t, nlp.DirectionInfeasible, direction.Status)

	qp.AddElasticVariables(1)
	qp.BuildObjectiveModel(problem, it, 0)
	direction, err = qp.Solve(problem, it)
	require.NoError(t, err)
	require.Equal(t, nlp.DirectionOptimal, direction.Status)

	// the elastic sum equals the least achievable linearized violation: 1
	residual := qp.LinearizedResidual(direction)
	assert.InDelta(t, 1.0, residual, 1e-6)

	qp.StripElastics(direction)
	assert.Len(t, direction.Primals, 1)
}

func TestProgressMeasures(t *testing.T) {
	problem := convexModel()
	qp, err := NewQPSubproblem(problem, "exact", false, linalg.NormInfty, zap.NewNop())
	require.NoError(t, err)

	it := nlp.NewIterate(2, 1)
	it.X = []float64{0, 0}
	require.NoError(t, qp.ComputeProgressMeasures(problem, it))
	assert.InDelta(t, 2.0, it.Progress.Feasibility, 1e-12, "violation of x₁+x₂=2 at the origin")
	assert.InDelta(t, 5.0, it.Progress.Objective, 1e-12)
}

func TestHessianModels(t *testing.T) {
	problem := convexModel()
	x := []float64{0.3, 0.7}
	multipliers := []float64{0.1}

	exact, err := NewHessianModel("exact", 2, 4, false)
	require.NoError(t, err)
	require.NoError(t, exact.Evaluate(problem, x, 1, multipliers))

	finite, err := NewHessianModel("finite-difference", 2, 4, false)
	require.NoError(t, err)
	require.NoError(t, finite.Evaluate(problem, x, 1, multipliers))

	// the finite-difference model reproduces the exact constant Hessian
	d := []float64{1, 1}
	assert.InDelta(t,
		exact.Hessian().QuadraticProduct(d, d, 2),
		finite.Hessian().QuadraticProduct(d, d, 2), 1e-4)

	identityModel, err := NewHessianModel("identity", 2, 4, false)
	require.NoError(t, err)
	require.NoError(t, identityModel.Evaluate(problem, x, 1, multipliers))
	assert.InDelta(t, 2.0, identityModel.Hessian().QuadraticProduct(d, d, 2), 1e-12)

	_, err = NewHessianModel("bogus", 2, 4, false)
	var configuration *nlp.ConfigurationError
	require.ErrorAs(t, err, &configuration)
}

func TestConvexifiedHessianIsPositiveDefinite(t *testing.T) {
	// a concave model: the inertia correction must push the diagonal up
	problem := &nlp.Model{
		ModelName: "concave",
		N:         1,
		Objective: nlp.Evaluation{
			Function:   func(x []float64) float64 { return -x[0] * x[0] },
			Derivative: func(x, d []float64) { d[0] = -2 * x[0] },
		},
		Hessian: func(x []float64, sigma float64, lambda []float64, h *linalg.COOSymmetricMatrix) {
			h.Insert(0, 0, -2*sigma)
		},
	}
	model, err := NewHessianModel("exact", 1, 1, true)
	require.NoError(t, err)
	require.NoError(t, model.Evaluate(problem, []float64{1}, 1, nil))
	assert.Greater(t, model.Hessian().SmallestDiagonalEntry(), 0.0)
}

func TestBarrierSubproblemOnBoundConstrainedQuadratic(t *testing.T) {
	// min (x-2)² with 0 ≤ x ≤ 1: solution at the upper bound
	problem := &nlp.Model{
		ModelName: "bounded",
		N:         1,
		Objective: nlp.Evaluation{
			Function:   func(x []float64) float64 { return (x[0] - 2) * (x[0] - 2) },
			Derivative: func(x, d []float64) { d[0] = 2 * (x[0] - 2) },
		},
		Hessian: func(x []float64, sigma float64, lambda []float64, h *linalg.COOSymmetricMatrix) {
			h.Insert(0, 0, 2*sigma)
		},
		Variables: []nlp.Bound{{Lower: 0, Upper: 1}},
		X0:        []float64{0.5},
	}
	barrier := NewPrimalDualInteriorPoint(problem, 0.1, linalg.NormInfty, zap.NewNop())
	it := nlp.NewIterate(1, 0)
	problem.InitialPrimalPoint(it.X)
	require.NoError(t, barrier.Initialize(problem, it))

	barrier.BuildCurrentSubproblem(problem, it, 1, math.Inf(1))
	direction, err := barrier.Solve(problem, it)
	require.NoError(t, err)
	require.Equal(t, nlp.DirectionOptimal, direction.Status)
	// the step moves toward the upper bound but stays strictly inside
	assert.Greater(t, direction.Primals[0], 0.0)
	assert.Less(t, it.X[0]+direction.Primals[0], 1.0)
}

func TestBarrierFractionToBoundaryKeepsInteriority(t *testing.T) {
	problem := &nlp.Model{
		ModelName: "near-bound",
		N:         1,
		Objective: nlp.Evaluation{
			Function:   func(x []float64) float64 { return -x[0] },
			Derivative: func(x, d []float64) { d[0] = -1 },
		},
		Hessian: func(x []float64, sigma float64, lambda []float64, h *linalg.COOSymmetricMatrix) {
		},
		Variables: []nlp.Bound{{Lower: 0, Upper: 1}},
		X0:        []float64{0.99},
	}
	barrier := NewPrimalDualInteriorPoint(problem, 0.01, linalg.NormInfty, zap.NewNop())
	it := nlp.NewIterate(1, 0)
	problem.InitialPrimalPoint(it.X)
	require.NoError(t, barrier.Initialize(problem, it))

	barrier.BuildCurrentSubproblem(problem, it, 1, math.Inf(1))
	direction, err := barrier.Solve(problem, it)
	require.NoError(t, err)
	assert.Less(t, it.X[0]+direction.Primals[0], 1.0, "the fraction-to-the-boundary rule must keep the iterate interior")
}
