// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package relaxation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/nlp"
	"github.com/cvanaret/uno/strategy"
	"github.com/cvanaret/uno/subproblem"
)

// infeasibleModel is min x subject to the incompatible pair x ≥ 1, x ≤ 0.
func infeasibleModel() *nlp.Model {
	return &nlp.Model{
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
		X0: []float64{2},
	}
}

func feasibleModel() *nlp.Model {
	return &nlp.Model{
		ModelName: "feasible",
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

func newQP(t *testing.T, problem nlp.Problem) subproblem.Subproblem {
	t.Helper()
	qp, err := subproblem.NewQPSubproblem(problem, "exact", true, linalg.NormInfty, zap.NewNop())
	require.NoError(t, err)
	return qp
}

func newStrategy(t *testing.T, kind string) strategy.Strategy {
	t.Helper()
	s, err := strategy.New(kind, strategy.DefaultParameters(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestL1PenaltyMonotonicallyNonIncreasing(t *testing.T) {
	problem := infeasibleModel()
	relax := NewL1Relaxation(newQP(t, problem), newStrategy(t, "l1-merit"), DefaultL1Parameters(), zap.NewNop())

	it := nlp.NewIterate(1, 2)
	problem.InitialPrimalPoint(it.X)
	require.NoError(t, relax.Initialize(problem, it))

	previous := relax.Penalty()
	assert.Equal(t, 1.0, previous)
	for k := 0; k < 5; k++ {
		require.NoError(t, relax.CreateCurrentSubproblem(problem, it, 10))
		direction, err := relax.ComputeFeasibleDirection(problem, it)
		require.NoError(t, err)
		require.NotNil(t, direction)
		assert.LessOrEqual(t, relax.Penalty(), previous, "penalty must never increase")
		assert.GreaterOrEqual(t, relax.Penalty(), 0.0)
		previous = relax.Penalty()

		// commit the full step so the steering sees fresh residuals
		linalg.AddScaled(it.X, 1, direction.Primals)
		it.ResetEvaluations()
		require.NoError(t, relax.ComputeResiduals(problem, it, relax.Penalty()))
	}
}

func TestL1DirectionOnFeasibleProblem(t *testing.T) {
	problem := feasibleModel()
	relax := NewL1Relaxation(newQP(t, problem), newStrategy(t, "l1-merit"), DefaultL1Parameters(), zap.NewNop())

	it := nlp.NewIterate(2, 1)
	problem.InitialPrimalPoint(it.X)
	require.NoError(t, relax.Initialize(problem, it))
	require.NoError(t, relax.CreateCurrentSubproblem(problem, it, 100))

	direction, err := relax.ComputeFeasibleDirection(problem, it)
	require.NoError(t, err)
	require.Equal(t, nlp.DirectionOptimal, direction.Status)
	assert.Len(t, direction.Primals, 2, "elastics must be stripped from the direction")
	// the linearization is feasible, so the full penalty step satisfies it
	assert.InDelta(t, 2.0, direction.Primals[0]+direction.Primals[1], 1e-6)
}

func TestL1AcceptanceRecomputesResiduals(t *testing.T) {
	problem := feasibleModel()
	relax := NewL1Relaxation(newQP(t, problem), newStrategy(t, "l1-merit"), DefaultL1Parameters(), zap.NewNop())

	current := nlp.NewIterate(2, 1)
	problem.InitialPrimalPoint(current.X)
	require.NoError(t, relax.Initialize(problem, current))
	require.NoError(t, relax.CreateCurrentSubproblem(problem, current, 100))
	direction, err := relax.ComputeFeasibleDirection(problem, current)
	require.NoError(t, err)

	trial := nlp.NewIterate(2, 1)
	trial.Counter = current.Counter
	copy(trial.X, current.X)
	linalg.AddScaled(trial.X, 1, direction.Primals)
	copy(trial.Multipliers.Constraints, direction.Multipliers.Constraints)

	model := relax.PredictedReductionModel(problem, direction)
	accepted, err := relax.IsAcceptable(problem, current, trial, direction, model, 1)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, 0.0, trial.Residuals.Constraints, "the trial satisfies the linear constraint exactly")
}

func TestRestorationSwitchesPhaseOnInfeasibleSubproblem(t *testing.T) {
	problem := infeasibleModel()
	relax := NewFeasibilityRestoration(newQP(t, problem), newStrategy(t, "filter"), newStrategy(t, "filter"), 0, zap.NewNop())

	it := nlp.NewIterate(1, 2)
	problem.InitialPrimalPoint(it.X)
	require.NoError(t, relax.Initialize(problem, it))
	assert.Equal(t, PhaseOptimality, relax.CurrentPhase())

	require.NoError(t, relax.CreateCurrentSubproblem(problem, it, 10))
	direction, err := relax.ComputeFeasibleDirection(problem, it)
	require.NoError(t, err)
	// the optimality subproblem is infeasible: the returned direction is the
	// restoration direction with a zero objective multiplier
	assert.Equal(t, 0.0, direction.ObjectiveMultiplier)

	trial := nlp.NewIterate(1, 2)
	trial.Counter = it.Counter
	copy(trial.X, it.X)
	linalg.AddScaled(trial.X, 1, direction.Primals)

	model := relax.PredictedReductionModel(problem, direction)
	_, err = relax.IsAcceptable(problem, it, trial, direction, model, 1)
	require.NoError(t, err)
	assert.Equal(t, PhaseRestoration, relax.CurrentPhase())
}

func TestRestorationMultipliersFromPartition(t *testing.T) {
	multipliers := []float64{0.5, 0.5, 0.5}
	setRestorationMultipliers(multipliers, &nlp.ConstraintPartition{
		LowerBoundInfeasible: []int{0},
		UpperBoundInfeasible: []int{2},
		Infeasible:           []int{0, 2},
	})
	assert.Equal(t, []float64{1, 0.5, -1}, multipliers)
}
