// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package subproblem

import (
	"go.uber.org/zap"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/nlp"
	"github.com/cvanaret/uno/solvers/activeset"
)

// elasticRegularization keeps the elastic block of the quadratic model
// barely positive definite without perturbing the x block.
const elasticRegularization = 1e-8

// QPSubproblem models each outer iteration as
//
//	minimize σ·∇𝒇(𝐱)ᵀ𝐝 + ½ 𝐝ᵀH𝐝 subject to the linearized constraints
//
// with H the (possibly convexified) Lagrangian Hessian, solved by the dense
// active-set backend.
type QPSubproblem struct {
	activeSetBase
	hessianModel HessianModel

	lastGradient []float64
	lastHessian  *linalg.COOSymmetricMatrix
}

// NewQPSubproblem builds a QP subproblem. convexify requests inertia
// correction of the Hessian, required when no trust region bounds the step.
func NewQPSubproblem(problem nlp.Problem, hessianModelKind string, convexify bool, residualNorm linalg.Norm, logger *zap.Logger) (*QPSubproblem, error) {
	model, err := NewHessianModel(hessianModelKind, problem.NumVariables(), problem.HessianMaxNonzeros(), convexify)
	if err != nil {
		return nil, err
	}
	return &QPSubproblem{
		activeSetBase: newActiveSetBase(problem, residualNorm, logger),
		hessianModel:  model,
	}, nil
}

func (q *QPSubproblem) Initialize(problem nlp.Problem, first *nlp.Iterate) error {
	return q.ComputeProgressMeasures(problem, first)
}

func (q *QPSubproblem) Solve(problem nlp.Problem, current *nlp.Iterate) (*nlp.Direction, error) {
	multipliers := current.Multipliers.Constraints
	if q.hessianMultipliers != nil {
		multipliers = q.hessianMultipliers
	}
	if err := q.hessianModel.Evaluate(problem, current.X, q.objectiveMultiplier, multipliers); err != nil {
		return nil, err
	}

	// the model Hessian is copied so per-solve terms (elastic
	// regularization, proximal diagonal) do not accumulate across resolves
	total := q.n
	if q.elasticsActive {
		total += 2 * q.m
	}
	hessian := linalg.NewCOOSymmetricMatrix(total, q.hessianModel.Hessian().NumNonzeros()+2*q.m)
	q.hessianModel.Hessian().ForEach(func(i, j int, value float64) {
		hessian.Insert(i, j, value)
	})
	for k := q.n; k < total; k++ {
		hessian.Insert(k, k, elasticRegularization)
	}

	request, err := q.assemble(problem, current, hessian)
	if err != nil {
		return nil, err
	}
	q.lastRequest = request
	q.lastGradient = request.Gradient
	q.lastHessian = hessian

	solution := q.solver.SolveQP(request)
	q.numSolved++
	direction := q.toDirection(solution, q.objectiveMultiplier)
	q.logger.Debug("QP subproblem solved",
		zap.String("status", direction.Status.String()),
		zap.Float64("model", direction.Objective),
		zap.Float64("norm", direction.Norm))
	return direction, nil
}

func (q *QPSubproblem) PredictedReductionModel(problem nlp.Problem, direction *nlp.Direction) func(stepLength float64) float64 {
	// precompute the linear and quadratic terms once, so evaluation at an
	// arbitrary step length is O(1) during backtracking
	n := minInt(len(direction.Primals), q.n)
	linear := 0.0
	if q.lastGradient != nil {
		linear = linalg.Dot(q.lastGradient[:n], direction.Primals[:n])
	}
	quadratic := 0.0
	if q.lastHessian != nil {
		quadratic = q.lastHessian.QuadraticProduct(direction.Primals, direction.Primals, n) / 2
	}
	objective := direction.Objective
	return func(stepLength float64) float64 {
		if stepLength == 1 {
			return -objective
		}
		return -stepLength * (linear + stepLength*quadratic)
	}
}

func (q *QPSubproblem) HasSecondOrderCorrection() bool { return true }

// SecondOrderCorrection re-solves the last subproblem with the constraint
// bodies evaluated at the trial point, repairing linearized-constraint error
// after a rejected step.
func (q *QPSubproblem) SecondOrderCorrection(problem nlp.Problem, trial *nlp.Iterate) (*nlp.Direction, error) {
	if q.lastRequest == nil {
		return nil, &nlp.NumericalError{Op: "second-order correction before solve"}
	}
	if err := trial.EvaluateConstraints(problem); err != nil {
		return nil, err
	}
	bounds := problem.ConstraintBounds()
	corrected := *q.lastRequest
	corrected.Rows = append([]activeset.Row(nil), q.lastRequest.Rows...)
	for j := range corrected.Rows {
		corrected.Rows[j].Bounds = nlp.Bound{
			Lower: bounds[j].Lower - trial.Constraints[j],
			Upper: bounds[j].Upper - trial.Constraints[j],
		}
	}
	solution := q.solver.SolveQP(&corrected)
	q.numSolved++
	direction := q.toDirection(solution, q.objectiveMultiplier)
	q.StripElastics(direction)
	return direction, nil
}
