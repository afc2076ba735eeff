// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package subproblem

import (
	"go.uber.org/zap"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/nlp"
)

// LPSubproblem is the H = 0 variant of the local model, used by SLP
// solvers. The predicted reduction is linear in the step length.
type LPSubproblem struct {
	activeSetBase
	lastGradient []float64
}

// NewLPSubproblem builds an LP subproblem.
func NewLPSubproblem(problem nlp.Problem, residualNorm linalg.Norm, logger *zap.Logger) *LPSubproblem {
	return &LPSubproblem{activeSetBase: newActiveSetBase(problem, residualNorm, logger)}
}

func (l *LPSubproblem) Initialize(problem nlp.Problem, first *nlp.Iterate) error {
	return l.ComputeProgressMeasures(problem, first)
}

func (l *LPSubproblem) Solve(problem nlp.Problem, current *nlp.Iterate) (*nlp.Direction, error) {
	request, err := l.assemble(problem, current, nil)
	if err != nil {
		return nil, err
	}
	l.lastRequest = request
	l.lastGradient = request.Gradient

	solution := l.solver.SolveLP(request)
	l.numSolved++
	direction := l.toDirection(solution, l.objectiveMultiplier)
	l.logger.Debug("LP subproblem solved",
		zap.String("status", direction.Status.String()),
		zap.Float64("model", direction.Objective),
		zap.Float64("norm", direction.Norm))
	return direction, nil
}

func (l *LPSubproblem) PredictedReductionModel(problem nlp.Problem, direction *nlp.Direction) func(stepLength float64) float64 {
	n := minInt(len(direction.Primals), l.n)
	linear := 0.0
	if l.lastGradient != nil {
		linear = linalg.Dot(l.lastGradient[:n], direction.Primals[:n])
	}
	objective := direction.Objective
	return func(stepLength float64) float64 {
		if stepLength == 1 {
			return -objective
		}
		return -stepLength * linear
	}
}

func (l *LPSubproblem) HasSecondOrderCorrection() bool { return false }

func (l *LPSubproblem) SecondOrderCorrection(problem nlp.Problem, trial *nlp.Iterate) (*nlp.Direction, error) {
	return nil, &nlp.NumericalError{Op: "second-order correction unsupported for LP"}
}
