// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package relaxation reformulates the nonlinear program into a sequence of
// solvable subproblems: single-phase l1 penalty relaxation with Byrd's
// steering rule, or two-phase feasibility restoration.
package relaxation

import (
	"github.com/cvanaret/uno/nlp"
)

// Strategy is the constraint-relaxation contract driven by the
// globalization mechanism.
type Strategy interface {
	Initialize(problem nlp.Problem, first *nlp.Iterate) error
	// CreateCurrentSubproblem assembles the subproblem of this outer
	// iteration with the given trust-region radius (math.Inf(1) without a
	// trust region).
	CreateCurrentSubproblem(problem nlp.Problem, current *nlp.Iterate, trustRegionRadius float64) error
	// ComputeFeasibleDirection solves the subproblem, handling infeasible
	// linearizations per the strategy (penalty steering or restoration).
	ComputeFeasibleDirection(problem nlp.Problem, current *nlp.Iterate) (*nlp.Direction, error)
	// PredictedReductionModel wraps the subproblem model decrease.
	PredictedReductionModel(problem nlp.Problem, direction *nlp.Direction) func(stepLength float64) float64
	// IsAcceptable judges the trial iterate through the active
	// globalization strategy, refreshing progress measures as needed.
	IsAcceptable(problem nlp.Problem, current, trial *nlp.Iterate, direction *nlp.Direction, model func(float64) float64, stepLength float64) (bool, error)
	SecondOrderCorrection(problem nlp.Problem, trial *nlp.Iterate) (*nlp.Direction, error)
	HasSecondOrderCorrection() bool
	RegisterAcceptedIterate(problem nlp.Problem, it *nlp.Iterate)
	ComputeResiduals(problem nlp.Problem, it *nlp.Iterate, objectiveMultiplier float64) error
}

// smallStepThreshold declares a direction a trivial step.
const smallStepThreshold = 1e-12

func isSmallStep(direction *nlp.Direction) bool {
	return direction.Norm <= smallStepThreshold
}
