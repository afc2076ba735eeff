// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import (
	"math"

	"github.com/cvanaret/uno/linalg"
)

// ComplementarityError measures the KKT complementarity violation
// ‖min(g(x), -𝛍)‖-style products for the general constraints and the variable
// bounds, shifted by shift (the barrier parameter; 0 outside interior-point
// methods).
func ComplementarityError(problem Problem, it *Iterate, multipliers Multipliers, shift float64, norm linalg.Norm) float64 {
	variableBounds := problem.VariableBounds()
	constraintBounds := problem.ConstraintBounds()
	n := problem.NumVariables()
	m := problem.NumConstraints()

	terms := make([]float64, 0, n+m)
	for i := 0; i < n; i++ {
		if zl := multipliers.LowerBounds[i]; zl != 0 && !math.IsInf(variableBounds[i].Lower, -1) {
			terms = append(terms, zl*(it.X[i]-variableBounds[i].Lower)-shift)
		}
		if zu := multipliers.UpperBounds[i]; zu != 0 && !math.IsInf(variableBounds[i].Upper, 1) {
			terms = append(terms, zu*(it.X[i]-variableBounds[i].Upper)+shift)
		}
	}
	for j := 0; j < m; j++ {
		lambda := multipliers.Constraints[j]
		switch {
		case lambda > 0 && !math.IsInf(constraintBounds[j].Lower, -1):
			terms = append(terms, lambda*(it.Constraints[j]-constraintBounds[j].Lower)-shift)
		case lambda < 0 && !math.IsInf(constraintBounds[j].Upper, 1):
			terms = append(terms, lambda*(it.Constraints[j]-constraintBounds[j].Upper)+shift)
		}
	}
	return linalg.NormOf(norm, len(terms), func(k int) float64 { return terms[k] })
}

// ComputeResiduals refreshes the residual block of the iterate: constraint
// violation, stationarity of the Lagrangian at σ = objectiveMultiplier,
// stationarity of the pure-feasibility Lagrangian (σ = 0), and
// complementarity.
func ComputeResiduals(problem Problem, it *Iterate, objectiveMultiplier float64, norm linalg.Norm) error {
	if err := it.EvaluateConstraints(problem); err != nil {
		return err
	}
	if err := it.EvaluateLagrangianGradient(problem, it.Multipliers); err != nil {
		return err
	}
	it.Residuals.Constraints = ConstraintViolation(problem, it.Constraints, norm)
	it.Residuals.Stationarity = it.Lagrangian.NormInf(objectiveMultiplier)
	it.Residuals.FJStationarity = it.Lagrangian.NormInf(0)
	it.Residuals.Complementarity = ComplementarityError(problem, it, it.Multipliers, 0, norm)
	return nil
}

// TerminationStatus classifies the outcome of a solve.
type TerminationStatus int

const (
	NotOptimal TerminationStatus = iota
	KKTPoint
	FJPoint
	FeasibleSmallStep
	InfeasibleSmallStep
	MaxIterationsReached
	Timeout
)

func (s TerminationStatus) String() string {
	switch s {
	case KKTPoint:
		return "KKT_POINT"
	case FJPoint:
		return "FJ_POINT"
	case FeasibleSmallStep:
		return "FEASIBLE_SMALL_STEP"
	case InfeasibleSmallStep:
		return "INFEASIBLE_SMALL_STEP"
	case MaxIterationsReached:
		return "MAX_ITERATIONS_REACHED"
	case Timeout:
		return "TIMEOUT"
	}
	return "NOT_OPTIMAL"
}
