// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

// DirectionStatus is the outcome of one subproblem solve.
type DirectionStatus int

const (
	DirectionOptimal DirectionStatus = iota
	DirectionInfeasible
	DirectionUnbounded
	DirectionError
)

func (s DirectionStatus) String() string {
	switch s {
	case DirectionOptimal:
		return "OPTIMAL"
	case DirectionInfeasible:
		return "INFEASIBLE"
	case DirectionUnbounded:
		return "UNBOUNDED"
	}
	return "ERROR"
}

// ActiveSet lists the indices at their bounds in the subproblem solution.
type ActiveSet struct {
	AtLowerBound           []int
	AtUpperBound           []int
	AtConstraintLowerBound []int
	AtConstraintUpperBound []int
}

// ConstraintPartition splits the constraints of an infeasible subproblem by
// feasibility of their linearization. Present only for the
// feasibility-restoration flow.
type ConstraintPartition struct {
	Feasible             []int
	Infeasible           []int
	LowerBoundInfeasible []int
	UpperBoundInfeasible []int
}

// Direction is the result of solving one subproblem: the primal step, the
// multiplier estimates it carries, and the active-set descriptor.
type Direction struct {
	Primals []float64
	// Multipliers are the subproblem's multiplier estimates at the solution
	// (targets, not displacements).
	Multipliers Multipliers
	// Norm is ‖d‖∞ of the primal step.
	Norm float64
	// Objective is the subproblem model value at the solution.
	Objective float64
	// ObjectiveMultiplier is the σ the subproblem was actually built with.
	ObjectiveMultiplier float64

	Status    DirectionStatus
	Warning   SolverWarning
	ActiveSet ActiveSet

	ConstraintPartition *ConstraintPartition
}

// NewDirection allocates a zero direction for n variables and m constraints.
func NewDirection(n, m int) *Direction {
	return &Direction{
		Primals:     make([]float64, n),
		Multipliers: NewMultipliers(n, m),
	}
}
