// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import (
	"math"

	"github.com/cvanaret/uno/linalg"
)

// Multipliers are the dual variables: 𝛌 for the general constraints and
// z_L, z_U for the variable bounds.
type Multipliers struct {
	Constraints []float64
	LowerBounds []float64
	UpperBounds []float64
}

// NewMultipliers allocates zeroed multipliers for n variables and m
// constraints.
func NewMultipliers(n, m int) Multipliers {
	return Multipliers{
		Constraints: make([]float64, m),
		LowerBounds: make([]float64, n),
		UpperBounds: make([]float64, n),
	}
}

// Clone deep-copies the multipliers.
func (m Multipliers) Clone() Multipliers {
	c := NewMultipliers(len(m.LowerBounds), len(m.Constraints))
	copy(c.Constraints, m.Constraints)
	copy(c.LowerBounds, m.LowerBounds)
	copy(c.UpperBounds, m.UpperBounds)
	return c
}

// EvaluationCounter tallies user-function evaluations over one solve.
type EvaluationCounter struct {
	Objective         int
	Constraints       int
	ObjectiveGradient int
	Jacobian          int
	Hessian           int
}

// ProgressMeasures is the (feasibility, objective) pair consumed by the
// globalization strategies.
type ProgressMeasures struct {
	Feasibility float64
	Objective   float64
}

// Residuals collects the optimality residuals of an iterate.
type Residuals struct {
	Constraints     float64
	Stationarity    float64
	FJStationarity  float64
	Complementarity float64
}

// LagrangianGradient keeps the objective and constraint contributions of
// ∇ₓL(x, σ, 𝛌) separate, so the Fritz-John gradient (σ = 0) is available
// without re-evaluation.
type LagrangianGradient struct {
	ObjectiveContribution   []float64
	ConstraintsContribution []float64
}

// Norm1 evaluates ‖σ·∇f-part + constraints-part‖₁.
func (g *LagrangianGradient) Norm1(objectiveMultiplier float64) float64 {
	return linalg.NormOf(linalg.NormL1, len(g.ObjectiveContribution), func(i int) float64 {
		return objectiveMultiplier*g.ObjectiveContribution[i] + g.ConstraintsContribution[i]
	})
}

// NormInf evaluates ‖σ·∇f-part + constraints-part‖∞.
func (g *LagrangianGradient) NormInf(objectiveMultiplier float64) float64 {
	return linalg.NormOf(linalg.NormInfty, len(g.ObjectiveContribution), func(i int) float64 {
		return objectiveMultiplier*g.ObjectiveContribution[i] + g.ConstraintsContribution[i]
	})
}

// Iterate is a primal-dual point with lazily evaluated, cached functions.
// Mutating X is the caller's responsibility and obligates ResetEvaluations.
type Iterate struct {
	X           []float64
	Multipliers Multipliers

	Objective          float64
	Constraints        []float64
	ObjectiveGradient  *linalg.SparseVector
	ConstraintJacobian linalg.RectangularMatrix
	Lagrangian         LagrangianGradient

	objectiveComputed         bool
	constraintsComputed       bool
	objectiveGradientComputed bool
	jacobianComputed          bool

	Residuals Residuals
	Progress  ProgressMeasures

	Counter *EvaluationCounter
}

// NewIterate allocates an iterate for n variables and m constraints.
func NewIterate(n, m int) *Iterate {
	return &Iterate{
		X:                  make([]float64, n),
		Multipliers:        NewMultipliers(n, m),
		Constraints:        make([]float64, m),
		ObjectiveGradient:  linalg.NewSparseVector(n),
		ConstraintJacobian: linalg.NewRectangularMatrix(m, n),
		Lagrangian: LagrangianGradient{
			ObjectiveContribution:   make([]float64, n),
			ConstraintsContribution: make([]float64, n),
		},
		Counter: new(EvaluationCounter),
	}
}

// ResetEvaluations invalidates every cached evaluation.
func (it *Iterate) ResetEvaluations() {
	it.objectiveComputed = false
	it.constraintsComputed = false
	it.objectiveGradientComputed = false
	it.jacobianComputed = false
}

// EvaluateObjective computes and caches f(x).
func (it *Iterate) EvaluateObjective(problem Problem) error {
	if it.objectiveComputed {
		return nil
	}
	it.Objective = problem.EvaluateObjective(it.X)
	it.Counter.Objective++
	if math.IsNaN(it.Objective) || math.IsInf(it.Objective, 0) {
		return &NumericalError{Op: "objective evaluation"}
	}
	it.objectiveComputed = true
	return nil
}

// EvaluateConstraints computes and caches c(x).
func (it *Iterate) EvaluateConstraints(problem Problem) error {
	if it.constraintsComputed {
		return nil
	}
	problem.EvaluateConstraints(it.X, it.Constraints)
	it.Counter.Constraints++
	if !linalg.IsFinite(it.Constraints) {
		return &NumericalError{Op: "constraint evaluation"}
	}
	it.constraintsComputed = true
	return nil
}

// EvaluateObjectiveGradient computes and caches ∇f(x).
func (it *Iterate) EvaluateObjectiveGradient(problem Problem) error {
	if it.objectiveGradientComputed {
		return nil
	}
	it.ObjectiveGradient.Clear()
	problem.EvaluateObjectiveGradient(it.X, it.ObjectiveGradient)
	it.Counter.ObjectiveGradient++
	it.objectiveGradientComputed = true
	return nil
}

// EvaluateConstraintJacobian computes and caches ∇c(x).
func (it *Iterate) EvaluateConstraintJacobian(problem Problem) error {
	if it.jacobianComputed {
		return nil
	}
	it.ConstraintJacobian.Clear()
	problem.EvaluateConstraintJacobian(it.X, it.ConstraintJacobian)
	it.Counter.Jacobian++
	it.jacobianComputed = true
	return nil
}

// EvaluateLagrangianGradient fills the Lagrangian aggregator at the given
// multipliers. The objective contribution is stored unweighted; callers apply
// the objective multiplier through the aggregator.
func (it *Iterate) EvaluateLagrangianGradient(problem Problem, multipliers Multipliers) error {
	if err := it.EvaluateObjectiveGradient(problem); err != nil {
		return err
	}
	if err := it.EvaluateConstraintJacobian(problem); err != nil {
		return err
	}
	obj := it.Lagrangian.ObjectiveContribution
	cons := it.Lagrangian.ConstraintsContribution
	linalg.Fill(obj, 0)
	linalg.Fill(cons, 0)
	it.ObjectiveGradient.AddTo(obj, 1)
	it.ConstraintJacobian.TransposeMulAdd(cons, -1, multipliers.Constraints)
	for i := range cons {
		cons[i] -= multipliers.LowerBounds[i] + multipliers.UpperBounds[i]
	}
	return nil
}
