// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import (
	"math"

	"github.com/cvanaret/uno/linalg"
)

// Bound is a two-sided interval [Lower, Upper]; ±Inf marks an absent side.
type Bound struct {
	Lower, Upper float64
}

// BoundType classifies a variable or constraint by the finiteness of its
// bounds.
type BoundType int

const (
	Equality BoundType = iota
	BoundedBothSides
	BoundedLower
	BoundedUpper
	Unbounded
)

// Type classifies the bound.
func (b Bound) Type() BoundType {
	l := !math.IsInf(b.Lower, -1)
	u := !math.IsInf(b.Upper, 1)
	switch {
	case l && u && b.Lower == b.Upper:
		return Equality
	case l && u:
		return BoundedBothSides
	case l:
		return BoundedLower
	case u:
		return BoundedUpper
	}
	return Unbounded
}

// Violation measures how far value lies outside the interval.
func (b Bound) Violation(value float64) float64 {
	return math.Max(0, math.Max(b.Lower-value, value-b.Upper))
}

// Project clips value into the interval.
func (b Bound) Project(value float64) float64 {
	return math.Min(math.Max(value, b.Lower), b.Upper)
}

// Problem is the read-only contract of a twice-differentiable nonlinear
// program
//
//	minimize  objective_sign · 𝒇(𝐱)
//	subject to 𝒄_L ≤ 𝒄(𝐱) ≤ 𝒄_U , 𝐱_L ≤ 𝐱 ≤ 𝐱_U
//
// Reformulation wrappers (scaling, elastic augmentation, barrier) implement
// the same contract by delegation.
type Problem interface {
	Name() string
	NumVariables() int
	NumConstraints() int
	// ObjectiveSign is +1 for minimization, -1 for maximization.
	ObjectiveSign() float64

	VariableBounds() []Bound
	ConstraintBounds() []Bound
	// LinearConstraints lists the indices of the rows that are linear in x.
	LinearConstraints() []int

	EvaluateObjective(x []float64) float64
	EvaluateObjectiveGradient(x []float64, gradient *linalg.SparseVector)
	EvaluateConstraints(x []float64, constraints []float64)
	EvaluateConstraintJacobian(x []float64, jacobian linalg.RectangularMatrix)
	// EvaluateLagrangianHessian fills the lower triangle of
	// ∇²(σ𝒇 - 𝛌ᵀ𝒄) at x.
	EvaluateLagrangianHessian(x []float64, objectiveMultiplier float64, multipliers []float64, hessian *linalg.COOSymmetricMatrix)

	JacobianMaxNonzeros() int
	HessianMaxNonzeros() int

	InitialPrimalPoint(x []float64)
	InitialDualPoint(multipliers []float64)
}

// ProjectPointInBounds clips x into the variable bounds of the problem.
func ProjectPointInBounds(problem Problem, x []float64) {
	for i, b := range problem.VariableBounds() {
		x[i] = b.Project(x[i])
	}
}

// ConstraintViolation evaluates ‖max(0, c_L - c, c - c_U)‖ over all rows in
// the given norm.
func ConstraintViolation(problem Problem, constraints []float64, norm linalg.Norm) float64 {
	bounds := problem.ConstraintBounds()
	return linalg.NormOf(norm, len(constraints), func(j int) float64 {
		return bounds[j].Violation(constraints[j])
	})
}

// PartialConstraintViolation evaluates the violation of the selected rows only.
func PartialConstraintViolation(problem Problem, constraints []float64, rows []int, norm linalg.Norm) float64 {
	bounds := problem.ConstraintBounds()
	return linalg.NormOf(norm, len(rows), func(k int) float64 {
		j := rows[k]
		return bounds[j].Violation(constraints[j])
	})
}
