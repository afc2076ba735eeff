// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import (
	"math"

	"github.com/cvanaret/uno/linalg"
)

// Scaling holds the constant objective and per-constraint factors computed
// once from gradient ∞-norms at the initial point.
type Scaling struct {
	Objective   float64
	Constraints []float64
}

// NewScaling creates a unit scaling for m constraints.
func NewScaling(m int) *Scaling {
	s := &Scaling{Objective: 1, Constraints: make([]float64, m)}
	linalg.Fill(s.Constraints, 1)
	return s
}

// Compute derives the factors from the gradients at the initial point. The
// threshold caps the norms so well-scaled functions are left untouched:
// s = threshold / max(threshold, ‖g‖∞) ≤ 1.
func (s *Scaling) Compute(objectiveGradient *linalg.SparseVector, jacobian linalg.RectangularMatrix, threshold float64) {
	s.Objective = threshold / math.Max(threshold, objectiveGradient.NormInf())
	for j := range s.Constraints {
		s.Constraints[j] = threshold / math.Max(threshold, jacobian[j].NormInf())
	}
}

// ScaledProblem presents a transparently scaled view of a problem: the
// objective is s_f·f and row j is s_c[j]·c_j, bounds included. It implements
// the Problem contract by delegation.
type ScaledProblem struct {
	inner   Problem
	scaling *Scaling
	bounds  []Bound
}

// NewScaledProblem wraps problem with the given scaling.
func NewScaledProblem(problem Problem, scaling *Scaling) *ScaledProblem {
	bounds := make([]Bound, problem.NumConstraints())
	for j, b := range problem.ConstraintBounds() {
		s := scaling.Constraints[j]
		bounds[j] = Bound{Lower: s * b.Lower, Upper: s * b.Upper}
	}
	return &ScaledProblem{inner: problem, scaling: scaling, bounds: bounds}
}

func (p *ScaledProblem) Name() string            { return p.inner.Name() }
func (p *ScaledProblem) NumVariables() int       { return p.inner.NumVariables() }
func (p *ScaledProblem) NumConstraints() int     { return p.inner.NumConstraints() }
func (p *ScaledProblem) ObjectiveSign() float64  { return p.inner.ObjectiveSign() }
func (p *ScaledProblem) VariableBounds() []Bound { return p.inner.VariableBounds() }
func (p *ScaledProblem) LinearConstraints() []int {
	return p.inner.LinearConstraints()
}
func (p *ScaledProblem) ConstraintBounds() []Bound { return p.bounds }
func (p *ScaledProblem) JacobianMaxNonzeros() int  { return p.inner.JacobianMaxNonzeros() }
func (p *ScaledProblem) HessianMaxNonzeros() int   { return p.inner.HessianMaxNonzeros() }

func (p *ScaledProblem) EvaluateObjective(x []float64) float64 {
	return p.scaling.Objective * p.inner.EvaluateObjective(x)
}

func (p *ScaledProblem) EvaluateObjectiveGradient(x []float64, gradient *linalg.SparseVector) {
	p.inner.EvaluateObjectiveGradient(x, gradient)
	scaled := linalg.NewSparseVector(gradient.Len())
	gradient.ForEach(func(i int, value float64) {
		scaled.Insert(i, p.scaling.Objective*value)
	})
	*gradient = *scaled
}

func (p *ScaledProblem) EvaluateConstraints(x []float64, constraints []float64) {
	p.inner.EvaluateConstraints(x, constraints)
	for j := range constraints {
		constraints[j] *= p.scaling.Constraints[j]
	}
}

func (p *ScaledProblem) EvaluateConstraintJacobian(x []float64, jacobian linalg.RectangularMatrix) {
	p.inner.EvaluateConstraintJacobian(x, jacobian)
	for j := range jacobian {
		s := p.scaling.Constraints[j]
		scaled := linalg.NewSparseVector(jacobian[j].Len())
		jacobian[j].ForEach(func(i int, value float64) {
			scaled.Insert(i, s*value)
		})
		jacobian[j] = scaled
	}
}

func (p *ScaledProblem) EvaluateLagrangianHessian(x []float64, objectiveMultiplier float64, multipliers []float64, hessian *linalg.COOSymmetricMatrix) {
	// ∇²(σ·s_f·f - Σ (λ_j·s_cj)·c_j): fold the factors into the multipliers.
	scaledMultipliers := make([]float64, len(multipliers))
	for j := range multipliers {
		scaledMultipliers[j] = multipliers[j] * p.scaling.Constraints[j]
	}
	p.inner.EvaluateLagrangianHessian(x, objectiveMultiplier*p.scaling.Objective, scaledMultipliers, hessian)
}

func (p *ScaledProblem) InitialPrimalPoint(x []float64) { p.inner.InitialPrimalPoint(x) }

func (p *ScaledProblem) InitialDualPoint(multipliers []float64) {
	p.inner.InitialDualPoint(multipliers)
	// λ_scaled = s_f·λ/s_c keeps the scaled KKT conditions consistent.
	for j := range multipliers {
		multipliers[j] *= p.scaling.Objective / p.scaling.Constraints[j]
	}
}

// UnscaleSolution maps an iterate of the scaled problem back to the original
// problem: the primal point is shared, the multipliers are rescaled.
func UnscaleSolution(it *Iterate, scaling *Scaling) {
	for j := range it.Multipliers.Constraints {
		it.Multipliers.Constraints[j] *= scaling.Constraints[j] / scaling.Objective
	}
	for i := range it.Multipliers.LowerBounds {
		it.Multipliers.LowerBounds[i] /= scaling.Objective
		it.Multipliers.UpperBounds[i] /= scaling.Objective
	}
	it.Objective /= scaling.Objective
	it.ResetEvaluations()
}
