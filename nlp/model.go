// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import (
	"math"

	"github.com/cvanaret/uno/linalg"
)

// Evaluation bundles a scalar function with its derivative, in the style of
// the optimizer packages this framework grew out of.
type Evaluation struct {
	Function   func(x []float64) float64
	Derivative func(x []float64, d []float64)
}

// Model is a Problem assembled from plain Go functions. It is the natural
// way to declare small test programs and the target of external readers.
type Model struct {
	ModelName string
	N         int
	Sign      float64 // +1 minimize, -1 maximize; 0 defaults to +1

	Objective   Evaluation
	Constraints []Evaluation
	// Hessian fills the lower triangle of ∇²(σf - λᵀc).
	Hessian func(x []float64, objectiveMultiplier float64, multipliers []float64, hessian *linalg.COOSymmetricMatrix)

	Variables  []Bound
	Bounds     []Bound // constraint bounds, len == len(Constraints)
	LinearRows []int

	X0      []float64
	Lambda0 []float64

	JacobianNonzeros int
	HessianNonzeros  int
}

var _ Problem = (*Model)(nil)

func (p *Model) Name() string { return p.ModelName }

func (p *Model) NumVariables() int { return p.N }

func (p *Model) NumConstraints() int { return len(p.Constraints) }

func (p *Model) ObjectiveSign() float64 {
	if p.Sign == 0 {
		return 1
	}
	return p.Sign
}

func (p *Model) VariableBounds() []Bound {
	if p.Variables == nil {
		free := make([]Bound, p.N)
		for i := range free {
			free[i] = Bound{Lower: math.Inf(-1), Upper: math.Inf(1)}
		}
		p.Variables = free
	}
	return p.Variables
}

func (p *Model) ConstraintBounds() []Bound { return p.Bounds }

func (p *Model) LinearConstraints() []int { return p.LinearRows }

func (p *Model) EvaluateObjective(x []float64) float64 {
	return p.Objective.Function(x)
}

func (p *Model) EvaluateObjectiveGradient(x []float64, gradient *linalg.SparseVector) {
	dense := make([]float64, p.N)
	p.Objective.Derivative(x, dense)
	for i, value := range dense {
		if value != 0 {
			gradient.Insert(i, value)
		}
	}
}

func (p *Model) EvaluateConstraints(x []float64, constraints []float64) {
	for j, c := range p.Constraints {
		constraints[j] = c.Function(x)
	}
}

func (p *Model) EvaluateConstraintJacobian(x []float64, jacobian linalg.RectangularMatrix) {
	dense := make([]float64, p.N)
	for j, c := range p.Constraints {
		linalg.Fill(dense, 0)
		c.Derivative(x, dense)
		for i, value := range dense {
			if value != 0 {
				jacobian[j].Insert(i, value)
			}
		}
	}
}

func (p *Model) EvaluateLagrangianHessian(x []float64, objectiveMultiplier float64, multipliers []float64, hessian *linalg.COOSymmetricMatrix) {
	hessian.Reset()
	hessian.SetDimension(p.N)
	if p.Hessian != nil {
		p.Hessian(x, objectiveMultiplier, multipliers, hessian)
	}
}

func (p *Model) JacobianMaxNonzeros() int {
	if p.JacobianNonzeros > 0 {
		return p.JacobianNonzeros
	}
	return p.N * len(p.Constraints)
}

func (p *Model) HessianMaxNonzeros() int {
	if p.HessianNonzeros > 0 {
		return p.HessianNonzeros
	}
	return p.N * (p.N + 1) / 2
}

func (p *Model) InitialPrimalPoint(x []float64) {
	if p.X0 != nil {
		copy(x, p.X0)
		return
	}
	linalg.Fill(x, 0)
}

func (p *Model) InitialDualPoint(multipliers []float64) {
	if p.Lambda0 != nil {
		copy(multipliers, p.Lambda0)
		return
	}
	linalg.Fill(multipliers, 0)
}
