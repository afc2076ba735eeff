// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package subproblem

import (
	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/nlp"
	"github.com/cvanaret/uno/solvers/linear"
)

// HessianModel produces the quadratic term of a subproblem model.
type HessianModel interface {
	// Evaluate refreshes the model at x with the given objective multiplier
	// and constraint multipliers.
	Evaluate(problem nlp.Problem, x []float64, objectiveMultiplier float64, multipliers []float64) error
	Hessian() *linalg.COOSymmetricMatrix
	EvaluationCount() int
}

// NewHessianModel builds a Hessian model from its option key. convexify
// requests an inertia correction after each evaluation, needed when no trust
// region bounds the step.
func NewHessianModel(kind string, dimension, maxNonzeros int, convexify bool) (HessianModel, error) {
	switch kind {
	case "exact":
		model := &exactHessian{
			hessian: linalg.NewCOOSymmetricMatrix(dimension, maxNonzeros+dimension),
		}
		if convexify {
			model.solver = linear.NewEigenSolver(dimension, maxNonzeros+dimension)
		}
		return model, nil
	case "finite-difference":
		return &finiteDifferenceHessian{
			hessian: linalg.NewCOOSymmetricMatrix(dimension, dimension*(dimension+1)/2),
		}, nil
	case "identity":
		return &identityHessian{
			hessian: linalg.NewCOOSymmetricMatrix(dimension, dimension),
		}, nil
	}
	return nil, &nlp.ConfigurationError{Key: "hessian_model", Value: kind}
}

// exactHessian evaluates the Lagrangian Hessian, optionally followed by the
// inertia correction of Nocedal-Wright: add δI with δ doubling from β until
// the factorization reports no negative eigenvalue and no singularity.
type exactHessian struct {
	hessian *linalg.COOSymmetricMatrix
	solver  linear.DirectSymmetricIndefiniteSolver
	count   int
}

const inertiaInitialShift = 1e-4

func (h *exactHessian) Evaluate(problem nlp.Problem, x []float64, objectiveMultiplier float64, multipliers []float64) error {
	problem.EvaluateLagrangianHessian(x, objectiveMultiplier, multipliers, h.hessian)
	h.count++
	if h.solver == nil {
		return nil
	}
	return h.correctInertia()
}

func (h *exactHessian) correctInertia() error {
	shift := 0.0
	if smallest := h.hessian.SmallestDiagonalEntry(); smallest <= 0 {
		shift = inertiaInitialShift - smallest
	}
	if shift > 0 {
		h.hessian.AddIdentityMultiple(shift)
	}
	for {
		if err := h.solver.Factorize(h.hessian); err != nil {
			return &nlp.NumericalError{Op: "hessian factorization"}
		}
		inertia := h.solver.Inertia()
		if !h.solver.Singular() && inertia.Negative == 0 {
			return nil
		}
		previous := shift
		if shift == 0 {
			shift = inertiaInitialShift
		} else {
			shift *= 2
		}
		h.hessian.AddIdentityMultiple(shift - previous)
	}
}

func (h *exactHessian) Hessian() *linalg.COOSymmetricMatrix { return h.hessian }
func (h *exactHessian) EvaluationCount() int                { return h.count }

// finiteDifferenceHessian approximates the Lagrangian Hessian by forward
// differences of the Lagrangian gradient, one perturbed gradient per
// variable.
type finiteDifferenceHessian struct {
	hessian *linalg.COOSymmetricMatrix
	count   int
}

const differenceStep = 1e-7

func (h *finiteDifferenceHessian) Evaluate(problem nlp.Problem, x []float64, objectiveMultiplier float64, multipliers []float64) error {
	n := len(x)
	base, err := lagrangianGradientAt(problem, x, objectiveMultiplier, multipliers)
	if err != nil {
		return err
	}
	perturbed := append([]float64(nil), x...)
	h.hessian.Reset()
	h.hessian.SetDimension(n)
	for k := 0; k < n; k++ {
		step := differenceStep * (1 + absOf(x[k]))
		perturbed[k] = x[k] + step
		grad, err := lagrangianGradientAt(problem, perturbed, objectiveMultiplier, multipliers)
		perturbed[k] = x[k]
		if err != nil {
			return err
		}
		for i := k; i < n; i++ {
			value := (grad[i] - base[i]) / step
			if value != 0 {
				h.hessian.Insert(i, k, value)
			}
		}
	}
	h.count++
	return nil
}

func lagrangianGradientAt(problem nlp.Problem, x []float64, objectiveMultiplier float64, multipliers []float64) ([]float64, error) {
	n := len(x)
	gradient := make([]float64, n)
	sparse := linalg.NewSparseVector(n)
	problem.EvaluateObjectiveGradient(x, sparse)
	sparse.AddTo(gradient, objectiveMultiplier)
	jacobian := linalg.NewRectangularMatrix(problem.NumConstraints(), n)
	problem.EvaluateConstraintJacobian(x, jacobian)
	jacobian.TransposeMulAdd(gradient, -1, multipliers)
	if !linalg.IsFinite(gradient) {
		return nil, &nlp.NumericalError{Op: "finite-difference gradient"}
	}
	return gradient, nil
}

func (h *finiteDifferenceHessian) Hessian() *linalg.COOSymmetricMatrix { return h.hessian }
func (h *finiteDifferenceHessian) EvaluationCount() int                { return h.count }

// identityHessian models the curvature as I, reducing the QP to a projected
// steepest-descent model.
type identityHessian struct {
	hessian *linalg.COOSymmetricMatrix
	count   int
}

func (h *identityHessian) Evaluate(problem nlp.Problem, x []float64, objectiveMultiplier float64, multipliers []float64) error {
	h.hessian.Reset()
	h.hessian.SetDimension(len(x))
	h.hessian.AddIdentityMultiple(1)
	h.count++
	return nil
}

func (h *identityHessian) Hessian() *linalg.COOSymmetricMatrix { return h.hessian }
func (h *identityHessian) EvaluationCount() int                { return h.count }

func absOf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
