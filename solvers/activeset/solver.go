// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package activeset solves the dense strictly convex QP and LP subproblems
//
//	minimize ½ dᵀHd + gᵀd
//	subject to c_L ≤ A·d ≤ c_U , d_L ≤ d ≤ d_U
//
// by reduction to a constrained least-squares chain: equality elimination by
// QR, then least-squares-with-inequalities, then a least-distance problem
// solved by nonnegative least squares. Infeasible constraint systems are
// detected in the least-distance stage and reported, never thrown.
package activeset

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/nlp"
)

// Status is the outcome of one QP/LP solve.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusError
)

// Row is one linearized constraint c_L ≤ g·d ≤ c_U.
type Row struct {
	Gradient *linalg.SparseVector
	Bounds   nlp.Bound
}

// Request assembles one subproblem. WarmStart is accepted for interface
// compatibility with warm-started active-set codes; the direct least-squares
// backend does not consume it.
type Request struct {
	N              int
	VariableBounds []nlp.Bound
	Rows           []Row
	Gradient       []float64
	// Hessian is the quadratic term; nil selects the LP path, which
	// regularizes the diagonal internally but reports a linear model value.
	Hessian   *linalg.COOSymmetricMatrix
	WarmStart []float64
}

// Solution carries the primal solution, the multiplier estimates and the
// active-set descriptor of one solve.
type Solution struct {
	Status  Status
	Warning nlp.SolverWarning

	X         []float64
	Objective float64

	ConstraintMultipliers []float64
	LowerBoundMultipliers []float64
	UpperBoundMultipliers []float64

	ActiveLowerBounds          []int
	ActiveUpperBounds          []int
	ActiveConstraintLowerBound []int
	ActiveConstraintUpperBound []int
}

// Solver holds the tolerances shared by all solves.
type Solver struct {
	// ActivityTolerance declares a bound active when the solution is within
	// this distance of it.
	ActivityTolerance float64
	// LPRegularization is the diagonal term used to make the LP path
	// strictly convex.
	LPRegularization float64
	// MaxIterations caps the inner nonnegative-least-squares iteration;
	// 0 derives a limit from the constraint count.
	MaxIterations int
}

// NewSolver creates a solver with default tolerances.
func NewSolver() *Solver {
	return &Solver{ActivityTolerance: 1e-8, LPRegularization: 1e-6}
}

type rowOriginKind int

const (
	originRowLower rowOriginKind = iota
	originRowUpper
	originVarLower
	originVarUpper
)

type rowOrigin struct {
	kind  rowOriginKind
	index int
}

type inequality struct {
	gradient []float64
	rhs      float64
	origin   rowOrigin
}

// SolveQP solves the quadratic subproblem of the request.
func (s *Solver) SolveQP(req *Request) *Solution {
	return s.solve(req, false)
}

// SolveLP solves the linear subproblem (H = 0). The reported model value is
// the linear term only.
func (s *Solver) SolveLP(req *Request) *Solution {
	return s.solve(req, true)
}

func (s *Solver) solve(req *Request, linear bool) *Solution {
	n := req.N
	sol := &Solution{
		X:                     make([]float64, n),
		ConstraintMultipliers: make([]float64, len(req.Rows)),
		LowerBoundMultipliers: make([]float64, n),
		UpperBoundMultipliers: make([]float64, n),
	}

	// quadratic term, regularized on the LP path
	hess := mat.NewSymDense(n, nil)
	if !linear && req.Hessian != nil {
		req.Hessian.ForEach(func(i, j int, value float64) {
			if i < n && j < n {
				hess.SetSym(i, j, hess.At(i, j)+value)
			}
		})
	}
	if linear {
		for i := 0; i < n; i++ {
			hess.SetSym(i, i, s.LPRegularization)
		}
	}

	// Cholesky with a diagonal-shift fallback: the subproblem layer is
	// expected to deliver a convexified Hessian, the shift only guards
	// against borderline indefiniteness.
	var chol mat.Cholesky
	if ok := chol.Factorize(hess); !ok {
		sol.Warning = nlp.WarningNegativeCurvature
		shift := 1e-4 * (1 + math.Abs(largestDiagonal(hess)))
		for {
			shifted := mat.NewSymDense(n, nil)
			shifted.CopySym(hess)
			for i := 0; i < n; i++ {
				shifted.SetSym(i, i, shifted.At(i, i)+shift)
			}
			if chol.Factorize(shifted) {
				break
			}
			shift *= 2
			if math.IsInf(shift, 1) {
				sol.Status = StatusError
				return sol
			}
		}
	}

	// E = Lᵀ, f = -L⁻¹g so that ½dᵀHd + gᵀd = ½‖E·d - f‖² + const
	var lower mat.TriDense
	chol.LTo(&lower)
	eMat := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			eMat.Set(i, j, lower.At(j, i))
		}
	}
	f := make([]float64, n)
	forwardSolveTri(&lower, req.Gradient, f)
	for i := range f {
		f[i] = -f[i]
	}

	equalities, inequalities := splitRows(req)
	meq := len(equalities)
	if meq > n {
		sol.Status = StatusError
		return sol
	}

	// equality elimination: x = x0 + Z·y with C·x0 = d and C·Z = 0
	var qMat *mat.Dense
	var rMat *mat.Dense
	x0 := make([]float64, n)
	nz := n
	if meq > 0 {
		ct := mat.NewDense(n, meq, nil)
		d := make([]float64, meq)
		for k, eq := range equalities {
			for i := 0; i < n; i++ {
				ct.Set(i, k, eq.gradient[i])
			}
			d[k] = eq.rhs
		}
		var qr mat.QR
		qr.Factorize(ct)
		qMat = mat.NewDense(n, n, nil)
		qr.QTo(qMat)
		rMat = new(mat.Dense)
		qr.RTo(rMat)
		for k := 0; k < meq; k++ {
			if math.Abs(rMat.At(k, k)) <= 1e-12 {
				sol.Warning = nlp.WarningRankDeficient
				sol.Status = StatusError
				return sol
			}
		}
		// x0 = Q₁·(R⁻ᵀd)
		w := make([]float64, meq)
		for k := 0; k < meq; k++ {
			sum := d[k]
			for p := 0; p < k; p++ {
				sum -= rMat.At(p, k) * w[p]
			}
			w[k] = sum / rMat.At(k, k)
		}
		for i := 0; i < n; i++ {
			sum := 0.0
			for k := 0; k < meq; k++ {
				sum += qMat.At(i, k) * w[k]
			}
			x0[i] = sum
		}
		nz = n - meq
	}

	zCol := func(k int) []float64 {
		col := make([]float64, n)
		if meq == 0 {
			col[k] = 1
		} else {
			for i := 0; i < n; i++ {
				col[i] = qMat.At(i, meq+k)
			}
		}
		return col
	}

	if nz == 0 {
		// fully determined by the equalities
		copy(sol.X, x0)
		for _, iq := range inequalities {
			if linalg.Dot(iq.gradient, sol.X) < iq.rhs-1e-8 {
				sol.Status = StatusInfeasible
				return sol
			}
		}
		s.recoverEqualityMultipliers(req, sol, equalities, inequalities, nil, qMat, rMat, meq, linear)
		s.finish(req, sol, linear)
		return sol
	}

	// reduced least-squares data
	eReduced := mat.NewDense(n, nz, nil)
	for k := 0; k < nz; k++ {
		col := zCol(k)
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			sum := 0.0
			for j := i; j < n; j++ {
				sum += eMat.At(i, j) * col[j]
			}
			out[i] = sum
		}
		eReduced.SetCol(k, out)
	}
	fReduced := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := f[i]
		for j := i; j < n; j++ {
			sum -= eMat.At(i, j) * x0[j]
		}
		fReduced[i] = sum
	}

	var qrE mat.QR
	qrE.Factorize(eReduced)
	qHat := mat.NewDense(n, n, nil)
	qrE.QTo(qHat)
	rHat := new(mat.Dense)
	qrE.RTo(rHat)
	for k := 0; k < nz; k++ {
		if math.Abs(rHat.At(k, k)) <= 1e-14 {
			sol.Warning = nlp.WarningSingularMatrix
			sol.Status = StatusError
			return sol
		}
	}
	fHat := make([]float64, nz)
	for k := 0; k < nz; k++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += qHat.At(i, k) * fReduced[i]
		}
		fHat[k] = sum
	}

	// least-distance stage over the inequalities
	mi := len(inequalities)
	var z []float64
	var lambda []float64
	if mi > 0 {
		a := make([][]float64, mi)
		b := make([]float64, mi)
		for q, iq := range inequalities {
			// reduced gradient g̃ = Zᵀ·g
			gr := make([]float64, nz)
			for k := 0; k < nz; k++ {
				gr[k] = linalg.Dot(iq.gradient, zCol(k))
			}
			// row of A: solve R̂ᵀ·a = g̃
			arow := make([]float64, nz)
			for k := 0; k < nz; k++ {
				sum := gr[k]
				for p := 0; p < k; p++ {
					sum -= rHat.At(p, k) * arow[p]
				}
				arow[k] = sum / rHat.At(k, k)
			}
			a[q] = arow
			b[q] = iq.rhs - linalg.Dot(iq.gradient, x0) - linalg.Dot(arow, fHat)
		}
		var status Status
		z, lambda, status = ldp(a, b, nz, s.MaxIterations)
		if status != StatusOptimal {
			sol.Status = status
			return sol
		}
	} else {
		z = make([]float64, nz)
	}

	// back-substitute y = R̂⁻¹(z + f̂) and assemble x = x0 + Z·y
	y := make([]float64, nz)
	for k := nz - 1; k >= 0; k-- {
		sum := z[k] + fHat[k]
		for p := k + 1; p < nz; p++ {
			sum -= rHat.At(k, p) * y[p]
		}
		y[k] = sum / rHat.At(k, k)
	}
	copy(sol.X, x0)
	for k := 0; k < nz; k++ {
		linalg.AddScaled(sol.X, y[k], zCol(k))
	}
	for i, b := range req.VariableBounds {
		sol.X[i] = b.Project(sol.X[i])
	}

	// duals: inequality multipliers from the least-distance stage, equality
	// multipliers from the stationarity system
	for q, iq := range inequalities {
		mult := lambda[q]
		if mult < 0 {
			mult = 0
		}
		switch iq.origin.kind {
		case originRowLower:
			sol.ConstraintMultipliers[iq.origin.index] += mult
		case originRowUpper:
			sol.ConstraintMultipliers[iq.origin.index] -= mult
		case originVarLower:
			sol.LowerBoundMultipliers[iq.origin.index] += mult
		case originVarUpper:
			sol.UpperBoundMultipliers[iq.origin.index] -= mult
		}
	}
	s.recoverEqualityMultipliers(req, sol, equalities, inequalities, lambda, qMat, rMat, meq, linear)
	s.finish(req, sol, linear)
	return sol
}

// recoverEqualityMultipliers solves C·ᵀν = H·x + g - Σ μᵢ·aᵢ for the
// equality-row multipliers through the QR factors of Cᵀ.
func (s *Solver) recoverEqualityMultipliers(req *Request, sol *Solution, equalities, inequalities []inequality, lambda []float64, qMat, rMat *mat.Dense, meq int, linear bool) {
	if meq == 0 {
		return
	}
	n := req.N
	residual := make([]float64, n)
	copy(residual, req.Gradient)
	if !linear && req.Hessian != nil {
		hx := make([]float64, n)
		req.Hessian.MulVec(sol.X, hx, n)
		linalg.AddScaled(residual, 1, hx)
	} else if linear {
		linalg.AddScaled(residual, s.LPRegularization, sol.X)
	}
	for q, iq := range inequalities {
		if lambda == nil || lambda[q] <= 0 {
			continue
		}
		linalg.AddScaled(residual, -lambda[q], iq.gradient)
	}
	// ν = R⁻¹·(Q₁ᵀ·residual)
	rhs := make([]float64, meq)
	for k := 0; k < meq; k++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += qMat.At(i, k) * residual[i]
		}
		rhs[k] = sum
	}
	nu := make([]float64, meq)
	for k := meq - 1; k >= 0; k-- {
		sum := rhs[k]
		for p := k + 1; p < meq; p++ {
			sum -= rMat.At(k, p) * nu[p]
		}
		nu[k] = sum / rMat.At(k, k)
	}
	for k, eq := range equalities {
		sol.ConstraintMultipliers[eq.origin.index] = nu[k]
	}
}

// finish computes the model value and the active-set descriptor.
func (s *Solver) finish(req *Request, sol *Solution, linear bool) {
	obj := linalg.Dot(req.Gradient, sol.X)
	if !linear && req.Hessian != nil {
		obj += 0.5 * req.Hessian.QuadraticProduct(sol.X, sol.X, req.N)
	}
	sol.Objective = obj
	for i, b := range req.VariableBounds {
		switch {
		case !math.IsInf(b.Lower, -1) && math.Abs(sol.X[i]-b.Lower) <= s.ActivityTolerance:
			sol.ActiveLowerBounds = append(sol.ActiveLowerBounds, i)
		case !math.IsInf(b.Upper, 1) && math.Abs(sol.X[i]-b.Upper) <= s.ActivityTolerance:
			sol.ActiveUpperBounds = append(sol.ActiveUpperBounds, i)
		}
	}
	for j, row := range req.Rows {
		value := row.Gradient.Dot(sol.X)
		switch {
		case !math.IsInf(row.Bounds.Lower, -1) && math.Abs(value-row.Bounds.Lower) <= s.ActivityTolerance:
			sol.ActiveConstraintLowerBound = append(sol.ActiveConstraintLowerBound, j)
		case !math.IsInf(row.Bounds.Upper, 1) && math.Abs(value-row.Bounds.Upper) <= s.ActivityTolerance:
			sol.ActiveConstraintUpperBound = append(sol.ActiveConstraintUpperBound, j)
		}
	}
	sol.Status = StatusOptimal
}

// splitRows expands the two-sided rows and bounds into equality rows and
// one-sided ≥ inequalities, keeping the origin of every row for dual
// recovery.
func splitRows(req *Request) (equalities, inequalities []inequality) {
	n := req.N
	for j, row := range req.Rows {
		gradient := row.Gradient.Dense(n)
		b := row.Bounds
		if b.Type() == nlp.Equality {
			equalities = append(equalities, inequality{gradient: gradient, rhs: b.Lower, origin: rowOrigin{originRowLower, j}})
			continue
		}
		if !math.IsInf(b.Lower, -1) {
			inequalities = append(inequalities, inequality{gradient: gradient, rhs: b.Lower, origin: rowOrigin{originRowLower, j}})
		}
		if !math.IsInf(b.Upper, 1) {
			negated := make([]float64, n)
			linalg.AddScaled(negated, -1, gradient)
			inequalities = append(inequalities, inequality{gradient: negated, rhs: -b.Upper, origin: rowOrigin{originRowUpper, j}})
		}
	}
	for i, b := range req.VariableBounds {
		if !math.IsInf(b.Lower, -1) {
			gradient := make([]float64, n)
			gradient[i] = 1
			inequalities = append(inequalities, inequality{gradient: gradient, rhs: b.Lower, origin: rowOrigin{originVarLower, i}})
		}
		if !math.IsInf(b.Upper, 1) {
			gradient := make([]float64, n)
			gradient[i] = -1
			inequalities = append(inequalities, inequality{gradient: gradient, rhs: -b.Upper, origin: rowOrigin{originVarUpper, i}})
		}
	}
	return equalities, inequalities
}

func largestDiagonal(m *mat.SymDense) float64 {
	n := m.SymmetricDim()
	largest := 0.0
	for i := 0; i < n; i++ {
		largest = math.Max(largest, math.Abs(m.At(i, i)))
	}
	return largest
}

// forwardSolveTri solves L·x = b for lower-triangular L.
func forwardSolveTri(l *mat.TriDense, b, x []float64) {
	n := len(b)
	for i := 0; i < n; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= l.At(i, j) * x[j]
		}
		x[i] = sum / l.At(i, i)
	}
}
