// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package subproblem

import (
	"math"

	"go.uber.org/zap"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/nlp"
	"github.com/cvanaret/uno/solvers/linear"
)

// PrimalDualInteriorPoint replaces the inequality constraints and variable
// bounds by a log barrier with parameter μ and solves one Newton step on the
// KKT system of the barrier problem per outer iteration. Inequality rows get
// internal slacks, reset from c(x) at every evaluation; variable and slack
// bounds are interiorized.
type PrimalDualInteriorPoint struct {
	n, m   int
	logger *zap.Logger
	solver *linear.EigenSolver

	residualNorm        linalg.Norm
	objectiveMultiplier float64

	mu                float64
	muMinimum         float64
	tauMinimum        float64
	interiorPush      float64
	kappaEpsilon      float64
	kappaMu           float64
	thetaMu           float64
	initialShift      float64
	definitionChanged bool

	// slack row bookkeeping: slackOf[j] ≥ 0 is the slack index of an
	// inequality row, -1 marks an equality row
	slackOf   []int
	numSlacks int

	zLower []float64
	zUpper []float64

	lastModelGradient float64
	numSolved         int
}

// NewPrimalDualInteriorPoint builds a barrier subproblem with initial
// barrier parameter mu.
func NewPrimalDualInteriorPoint(problem nlp.Problem, mu float64, residualNorm linalg.Norm, logger *zap.Logger) *PrimalDualInteriorPoint {
	if logger == nil {
		logger = zap.NewNop()
	}
	n, m := problem.NumVariables(), problem.NumConstraints()
	slackOf := make([]int, m)
	numSlacks := 0
	for j, b := range problem.ConstraintBounds() {
		if b.Type() == nlp.Equality {
			slackOf[j] = -1
		} else {
			slackOf[j] = numSlacks
			numSlacks++
		}
	}
	dimension := n + numSlacks + m
	return &PrimalDualInteriorPoint{
		n:            n,
		m:            m,
		logger:       logger,
		solver:       linear.NewEigenSolver(dimension, problem.HessianMaxNonzeros()+problem.JacobianMaxNonzeros()+dimension),
		residualNorm: residualNorm,
		mu:           mu,
		muMinimum:    1e-9,
		tauMinimum:   0.99,
		interiorPush: 1e-2,
		kappaEpsilon: 10,
		kappaMu:      0.2,
		thetaMu:      1.5,
		initialShift: 1e-4,
		slackOf:      slackOf,
		numSlacks:    numSlacks,
		zLower:       make([]float64, n),
		zUpper:       make([]float64, n),
	}
}

// Initialize pushes the first iterate strictly inside its bounds and seeds
// the bound duals.
func (b *PrimalDualInteriorPoint) Initialize(problem nlp.Problem, first *nlp.Iterate) error {
	moved := false
	for i, vb := range problem.VariableBounds() {
		interior := b.pushInterior(first.X[i], vb)
		if interior != first.X[i] {
			first.X[i] = interior
			moved = true
		}
	}
	if moved {
		first.ResetEvaluations()
	}
	for i, vb := range problem.VariableBounds() {
		if !math.IsInf(vb.Lower, -1) {
			b.zLower[i] = 1
		}
		if !math.IsInf(vb.Upper, 1) {
			b.zUpper[i] = -1
		}
	}
	copy(first.Multipliers.LowerBounds, b.zLower)
	copy(first.Multipliers.UpperBounds, b.zUpper)
	return b.ComputeProgressMeasures(problem, first)
}

func (b *PrimalDualInteriorPoint) pushInterior(value float64, bound nlp.Bound) float64 {
	l, u := bound.Lower, bound.Upper
	if !math.IsInf(l, -1) {
		margin := b.interiorPush * math.Max(1, math.Abs(l))
		if !math.IsInf(u, 1) {
			margin = math.Min(margin, (u-l)/4)
		}
		value = math.Max(value, l+margin)
	}
	if !math.IsInf(u, 1) {
		margin := b.interiorPush * math.Max(1, math.Abs(u))
		if !math.IsInf(l, -1) {
			margin = math.Min(margin, (u-l)/4)
		}
		value = math.Min(value, u-margin)
	}
	return value
}

func (b *PrimalDualInteriorPoint) BuildCurrentSubproblem(problem nlp.Problem, current *nlp.Iterate, objectiveMultiplier, trustRegionRadius float64) {
	b.objectiveMultiplier = objectiveMultiplier
}

func (b *PrimalDualInteriorPoint) BuildObjectiveModel(problem nlp.Problem, current *nlp.Iterate, objectiveMultiplier float64) {
	b.objectiveMultiplier = objectiveMultiplier
}

// resetSlacks recomputes the slack of every inequality row from the current
// constraint values, clipped strictly inside the constraint bounds.
func (b *PrimalDualInteriorPoint) resetSlacks(problem nlp.Problem, constraints []float64) []float64 {
	slacks := make([]float64, b.numSlacks)
	for j, k := range b.slackOf {
		if k < 0 {
			continue
		}
		slacks[k] = b.pushInterior(constraints[j], problem.ConstraintBounds()[j])
	}
	return slacks
}

// Solve assembles and factorizes the augmented barrier KKT system
//
//	[ H + Σx    0    Jᵀ ] [ dx ]
//	[ 0        Σs   -I  ] [ ds ] = -[ ∇ₓL ; ∇ₛL ; ĉ ]
//	[ J        -I    0  ] [ -dλ]
//
// corrects its inertia to (n+s, m, 0), applies the fraction-to-the-boundary
// rule and returns the scaled primal-dual direction.
func (b *PrimalDualInteriorPoint) Solve(problem nlp.Problem, current *nlp.Iterate) (*nlp.Direction, error) {
	if err := current.EvaluateObjectiveGradient(problem); err != nil {
		return nil, err
	}
	if err := current.EvaluateConstraints(problem); err != nil {
		return nil, err
	}
	if err := current.EvaluateConstraintJacobian(problem); err != nil {
		return nil, err
	}

	n, m, ns := b.n, b.m, b.numSlacks
	dimension := n + ns + m
	variableBounds := problem.VariableBounds()
	constraintBounds := problem.ConstraintBounds()
	slacks := b.resetSlacks(problem, current.Constraints)

	hessian := linalg.NewCOOSymmetricMatrix(n, problem.HessianMaxNonzeros())
	problem.EvaluateLagrangianHessian(current.X, b.objectiveMultiplier, current.Multipliers.Constraints, hessian)

	// primal-dual Hessian of the bound barrier
	sigmaX := make([]float64, n)
	for i := 0; i < n; i++ {
		if !math.IsInf(variableBounds[i].Lower, -1) {
			sigmaX[i] += b.zLower[i] / (current.X[i] - variableBounds[i].Lower)
		}
		if !math.IsInf(variableBounds[i].Upper, 1) {
			sigmaX[i] += b.zUpper[i] / (current.X[i] - variableBounds[i].Upper)
		}
	}
	sigmaS := make([]float64, ns)
	for j, k := range b.slackOf {
		if k < 0 {
			continue
		}
		cb := constraintBounds[j]
		if !math.IsInf(cb.Lower, -1) {
			sigmaS[k] += b.mu / ((slacks[k] - cb.Lower) * (slacks[k] - cb.Lower))
		}
		if !math.IsInf(cb.Upper, 1) {
			sigmaS[k] += b.mu / ((cb.Upper - slacks[k]) * (cb.Upper - slacks[k]))
		}
	}

	rhs := make([]float64, dimension)
	// -∇ₓL = -(σ∇f - Jᵀλ - z_L - z_U)
	gradX := make([]float64, n)
	current.ObjectiveGradient.AddTo(gradX, b.objectiveMultiplier)
	current.ConstraintJacobian.TransposeMulAdd(gradX, -1, current.Multipliers.Constraints)
	for i := 0; i < n; i++ {
		rhs[i] = -(gradX[i] - b.zLower[i] - b.zUpper[i])
	}
	// -∇ₛL = -(λ - w_L - w_U) with the μ-exact slack duals
	for j, k := range b.slackOf {
		if k < 0 {
			continue
		}
		cb := constraintBounds[j]
		wSum := 0.0
		if !math.IsInf(cb.Lower, -1) {
			wSum += b.mu / (slacks[k] - cb.Lower)
		}
		if !math.IsInf(cb.Upper, 1) {
			wSum -= b.mu / (cb.Upper - slacks[k])
		}
		rhs[n+k] = -(current.Multipliers.Constraints[j] - wSum)
	}
	// -ĉ
	for j, k := range b.slackOf {
		if k < 0 {
			rhs[n+ns+j] = -(current.Constraints[j] - constraintBounds[j].Lower)
		} else {
			rhs[n+ns+j] = -(current.Constraints[j] - slacks[k])
		}
	}

	solution, err := b.factorizeAndSolve(current, hessian, sigmaX, sigmaS, rhs, dimension)
	if err != nil {
		return nil, err
	}

	dx := solution[:n]
	dLambda := make([]float64, m)
	for j := 0; j < m; j++ {
		dLambda[j] = -solution[n+ns+j]
	}

	// bound dual steps from the linearized complementarity conditions
	dzLower := make([]float64, n)
	dzUpper := make([]float64, n)
	for i := 0; i < n; i++ {
		if !math.IsInf(variableBounds[i].Lower, -1) {
			gap := current.X[i] - variableBounds[i].Lower
			dzLower[i] = (b.mu-b.zLower[i]*gap)/gap - b.zLower[i]*dx[i]/gap
		}
		if !math.IsInf(variableBounds[i].Upper, 1) {
			gap := current.X[i] - variableBounds[i].Upper
			dzUpper[i] = (b.mu-b.zUpper[i]*gap)/gap - b.zUpper[i]*dx[i]/gap
		}
	}

	// fraction to the boundary
	tau := math.Max(b.tauMinimum, 1-b.mu)
	alphaPrimal := 1.0
	for i := 0; i < n; i++ {
		if !math.IsInf(variableBounds[i].Lower, -1) && dx[i] < 0 {
			alphaPrimal = math.Min(alphaPrimal, -tau*(current.X[i]-variableBounds[i].Lower)/dx[i])
		}
		if !math.IsInf(variableBounds[i].Upper, 1) && dx[i] > 0 {
			alphaPrimal = math.Min(alphaPrimal, tau*(variableBounds[i].Upper-current.X[i])/dx[i])
		}
	}
	alphaDual := 1.0
	for i := 0; i < n; i++ {
		if b.zLower[i] > 0 && dzLower[i] < 0 {
			alphaDual = math.Min(alphaDual, -tau*b.zLower[i]/dzLower[i])
		}
		if b.zUpper[i] < 0 && dzUpper[i] > 0 {
			alphaDual = math.Min(alphaDual, -tau*b.zUpper[i]/dzUpper[i])
		}
	}

	direction := nlp.NewDirection(n, m)
	for i := 0; i < n; i++ {
		direction.Primals[i] = alphaPrimal * dx[i]
		direction.Multipliers.LowerBounds[i] = b.zLower[i] + alphaDual*dzLower[i]
		direction.Multipliers.UpperBounds[i] = b.zUpper[i] + alphaDual*dzUpper[i]
	}
	for j := 0; j < m; j++ {
		direction.Multipliers.Constraints[j] = current.Multipliers.Constraints[j] + alphaDual*dLambda[j]
	}
	direction.Norm = linalg.NormOfSlice(linalg.NormInfty, direction.Primals)
	direction.Status = nlp.DirectionOptimal
	direction.ObjectiveMultiplier = b.objectiveMultiplier

	b.lastModelGradient = b.barrierGradientDot(problem, current, slacks, direction.Primals)
	direction.Objective = b.lastModelGradient
	b.numSolved++
	b.logger.Debug("barrier subproblem solved",
		zap.Float64("mu", b.mu),
		zap.Float64("alpha_primal", alphaPrimal),
		zap.Float64("alpha_dual", alphaDual),
		zap.Float64("norm", direction.Norm))
	return direction, nil
}

// factorizeAndSolve corrects the inertia of the augmented system to
// (n + slacks, m, 0) by shifting the primal block with δ·I (and the dual
// block with -δc·I against singularity) before solving.
func (b *PrimalDualInteriorPoint) factorizeAndSolve(current *nlp.Iterate, hessian *linalg.COOSymmetricMatrix, sigmaX, sigmaS, rhs []float64, dimension int) ([]float64, error) {
	n, ns, m := b.n, b.numSlacks, b.m

	build := func(deltaW, deltaC float64) *linalg.COOSymmetricMatrix {
		kkt := linalg.NewCOOSymmetricMatrix(dimension, hessian.NumNonzeros()+dimension+current.ConstraintJacobian.NumNonzeros()+ns)
		hessian.ForEach(func(i, j int, value float64) {
			kkt.Insert(i, j, value)
		})
		for i := 0; i < n; i++ {
			kkt.Insert(i, i, sigmaX[i]+deltaW)
		}
		for k := 0; k < ns; k++ {
			kkt.Insert(n+k, n+k, sigmaS[k]+deltaW)
		}
		for j := 0; j < m; j++ {
			row := n + ns + j
			current.ConstraintJacobian[j].ForEach(func(i int, value float64) {
				kkt.Insert(row, i, value)
			})
			if k := b.slackOf[j]; k >= 0 {
				kkt.Insert(row, n+k, -1)
			}
			if deltaC > 0 {
				kkt.Insert(row, row, -deltaC)
			}
		}
		return kkt
	}

	deltaW, deltaC := 0.0, 0.0
	for attempt := 0; attempt < 40; attempt++ {
		if err := b.solver.Factorize(build(deltaW, deltaC)); err != nil {
			return nil, &nlp.NumericalError{Op: "barrier KKT factorization"}
		}
		inertia := b.solver.Inertia()
		if inertia.Positive == n+ns && inertia.Negative == m && inertia.Zero == 0 {
			return b.solver.Solve(rhs)
		}
		if b.solver.Singular() {
			deltaC = math.Max(deltaC*10, 1e-8)
		}
		if deltaW == 0 {
			deltaW = b.initialShift
		} else {
			deltaW *= 2
		}
	}
	return nil, &nlp.NumericalError{Op: "barrier inertia correction"}
}

// barrierGradientDot evaluates ∇φᵀd for the x part of the barrier objective.
func (b *PrimalDualInteriorPoint) barrierGradientDot(problem nlp.Problem, current *nlp.Iterate, slacks, d []float64) float64 {
	variableBounds := problem.VariableBounds()
	gradient := make([]float64, b.n)
	current.ObjectiveGradient.AddTo(gradient, b.objectiveMultiplier)
	for i := 0; i < b.n; i++ {
		if !math.IsInf(variableBounds[i].Lower, -1) {
			gradient[i] -= b.mu / (current.X[i] - variableBounds[i].Lower)
		}
		if !math.IsInf(variableBounds[i].Upper, 1) {
			gradient[i] += b.mu / (variableBounds[i].Upper - current.X[i])
		}
	}
	return linalg.Dot(gradient, d[:b.n])
}

func (b *PrimalDualInteriorPoint) PredictedReductionModel(problem nlp.Problem, direction *nlp.Direction) func(stepLength float64) float64 {
	linear := b.lastModelGradient
	return func(stepLength float64) float64 {
		return -stepLength * linear
	}
}

// ComputeProgressMeasures uses the barrier objective as the optimality
// measure, so the strategies globalize the barrier problem rather than the
// original one.
func (b *PrimalDualInteriorPoint) ComputeProgressMeasures(problem nlp.Problem, it *nlp.Iterate) error {
	if err := it.EvaluateConstraints(problem); err != nil {
		return err
	}
	if err := it.EvaluateObjective(problem); err != nil {
		return err
	}
	variableBounds := problem.VariableBounds()
	constraintBounds := problem.ConstraintBounds()
	slacks := b.resetSlacks(problem, it.Constraints)

	barrier := b.objectiveSignApplied(problem) * it.Objective
	for i := 0; i < b.n; i++ {
		if !math.IsInf(variableBounds[i].Lower, -1) {
			barrier -= b.mu * math.Log(it.X[i]-variableBounds[i].Lower)
		}
		if !math.IsInf(variableBounds[i].Upper, 1) {
			barrier -= b.mu * math.Log(variableBounds[i].Upper-it.X[i])
		}
	}
	for j, k := range b.slackOf {
		if k < 0 {
			continue
		}
		cb := constraintBounds[j]
		if !math.IsInf(cb.Lower, -1) {
			barrier -= b.mu * math.Log(slacks[k]-cb.Lower)
		}
		if !math.IsInf(cb.Upper, 1) {
			barrier -= b.mu * math.Log(cb.Upper-slacks[k])
		}
	}
	if math.IsNaN(barrier) || math.IsInf(barrier, 0) {
		return &nlp.NumericalError{Op: "barrier function evaluation"}
	}
	it.Progress = nlp.ProgressMeasures{
		Feasibility: nlp.ConstraintViolation(problem, it.Constraints, linalg.NormL1),
		Objective:   barrier,
	}
	return nil
}

func (b *PrimalDualInteriorPoint) objectiveSignApplied(problem nlp.Problem) float64 {
	if b.objectiveMultiplier != 0 {
		return b.objectiveMultiplier
	}
	return problem.ObjectiveSign()
}

func (b *PrimalDualInteriorPoint) ComputeResiduals(problem nlp.Problem, it *nlp.Iterate, objectiveMultiplier float64) error {
	if err := nlp.ComputeResiduals(problem, it, objectiveMultiplier, b.residualNorm); err != nil {
		return err
	}
	// the barrier complementarity is shifted by μ
	it.Residuals.Complementarity = nlp.ComplementarityError(problem, it, it.Multipliers, b.mu, b.residualNorm)
	return nil
}

// RegisterAcceptedIterate adopts the accepted bound duals and applies the
// Fiacco-McCormick update to the barrier parameter.
func (b *PrimalDualInteriorPoint) RegisterAcceptedIterate(problem nlp.Problem, it *nlp.Iterate) {
	copy(b.zLower, it.Multipliers.LowerBounds)
	copy(b.zUpper, it.Multipliers.UpperBounds)
	// keep the duals on the right side of zero
	for i := range b.zLower {
		if b.zLower[i] < 0 {
			b.zLower[i] = 0
		}
		if b.zUpper[i] > 0 {
			b.zUpper[i] = 0
		}
	}

	complementarity := nlp.ComplementarityError(problem, it, it.Multipliers, b.mu, b.residualNorm)
	if complementarity <= b.kappaEpsilon*b.mu {
		updated := math.Max(b.muMinimum, math.Min(b.kappaMu*b.mu, math.Pow(b.mu, b.thetaMu)))
		if updated < b.mu {
			b.mu = updated
			b.definitionChanged = true
			b.logger.Debug("barrier parameter decreased", zap.Float64("mu", b.mu))
		}
	}
}

func (b *PrimalDualInteriorPoint) HasSecondOrderCorrection() bool { return false }

func (b *PrimalDualInteriorPoint) SecondOrderCorrection(problem nlp.Problem, trial *nlp.Iterate) (*nlp.Direction, error) {
	return nil, &nlp.NumericalError{Op: "second-order correction unsupported for barrier"}
}

// AddElasticVariables is not available on the barrier path: the barrier
// subproblem never reports an infeasible linearization, so the elastic
// relaxation has nothing to repair.
func (b *PrimalDualInteriorPoint) AddElasticVariables(coefficient float64) {
	b.logger.Warn("elastic variables are not supported by the barrier subproblem")
}

func (b *PrimalDualInteriorPoint) RemoveElasticVariables() {}

func (b *PrimalDualInteriorPoint) LinearizedResidual(direction *nlp.Direction) float64 { return 0 }

func (b *PrimalDualInteriorPoint) StripElastics(direction *nlp.Direction) {
	direction.Norm = linalg.NormOfSlice(linalg.NormInfty, direction.Primals)
}

func (b *PrimalDualInteriorPoint) SetInitialPoint(x []float64) {}

func (b *PrimalDualInteriorPoint) SetConstraintMultipliers(multipliers []float64) {}

func (b *PrimalDualInteriorPoint) AddProximalTerm(coefficient float64, reference []float64) {}

func (b *PrimalDualInteriorPoint) SetFeasibilityObjective(problem nlp.Problem, it *nlp.Iterate, partition *nlp.ConstraintPartition) error {
	return nil
}

func (b *PrimalDualInteriorPoint) SetFeasibilityBounds(problem nlp.Problem, it *nlp.Iterate, partition *nlp.ConstraintPartition) error {
	return nil
}

func (b *PrimalDualInteriorPoint) DefinitionChanged() bool   { return b.definitionChanged }
func (b *PrimalDualInteriorPoint) ClearDefinitionChanged()   { b.definitionChanged = false }
func (b *PrimalDualInteriorPoint) ResidualNorm() linalg.Norm { return b.residualNorm }
