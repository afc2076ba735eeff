// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package subproblem assembles and solves the local models of the outer
// iteration: QP, LP and primal-dual barrier variants behind one contract.
package subproblem

import (
	"math"

	"go.uber.org/zap"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/nlp"
	"github.com/cvanaret/uno/solvers/activeset"
)

// Subproblem is the contract shared by all local models. A constraint
// relaxation strategy drives it: build, optionally relax with elastic
// variables, solve, and interrogate the model decrease.
type Subproblem interface {
	Initialize(problem nlp.Problem, first *nlp.Iterate) error
	// BuildCurrentSubproblem fixes the objective multiplier σ and the
	// trust-region radius (math.Inf(1) when no trust region is used) and
	// clears any relaxation state left from the previous iteration.
	BuildCurrentSubproblem(problem nlp.Problem, current *nlp.Iterate, objectiveMultiplier, trustRegionRadius float64)
	// BuildObjectiveModel changes σ while keeping the linearization and the
	// elastic variables in place.
	BuildObjectiveModel(problem nlp.Problem, current *nlp.Iterate, objectiveMultiplier float64)
	Solve(problem nlp.Problem, current *nlp.Iterate) (*nlp.Direction, error)
	// PredictedReductionModel returns α ↦ Δm(α), the model decrease at step
	// length α. Expensive terms are precomputed once per direction.
	PredictedReductionModel(problem nlp.Problem, direction *nlp.Direction) func(stepLength float64) float64
	ComputeProgressMeasures(problem nlp.Problem, it *nlp.Iterate) error
	ComputeResiduals(problem nlp.Problem, it *nlp.Iterate, objectiveMultiplier float64) error
	SecondOrderCorrection(problem nlp.Problem, trial *nlp.Iterate) (*nlp.Direction, error)
	HasSecondOrderCorrection() bool

	// Elastic relaxation, used by the constraint-relaxation strategies.
	AddElasticVariables(coefficient float64)
	RemoveElasticVariables()
	LinearizedResidual(direction *nlp.Direction) float64
	StripElastics(direction *nlp.Direction)

	SetInitialPoint(x []float64)
	SetConstraintMultipliers(multipliers []float64)
	AddProximalTerm(coefficient float64, reference []float64)
	SetFeasibilityObjective(problem nlp.Problem, it *nlp.Iterate, partition *nlp.ConstraintPartition) error
	SetFeasibilityBounds(problem nlp.Problem, it *nlp.Iterate, partition *nlp.ConstraintPartition) error

	// RegisterAcceptedIterate lets the subproblem react to the committed
	// iterate (the barrier variant adopts duals and updates μ there).
	RegisterAcceptedIterate(problem nlp.Problem, it *nlp.Iterate)

	DefinitionChanged() bool
	ClearDefinitionChanged()
	ResidualNorm() linalg.Norm
}

// activeSetBase carries the assembly state shared by the QP and LP
// subproblems.
type activeSetBase struct {
	n, m   int
	logger *zap.Logger
	solver *activeset.Solver

	residualNorm        linalg.Norm
	objectiveMultiplier float64
	trustRegionRadius   float64

	elasticsActive     bool
	elasticCoefficient float64

	hessianMultipliers   []float64
	initialPoint         []float64
	proximalCoefficient  float64
	proximalReference    []float64
	feasibilityObjective *linalg.SparseVector
	feasibilityBounds    map[int]nlp.Bound

	definitionChanged bool
	numSolved         int

	lastRequest *activeset.Request
}

func newActiveSetBase(problem nlp.Problem, residualNorm linalg.Norm, logger *zap.Logger) activeSetBase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return activeSetBase{
		n:                  problem.NumVariables(),
		m:                  problem.NumConstraints(),
		logger:             logger,
		solver:             activeset.NewSolver(),
		residualNorm:       residualNorm,
		trustRegionRadius:  math.Inf(1),
		elasticCoefficient: 1,
	}
}

func (b *activeSetBase) BuildCurrentSubproblem(problem nlp.Problem, current *nlp.Iterate, objectiveMultiplier, trustRegionRadius float64) {
	b.objectiveMultiplier = objectiveMultiplier
	b.trustRegionRadius = trustRegionRadius
	b.elasticsActive = false
	b.hessianMultipliers = nil
	b.initialPoint = nil
	b.proximalReference = nil
	b.feasibilityObjective = nil
	b.feasibilityBounds = nil
}

func (b *activeSetBase) BuildObjectiveModel(problem nlp.Problem, current *nlp.Iterate, objectiveMultiplier float64) {
	b.objectiveMultiplier = objectiveMultiplier
	b.feasibilityObjective = nil
}

func (b *activeSetBase) AddElasticVariables(coefficient float64) {
	b.elasticsActive = true
	if coefficient > 0 {
		b.elasticCoefficient = coefficient
	}
}

func (b *activeSetBase) RemoveElasticVariables() {
	b.elasticsActive = false
}

// LinearizedResidual sums the elastic components of the raw direction: the
// l1 residual of the linearized constraints. Elastic variables are bounded
// below by zero, which the sum relies on.
func (b *activeSetBase) LinearizedResidual(direction *nlp.Direction) float64 {
	if !b.elasticsActive || len(direction.Primals) <= b.n {
		return 0
	}
	sum := 0.0
	for _, v := range direction.Primals[b.n:] {
		if v < -1e-9 {
			panic("subproblem: elastic variable below its zero bound")
		}
		sum += math.Max(0, v)
	}
	return sum
}

// StripElastics truncates the raw direction to the problem variables and
// refreshes its norm.
func (b *activeSetBase) StripElastics(direction *nlp.Direction) {
	if len(direction.Primals) > b.n {
		direction.Primals = direction.Primals[:b.n]
	}
	if len(direction.Multipliers.LowerBounds) > b.n {
		direction.Multipliers.LowerBounds = direction.Multipliers.LowerBounds[:b.n]
		direction.Multipliers.UpperBounds = direction.Multipliers.UpperBounds[:b.n]
	}
	direction.Norm = linalg.NormOfSlice(linalg.NormInfty, direction.Primals)
}

func (b *activeSetBase) SetInitialPoint(x []float64) {
	b.initialPoint = append([]float64(nil), x...)
}

func (b *activeSetBase) SetConstraintMultipliers(multipliers []float64) {
	b.hessianMultipliers = append([]float64(nil), multipliers...)
}

func (b *activeSetBase) AddProximalTerm(coefficient float64, reference []float64) {
	b.proximalCoefficient = coefficient
	b.proximalReference = append([]float64(nil), reference...)
}

// SetFeasibilityObjective replaces the objective gradient by the sum of the
// gradients of the violated constraints, the linear objective of the
// partitioned l1 feasibility problem.
func (b *activeSetBase) SetFeasibilityObjective(problem nlp.Problem, it *nlp.Iterate, partition *nlp.ConstraintPartition) error {
	if err := it.EvaluateConstraintJacobian(problem); err != nil {
		return err
	}
	objective := linalg.NewSparseVector(b.n)
	for _, j := range partition.LowerBoundInfeasible {
		it.ConstraintJacobian[j].ForEach(func(i int, value float64) {
			objective.Insert(i, -value)
		})
	}
	for _, j := range partition.UpperBoundInfeasible {
		it.ConstraintJacobian[j].ForEach(func(i int, value float64) {
			objective.Insert(i, value)
		})
	}
	b.feasibilityObjective = objective
	return nil
}

// SetFeasibilityBounds relaxes the violated side of the infeasible rows so
// the feasibility subproblem has a nonempty linearization.
func (b *activeSetBase) SetFeasibilityBounds(problem nlp.Problem, it *nlp.Iterate, partition *nlp.ConstraintPartition) error {
	if err := it.EvaluateConstraints(problem); err != nil {
		return err
	}
	bounds := problem.ConstraintBounds()
	overrides := make(map[int]nlp.Bound, len(partition.Infeasible))
	for _, j := range partition.LowerBoundInfeasible {
		overrides[j] = nlp.Bound{Lower: math.Inf(-1), Upper: bounds[j].Upper - it.Constraints[j]}
	}
	for _, j := range partition.UpperBoundInfeasible {
		overrides[j] = nlp.Bound{Lower: bounds[j].Lower - it.Constraints[j], Upper: math.Inf(1)}
	}
	b.feasibilityBounds = overrides
	return nil
}

func (b *activeSetBase) RegisterAcceptedIterate(problem nlp.Problem, it *nlp.Iterate) {}

func (b *activeSetBase) DefinitionChanged() bool   { return b.definitionChanged }
func (b *activeSetBase) ClearDefinitionChanged()   { b.definitionChanged = false }
func (b *activeSetBase) ResidualNorm() linalg.Norm { return b.residualNorm }

// ComputeProgressMeasures fills the (feasibility, objective) pair used by
// the globalization strategies: l1 constraint violation and objective value.
func (b *activeSetBase) ComputeProgressMeasures(problem nlp.Problem, it *nlp.Iterate) error {
	if err := it.EvaluateConstraints(problem); err != nil {
		return err
	}
	if err := it.EvaluateObjective(problem); err != nil {
		return err
	}
	it.Progress = nlp.ProgressMeasures{
		Feasibility: nlp.ConstraintViolation(problem, it.Constraints, linalg.NormL1),
		Objective:   it.Objective,
	}
	if b.proximalReference != nil {
		// weighted distance to the restoration reference point
		sum := 0.0
		for i := 0; i < b.n && i < len(b.proximalReference); i++ {
			w := math.Min(1, 1/math.Abs(b.proximalReference[i]))
			dr := w * (it.X[i] - b.proximalReference[i])
			sum += dr * dr
		}
		it.Progress.Objective += b.proximalCoefficient * sum
	}
	return nil
}

func (b *activeSetBase) ComputeResiduals(problem nlp.Problem, it *nlp.Iterate, objectiveMultiplier float64) error {
	return nlp.ComputeResiduals(problem, it, objectiveMultiplier, b.residualNorm)
}

// assemble builds the solver request from the current iterate. hessian may
// be nil for the LP path.
func (b *activeSetBase) assemble(problem nlp.Problem, it *nlp.Iterate, hessian *linalg.COOSymmetricMatrix) (*activeset.Request, error) {
	if err := it.EvaluateObjectiveGradient(problem); err != nil {
		return nil, err
	}
	if err := it.EvaluateConstraints(problem); err != nil {
		return nil, err
	}
	if err := it.EvaluateConstraintJacobian(problem); err != nil {
		return nil, err
	}

	total := b.n
	if b.elasticsActive {
		total += 2 * b.m
	}

	// variable displacement bounds: max(x_L - x, -Δ) ≤ d ≤ min(x_U - x, Δ)
	bounds := make([]nlp.Bound, total)
	radius := b.trustRegionRadius
	for i, vb := range problem.VariableBounds() {
		bounds[i] = nlp.Bound{
			Lower: math.Max(vb.Lower-it.X[i], -radius),
			Upper: math.Min(vb.Upper-it.X[i], radius),
		}
	}
	for k := b.n; k < total; k++ {
		bounds[k] = nlp.Bound{Lower: 0, Upper: math.Inf(1)}
	}

	// objective gradient
	gradient := make([]float64, total)
	if b.feasibilityObjective != nil {
		b.feasibilityObjective.AddTo(gradient[:b.n], 1)
	} else {
		it.ObjectiveGradient.AddTo(gradient[:b.n], b.objectiveMultiplier)
	}
	for k := b.n; k < total; k++ {
		gradient[k] = b.elasticCoefficient
	}

	// linearized constraints: c_L - c(x) ≤ ∇c(x)·d (+ p - n) ≤ c_U - c(x)
	rows := make([]activeset.Row, b.m)
	constraintBounds := problem.ConstraintBounds()
	for j := 0; j < b.m; j++ {
		rowGradient := linalg.NewSparseVector(it.ConstraintJacobian[j].Len() + 2)
		it.ConstraintJacobian[j].ForEach(func(i int, value float64) {
			rowGradient.Insert(i, value)
		})
		if b.elasticsActive {
			rowGradient.Insert(b.n+j, 1)      // p_j
			rowGradient.Insert(b.n+b.m+j, -1) // n_j
		}
		rb, ok := b.feasibilityBounds[j]
		if !ok {
			rb = nlp.Bound{
				Lower: constraintBounds[j].Lower - it.Constraints[j],
				Upper: constraintBounds[j].Upper - it.Constraints[j],
			}
		}
		rows[j] = activeset.Row{Gradient: rowGradient, Bounds: rb}
	}

	if hessian != nil && b.proximalReference != nil {
		for i := 0; i < b.n; i++ {
			w := math.Min(1, 1/math.Abs(b.proximalReference[i]))
			hessian.Insert(i, i, b.proximalCoefficient*w*w)
		}
	}

	return &activeset.Request{
		N:              total,
		VariableBounds: bounds,
		Rows:           rows,
		Gradient:       gradient,
		Hessian:        hessian,
		WarmStart:      b.initialPoint,
	}, nil
}

// toDirection converts a solver solution into a Direction over the current
// subproblem variables.
func (b *activeSetBase) toDirection(sol *activeset.Solution, objectiveMultiplier float64) *nlp.Direction {
	total := len(sol.X)
	direction := &nlp.Direction{
		Primals: append([]float64(nil), sol.X...),
		Multipliers: nlp.Multipliers{
			Constraints: append([]float64(nil), sol.ConstraintMultipliers...),
			LowerBounds: append([]float64(nil), sol.LowerBoundMultipliers...),
			UpperBounds: append([]float64(nil), sol.UpperBoundMultipliers...),
		},
		Norm:                linalg.NormOfSlice(linalg.NormInfty, sol.X[:minInt(total, b.n)]),
		Objective:           sol.Objective,
		ObjectiveMultiplier: objectiveMultiplier,
		Warning:             sol.Warning,
		ActiveSet: nlp.ActiveSet{
			AtLowerBound:           sol.ActiveLowerBounds,
			AtUpperBound:           sol.ActiveUpperBounds,
			AtConstraintLowerBound: sol.ActiveConstraintLowerBound,
			AtConstraintUpperBound: sol.ActiveConstraintUpperBound,
		},
	}
	switch sol.Status {
	case activeset.StatusOptimal:
		direction.Status = nlp.DirectionOptimal
	case activeset.StatusInfeasible:
		direction.Status = nlp.DirectionInfeasible
	case activeset.StatusUnbounded:
		direction.Status = nlp.DirectionUnbounded
	default:
		direction.Status = nlp.DirectionError
	}
	return direction
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
