// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package relaxation

import (
	"go.uber.org/zap"

	"github.com/cvanaret/uno/nlp"
	"github.com/cvanaret/uno/strategy"
	"github.com/cvanaret/uno/subproblem"
)

// Phase is the state of the two-phase restoration strategy.
type Phase int

const (
	PhaseOptimality Phase = iota
	PhaseRestoration
)

func (p Phase) String() string {
	if p == PhaseRestoration {
		return "restoration"
	}
	return "optimality"
}

// FeasibilityRestoration alternates between an optimality phase on the
// original subproblem and a restoration phase that minimizes constraint
// violation when the linearization turns infeasible. Each phase owns its own
// globalization strategy, because their accepted-point histories must stay
// disjoint.
type FeasibilityRestoration struct {
	sub    subproblem.Subproblem
	phase1 strategy.Strategy // restoration
	phase2 strategy.Strategy // optimality
	logger *zap.Logger

	phase               Phase
	useProximalTerm     bool
	proximalCoefficient float64
}

// NewFeasibilityRestoration assembles the two-phase strategy.
// proximalCoefficient > 0 adds the weighted quadratic proximal term to the
// restoration subproblems.
func NewFeasibilityRestoration(sub subproblem.Subproblem, restoration, optimality strategy.Strategy, proximalCoefficient float64, logger *zap.Logger) *FeasibilityRestoration {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeasibilityRestoration{
		sub:                 sub,
		phase1:              restoration,
		phase2:              optimality,
		logger:              logger,
		phase:               PhaseOptimality,
		useProximalTerm:     proximalCoefficient > 0,
		proximalCoefficient: proximalCoefficient,
	}
}

// CurrentPhase reports the current phase.
func (r *FeasibilityRestoration) CurrentPhase() Phase { return r.phase }

func (r *FeasibilityRestoration) Initialize(problem nlp.Problem, first *nlp.Iterate) error {
	if err := r.sub.Initialize(problem, first); err != nil {
		return err
	}
	if err := r.sub.ComputeResiduals(problem, first, problem.ObjectiveSign()); err != nil {
		return err
	}
	r.phase1.Initialize(first)
	r.phase2.Initialize(first)
	return nil
}

func (r *FeasibilityRestoration) CreateCurrentSubproblem(problem nlp.Problem, current *nlp.Iterate, trustRegionRadius float64) error {
	r.sub.BuildCurrentSubproblem(problem, current, problem.ObjectiveSign(), trustRegionRadius)
	return nil
}

// ComputeFeasibleDirection solves the original subproblem; when its
// linearization is infeasible it forms and solves the feasibility problem
// seeded with the infeasible phase-2 direction.
func (r *FeasibilityRestoration) ComputeFeasibleDirection(problem nlp.Problem, current *nlp.Iterate) (*nlp.Direction, error) {
	direction, err := r.sub.Solve(problem, current)
	if err != nil {
		return nil, err
	}
	direction.ObjectiveMultiplier = problem.ObjectiveSign()

	if direction.Status == nlp.DirectionInfeasible {
		r.logger.Debug("infeasible subproblem, switching to the feasibility problem")
		direction, err = r.solveFeasibilityProblem(problem, current, direction.Primals, direction.ConstraintPartition)
		if err != nil {
			return nil, err
		}
	} else if direction.Status != nlp.DirectionOptimal {
		return nil, &nlp.NumericalError{Op: "optimality subproblem solve: " + direction.Status.String()}
	}
	r.sub.StripElastics(direction)
	return direction, nil
}

func (r *FeasibilityRestoration) solveFeasibilityProblem(problem nlp.Problem, current *nlp.Iterate, phase2Primals []float64, partition *nlp.ConstraintPartition) (*nlp.Direction, error) {
	if partition != nil && len(partition.Infeasible) > 0 {
		// partitioned l1 feasibility problem: minimize the violation of the
		// infeasible rows only
		if err := current.EvaluateConstraints(problem); err != nil {
			return nil, err
		}
		multipliers := append([]float64(nil), current.Multipliers.Constraints...)
		setRestorationMultipliers(multipliers, partition)
		r.sub.SetConstraintMultipliers(multipliers)
		r.sub.BuildObjectiveModel(problem, current, 0)
		if r.useProximalTerm {
			r.sub.AddProximalTerm(r.proximalCoefficient, current.X)
		}
		if err := r.sub.SetFeasibilityObjective(problem, current, partition); err != nil {
			return nil, err
		}
		if err := r.sub.SetFeasibilityBounds(problem, current, partition); err != nil {
			return nil, err
		}
	} else {
		// no partition available: relax every constraint with elastics and
		// zero the objective
		zeros := make([]float64, problem.NumConstraints())
		r.sub.SetConstraintMultipliers(zeros)
		r.sub.BuildObjectiveModel(problem, current, 0)
		if r.useProximalTerm {
			r.sub.AddProximalTerm(r.proximalCoefficient, current.X)
		}
		r.sub.AddElasticVariables(1)
	}
	// start from the phase-2 solution
	if phase2Primals != nil {
		r.sub.SetInitialPoint(phase2Primals)
	}

	direction, err := r.sub.Solve(problem, current)
	if err != nil {
		return nil, err
	}
	if direction.Status != nlp.DirectionOptimal {
		return nil, &nlp.NumericalError{Op: "feasibility subproblem solve: " + direction.Status.String()}
	}
	direction.ObjectiveMultiplier = 0
	if partition != nil {
		// transfer the phase-2 partition to the restoration direction
		direction.ConstraintPartition = partition
	}
	return direction, nil
}

func setRestorationMultipliers(multipliers []float64, partition *nlp.ConstraintPartition) {
	// the values {+1, -1} are the KKT multipliers of the feasibility problem
	for _, j := range partition.LowerBoundInfeasible {
		multipliers[j] = 1
	}
	for _, j := range partition.UpperBoundInfeasible {
		multipliers[j] = -1
	}
}

func (r *FeasibilityRestoration) IsAcceptable(problem nlp.Problem, current, trial *nlp.Iterate, direction *nlp.Direction, model func(float64) float64, stepLength float64) (bool, error) {
	if r.sub.DefinitionChanged() {
		r.logger.Debug("subproblem definition changed, recomputing progress measures")
		r.sub.ClearDefinitionChanged()
		r.phase2.Reset()
		if err := r.sub.ComputeProgressMeasures(problem, current); err != nil {
			return false, err
		}
	}

	accept := false
	if isSmallStep(direction) {
		if err := r.sub.ComputeProgressMeasures(problem, trial); err != nil {
			return false, err
		}
		accept = true
	} else {
		activeStrategy, err := r.switchPhase(problem, current, trial, direction)
		if err != nil {
			return false, err
		}
		predicted := model(stepLength)
		accept = activeStrategy.CheckAcceptance(current.Progress, trial.Progress, direction.ObjectiveMultiplier, predicted)
	}

	if accept {
		if direction.ObjectiveMultiplier == 0 && direction.ConstraintPartition != nil {
			setRestorationMultipliers(trial.Multipliers.Constraints, direction.ConstraintPartition)
		}
		if err := r.sub.ComputeResiduals(problem, trial, direction.ObjectiveMultiplier); err != nil {
			return false, err
		}
	}
	return accept, nil
}

// switchPhase performs the restoration↔optimality transitions and refreshes
// the progress measures of both iterates for the active phase.
func (r *FeasibilityRestoration) switchPhase(problem nlp.Problem, current, trial *nlp.Iterate, direction *nlp.Direction) (strategy.Strategy, error) {
	if r.phase == PhaseRestoration && direction.ObjectiveMultiplier > 0 {
		// feasibility achieved on the linearization
		r.phase = PhaseOptimality
		r.logger.Debug("switching from restoration to optimality phase")
		if err := current.EvaluateConstraints(problem); err != nil {
			return nil, err
		}
		if err := r.sub.ComputeProgressMeasures(problem, current); err != nil {
			return nil, err
		}
	} else if r.phase == PhaseOptimality && direction.ObjectiveMultiplier == 0 {
		r.phase = PhaseRestoration
		r.logger.Debug("switching from optimality to restoration phase")
		r.phase2.Notify(current)
		r.phase1.Reset()
		if err := r.computeInfeasibilityMeasures(problem, current, direction.ConstraintPartition); err != nil {
			return nil, err
		}
		r.phase1.Notify(current)
	}

	if r.phase == PhaseOptimality {
		if err := r.sub.ComputeProgressMeasures(problem, trial); err != nil {
			return nil, err
		}
		return r.phase2, nil
	}
	if err := r.computeInfeasibilityMeasures(problem, trial, direction.ConstraintPartition); err != nil {
		return nil, err
	}
	return r.phase1, nil
}

// computeInfeasibilityMeasures replaces the progress measures for the
// restoration phase: feasibility is the violation of all constraints, the
// optimality measure is the violation of the infeasible rows (or of all
// constraints when no partition is available).
func (r *FeasibilityRestoration) computeInfeasibilityMeasures(problem nlp.Problem, it *nlp.Iterate, partition *nlp.ConstraintPartition) error {
	if err := it.EvaluateConstraints(problem); err != nil {
		return err
	}
	norm := r.sub.ResidualNorm()
	feasibility := nlp.ConstraintViolation(problem, it.Constraints, norm)
	objective := feasibility
	if partition != nil {
		objective = nlp.PartialConstraintViolation(problem, it.Constraints, partition.Infeasible, norm)
	}
	it.Progress = nlp.ProgressMeasures{Feasibility: feasibility, Objective: objective}
	return nil
}

func (r *FeasibilityRestoration) PredictedReductionModel(problem nlp.Problem, direction *nlp.Direction) func(stepLength float64) float64 {
	return r.sub.PredictedReductionModel(problem, direction)
}

func (r *FeasibilityRestoration) SecondOrderCorrection(problem nlp.Problem, trial *nlp.Iterate) (*nlp.Direction, error) {
	return r.sub.SecondOrderCorrection(problem, trial)
}

func (r *FeasibilityRestoration) HasSecondOrderCorrection() bool {
	return r.sub.HasSecondOrderCorrection()
}

func (r *FeasibilityRestoration) RegisterAcceptedIterate(problem nlp.Problem, it *nlp.Iterate) {
	r.sub.RegisterAcceptedIterate(problem, it)
}

func (r *FeasibilityRestoration) ComputeResiduals(problem nlp.Problem, it *nlp.Iterate, objectiveMultiplier float64) error {
	return r.sub.ComputeResiduals(problem, it, objectiveMultiplier)
}
