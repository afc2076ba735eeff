// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package relaxation

import (
	"math"

	"go.uber.org/zap"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/nlp"
	"github.com/cvanaret/uno/strategy"
	"github.com/cvanaret/uno/subproblem"
)

// L1Parameters tunes the Byrd steering rule.
type L1Parameters struct {
	InitialPenalty   float64
	DecreaseFactor   float64
	Epsilon1         float64
	Epsilon2         float64
	PenaltyThreshold float64
}

// DefaultL1Parameters are the option-file defaults.
func DefaultL1Parameters() L1Parameters {
	return L1Parameters{
		InitialPenalty:   1,
		DecreaseFactor:   10,
		Epsilon1:         0.1,
		Epsilon2:         0.1,
		PenaltyThreshold: 1e-10,
	}
}

// L1Relaxation reformulates every constraint with elastic variables
//
//	c_j(x) + p_j - n_j ∈ [c_Lj, c_Uj],  p, n ≥ 0
//
// under the objective ρ·f(x) + Σ(p_j + n_j), and steers the penalty ρ with
// Byrd's rule: the linearized residual of each direction must realize a
// fraction of the best achievable decrease, in feasibility and in merit.
type L1Relaxation struct {
	sub      subproblem.Subproblem
	strategy strategy.Strategy
	logger   *zap.Logger

	penalty float64
	params  L1Parameters
}

// NewL1Relaxation assembles the single-phase relaxation.
func NewL1Relaxation(sub subproblem.Subproblem, globalization strategy.Strategy, params L1Parameters, logger *zap.Logger) *L1Relaxation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &L1Relaxation{
		sub:      sub,
		strategy: globalization,
		logger:   logger,
		penalty:  params.InitialPenalty,
		params:   params,
	}
}

// Penalty exposes the current penalty parameter (monotonically
// non-increasing and nonnegative).
func (r *L1Relaxation) Penalty() float64 { return r.penalty }

func (r *L1Relaxation) Initialize(problem nlp.Problem, first *nlp.Iterate) error {
	if err := r.sub.Initialize(problem, first); err != nil {
		return err
	}
	if err := r.sub.ComputeResiduals(problem, first, r.penalty); err != nil {
		return err
	}
	r.strategy.Initialize(first)
	return nil
}

func (r *L1Relaxation) CreateCurrentSubproblem(problem nlp.Problem, current *nlp.Iterate, trustRegionRadius float64) error {
	r.sub.BuildCurrentSubproblem(problem, current, r.penalty, trustRegionRadius)
	r.sub.AddElasticVariables(1)

	// multipliers of the violated constraints from the KKT conditions of
	// the l1 problem: +1 lower-infeasible, -1 upper-infeasible
	if err := current.EvaluateConstraints(problem); err != nil {
		return err
	}
	multipliers := append([]float64(nil), current.Multipliers.Constraints...)
	bounds := problem.ConstraintBounds()
	for j, c := range current.Constraints {
		switch {
		case c < bounds[j].Lower:
			multipliers[j] = 1
		case c > bounds[j].Upper:
			multipliers[j] = -1
		}
	}
	r.sub.SetConstraintMultipliers(multipliers)
	return nil
}

// ComputeFeasibleDirection runs the steering rule: stage a at the current ρ,
// stage c at ρ = 0 to measure the best achievable linearized residual, then
// penalty decreases until both Byrd conditions hold.
func (r *L1Relaxation) ComputeFeasibleDirection(problem nlp.Problem, current *nlp.Iterate) (*nlp.Direction, error) {
	r.logger.Debug("penalty parameter", zap.Float64("rho", r.penalty))

	direction, err := r.solve(problem, current, r.penalty)
	if err != nil {
		return nil, err
	}

	if r.penalty > 0 {
		linearizedResidual := r.sub.LinearizedResidual(direction)
		if linearizedResidual > linearizedResidualTolerance {
			previousPenalty := r.penalty
			direction, err = r.steer(problem, current, direction, linearizedResidual)
			if err != nil {
				return nil, err
			}
			if r.penalty < previousPenalty {
				r.logger.Debug("penalty parameter updated", zap.Float64("rho", r.penalty))
				// the merit surface changed
				r.strategy.Reset()
				if err := r.sub.ComputeProgressMeasures(problem, current); err != nil {
					return nil, err
				}
			}
		}
	}

	r.sub.StripElastics(direction)
	return direction, nil
}

func (r *L1Relaxation) steer(problem nlp.Problem, current *nlp.Iterate, direction *nlp.Direction, linearizedResidual float64) (*nlp.Direction, error) {
	residualCurrent := current.Residuals.Constraints

	// stage c: lowest possible linearized residual at ρ = 0
	idealDirection, err := r.solve(problem, current, 0)
	if err != nil {
		return nil, err
	}
	residualIdeal := r.sub.LinearizedResidual(idealDirection)
	r.logger.Debug("ideal linearized residual", zap.Float64("residual", residualIdeal))

	errorIdeal, err := r.computeError(problem, current, idealDirection.Multipliers, 0)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("ideal error", zap.Float64("error", errorIdeal))

	// the feasibility multipliers already satisfy the Fritz-John conditions:
	// drop the objective entirely
	if errorIdeal <= errorTolerance {
		r.penalty = 0
		return idealDirection, nil
	}

	// nothing to gain when the nonlinear residual is already ideal
	if residualCurrent > 0 && residualIdeal == residualCurrent {
		return direction, nil
	}

	// clamp ρ by the squared scaled ideal error
	term := errorIdeal / math.Max(1, residualCurrent)
	if clamped := math.Min(r.penalty, term*term); clamped < r.penalty {
		r.penalty = clamped
		if r.penalty == 0 {
			direction = idealDirection
		} else {
			if direction, err = r.solve(problem, current, r.penalty); err != nil {
				return nil, err
			}
		}
		linearizedResidual = r.sub.LinearizedResidual(direction)
	}

	// decrease ρ until both Byrd conditions hold
	condition1, condition2 := false, false
	for !condition2 {
		if !condition1 {
			// (C1) fraction of the achievable linearized decrease
			if (residualIdeal <= linearizedResidualTolerance && linearizedResidual <= linearizedResidualTolerance) ||
				(residualIdeal > linearizedResidualTolerance &&
					residualCurrent-linearizedResidual >= r.params.Epsilon1*(residualCurrent-residualIdeal)) {
				condition1 = true
			}
		}
		// (C2) fraction of the achievable merit decrease
		if condition1 && residualCurrent-direction.Objective >= r.params.Epsilon2*(residualCurrent-idealDirection.Objective) {
			condition2 = true
		}
		if condition2 {
			break
		}
		r.penalty /= r.params.DecreaseFactor
		if r.penalty < r.params.PenaltyThreshold {
			r.penalty = 0
			direction = idealDirection
			break
		}
		r.logger.Debug("steering resolve", zap.Float64("rho", r.penalty))
		if direction, err = r.solve(problem, current, r.penalty); err != nil {
			return nil, err
		}
		linearizedResidual = r.sub.LinearizedResidual(direction)
	}
	return direction, nil
}

// solve builds the objective model at σ and solves the elastic subproblem.
func (r *L1Relaxation) solve(problem nlp.Problem, current *nlp.Iterate, objectiveMultiplier float64) (*nlp.Direction, error) {
	r.sub.BuildObjectiveModel(problem, current, objectiveMultiplier)
	direction, err := r.sub.Solve(problem, current)
	if err != nil {
		return nil, err
	}
	if direction.Status != nlp.DirectionOptimal {
		return nil, &nlp.NumericalError{Op: "l1 subproblem solve: " + direction.Status.String()}
	}
	direction.ObjectiveMultiplier = objectiveMultiplier
	return direction, nil
}

// errorTolerance declares the combined KKT and complementarity error zero.
const errorTolerance = 1e-7

// linearizedResidualTolerance separates genuine elastic use from solver
// roundoff.
const linearizedResidualTolerance = 1e-10

// computeError combines the complementarity error with the l1 norm of the
// Lagrangian gradient at the given multiplier estimates.
func (r *L1Relaxation) computeError(problem nlp.Problem, it *nlp.Iterate, multipliers nlp.Multipliers, penalty float64) (float64, error) {
	if err := it.EvaluateConstraints(problem); err != nil {
		return 0, err
	}
	errorValue := l1ComplementarityError(problem, it, multipliers)
	if err := it.EvaluateLagrangianGradient(problem, multipliers); err != nil {
		return 0, err
	}
	errorValue += it.Lagrangian.Norm1(penalty)
	return errorValue, nil
}

// l1ComplementarityError measures complementarity under the l1 dual box
// |λ| ≤ 1: a violated constraint whose multiplier sits at the matching box
// bound is complementary, exactly as for an elastic variable at its zero
// bound.
func l1ComplementarityError(problem nlp.Problem, it *nlp.Iterate, multipliers nlp.Multipliers) float64 {
	const boxTolerance = 1e-6
	bounds := problem.ConstraintBounds()
	variableBounds := problem.VariableBounds()
	errorValue := 0.0
	for j, lambda := range multipliers.Constraints {
		c := it.Constraints[j]
		switch {
		case lambda > 0 && !math.IsInf(bounds[j].Lower, -1):
			if lambda >= 1-boxTolerance && c <= bounds[j].Lower+boxTolerance {
				continue
			}
			errorValue += math.Abs(lambda * (c - bounds[j].Lower))
		case lambda < 0 && !math.IsInf(bounds[j].Upper, 1):
			if lambda <= -1+boxTolerance && c >= bounds[j].Upper-boxTolerance {
				continue
			}
			errorValue += math.Abs(lambda * (c - bounds[j].Upper))
		}
	}
	for i := range it.X {
		if zl := multipliers.LowerBounds[i]; zl != 0 && !math.IsInf(variableBounds[i].Lower, -1) {
			errorValue += math.Abs(zl * (it.X[i] - variableBounds[i].Lower))
		}
		if zu := multipliers.UpperBounds[i]; zu != 0 && !math.IsInf(variableBounds[i].Upper, 1) {
			errorValue += math.Abs(zu * (it.X[i] - variableBounds[i].Upper))
		}
	}
	return errorValue
}

func (r *L1Relaxation) PredictedReductionModel(problem nlp.Problem, direction *nlp.Direction) func(stepLength float64) float64 {
	return r.sub.PredictedReductionModel(problem, direction)
}

func (r *L1Relaxation) IsAcceptable(problem nlp.Problem, current, trial *nlp.Iterate, direction *nlp.Direction, model func(float64) float64, stepLength float64) (bool, error) {
	if r.sub.DefinitionChanged() {
		r.strategy.Reset()
		r.sub.ClearDefinitionChanged()
		if err := r.sub.ComputeProgressMeasures(problem, current); err != nil {
			return false, err
		}
	}

	accept := false
	if isSmallStep(direction) {
		accept = true
	} else {
		if err := r.sub.ComputeProgressMeasures(problem, trial); err != nil {
			return false, err
		}
		predicted, err := r.predictedReduction(problem, current, direction, model, stepLength)
		if err != nil {
			return false, err
		}
		accept = r.strategy.CheckAcceptance(current.Progress, trial.Progress, r.penalty, predicted)
	}
	if accept {
		if err := r.sub.ComputeResiduals(problem, trial, direction.ObjectiveMultiplier); err != nil {
			return false, err
		}
	}
	return accept, nil
}

// predictedReduction combines the subproblem model with the l1 constraint
// term: at full step the linearized residual is folded into the model value,
// at shorter steps the linearized violation is recomputed at α.
func (r *L1Relaxation) predictedReduction(problem nlp.Problem, current *nlp.Iterate, direction *nlp.Direction, model func(float64) float64, stepLength float64) (float64, error) {
	if stepLength == 1 {
		return current.Residuals.Constraints + model(1), nil
	}
	if err := current.EvaluateConstraints(problem); err != nil {
		return 0, err
	}
	if err := current.EvaluateConstraintJacobian(problem); err != nil {
		return 0, err
	}
	bounds := problem.ConstraintBounds()
	linearizedViolation := linalg.NormOf(linalg.NormL1, problem.NumConstraints(), func(j int) float64 {
		component := current.Constraints[j] + stepLength*current.ConstraintJacobian.RowDot(j, direction.Primals)
		return bounds[j].Violation(component)
	})
	return current.Residuals.Constraints - linearizedViolation + model(stepLength), nil
}

func (r *L1Relaxation) SecondOrderCorrection(problem nlp.Problem, trial *nlp.Iterate) (*nlp.Direction, error) {
	return r.sub.SecondOrderCorrection(problem, trial)
}

func (r *L1Relaxation) HasSecondOrderCorrection() bool { return r.sub.HasSecondOrderCorrection() }

func (r *L1Relaxation) RegisterAcceptedIterate(problem nlp.Problem, it *nlp.Iterate) {
	r.sub.RegisterAcceptedIterate(problem, it)
}

func (r *L1Relaxation) ComputeResiduals(problem nlp.Problem, it *nlp.Iterate, objectiveMultiplier float64) error {
	return r.sub.ComputeResiduals(problem, it, objectiveMultiplier)
}
