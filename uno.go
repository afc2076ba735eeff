// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uno composes solvers for continuous nonlinearly constrained
// optimization from four orthogonal ingredients: a constraint-relaxation
// strategy, a subproblem model, a globalization strategy and a
// globalization mechanism. Classical presets reproduce filterSQP, IPOPT and
// Byrd-style l1-penalty SQP.
package uno

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/mechanism"
	"github.com/cvanaret/uno/nlp"
	"github.com/cvanaret/uno/solvers/activeset"
)

// Uno is the outer driver: it owns the globalization mechanism, the
// iteration and wall-clock limits and the convergence tolerances.
type Uno struct {
	mechanism mechanism.Mechanism
	logger    *zap.Logger
	stats     *Statistics

	maxIterations int
	timeLimit     time.Duration

	toleranceOptimality      float64
	toleranceFeasibility     float64
	toleranceComplementarity float64
	toleranceSmallStep       float64
}

// NewUno builds a driver around an already-assembled mechanism.
func NewUno(m mechanism.Mechanism, options Options, logger *zap.Logger) (*Uno, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxIterations, err := options.Int("max_iterations")
	if err != nil {
		return nil, err
	}
	timeLimit, err := options.Float("time_limit")
	if err != nil {
		return nil, err
	}
	tolerance, err := options.Float("tolerance")
	if err != nil {
		return nil, err
	}
	smallStep, err := options.Float("small_step_tolerance")
	if err != nil {
		return nil, err
	}
	u := &Uno{
		mechanism:                m,
		logger:                   logger,
		stats:                    NewStatistics(logger),
		maxIterations:            maxIterations,
		timeLimit:                time.Duration(timeLimit * float64(time.Second)),
		toleranceOptimality:      tolerance,
		toleranceFeasibility:     tolerance,
		toleranceComplementarity: tolerance,
		toleranceSmallStep:       smallStep,
	}
	u.stats.AddColumn("iteration")
	u.stats.AddColumn("objective")
	u.stats.AddColumn("feasibility")
	u.stats.AddColumn("stationarity")
	u.stats.AddColumn("step_norm")
	return u, nil
}

// Result is the outcome of one solve. Postsolve is idempotent.
type Result struct {
	Status      nlp.TerminationStatus
	Solution    *nlp.Iterate
	Iterations  int
	Elapsed     time.Duration
	Evaluations nlp.EvaluationCounter

	postsolved bool
}

// Solve runs the outer loop from the first iterate. When
// enforceLinearConstraints is set, the first iterate is projected onto the
// linear-constraint polytope before the loop starts.
func (u *Uno) Solve(problem nlp.Problem, first *nlp.Iterate, enforceLinearConstraints bool) *Result {
	start := time.Now()

	nlp.ProjectPointInBounds(problem, first.X)
	first.ResetEvaluations()
	if enforceLinearConstraints {
		if err := EnforceLinearConstraints(problem, first); err != nil {
			u.logger.Warn("linear-constraint preamble failed", zap.Error(err))
		}
	}

	result := &Result{Status: nlp.NotOptimal, Solution: first}

	// a problem with no variables is decided by its constraint values alone
	if problem.NumVariables() == 0 {
		if err := first.EvaluateConstraints(problem); err == nil &&
			nlp.ConstraintViolation(problem, first.Constraints, linalg.NormL1) <= u.toleranceFeasibility {
			result.Status = nlp.KKTPoint
		} else {
			result.Status = nlp.FJPoint
		}
		result.Elapsed = time.Since(start)
		result.Evaluations = *first.Counter
		return result
	}

	if err := u.mechanism.Initialize(problem, first); err != nil {
		u.logger.Error("initialization failed", zap.Error(err))
		result.Elapsed = time.Since(start)
		result.Evaluations = *first.Counter
		return result
	}

	current := first
	for {
		if result.Iterations >= u.maxIterations {
			result.Status = nlp.MaxIterationsReached
			break
		}
		if u.timeLimit > 0 && time.Since(start) >= u.timeLimit {
			result.Status = nlp.Timeout
			break
		}
		result.Iterations++

		trial, stepNorm, err := u.mechanism.ComputeAcceptableIterate(problem, current)
		if err != nil {
			u.logger.Warn("globalization mechanism failed", zap.Error(err))
			result.Status = nlp.NotOptimal
			break
		}
		current = trial

		u.stats.Set("iteration", result.Iterations)
		u.stats.Set("objective", current.Objective)
		u.stats.Set("feasibility", current.Residuals.Constraints)
		u.stats.Set("stationarity", current.Residuals.Stationarity)
		u.stats.Set("step_norm", stepNorm)
		u.stats.EmitRow()

		if status := u.classifyTermination(current, stepNorm); status != nlp.NotOptimal {
			result.Status = status
			break
		}
	}

	result.Solution = current
	result.Elapsed = time.Since(start)
	result.Evaluations = *current.Counter
	u.logger.Info("solve finished",
		zap.String("status", result.Status.String()),
		zap.Int("iterations", result.Iterations),
		zap.Duration("elapsed", result.Elapsed))
	return result
}

// classifyTermination checks KKT point first, then Fritz-John point, then
// small steps.
func (u *Uno) classifyTermination(it *nlp.Iterate, stepNorm float64) nlp.TerminationStatus {
	r := it.Residuals
	feasible := r.Constraints <= u.toleranceFeasibility
	switch {
	case r.Stationarity <= u.toleranceOptimality && feasible && r.Complementarity <= u.toleranceComplementarity:
		return nlp.KKTPoint
	case r.FJStationarity <= u.toleranceOptimality && !feasible:
		return nlp.FJPoint
	case stepNorm <= u.toleranceSmallStep && feasible:
		return nlp.FeasibleSmallStep
	case stepNorm <= u.toleranceSmallStep:
		return nlp.InfeasibleSmallStep
	}
	return nlp.NotOptimal
}

// EnforceLinearConstraints projects the iterate onto the linear-constraint
// polytope through one least-distance subproblem restricted to the linear
// rows.
func EnforceLinearConstraints(problem nlp.Problem, it *nlp.Iterate) error {
	linearRows := problem.LinearConstraints()
	if len(linearRows) == 0 {
		return nil
	}
	if err := it.EvaluateConstraints(problem); err != nil {
		return err
	}
	if err := it.EvaluateConstraintJacobian(problem); err != nil {
		return err
	}
	n := problem.NumVariables()
	bounds := make([]nlp.Bound, n)
	for i, vb := range problem.VariableBounds() {
		bounds[i] = nlp.Bound{Lower: vb.Lower - it.X[i], Upper: vb.Upper - it.X[i]}
	}
	constraintBounds := problem.ConstraintBounds()
	rows := make([]activeset.Row, 0, len(linearRows))
	for _, j := range linearRows {
		gradient := linalg.NewSparseVector(it.ConstraintJacobian[j].Len())
		it.ConstraintJacobian[j].ForEach(func(i int, value float64) {
			gradient.Insert(i, value)
		})
		rows = append(rows, activeset.Row{
			Gradient: gradient,
			Bounds: nlp.Bound{
				Lower: constraintBounds[j].Lower - it.Constraints[j],
				Upper: constraintBounds[j].Upper - it.Constraints[j],
			},
		})
	}
	// minimize ½‖d‖² over the linear rows: the projection step
	hessian := linalg.NewCOOSymmetricMatrix(n, n)
	hessian.AddIdentityMultiple(1)
	solution := activeset.NewSolver().SolveQP(&activeset.Request{
		N:              n,
		VariableBounds: bounds,
		Rows:           rows,
		Gradient:       make([]float64, n),
		Hessian:        hessian,
	})
	if solution.Status != activeset.StatusOptimal {
		return fmt.Errorf("linear-constraint projection: infeasible linear constraints")
	}
	linalg.AddScaled(it.X, 1, solution.X)
	nlp.ProjectPointInBounds(problem, it.X)
	it.ResetEvaluations()
	return nil
}

// Postsolve unscales the solution back to the original problem and
// optionally prints it. Calling it on an already-postsolved result is a
// no-op.
func (r *Result) Postsolve(problem nlp.Problem, scaling *nlp.Scaling, printSolution bool, w io.Writer) {
	if !r.postsolved {
		if scaling != nil {
			nlp.UnscaleSolution(r.Solution, scaling)
		}
		r.postsolved = true
	}
	if !printSolution || w == nil {
		return
	}
	fmt.Fprintf(w, "status:     %s\n", r.Status)
	fmt.Fprintf(w, "objective:  %.8g\n", r.Solution.Objective)
	fmt.Fprintf(w, "iterations: %d\n", r.Iterations)
	fmt.Fprintf(w, "primal:     %.8g\n", r.Solution.X)
	fmt.Fprintf(w, "duals:      %.8g\n", r.Solution.Multipliers.Constraints)
	fmt.Fprintf(w, "elapsed:    %s\n", r.Elapsed)
}
