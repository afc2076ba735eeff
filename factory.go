// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uno

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/mechanism"
	"github.com/cvanaret/uno/nlp"
	"github.com/cvanaret/uno/relaxation"
	"github.com/cvanaret/uno/strategy"
	"github.com/cvanaret/uno/subproblem"
)

// NewLogger builds a console zap logger at the level named by the "logger"
// option (ERROR, WARNING, INFO, DEBUG).
func NewLogger(options Options) (*zap.Logger, error) {
	level, known := map[string]zapcore.Level{
		"ERROR":   zapcore.ErrorLevel,
		"WARNING": zapcore.WarnLevel,
		"INFO":    zapcore.InfoLevel,
		"DEBUG":   zapcore.DebugLevel,
	}[options["logger"]]
	if !known {
		return nil, &nlp.ConfigurationError{Key: "logger", Value: options["logger"]}
	}
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.DisableStacktrace = true
	return config.Build()
}

// NewSubproblem builds a subproblem from the "subproblem" option.
func NewSubproblem(problem nlp.Problem, options Options, residualNorm linalg.Norm, logger *zap.Logger) (subproblem.Subproblem, error) {
	switch options["subproblem"] {
	case "QP":
		// without a trust region the model must be convexified to guarantee
		// boundedness and a descent direction
		convexify := options["mechanism"] != "TR"
		return subproblem.NewQPSubproblem(problem, options["hessian_model"], convexify, residualNorm, logger)
	case "LP":
		return subproblem.NewLPSubproblem(problem, residualNorm, logger), nil
	case "barrier":
		mu, err := options.Float("barrier_initial_parameter")
		if err != nil {
			return nil, err
		}
		return subproblem.NewPrimalDualInteriorPoint(problem, mu, residualNorm, logger), nil
	}
	return nil, &nlp.ConfigurationError{Key: "subproblem", Value: options["subproblem"]}
}

func strategyParameters(options Options) (strategy.Parameters, error) {
	params := strategy.DefaultParameters()
	var err error
	if params.ArmijoFraction, err = options.Float("armijo_decrease_fraction"); err != nil {
		return params, err
	}
	if params.Beta, err = options.Float("filter_beta"); err != nil {
		return params, err
	}
	if params.Gamma, err = options.Float("filter_gamma"); err != nil {
		return params, err
	}
	if params.FilterCapacity, err = options.Int("filter_capacity"); err != nil {
		return params, err
	}
	if params.FunnelContraction, err = options.Float("funnel_contraction"); err != nil {
		return params, err
	}
	return params, nil
}

// NewConstraintRelaxation builds the relaxation strategy, its subproblem and
// its globalization strategy (two for feasibility restoration: the phase
// histories must stay disjoint).
func NewConstraintRelaxation(problem nlp.Problem, options Options, logger *zap.Logger) (relaxation.Strategy, error) {
	residualNorm, ok := linalg.ParseNorm(options["residual_norm"])
	if !ok {
		return nil, &nlp.ConfigurationError{Key: "residual_norm", Value: options["residual_norm"]}
	}
	sub, err := NewSubproblem(problem, options, residualNorm, logger)
	if err != nil {
		return nil, err
	}
	params, err := strategyParameters(options)
	if err != nil {
		return nil, err
	}

	switch options["constraint-relaxation"] {
	case "l1-relaxation":
		globalization, err := strategy.New(options["strategy"], params, logger)
		if err != nil {
			return nil, err
		}
		l1Params := relaxation.DefaultL1Parameters()
		if l1Params.InitialPenalty, err = options.Float("l1_relaxation_initial_parameter"); err != nil {
			return nil, err
		}
		if l1Params.DecreaseFactor, err = options.Float("l1_relaxation_decrease_factor"); err != nil {
			return nil, err
		}
		if l1Params.Epsilon1, err = options.Float("l1_relaxation_epsilon1"); err != nil {
			return nil, err
		}
		if l1Params.Epsilon2, err = options.Float("l1_relaxation_epsilon2"); err != nil {
			return nil, err
		}
		if l1Params.PenaltyThreshold, err = options.Float("l1_relaxation_penalty_threshold"); err != nil {
			return nil, err
		}
		return relaxation.NewL1Relaxation(sub, globalization, l1Params, logger), nil

	case "feasibility-restoration":
		restorationStrategy, err := strategy.New(options["strategy"], params, logger)
		if err != nil {
			return nil, err
		}
		optimalityStrategy, err := strategy.New(options["strategy"], params, logger)
		if err != nil {
			return nil, err
		}
		proximal, err := options.Float("proximal_coefficient")
		if err != nil {
			return nil, err
		}
		return relaxation.NewFeasibilityRestoration(sub, restorationStrategy, optimalityStrategy, proximal, logger), nil
	}
	return nil, &nlp.ConfigurationError{Key: "constraint-relaxation", Value: options["constraint-relaxation"]}
}

// NewMechanism builds the globalization mechanism around the relaxation
// strategy.
func NewMechanism(relaxationStrategy relaxation.Strategy, options Options, logger *zap.Logger) (mechanism.Mechanism, error) {
	switch options["mechanism"] {
	case "TR":
		params := mechanism.DefaultTrustRegionParameters()
		var err error
		if params.InitialRadius, err = options.Float("TR_radius"); err != nil {
			return nil, err
		}
		if params.IncreaseFactor, err = options.Float("TR_increase_factor"); err != nil {
			return nil, err
		}
		if params.DecreaseFactor, err = options.Float("TR_decrease_factor"); err != nil {
			return nil, err
		}
		if params.MinRadius, err = options.Float("TR_min_radius"); err != nil {
			return nil, err
		}
		if params.ActivityTolerance, err = options.Float("TR_activity_tolerance"); err != nil {
			return nil, err
		}
		return mechanism.NewTrustRegion(relaxationStrategy, params, logger), nil
	case "LS":
		params := mechanism.DefaultLineSearchParameters()
		var err error
		if params.BacktrackingRatio, err = options.Float("LS_backtracking_ratio"); err != nil {
			return nil, err
		}
		if params.MinStepLength, err = options.Float("LS_min_step_length"); err != nil {
			return nil, err
		}
		return mechanism.NewBacktrackingLineSearch(relaxationStrategy, params, logger), nil
	}
	return nil, &nlp.ConfigurationError{Key: "mechanism", Value: options["mechanism"]}
}

// Run solves a problem end to end the way the CLI does: optional function
// scaling, ingredient construction from the options, solve, postsolve.
func Run(model nlp.Problem, options Options, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	first := nlp.NewIterate(model.NumVariables(), model.NumConstraints())
	model.InitialPrimalPoint(first.X)
	model.InitialDualPoint(first.Multipliers.Constraints)
	nlp.ProjectPointInBounds(model, first.X)

	// constant function scaling from the gradients at the initial point
	var scaling *nlp.Scaling
	problem := model
	scaleFunctions, err := options.Bool("scale_functions")
	if err != nil {
		return nil, err
	}
	if scaleFunctions {
		threshold, err := options.Float("scaling_threshold")
		if err != nil {
			return nil, err
		}
		if err := first.EvaluateObjectiveGradient(model); err != nil {
			return nil, err
		}
		if err := first.EvaluateConstraintJacobian(model); err != nil {
			return nil, err
		}
		scaling = nlp.NewScaling(model.NumConstraints())
		scaling.Compute(first.ObjectiveGradient, first.ConstraintJacobian, threshold)
		first.ResetEvaluations()
		problem = nlp.NewScaledProblem(model, scaling)
		model.InitialDualPoint(first.Multipliers.Constraints)
		for j := range first.Multipliers.Constraints {
			first.Multipliers.Constraints[j] *= scaling.Objective / scaling.Constraints[j]
		}
	}

	relaxationStrategy, err := NewConstraintRelaxation(problem, options, logger)
	if err != nil {
		return nil, err
	}
	m, err := NewMechanism(relaxationStrategy, options, logger)
	if err != nil {
		return nil, err
	}
	driver, err := NewUno(m, options, logger)
	if err != nil {
		return nil, err
	}

	enforceLinear, err := options.Bool("enforce_linear_constraints")
	if err != nil {
		return nil, err
	}
	result := driver.Solve(problem, first, enforceLinear)

	printSolution, err := options.Bool("print_solution")
	if err != nil {
		return nil, err
	}
	var out *os.File
	if printSolution {
		out = os.Stdout
	}
	result.Postsolve(model, scaling, printSolution, out)
	return result, nil
}
