// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mechanism

import (
	"math"

	"go.uber.org/zap"

	"github.com/cvanaret/uno/nlp"
	"github.com/cvanaret/uno/relaxation"
)

// LineSearchParameters tunes the backtracking.
type LineSearchParameters struct {
	BacktrackingRatio float64
	MinStepLength     float64
}

// DefaultLineSearchParameters are the option-file defaults.
func DefaultLineSearchParameters() LineSearchParameters {
	return LineSearchParameters{
		BacktrackingRatio: 0.5,
		MinStepLength:     1e-9,
	}
}

// BacktrackingLineSearch solves one subproblem per outer iteration with the
// problem bounds only, then backtracks along the fixed direction
// α ← α·ratio until the strategy accepts. A second-order correction is
// attempted once when the full step is rejected and the subproblem supports
// it.
type BacktrackingLineSearch struct {
	relaxation relaxation.Strategy
	params     LineSearchParameters
	logger     *zap.Logger
}

// NewBacktrackingLineSearch builds the line-search mechanism around the
// relaxation strategy.
func NewBacktrackingLineSearch(relaxationStrategy relaxation.Strategy, params LineSearchParameters, logger *zap.Logger) *BacktrackingLineSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktrackingLineSearch{
		relaxation: relaxationStrategy,
		params:     params,
		logger:     logger,
	}
}

func (l *BacktrackingLineSearch) Initialize(problem nlp.Problem, first *nlp.Iterate) error {
	return l.relaxation.Initialize(problem, first)
}

func (l *BacktrackingLineSearch) ComputeAcceptableIterate(problem nlp.Problem, current *nlp.Iterate) (*nlp.Iterate, float64, error) {
	// the subproblem is built with the problem bounds only: no box
	if err := l.relaxation.CreateCurrentSubproblem(problem, current, math.Inf(1)); err != nil {
		return nil, 0, err
	}
	direction, err := l.relaxation.ComputeFeasibleDirection(problem, current)
	if err != nil {
		return nil, 0, err
	}
	model := l.relaxation.PredictedReductionModel(problem, direction)

	socAttempted := false
	for stepLength := 1.0; stepLength >= l.params.MinStepLength; stepLength *= l.params.BacktrackingRatio {
		l.logger.Debug("line-search trial", zap.Float64("alpha", stepLength))
		trial := assembleTrialIterate(current, direction, stepLength)
		accepted, err := l.relaxation.IsAcceptable(problem, current, trial, direction, model, stepLength)
		if err != nil {
			if isNumericalError(err) {
				l.logger.Warn("numerical error, backtracking", zap.Error(err))
				continue
			}
			return nil, 0, err
		}
		if accepted {
			l.relaxation.RegisterAcceptedIterate(problem, trial)
			return trial, stepLength * direction.Norm, nil
		}

		// one second-order correction at the full step
		if stepLength == 1 && !socAttempted && l.relaxation.HasSecondOrderCorrection() {
			socAttempted = true
			if trialSOC, norm, ok := l.trySecondOrderCorrection(problem, current, trial); ok {
				return trialSOC, norm, nil
			}
		}
	}
	return nil, 0, ErrStepLengthTooSmall
}

// trySecondOrderCorrection repairs the linearized-constraint error at the
// rejected full-step trial and tests the corrected step once.
func (l *BacktrackingLineSearch) trySecondOrderCorrection(problem nlp.Problem, current, rejectedTrial *nlp.Iterate) (*nlp.Iterate, float64, bool) {
	corrected, err := l.relaxation.SecondOrderCorrection(problem, rejectedTrial)
	if err != nil {
		l.logger.Debug("second-order correction failed", zap.Error(err))
		return nil, 0, false
	}
	l.logger.Debug("second-order correction computed", zap.Float64("norm", corrected.Norm))
	trial := assembleTrialIterate(current, corrected, 1)
	model := l.relaxation.PredictedReductionModel(problem, corrected)
	accepted, err := l.relaxation.IsAcceptable(problem, current, trial, corrected, model, 1)
	if err != nil || !accepted {
		return nil, 0, false
	}
	l.relaxation.RegisterAcceptedIterate(problem, trial)
	return trial, corrected.Norm, true
}
