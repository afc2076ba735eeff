// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package strategy

import (
	"go.uber.org/zap"

	"github.com/cvanaret/uno/nlp"
)

// L1Merit accepts a trial iterate when the l1 merit function
// φ(x) = σ·objective(x) + feasibility(x) decreases by at least an Armijo
// fraction of the predicted reduction.
type L1Merit struct {
	params Parameters
	logger *zap.Logger
}

func (s *L1Merit) Initialize(first *nlp.Iterate) {}

func (s *L1Merit) CheckAcceptance(current, trial nlp.ProgressMeasures, objectiveMultiplier, predictedReduction float64) bool {
	if predictedReduction <= 0 {
		s.logger.Debug("merit: nonpositive predicted reduction", zap.Float64("predicted", predictedReduction))
		return false
	}
	currentMerit := objectiveMultiplier*current.Objective + current.Feasibility
	trialMerit := objectiveMultiplier*trial.Objective + trial.Feasibility
	actualReduction := currentMerit - trialMerit
	accept := actualReduction >= s.params.ArmijoFraction*predictedReduction
	s.logger.Debug("merit acceptance test",
		zap.Float64("actual", actualReduction),
		zap.Float64("predicted", predictedReduction),
		zap.Bool("accept", accept))
	return accept
}

func (s *L1Merit) Reset() {}

func (s *L1Merit) Notify(it *nlp.Iterate) {}
