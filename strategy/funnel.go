// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package strategy

import (
	"math"

	"go.uber.org/zap"

	"github.com/cvanaret/uno/nlp"
)

// FunnelStrategy maintains a single shrinking upper bound τ on feasibility.
// A trial is acceptable when it stays inside the funnel and shows sufficient
// feasibility or objective decrease; accepted h-type steps contract τ.
type FunnelStrategy struct {
	params      Parameters
	logger      *zap.Logger
	radius      float64
	initialized bool
}

const initialFunnelFactor = 1e2

func (s *FunnelStrategy) Initialize(first *nlp.Iterate) {
	s.radius = initialFunnelFactor * math.Max(1, first.Progress.Feasibility)
	s.initialized = true
}

func (s *FunnelStrategy) CheckAcceptance(current, trial nlp.ProgressMeasures, objectiveMultiplier, predictedReduction float64) bool {
	if !s.initialized {
		s.radius = initialFunnelFactor * math.Max(1, current.Feasibility)
		s.initialized = true
	}
	if trial.Feasibility > s.radius {
		s.logger.Debug("funnel: trial outside funnel",
			zap.Float64("feasibility", trial.Feasibility),
			zap.Float64("radius", s.radius))
		return false
	}

	// f-type: sufficient objective decrease under a positive model reduction
	fType := objectiveMultiplier > 0 && predictedReduction > 0 &&
		current.Objective-trial.Objective >= s.params.ArmijoFraction*predictedReduction
	if fType {
		s.logger.Debug("funnel: f-type step accepted")
		return true
	}
	// h-type: require sufficient feasibility decrease and contract the funnel
	hType := trial.Feasibility <= s.params.Beta*current.Feasibility ||
		trial.Objective <= current.Objective-s.params.Gamma*trial.Feasibility
	if !hType {
		return false
	}
	contraction := s.params.FunnelContraction
	s.radius = math.Min(s.radius, (1-contraction)*s.radius+contraction*trial.Feasibility)
	s.logger.Debug("funnel: h-type step accepted", zap.Float64("radius", s.radius))
	return true
}

func (s *FunnelStrategy) Reset() {
	s.initialized = false
}

func (s *FunnelStrategy) Notify(it *nlp.Iterate) {
	if !s.initialized || it.Progress.Feasibility > s.radius {
		s.radius = initialFunnelFactor * math.Max(1, it.Progress.Feasibility)
		s.initialized = true
	}
}
