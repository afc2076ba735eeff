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

// TrustRegionParameters tunes the radius management.
type TrustRegionParameters struct {
	InitialRadius     float64
	IncreaseFactor    float64
	DecreaseFactor    float64
	ActivityTolerance float64
	MinRadius         float64
}

// DefaultTrustRegionParameters are the option-file defaults.
func DefaultTrustRegionParameters() TrustRegionParameters {
	return TrustRegionParameters{
		InitialRadius:     10,
		IncreaseFactor:    2,
		DecreaseFactor:    2,
		ActivityTolerance: 1e-6,
		MinRadius:         1e-16,
	}
}

// TrustRegion bounds every subproblem with the box ‖d‖∞ ≤ Δ, grows Δ when
// the trust region is active at an accepted step, and shrinks it after
// rejections or evaluation errors.
type TrustRegion struct {
	relaxation relaxation.Strategy
	params     TrustRegionParameters
	logger     *zap.Logger

	radius          float64
	innerIterations int
}

// NewTrustRegion builds the trust-region mechanism around the relaxation
// strategy.
func NewTrustRegion(relaxationStrategy relaxation.Strategy, params TrustRegionParameters, logger *zap.Logger) *TrustRegion {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrustRegion{
		relaxation: relaxationStrategy,
		params:     params,
		logger:     logger,
		radius:     params.InitialRadius,
	}
}

// Radius exposes the current trust-region radius.
func (t *TrustRegion) Radius() float64 { return t.radius }

func (t *TrustRegion) Initialize(problem nlp.Problem, first *nlp.Iterate) error {
	return t.relaxation.Initialize(problem, first)
}

func (t *TrustRegion) ComputeAcceptableIterate(problem nlp.Problem, current *nlp.Iterate) (*nlp.Iterate, float64, error) {
	t.innerIterations = 0
	for t.radius >= t.params.MinRadius {
		t.innerIterations++
		t.logger.Debug("trust-region iteration",
			zap.Int("minor", t.innerIterations),
			zap.Float64("radius", t.radius))

		trial, norm, err := t.attempt(problem, current)
		if err != nil {
			if isNumericalError(err) {
				// evaluation error: shrink and retry
				t.logger.Warn("numerical error, decreasing the trust-region radius", zap.Error(err))
				t.radius /= t.params.DecreaseFactor
				continue
			}
			return nil, 0, err
		}
		if trial != nil {
			return trial, norm, nil
		}
	}
	return nil, 0, ErrTrustRegionRadiusTooSmall
}

// attempt runs one inner iteration. A nil trial without error means the step
// was rejected and the radius already decreased.
func (t *TrustRegion) attempt(problem nlp.Problem, current *nlp.Iterate) (*nlp.Iterate, float64, error) {
	if err := t.relaxation.CreateCurrentSubproblem(problem, current, t.radius); err != nil {
		return nil, 0, err
	}
	direction, err := t.relaxation.ComputeFeasibleDirection(problem, current)
	if err != nil {
		return nil, 0, err
	}
	if direction.Status == nlp.DirectionUnbounded {
		panic("trust-region subproblem is unbounded, this should not happen")
	}
	t.rectifyActiveSet(direction)

	const fullStepLength = 1.
	trial := assembleTrialIterate(current, direction, fullStepLength)
	model := t.relaxation.PredictedReductionModel(problem, direction)
	accepted, err := t.relaxation.IsAcceptable(problem, current, trial, direction, model, fullStepLength)
	if err != nil {
		return nil, 0, err
	}
	if accepted {
		// increase the radius if the trust region is active
		if direction.Norm >= t.radius-t.params.ActivityTolerance {
			t.radius *= t.params.IncreaseFactor
		}
		t.relaxation.RegisterAcceptedIterate(problem, trial)
		return trial, direction.Norm, nil
	}
	t.radius = math.Min(t.radius, direction.Norm) / t.params.DecreaseFactor
	return nil, 0, nil
}

// rectifyActiveSet clears the bound multipliers of components active at the
// trust region rather than at a problem bound: that activity is an artifact
// of the box.
func (t *TrustRegion) rectifyActiveSet(direction *nlp.Direction) {
	keptLower := direction.ActiveSet.AtLowerBound[:0]
	for _, i := range direction.ActiveSet.AtLowerBound {
		if math.Abs(direction.Primals[i]+t.radius) <= t.params.ActivityTolerance {
			direction.Multipliers.LowerBounds[i] = 0
			continue
		}
		keptLower = append(keptLower, i)
	}
	direction.ActiveSet.AtLowerBound = keptLower

	keptUpper := direction.ActiveSet.AtUpperBound[:0]
	for _, i := range direction.ActiveSet.AtUpperBound {
		if math.Abs(direction.Primals[i]-t.radius) <= t.params.ActivityTolerance {
			direction.Multipliers.UpperBounds[i] = 0
			continue
		}
		keptUpper = append(keptUpper, i)
	}
	direction.ActiveSet.AtUpperBound = keptUpper
}
