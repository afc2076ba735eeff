// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mechanism retracts rejected steps: trust region (shrink the
// radius) or backtracking line search (shrink the step length).
package mechanism

import (
	"errors"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/nlp"
)

// Mechanism produces the next accepted iterate, retrying with a smaller
// radius or step length after rejections and numerical errors.
type Mechanism interface {
	Initialize(problem nlp.Problem, first *nlp.Iterate) error
	// ComputeAcceptableIterate returns the accepted trial iterate and the
	// norm of the step that produced it.
	ComputeAcceptableIterate(problem nlp.Problem, current *nlp.Iterate) (*nlp.Iterate, float64, error)
}

// ErrTrustRegionRadiusTooSmall reports divergence of the trust-region loop.
var ErrTrustRegionRadiusTooSmall = errors.New("mechanism: trust-region radius became too small")

// ErrStepLengthTooSmall reports divergence of the backtracking loop.
var ErrStepLengthTooSmall = errors.New("mechanism: line-search step length became too small")

// assembleTrialIterate constructs a fresh trial iterate at
// x + stepLength·d. Multipliers are moved toward the direction's estimates
// by the same fraction. The evaluation counter is shared across the run.
func assembleTrialIterate(current *nlp.Iterate, direction *nlp.Direction, stepLength float64) *nlp.Iterate {
	n := len(current.X)
	m := len(current.Multipliers.Constraints)
	trial := nlp.NewIterate(n, m)
	trial.Counter = current.Counter

	copy(trial.X, current.X)
	linalg.AddScaled(trial.X, stepLength, direction.Primals[:n])

	for j := 0; j < m; j++ {
		trial.Multipliers.Constraints[j] = current.Multipliers.Constraints[j] +
			stepLength*(direction.Multipliers.Constraints[j]-current.Multipliers.Constraints[j])
	}
	for i := 0; i < n; i++ {
		trial.Multipliers.LowerBounds[i] = current.Multipliers.LowerBounds[i] +
			stepLength*(direction.Multipliers.LowerBounds[i]-current.Multipliers.LowerBounds[i])
		trial.Multipliers.UpperBounds[i] = current.Multipliers.UpperBounds[i] +
			stepLength*(direction.Multipliers.UpperBounds[i]-current.Multipliers.UpperBounds[i])
	}
	return trial
}

// isNumericalError reports whether err wraps a NumericalError, the class of
// failures the mechanisms absorb by shrinking the step.
func isNumericalError(err error) bool {
	var numerical *nlp.NumericalError
	return errors.As(err, &numerical)
}
