// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package strategy implements the globalization strategies that accept or
// reject trial iterates: l1 merit function, filter and funnel.
package strategy

import (
	"go.uber.org/zap"

	"github.com/cvanaret/uno/nlp"
)

// Strategy judges trial iterates by their (feasibility, objective) progress
// measures.
type Strategy interface {
	Initialize(first *nlp.Iterate)
	// CheckAcceptance decides whether the trial progress is acceptable.
	// objectiveMultiplier is the σ the direction was computed with, and
	// predictedReduction the subproblem model decrease at the trial step
	// length.
	CheckAcceptance(current, trial nlp.ProgressMeasures, objectiveMultiplier, predictedReduction float64) bool
	// Reset discards accepted-point history after the merit surface changed
	// (penalty update, barrier update, phase switch).
	Reset()
	// Notify records an iterate without an acceptance test; restoration uses
	// it to seed the history of the other phase.
	Notify(it *nlp.Iterate)
}

// Parameters tunes the acceptance tests shared by the strategy variants.
type Parameters struct {
	// ArmijoFraction is the η of the sufficient-decrease test, in (0, ½).
	ArmijoFraction float64
	// Beta is the feasibility envelope factor of filter and funnel.
	Beta float64
	// Gamma is the objective envelope factor of filter and funnel.
	Gamma float64
	// FilterCapacity bounds the number of stored filter entries.
	FilterCapacity int
	// FunnelContraction blends the funnel radius toward the accepted
	// feasibility after h-type steps.
	FunnelContraction float64
}

// DefaultParameters are the values of the option file defaults.
func DefaultParameters() Parameters {
	return Parameters{
		ArmijoFraction:    1e-4,
		Beta:              0.999,
		Gamma:             0.001,
		FilterCapacity:    50,
		FunnelContraction: 0.5,
	}
}

// New builds a strategy from its option key.
func New(kind string, params Parameters, logger *zap.Logger) (Strategy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch kind {
	case "l1-merit":
		return &L1Merit{params: params, logger: logger}, nil
	case "filter":
		return &FilterStrategy{params: params, logger: logger}, nil
	case "funnel":
		return &FunnelStrategy{params: params, logger: logger}, nil
	}
	return nil, &nlp.ConfigurationError{Key: "strategy", Value: kind}
}
