// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package strategy

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/cvanaret/uno/nlp"
)

// filterEntry is one accepted (feasibility, objective) pair.
type filterEntry struct {
	feasibility float64
	objective   float64
}

// Filter is a set of pairwise non-dominated (feasibility, objective) pairs
// with a margin envelope and an upper bound on feasibility.
type Filter struct {
	entries     []filterEntry
	beta, gamma float64
	capacity    int
	upperBound  float64
}

// NewFilter creates an empty filter with an infinite feasibility bound.
func NewFilter(beta, gamma float64, capacity int) *Filter {
	return &Filter{beta: beta, gamma: gamma, capacity: capacity, upperBound: math.Inf(1)}
}

// SetUpperBound caps the feasibility of any acceptable point.
func (f *Filter) SetUpperBound(bound float64) { f.upperBound = bound }

// UpperBound returns the current feasibility cap.
func (f *Filter) UpperBound() float64 { return f.upperBound }

// Len is the number of stored entries.
func (f *Filter) Len() int { return len(f.entries) }

// Entries lists the stored pairs ordered by increasing feasibility.
func (f *Filter) Entries() [][2]float64 {
	pairs := make([][2]float64, len(f.entries))
	for k, e := range f.entries {
		pairs[k] = [2]float64{e.feasibility, e.objective}
	}
	return pairs
}

// Acceptable reports whether (feasibility, objective) is acceptable to every
// filter entry under the envelope
//
//	feas ≤ β·feas_i  ∨  obj ≤ obj_i − γ·feas_i
func (f *Filter) Acceptable(feasibility, objective float64) bool {
	if feasibility > f.upperBound {
		return false
	}
	for _, e := range f.entries {
		if feasibility > f.beta*e.feasibility && objective > e.objective-f.gamma*e.feasibility {
			return false
		}
	}
	return true
}

// Add inserts the pair and removes every entry it dominates, keeping the
// contents pairwise non-dominated.
func (f *Filter) Add(feasibility, objective float64) {
	kept := f.entries[:0]
	for _, e := range f.entries {
		dominated := feasibility <= e.feasibility && objective <= e.objective
		if !dominated {
			kept = append(kept, e)
		}
	}
	f.entries = append(kept, filterEntry{feasibility, objective})
	sort.Slice(f.entries, func(i, j int) bool {
		return f.entries[i].feasibility < f.entries[j].feasibility
	})
	if len(f.entries) > f.capacity {
		// drop the most infeasible entry
		f.entries = f.entries[:f.capacity]
	}
}

// Clear empties the filter while keeping the upper bound.
func (f *Filter) Clear() { f.entries = f.entries[:0] }

// FilterStrategy rejects any trial dominated by the filter. Accepted f-type
// steps (sufficient objective decrease with σ > 0) leave the filter
// untouched; accepted h-type steps are added to it.
type FilterStrategy struct {
	params      Parameters
	logger      *zap.Logger
	filter      *Filter
	initialized bool
}

const upperBoundFactor = 1e4

func (s *FilterStrategy) Initialize(first *nlp.Iterate) {
	s.filter = NewFilter(s.params.Beta, s.params.Gamma, s.params.FilterCapacity)
	s.filter.SetUpperBound(upperBoundFactor * math.Max(1, first.Progress.Feasibility))
	s.initialized = true
}

func (s *FilterStrategy) CheckAcceptance(current, trial nlp.ProgressMeasures, objectiveMultiplier, predictedReduction float64) bool {
	if !s.initialized {
		s.filter = NewFilter(s.params.Beta, s.params.Gamma, s.params.FilterCapacity)
		s.initialized = true
	}
	if !s.filter.Acceptable(trial.Feasibility, trial.Objective) {
		s.logger.Debug("filter: trial dominated",
			zap.Float64("feasibility", trial.Feasibility),
			zap.Float64("objective", trial.Objective))
		return false
	}
	// acceptability with respect to the current pair
	acceptableToCurrent := trial.Feasibility <= s.params.Beta*current.Feasibility ||
		trial.Objective <= current.Objective-s.params.Gamma*trial.Feasibility
	if !acceptableToCurrent {
		s.logger.Debug("filter: trial dominated by current iterate")
		return false
	}

	// f-type: sufficient objective decrease under a positive model reduction
	fType := objectiveMultiplier > 0 && predictedReduction > 0 &&
		current.Objective-trial.Objective >= s.params.ArmijoFraction*predictedReduction
	if fType {
		s.logger.Debug("filter: f-type step accepted")
		return true
	}
	// h-type: the trial enters the filter
	s.filter.Add(trial.Feasibility, trial.Objective)
	s.logger.Debug("filter: h-type step accepted",
		zap.Int("filter_size", s.filter.Len()))
	return true
}

func (s *FilterStrategy) Reset() {
	if s.filter != nil {
		s.filter.Clear()
	}
}

func (s *FilterStrategy) Notify(it *nlp.Iterate) {
	if s.filter == nil {
		s.Initialize(it)
	}
	s.filter.Add(it.Progress.Feasibility, it.Progress.Objective)
}
