// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cvanaret/uno/nlp"
)

func progress(feasibility, objective float64) nlp.ProgressMeasures {
	return nlp.ProgressMeasures{Feasibility: feasibility, Objective: objective}
}

func firstIterate(feasibility, objective float64) *nlp.Iterate {
	it := nlp.NewIterate(1, 0)
	it.Progress = progress(feasibility, objective)
	return it
}

func TestUnknownStrategyKey(t *testing.T) {
	_, err := New("bogus", DefaultParameters(), nil)
	var configuration *nlp.ConfigurationError
	require.ErrorAs(t, err, &configuration)
}

func TestMeritAcceptsSufficientDecrease(t *testing.T) {
	s, err := New("l1-merit", DefaultParameters(), zap.NewNop())
	require.NoError(t, err)
	s.Initialize(firstIterate(1, 10))

	// φ = σ·obj + feas drops from 11 to 5.5 with predicted reduction 5
	assert.True(t, s.CheckAcceptance(progress(1, 10), progress(0.5, 5), 1, 5))
	// nonpositive predicted reduction is rejected
	assert.False(t, s.CheckAcceptance(progress(1, 10), progress(0.5, 5), 1, -1))
	// merit increase is rejected
	assert.False(t, s.CheckAcceptance(progress(1, 10), progress(2, 10), 1, 5))
}

func TestFilterRejectsDominatedTrial(t *testing.T) {
	s, err := New("filter", DefaultParameters(), zap.NewNop())
	require.NoError(t, err)
	s.Initialize(firstIterate(1, 10))

	// h-type acceptance inserts (0.5, 8) into the filter
	require.True(t, s.CheckAcceptance(progress(1, 10), progress(0.5, 8), 0, 0))
	// a later trial dominated by (0.5, 8) is rejected
	assert.False(t, s.CheckAcceptance(progress(0.5, 8), progress(0.6, 9), 0, 0))
	// a trial improving feasibility enough passes the envelope
	assert.True(t, s.CheckAcceptance(progress(0.5, 8), progress(0.1, 8.001), 0, 0))
}

func TestFilterUpperBoundOnFeasibility(t *testing.T) {
	s, err := New("filter", DefaultParameters(), zap.NewNop())
	require.NoError(t, err)
	s.Initialize(firstIterate(1, 10))
	// the upper bound is 1e4·max(1, feas₀); anything above is rejected
	assert.False(t, s.CheckAcceptance(progress(1, 10), progress(2e4, -100), 0, 0))
}

func TestFilterContentsPairwiseNonDominated(t *testing.T) {
	f := NewFilter(0.999, 0.001, 50)
	f.Add(1.0, 5.0)
	f.Add(0.5, 6.0)
	f.Add(0.8, 5.5)
	// (0.2, 4.0) dominates (1.0, 5.0), (0.5, 6.0) and (0.8, 5.5)
	f.Add(0.2, 4.0)

	entries := f.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, [2]float64{0.2, 4.0}, entries[0])

	f.Add(0.1, 9.0) // better feasibility, worse objective: non-dominated
	for _, a := range f.Entries() {
		for _, b := range f.Entries() {
			if a == b {
				continue
			}
			dominates := a[0] <= b[0] && a[1] <= b[1]
			assert.False(t, dominates, "filter entries must be pairwise non-dominated")
		}
	}
}

// A filter rejects steps that trade a large feasibility increase for an
// objective decrease the merit function would happily take.
func TestFilterRejectsWhereMeritAccepts(t *testing.T) {
	params := DefaultParameters()
	merit, err := New("l1-merit", params, zap.NewNop())
	require.NoError(t, err)
	filter, err := New("filter", params, zap.NewNop())
	require.NoError(t, err)

	first := firstIterate(0.1, 2)
	merit.Initialize(first)
	filter.Initialize(first)

	// seed the filter with a nearly feasible, low-objective accepted point
	require.True(t, filter.CheckAcceptance(progress(0.1, 2), progress(0.01, 1), 0, 0))

	// later the iteration drifted away; the trial improves the merit a lot
	// but is dominated by the filter history
	current := progress(0.5, 50)
	trial := progress(0.4, 20)
	predicted := 30.0

	// merit: φ drops from 50.5 to 20.4 — accepted
	assert.True(t, merit.CheckAcceptance(current, trial, 1, predicted))
	// filter: (0.4, 20) is dominated by the stored (0.01, 1) — rejected
	assert.False(t, filter.CheckAcceptance(current, trial, 1, predicted))
}

func TestFunnelShrinksOnHTypeSteps(t *testing.T) {
	s, err := New("funnel", DefaultParameters(), zap.NewNop())
	require.NoError(t, err)
	funnel := s.(*FunnelStrategy)
	funnel.Initialize(firstIterate(2, 10))
	initialRadius := funnel.radius

	require.True(t, s.CheckAcceptance(progress(2, 10), progress(1, 10.0), 0, 0))
	assert.Less(t, funnel.radius, initialRadius, "funnel must contract after an h-type step")

	// a trial outside the funnel is rejected regardless of its objective
	assert.False(t, s.CheckAcceptance(progress(1, 10), progress(funnel.radius*2, -100), 0, 0))
}

func TestFunnelAcceptsFTypeWithoutContraction(t *testing.T) {
	s, err := New("funnel", DefaultParameters(), zap.NewNop())
	require.NoError(t, err)
	funnel := s.(*FunnelStrategy)
	funnel.Initialize(firstIterate(1, 10))
	radius := funnel.radius

	require.True(t, s.CheckAcceptance(progress(0.5, 10), progress(0.5, 5), 1, 5))
	assert.Equal(t, radius, funnel.radius, "f-type steps must not contract the funnel")
}
