// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package problems collects small nonlinear programs with known solutions.
// The end-to-end tests and the command line resolve models from this
// registry by name.
package problems

import (
	"fmt"
	"math"
	"sort"

	"github.com/cvanaret/uno/linalg"
	"github.com/cvanaret/uno/nlp"
)

var registry = map[string]func() *nlp.Model{
	"hs071":          HS071,
	"hs015":          HS015,
	"rosenbrock":     Rosenbrock,
	"infeasible-lp":  InfeasibleLP,
	"linear-start":   LinearStart,
	"narrow-channel": NarrowChannel,
}

// Get resolves a model by name.
func Get(name string) (*nlp.Model, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("problems: unknown model %q", name)
	}
	return build(), nil
}

// Names lists the registered models in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HS071 is Hock-Schittkowski problem 71:
//
//	min x₁x₄(x₁+x₂+x₃) + x₃
//	s.t. x₁x₂x₃x₄ ≥ 25, x₁²+x₂²+x₃²+x₄² = 40, 1 ≤ xᵢ ≤ 5
//
// with solution (1, 4.743, 3.821, 1.379) and objective 17.014.
func HS071() *nlp.Model {
	return &nlp.Model{
		ModelName: "hs071",
		N:         4,
		Objective: nlp.Evaluation{
			Function: func(x []float64) float64 {
				return x[0]*x[3]*(x[0]+x[1]+x[2]) + x[2]
			},
			Derivative: func(x, d []float64) {
				d[0] = x[3] * (2*x[0] + x[1] + x[2])
				d[1] = x[0] * x[3]
				d[2] = x[0]*x[3] + 1
				d[3] = x[0] * (x[0] + x[1] + x[2])
			},
		},
		Constraints: []nlp.Evaluation{
			{
				Function: func(x []float64) float64 { return x[0] * x[1] * x[2] * x[3] },
				Derivative: func(x, d []float64) {
					d[0] = x[1] * x[2] * x[3]
					d[1] = x[0] * x[2] * x[3]
					d[2] = x[0] * x[1] * x[3]
					d[3] = x[0] * x[1] * x[2]
				},
			},
			{
				Function: func(x []float64) float64 {
					return x[0]*x[0] + x[1]*x[1] + x[2]*x[2] + x[3]*x[3]
				},
				Derivative: func(x, d []float64) {
					d[0], d[1], d[2], d[3] = 2*x[0], 2*x[1], 2*x[2], 2*x[3]
				},
			},
		},
		Hessian: func(x []float64, sigma float64, lambda []float64, h *linalg.COOSymmetricMatrix) {
			l1, l2 := lambda[0], lambda[1]
			h.Insert(0, 0, 2*sigma*x[3]-2*l2)
			h.Insert(1, 0, sigma*x[3]-l1*x[2]*x[3])
			h.Insert(2, 0, sigma*x[3]-l1*x[1]*x[3])
			h.Insert(3, 0, sigma*(2*x[0]+x[1]+x[2])-l1*x[1]*x[2])
			h.Insert(1, 1, -2*l2)
			h.Insert(2, 1, -l1*x[0]*x[3])
			h.Insert(2, 2, -2*l2)
			h.Insert(3, 1, sigma*x[0]-l1*x[0]*x[2])
			h.Insert(3, 2, sigma*x[0]-l1*x[0]*x[1])
			h.Insert(3, 3, -2*l2)
		},
		Variables: []nlp.Bound{{Lower: 1, Upper: 5}, {Lower: 1, Upper: 5}, {Lower: 1, Upper: 5}, {Lower: 1, Upper: 5}},
		Bounds: []nlp.Bound{
			{Lower: 25, Upper: math.Inf(1)},
			{Lower: 40, Upper: 40},
		},
		X0: []float64{1, 5, 5, 1},
	}
}

// Rosenbrock is the unconstrained banana valley with minimum (1, 1).
func Rosenbrock() *nlp.Model {
	return &nlp.Model{
		ModelName: "rosenbrock",
		N:         2,
		Objective: nlp.Evaluation{
			Function: func(x []float64) float64 {
				return 100*(x[1]-x[0]*x[0])*(x[1]-x[0]*x[0]) + (1-x[0])*(1-x[0])
			},
			Derivative: func(x, d []float64) {
				d[0] = -400*(x[1]-x[0]*x[0])*x[0] - 2*(1-x[0])
				d[1] = 200 * (x[1] - x[0]*x[0])
			},
		},
		Hessian: func(x []float64, sigma float64, lambda []float64, h *linalg.COOSymmetricMatrix) {
			h.Insert(0, 0, sigma*(1200*x[0]*x[0]-400*x[1]+2))
			h.Insert(1, 0, sigma*(-400*x[0]))
			h.Insert(1, 1, sigma*200)
		},
		X0: []float64{-1.2, 1},
	}
}

// HS015 is Hock-Schittkowski problem 15:
//
//	min 100(x₂-x₁²)² + (1-x₁)²
//	s.t. x₁x₂ ≥ 1, x₁ + x₂² ≥ 0, x₁ ≤ 0.5
//
// with solution (0.5, 2) and objective 306.5.
func HS015() *nlp.Model {
	return &nlp.Model{
		ModelName: "hs015",
		N:         2,
		Objective: nlp.Evaluation{
			Function: func(x []float64) float64 {
				return 100*(x[1]-x[0]*x[0])*(x[1]-x[0]*x[0]) + (1-x[0])*(1-x[0])
			},
			Derivative: func(x, d []float64) {
				d[0] = -400*(x[1]-x[0]*x[0])*x[0] - 2*(1-x[0])
				d[1] = 200 * (x[1] - x[0]*x[0])
			},
		},
		Constraints: []nlp.Evaluation{
			{
				Function: func(x []float64) float64 { return x[0] * x[1] },
				Derivative: func(x, d []float64) {
					d[0], d[1] = x[1], x[0]
				},
			},
			{
				Function: func(x []float64) float64 { return x[0] + x[1]*x[1] },
				Derivative: func(x, d []float64) {
					d[0], d[1] = 1, 2*x[1]
				},
			},
		},
		Hessian: func(x []float64, sigma float64, lambda []float64, h *linalg.COOSymmetricMatrix) {
			h.Insert(0, 0, sigma*(1200*x[0]*x[0]-400*x[1]+2))
			h.Insert(1, 0, sigma*(-400*x[0])-lambda[0])
			h.Insert(1, 1, sigma*200-2*lambda[1])
		},
		Variables: []nlp.Bound{
			{Lower: math.Inf(-1), Upper: 0.5},
			{Lower: math.Inf(-1), Upper: math.Inf(1)},
		},
		Bounds: []nlp.Bound{
			{Lower: 1, Upper: math.Inf(1)},
			{Lower: 0, Upper: math.Inf(1)},
		},
		X0: []float64{-2, 1},
	}
}

// InfeasibleLP asks for min x subject to the incompatible pair x ≥ 1 and
// x ≤ 0. The l1 relaxation drives its penalty to zero and stops at a
// Fritz-John point of the minimum-violation segment 0 ≤ x ≤ 1; no rule
// singles out a particular point of that segment, such as x = 0.5.
func InfeasibleLP() *nlp.Model {
	return &nlp.Model{
		ModelName: "infeasible-lp",
		N:         1,
		Objective: nlp.Evaluation{
			Function:   func(x []float64) float64 { return x[0] },
			Derivative: func(x, d []float64) { d[0] = 1 },
		},
		Constraints: []nlp.Evaluation{
			{
				Function:   func(x []float64) float64 { return x[0] },
				Derivative: func(x, d []float64) { d[0] = 1 },
			},
			{
				Function:   func(x []float64) float64 { return x[0] },
				Derivative: func(x, d []float64) { d[0] = 1 },
			},
		},
		Bounds: []nlp.Bound{
			{Lower: 1, Upper: math.Inf(1)},
			{Lower: math.Inf(-1), Upper: 0},
		},
		LinearRows: []int{0, 1},
		X0:         []float64{2},
	}
}

// LinearStart is a convex quadratic with linear inequality constraints and
// an infeasible start, exercising the linear-constraint preamble.
func LinearStart() *nlp.Model {
	return &nlp.Model{
		ModelName: "linear-start",
		N:         2,
		Objective: nlp.Evaluation{
			Function: func(x []float64) float64 {
				return (x[0]-2)*(x[0]-2) + (x[1]-2)*(x[1]-2)
			},
			Derivative: func(x, d []float64) {
				d[0] = 2 * (x[0] - 2)
				d[1] = 2 * (x[1] - 2)
			},
		},
		Constraints: []nlp.Evaluation{
			{
				Function:   func(x []float64) float64 { return x[0] + x[1] },
				Derivative: func(x, d []float64) { d[0], d[1] = 1, 1 },
			},
			{
				Function:   func(x []float64) float64 { return x[0] - x[1] },
				Derivative: func(x, d []float64) { d[0], d[1] = 1, -1 },
			},
		},
		Hessian: func(x []float64, sigma float64, lambda []float64, h *linalg.COOSymmetricMatrix) {
			h.Insert(0, 0, 2*sigma)
			h.Insert(1, 1, 2*sigma)
		},
		Bounds: []nlp.Bound{
			{Lower: math.Inf(-1), Upper: 1},
			{Lower: math.Inf(-1), Upper: 1},
		},
		LinearRows: []int{0, 1},
		X0:         []float64{5, 5},
	}
}

// NarrowChannel is a two-dimensional bowl with a narrow feasible strip
// around the parabola x₂ = x₁², used to contrast filter and merit
// acceptance histories.
func NarrowChannel() *nlp.Model {
	return &nlp.Model{
		ModelName: "narrow-channel",
		N:         2,
		Objective: nlp.Evaluation{
			Function: func(x []float64) float64 {
				return x[0]*x[0] + x[1]*x[1]
			},
			Derivative: func(x, d []float64) {
				d[0], d[1] = 2*x[0], 2*x[1]
			},
		},
		Constraints: []nlp.Evaluation{
			{
				Function:   func(x []float64) float64 { return x[1] - x[0]*x[0] },
				Derivative: func(x, d []float64) { d[0], d[1] = -2*x[0], 1 },
			},
		},
		Hessian: func(x []float64, sigma float64, lambda []float64, h *linalg.COOSymmetricMatrix) {
			h.Insert(0, 0, 2*sigma+2*lambda[0])
			h.Insert(1, 1, 2*sigma)
		},
		Bounds: []nlp.Bound{
			{Lower: -0.01, Upper: 0.01},
		},
		X0: []float64{2, 1},
	}
}
