// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linear provides direct solvers for the symmetric indefinite
// systems that arise in inertia correction and interior-point methods.
package linear

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cvanaret/uno/linalg"
)

// Inertia is the signature (n₊, n₋, n₀) of a symmetric matrix. Correct
// inertia of the KKT matrix guarantees a descent direction.
type Inertia struct {
	Positive, Negative, Zero int
}

// DirectSymmetricIndefiniteSolver factorizes a symmetric indefinite matrix
// once and solves against the factors. Implementations own their workspace
// for their whole lifetime; Factorize may be called repeatedly.
type DirectSymmetricIndefiniteSolver interface {
	Factorize(m *linalg.COOSymmetricMatrix) error
	Solve(rhs []float64) ([]float64, error)
	Inertia() Inertia
	Rank() int
	Singular() bool
}

// singularityTolerance separates zero eigenvalues from nonzero ones,
// relative to the largest magnitude.
const singularityTolerance = 1e-12

// EigenSolver factorizes through a dense spectral decomposition. The inertia
// and rank fall out of the eigenvalue signs; the solve applies the
// pseudo-inverse of the factors.
type EigenSolver struct {
	dimension   int
	eigenvalues []float64
	vectors     mat.Dense
	inertia     Inertia
	factorized  bool
}

// NewEigenSolver creates a solver. The capacity arguments mirror the
// workspace-sizing contract of the Fortran solvers this stands in for; the
// dense backend needs no pre-sizing.
func NewEigenSolver(maxDimension, maxNonzeros int) *EigenSolver {
	_ = maxNonzeros
	return &EigenSolver{eigenvalues: make([]float64, 0, maxDimension)}
}

// Factorize computes the spectral decomposition of m, summing duplicate COO
// entries during assembly.
func (s *EigenSolver) Factorize(m *linalg.COOSymmetricMatrix) error {
	var es mat.EigenSym
	if ok := es.Factorize(m.Dense(), true); !ok {
		s.factorized = false
		return errors.New("linear: eigendecomposition failed")
	}
	s.dimension = m.Dimension()
	s.eigenvalues = es.Values(nil)
	es.VectorsTo(&s.vectors)

	largest := 0.0
	for _, ev := range s.eigenvalues {
		largest = math.Max(largest, math.Abs(ev))
	}
	threshold := singularityTolerance * math.Max(1, largest)
	s.inertia = Inertia{}
	for _, ev := range s.eigenvalues {
		switch {
		case ev > threshold:
			s.inertia.Positive++
		case ev < -threshold:
			s.inertia.Negative++
		default:
			s.inertia.Zero++
		}
	}
	s.factorized = true
	return nil
}

// Solve computes x = M⁻¹·rhs from the factors. Zero eigenvalues are skipped,
// so for singular matrices the result is the minimum-norm solution of the
// consistent part.
func (s *EigenSolver) Solve(rhs []float64) ([]float64, error) {
	if !s.factorized {
		return nil, errors.New("linear: solve before factorize")
	}
	if len(rhs) != s.dimension {
		return nil, errors.New("linear: right-hand side dimension mismatch")
	}
	largest := 0.0
	for _, ev := range s.eigenvalues {
		largest = math.Max(largest, math.Abs(ev))
	}
	threshold := singularityTolerance * math.Max(1, largest)

	x := make([]float64, s.dimension)
	column := make([]float64, s.dimension)
	for k, ev := range s.eigenvalues {
		if math.Abs(ev) <= threshold {
			continue
		}
		mat.Col(column, k, &s.vectors)
		coefficient := linalg.Dot(column, rhs) / ev
		linalg.AddScaled(x, coefficient, column)
	}
	return x, nil
}

// Inertia returns the signature of the last factorized matrix.
func (s *EigenSolver) Inertia() Inertia { return s.inertia }

// Rank returns the number of nonzero eigenvalues.
func (s *EigenSolver) Rank() int { return s.inertia.Positive + s.inertia.Negative }

// Singular reports whether the last factorized matrix is singular.
func (s *EigenSolver) Singular() bool { return s.inertia.Zero > 0 }
