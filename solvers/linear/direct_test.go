// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linear

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvanaret/uno/linalg"
)

func TestInertiaOfIndefiniteMatrix(t *testing.T) {
	// diag(2, -3, 0.5) has inertia (2, 1, 0)
	m := linalg.NewCOOSymmetricMatrix(3, 3)
	m.Insert(0, 0, 2)
	m.Insert(1, 1, -3)
	m.Insert(2, 2, 0.5)

	solver := NewEigenSolver(3, 3)
	require.NoError(t, solver.Factorize(m))
	assert.Equal(t, Inertia{Positive: 2, Negative: 1, Zero: 0}, solver.Inertia())
	assert.Equal(t, 3, solver.Rank())
	assert.False(t, solver.Singular())
}

func TestSingularMatrixDetected(t *testing.T) {
	m := linalg.NewCOOSymmetricMatrix(2, 2)
	m.Insert(0, 0, 1)
	// second row/column is all zero

	solver := NewEigenSolver(2, 2)
	require.NoError(t, solver.Factorize(m))
	assert.True(t, solver.Singular())
	assert.Equal(t, 1, solver.Rank())
}

func TestSolveAgainstKnownSystem(t *testing.T) {
	// [2 1; 1 3]·x = [5; 10] has solution (1, 3)
	m := linalg.NewCOOSymmetricMatrix(2, 3)
	m.Insert(0, 0, 2)
	m.Insert(1, 0, 1)
	m.Insert(1, 1, 3)

	solver := NewEigenSolver(2, 3)
	require.NoError(t, solver.Factorize(m))
	x, err := solver.Solve([]float64{5, 10})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, x[0], 1e-10)
	assert.InDelta(t, 3.0, x[1], 1e-10)
}

func TestSolveSumsDuplicateEntries(t *testing.T) {
	// the COO contract: duplicates sum at factorization time
	m := linalg.NewCOOSymmetricMatrix(1, 2)
	m.Insert(0, 0, 1)
	m.Insert(0, 0, 1)

	solver := NewEigenSolver(1, 2)
	require.NoError(t, solver.Factorize(m))
	x, err := solver.Solve([]float64{4})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, x[0], 1e-12)
}

func TestSolveBeforeFactorizeFails(t *testing.T) {
	solver := NewEigenSolver(2, 2)
	_, err := solver.Solve([]float64{1, 2})
	assert.Error(t, err)
}

func TestKKTMatrixInertia(t *testing.T) {
	// [I A; Aᵀ 0] with one constraint row has inertia (n, m, 0): the
	// condition the barrier method restores before accepting a step
	m := linalg.NewCOOSymmetricMatrix(3, 6)
	m.Insert(0, 0, 1)
	m.Insert(1, 1, 1)
	m.Insert(2, 0, 1)
	m.Insert(2, 1, 1)

	solver := NewEigenSolver(3, 6)
	require.NoError(t, solver.Factorize(m))
	assert.Equal(t, Inertia{Positive: 2, Negative: 1, Zero: 0}, solver.Inertia())
}
