// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCOODuplicateEntriesSum(t *testing.T) {
	m := NewCOOSymmetricMatrix(2, 8)
	// Insert always appends; duplicates must sum wherever the matrix is
	// consumed.
	m.Insert(0, 0, 1)
	m.Insert(0, 0, 2)
	m.Insert(1, 0, 0.5)
	m.Insert(0, 1, 0.5) // swapped to lower triangle
	m.Insert(1, 1, 4)

	require.Equal(t, 5, m.NumNonzeros())

	x := []float64{1, 1}
	// xᵀMx = 3 + 2·1 + 4
	assert.InDelta(t, 9.0, m.QuadraticProduct(x, x, 2), 1e-14)

	dense := m.Dense()
	assert.InDelta(t, 3.0, dense.At(0, 0), 1e-14)
	assert.InDelta(t, 1.0, dense.At(0, 1), 1e-14)
	assert.InDelta(t, 4.0, dense.At(1, 1), 1e-14)
}

func TestCOOSmallestDiagonalSumsDuplicates(t *testing.T) {
	m := NewCOOSymmetricMatrix(2, 4)
	m.Insert(0, 0, -1)
	m.Insert(0, 0, 3)
	m.Insert(1, 1, 5)
	assert.InDelta(t, 2.0, m.SmallestDiagonalEntry(), 1e-14)

	empty := NewCOOSymmetricMatrix(3, 1)
	assert.Equal(t, 0.0, empty.SmallestDiagonalEntry())
}

func TestCOOIdentityMultiple(t *testing.T) {
	m := NewCOOSymmetricMatrix(3, 9)
	m.AddIdentityMultiple(2)
	x := []float64{1, 2, 3}
	assert.InDelta(t, 2*(1+4+9), m.QuadraticProduct(x, x, 3), 1e-14)
	m.PopIdentityMultiple()
	assert.Equal(t, 0, m.NumNonzeros())
}

func TestSparseVectorAccumulates(t *testing.T) {
	v := NewSparseVector(4)
	v.Insert(2, 1.5)
	v.Insert(2, 0.5)
	v.Insert(0, -1)
	assert.Equal(t, 2, v.Len())
	assert.InDelta(t, 2.0, v.Dense(3)[2], 1e-14)
	assert.InDelta(t, 2.0, v.NormInf(), 1e-14)
	assert.InDelta(t, 3.0, v.Norm1(), 1e-14)

	x := []float64{2, 0, 1}
	assert.InDelta(t, -2+2, v.Dot(x), 1e-14)
}

func TestNorms(t *testing.T) {
	v := []float64{3, -4}
	assert.InDelta(t, 7.0, NormOfSlice(NormL1, v), 1e-14)
	assert.InDelta(t, 5.0, NormOfSlice(NormL2, v), 1e-14)
	assert.InDelta(t, 4.0, NormOfSlice(NormInfty, v), 1e-14)

	assert.InDelta(t, 7.0, NormOf(NormL1, 2, func(i int) float64 { return v[i] }), 1e-14)
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite([]float64{1, 2}))
	assert.False(t, IsFinite([]float64{1, math.NaN()}))
	assert.False(t, IsFinite([]float64{math.Inf(1)}))
}

func TestRectangularTransposeMulAdd(t *testing.T) {
	jac := NewRectangularMatrix(2, 2)
	jac[0].Insert(0, 1)
	jac[0].Insert(1, 2)
	jac[1].Insert(1, 3)

	dst := make([]float64, 2)
	jac.TransposeMulAdd(dst, -1, []float64{1, 1})
	assert.InDelta(t, -1.0, dst[0], 1e-14)
	assert.InDelta(t, -5.0, dst[1], 1e-14)
	assert.Equal(t, 3, jac.NumNonzeros())
}
