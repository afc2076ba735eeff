// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// COOSymmetricMatrix stores the lower triangle of a symmetric matrix in
// coordinate list form. Insert always appends: duplicate (i,j) entries sum
// implicitly wherever the matrix is consumed (quadratic products, dense
// assembly, factorization).
type COOSymmetricMatrix struct {
	dimension int
	rows      []int
	cols      []int
	values    []float64
}

// NewCOOSymmetricMatrix creates a dimension×dimension symmetric matrix with
// storage reserved for capacity nonzeros.
func NewCOOSymmetricMatrix(dimension, capacity int) *COOSymmetricMatrix {
	return &COOSymmetricMatrix{
		dimension: dimension,
		rows:      make([]int, 0, capacity),
		cols:      make([]int, 0, capacity),
		values:    make([]float64, 0, capacity),
	}
}

// Dimension is the order of the matrix.
func (m *COOSymmetricMatrix) Dimension() int { return m.dimension }

// NumNonzeros is the number of stored entries.
func (m *COOSymmetricMatrix) NumNonzeros() int { return len(m.values) }

// SetDimension changes the order of the matrix. Entries are preserved; the
// caller guarantees they stay within the new dimension.
func (m *COOSymmetricMatrix) SetDimension(dimension int) {
	m.dimension = dimension
}

// Reset removes all entries while keeping the storage.
func (m *COOSymmetricMatrix) Reset() {
	m.rows = m.rows[:0]
	m.cols = m.cols[:0]
	m.values = m.values[:0]
}

// Insert appends entry (i, j) = term with i ≥ j (lower triangle).
func (m *COOSymmetricMatrix) Insert(i, j int, term float64) {
	if i < j {
		i, j = j, i
	}
	m.rows = append(m.rows, i)
	m.cols = append(m.cols, j)
	m.values = append(m.values, term)
}

// Pop removes the most recently inserted entry.
func (m *COOSymmetricMatrix) Pop() {
	last := len(m.values) - 1
	m.rows = m.rows[:last]
	m.cols = m.cols[:last]
	m.values = m.values[:last]
}

// ForEach visits entries of the lower triangle in insertion order.
func (m *COOSymmetricMatrix) ForEach(f func(i, j int, value float64)) {
	for k, value := range m.values {
		f(m.rows[k], m.cols[k], value)
	}
}

// AddIdentityMultiple appends multiple·I to the matrix.
func (m *COOSymmetricMatrix) AddIdentityMultiple(multiple float64) {
	for i := 0; i < m.dimension; i++ {
		m.Insert(i, i, multiple)
	}
}

// PopIdentityMultiple removes the trailing dimension entries added by
// AddIdentityMultiple.
func (m *COOSymmetricMatrix) PopIdentityMultiple() {
	for i := 0; i < m.dimension; i++ {
		m.Pop()
	}
}

// SmallestDiagonalEntry returns the smallest accumulated diagonal value, or 0
// when the diagonal is empty.
func (m *COOSymmetricMatrix) SmallestDiagonalEntry() float64 {
	diag := make(map[int]float64)
	m.ForEach(func(i, j int, value float64) {
		if i == j {
			diag[i] += value
		}
	})
	smallest := math.Inf(1)
	for _, value := range diag {
		smallest = math.Min(smallest, value)
	}
	if math.IsInf(smallest, 1) {
		return 0
	}
	return smallest
}

// QuadraticProduct computes xᵀMy over the leading n×n block.
func (m *COOSymmetricMatrix) QuadraticProduct(x, y []float64, n int) float64 {
	sum := zero
	m.ForEach(func(i, j int, value float64) {
		if i >= n || j >= n {
			return
		}
		sum += value * x[i] * y[j]
		if i != j {
			sum += value * x[j] * y[i]
		}
	})
	return sum
}

// MulVec computes M·x over the leading n×n block into dst.
func (m *COOSymmetricMatrix) MulVec(x, dst []float64, n int) {
	for i := 0; i < n; i++ {
		dst[i] = 0
	}
	m.ForEach(func(i, j int, value float64) {
		if i >= n || j >= n {
			return
		}
		dst[i] += value * x[j]
		if i != j {
			dst[j] += value * x[i]
		}
	})
}

// Dense assembles the symmetric matrix into a gonum SymDense, summing
// duplicate entries.
func (m *COOSymmetricMatrix) Dense() *mat.SymDense {
	dense := mat.NewSymDense(m.dimension, nil)
	m.ForEach(func(i, j int, value float64) {
		dense.SetSym(i, j, dense.At(i, j)+value)
	})
	return dense
}
