// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

// RectangularMatrix is a row-major sparse matrix: one sparse row per
// constraint. It backs constraint Jacobians.
type RectangularMatrix []*SparseVector

// NewRectangularMatrix creates a matrix with rows rows, each reserving
// capacity entries.
func NewRectangularMatrix(rows, capacity int) RectangularMatrix {
	m := make(RectangularMatrix, rows)
	for j := range m {
		m[j] = NewSparseVector(capacity)
	}
	return m
}

// Clear empties every row.
func (m RectangularMatrix) Clear() {
	for _, row := range m {
		row.Clear()
	}
}

// NumNonzeros is the total number of stored entries across all rows.
func (m RectangularMatrix) NumNonzeros() int {
	count := 0
	for _, row := range m {
		count += row.Len()
	}
	return count
}

// RowDot computes row j · x.
func (m RectangularMatrix) RowDot(j int, x []float64) float64 {
	return m[j].Dot(x)
}

// TransposeMulAdd accumulates alpha·Mᵀy into dst: dst_i += alpha·Σ_j y_j·M_ji.
func (m RectangularMatrix) TransposeMulAdd(dst []float64, alpha float64, y []float64) {
	for j, row := range m {
		if y[j] == 0 {
			continue
		}
		row.AddTo(dst, alpha*y[j])
	}
}
