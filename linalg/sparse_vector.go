// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

import "math"

// SparseVector is an index/value list with deterministic iteration order.
// Duplicate insertions of the same index accumulate.
type SparseVector struct {
	indices []int
	values  []float64
}

// NewSparseVector creates a sparse vector with the given capacity hint.
func NewSparseVector(capacity int) *SparseVector {
	return &SparseVector{
		indices: make([]int, 0, capacity),
		values:  make([]float64, 0, capacity),
	}
}

// Insert accumulates value at index i.
func (v *SparseVector) Insert(i int, value float64) {
	for k, index := range v.indices {
		if index == i {
			v.values[k] += value
			return
		}
	}
	v.indices = append(v.indices, i)
	v.values = append(v.values, value)
}

// Clear removes all entries while keeping the storage.
func (v *SparseVector) Clear() {
	v.indices = v.indices[:0]
	v.values = v.values[:0]
}

// Len is the number of stored entries.
func (v *SparseVector) Len() int {
	return len(v.indices)
}

// ForEach visits entries in insertion order.
func (v *SparseVector) ForEach(f func(i int, value float64)) {
	for k, index := range v.indices {
		f(index, v.values[k])
	}
}

// Dot computes the inner product with a dense vector.
func (v *SparseVector) Dot(x []float64) float64 {
	sum := zero
	for k, index := range v.indices {
		sum += v.values[k] * x[index]
	}
	return sum
}

// AddTo accumulates alpha·v into the dense vector dst.
func (v *SparseVector) AddTo(dst []float64, alpha float64) {
	for k, index := range v.indices {
		dst[index] += alpha * v.values[k]
	}
}

// Norm1 is the sum of absolute entry values.
func (v *SparseVector) Norm1() float64 {
	sum := zero
	for _, value := range v.values {
		sum += math.Abs(value)
	}
	return sum
}

// NormInf is the largest absolute entry value.
func (v *SparseVector) NormInf() float64 {
	largest := zero
	for _, value := range v.values {
		largest = math.Max(largest, math.Abs(value))
	}
	return largest
}

// Dense scatters the entries into a fresh dense n-vector.
func (v *SparseVector) Dense(n int) []float64 {
	x := make([]float64, n)
	for k, index := range v.indices {
		x[index] += v.values[k]
	}
	return x
}
