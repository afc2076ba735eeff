// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Norm selects the residual norm used by progress measures and residuals.
type Norm int

const (
	NormL1 Norm = iota
	NormL2
	NormInfty
)

// ParseNorm maps an option value onto a Norm.
func ParseNorm(value string) (Norm, bool) {
	switch value {
	case "L1":
		return NormL1, true
	case "L2":
		return NormL2, true
	case "INF":
		return NormInfty, true
	}
	return NormL1, false
}

// NormOf evaluates ‖v‖ for the n-vector given elementwise by f.
// The functional form avoids materializing intermediate vectors when the
// components are themselves composites (e.g. constraint violations).
func NormOf(norm Norm, n int, f func(i int) float64) float64 {
	switch norm {
	case NormL2:
		sum := zero
		for i := 0; i < n; i++ {
			v := f(i)
			sum += v * v
		}
		return math.Sqrt(sum)
	case NormInfty:
		largest := zero
		for i := 0; i < n; i++ {
			largest = math.Max(largest, math.Abs(f(i)))
		}
		return largest
	default:
		sum := zero
		for i := 0; i < n; i++ {
			sum += math.Abs(f(i))
		}
		return sum
	}
}

// NormOfSlice evaluates ‖v‖ for a dense vector.
func NormOfSlice(norm Norm, v []float64) float64 {
	switch norm {
	case NormL2:
		return floats.Norm(v, 2)
	case NormInfty:
		return floats.Norm(v, math.Inf(1))
	default:
		return floats.Norm(v, 1)
	}
}

// Dot is the dense inner product xᵀy.
func Dot(x, y []float64) float64 {
	return floats.Dot(x, y)
}

// AddScaled sets dst += alpha·src.
func AddScaled(dst []float64, alpha float64, src []float64) {
	floats.AddScaled(dst, alpha, src)
}

// Fill sets every component of v to value.
func Fill(v []float64, value float64) {
	for i := range v {
		v[i] = value
	}
}

// IsFinite reports whether every component of v is finite.
func IsFinite(v []float64) bool {
	for _, value := range v {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return false
		}
	}
	return true
}

const zero = 0.0
