// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import "fmt"

// NumericalError signals a NaN/Inf in a user function evaluation or a failed
// factorization. Mechanisms catch it and shrink the step; it never reaches
// the driver.
type NumericalError struct {
	Op string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical error in %s", e.Op)
}

// ConfigurationError signals an unknown option or factory key. It is fatal at
// construction time.
type ConfigurationError struct {
	Key   string
	Value string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("unknown option %q", e.Key)
	}
	return fmt.Sprintf("invalid value %q for option %q", e.Value, e.Key)
}

// SolverWarning is an algorithmic signal from a linear or QP solver. It is
// never fatal: inertia correction and the steering rule consume it.
type SolverWarning int

const (
	WarningNone SolverWarning = iota
	WarningSingularMatrix
	WarningNegativeCurvature
	WarningRankDeficient
)

func (w SolverWarning) String() string {
	switch w {
	case WarningSingularMatrix:
		return "singular matrix"
	case WarningNegativeCurvature:
		return "negative curvature"
	case WarningRankDeficient:
		return "rank deficient"
	}
	return "none"
}
