// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uno

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cvanaret/uno/nlp"
)

// Options is the string-keyed configuration map every factory reads.
// Unknown keys fail at construction, never at solve time.
type Options map[string]string

// DefaultOptions returns the built-in defaults, the equivalent of the
// uno.options file shipped with the solver.
func DefaultOptions() Options {
	return Options{
		"mechanism":             "TR",
		"strategy":              "l1-merit",
		"constraint-relaxation": "l1-relaxation",
		"subproblem":            "QP",

		"QP_solver":     "LSEI",
		"LP_solver":     "LSEI",
		"hessian_model": "exact",

		"TR_radius":             "10",
		"TR_increase_factor":    "2",
		"TR_decrease_factor":    "2",
		"TR_min_radius":         "1e-16",
		"TR_activity_tolerance": "1e-6",

		"LS_backtracking_ratio": "0.5",
		"LS_min_step_length":    "1e-9",

		"l1_relaxation_initial_parameter": "1",
		"l1_relaxation_decrease_factor":   "10",
		"l1_relaxation_epsilon1":          "0.1",
		"l1_relaxation_epsilon2":          "0.1",
		"l1_relaxation_penalty_threshold": "1e-10",

		"armijo_decrease_fraction": "1e-4",
		"filter_beta":              "0.999",
		"filter_gamma":             "0.001",
		"filter_capacity":          "50",
		"funnel_contraction":       "0.5",

		"barrier_initial_parameter": "0.1",
		"proximal_coefficient":      "0",

		"max_iterations":       "300",
		"time_limit":           "0",
		"tolerance":            "1e-6",
		"small_step_tolerance": "1e-9",

		"scale_functions":            "no",
		"scaling_threshold":          "100",
		"enforce_linear_constraints": "no",
		"print_solution":             "no",
		"residual_norm":              "INF",
		"logger":                     "WARNING",
	}
}

// LoadOptionsFile merges a YAML option file (string scalars) onto the map.
func (o Options) LoadOptionsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("options: reading %s: %w", path, err)
	}
	parsed := map[string]string{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("options: parsing %s: %w", path, err)
	}
	for key, value := range parsed {
		if _, known := o[key]; !known {
			return &nlp.ConfigurationError{Key: key}
		}
		o[key] = value
	}
	return nil
}

// Set overrides a single option, rejecting unknown keys.
func (o Options) Set(key, value string) error {
	if _, known := o[key]; !known && key != "preset" {
		return &nlp.ConfigurationError{Key: key}
	}
	if key == "preset" {
		return o.ApplyPreset(value)
	}
	o[key] = value
	return nil
}

// Float parses a float-valued option.
func (o Options) Float(key string) (float64, error) {
	raw, known := o[key]
	if !known {
		return 0, &nlp.ConfigurationError{Key: key}
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &nlp.ConfigurationError{Key: key, Value: raw}
	}
	return value, nil
}

// Int parses an int-valued option.
func (o Options) Int(key string) (int, error) {
	raw, known := o[key]
	if !known {
		return 0, &nlp.ConfigurationError{Key: key}
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &nlp.ConfigurationError{Key: key, Value: raw}
	}
	return value, nil
}

// Bool parses a yes/no option.
func (o Options) Bool(key string) (bool, error) {
	raw, known := o[key]
	if !known {
		return false, &nlp.ConfigurationError{Key: key}
	}
	switch raw {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, &nlp.ConfigurationError{Key: key, Value: raw}
}

// ApplyPreset overrides the ingredient tuple with a classical combination:
// byrd (l1-penalty SQP with line search), filtersqp (trust-region filter
// SQP) or ipopt (barrier filter line search with restoration).
func (o Options) ApplyPreset(name string) error {
	switch name {
	case "byrd":
		o["mechanism"] = "LS"
		o["constraint-relaxation"] = "l1-relaxation"
		o["strategy"] = "l1-merit"
		o["subproblem"] = "QP"
	case "filtersqp":
		o["mechanism"] = "TR"
		o["constraint-relaxation"] = "feasibility-restoration"
		o["strategy"] = "filter"
		o["subproblem"] = "QP"
	case "ipopt":
		o["mechanism"] = "LS"
		o["constraint-relaxation"] = "feasibility-restoration"
		o["strategy"] = "filter"
		o["subproblem"] = "barrier"
	default:
		return &nlp.ConfigurationError{Key: "preset", Value: name}
	}
	return nil
}
