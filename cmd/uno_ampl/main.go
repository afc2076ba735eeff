// Copyright ©2026 cvanaret. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command uno_ampl solves a nonlinear program with a configurable
// combination of globalization mechanism, constraint relaxation, subproblem
// and globalization strategy.
//
//	uno_ampl [flags] model
//
// Models are resolved from the built-in problem registry; .nl files require
// an external AMPL reader and are rejected with a configuration error.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	uno "github.com/cvanaret/uno"
	"github.com/cvanaret/uno/problems"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	options := uno.DefaultOptions()
	var optionsFile string
	var preset string
	var showVersion bool
	overrides := map[string]*string{}

	cmd := &cobra.Command{
		Use:           "uno_ampl [flags] model",
		Short:         "modular solver for nonlinearly constrained optimization",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println("Welcome in Uno")
				fmt.Println("To solve a model, type ./uno_ampl model_name")
				fmt.Println("Mechanisms: TR, LS; strategies: l1-merit, filter, funnel")
				fmt.Println("Constraint relaxations: l1-relaxation, feasibility-restoration")
				fmt.Println("Subproblems: QP, LP, barrier; presets: byrd, filtersqp, ipopt")
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one model argument")
			}

			if optionsFile != "" {
				if err := options.LoadOptionsFile(optionsFile); err != nil {
					return err
				}
			}
			for key, value := range overrides {
				if cmd.Flags().Changed(key) {
					if err := options.Set(key, *value); err != nil {
						return err
					}
				}
			}
			if preset != "" {
				if err := options.ApplyPreset(preset); err != nil {
					return err
				}
			}

			name := args[0]
			if strings.HasSuffix(name, ".nl") {
				return fmt.Errorf("AMPL .nl input requires an external model reader; available models: %s",
					strings.Join(problems.Names(), ", "))
			}
			model, err := problems.Get(name)
			if err != nil {
				return err
			}

			logger, err := uno.NewLogger(options)
			if err != nil {
				return err
			}
			defer logger.Sync()

			result, err := uno.Run(model, options, logger)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s in %d iterations, objective %.8g\n",
				name, result.Status, result.Iterations, result.Solution.Objective)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showVersion, "version", "v", false, "print the banner")
	cmd.Flags().StringVar(&optionsFile, "options", "", "path to a uno.options YAML file")
	cmd.Flags().StringVar(&preset, "preset", "", "preset tuple: byrd, filtersqp or ipopt")
	for key := range options {
		value := new(string)
		*value = options[key]
		overrides[key] = value
		cmd.Flags().StringVar(value, key, *value, "option "+key)
	}
	return cmd
}
