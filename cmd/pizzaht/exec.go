// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/radmuffin/pizzaht/ht"
	"github.com/radmuffin/pizzaht/pizza"
	"github.com/radmuffin/pizzaht/suite"
)

func newExecCommand(root *RootOptions) *cobra.Command {
	vars := cmdlVar{}
	var think bool

	cmd := &cobra.Command{
		Use:   "exec [flags] [suite.yaml...]",
		Short: "run one iteration of a suite",
		Long: `Exec runs the given suites once, in order, and prints a report of
each. Without arguments the built-in login and order scenario is run
against the configured service.

Variables of the suites can be overwritten with -D, e.g.
    pizzaht exec -D EMAIL=a@jwt.com -D PASSWORD=admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			suites, err := loadSuites(root, args)
			if err != nil {
				return err
			}
			opts := suite.Options{
				Log:         root.log,
				Verbosity:   root.Verbosity,
				NoThinkTime: !think,
			}
			status := ht.NotRun
			for _, s := range suites {
				result := s.Execute(cmd.Context(), vars, opts)
				if err := result.PrintReport(cmd.OutOrStdout()); err != nil {
					return err
				}
				if result.Status > status {
					status = result.Status
				}
			}
			if status > ht.Pass {
				return fmt.Errorf("status %s", status)
			}
			return nil
		},
	}
	cmd.Flags().VarP(vars, "define", "D", "set/overwrite a variable e.g. '-D SERVICE=http://localhost:3000'")
	cmd.Flags().BoolVar(&think, "think", false, "honour the think times between tests")
	return cmd
}

// loadSuites reads the suite files or returns the built-in load scenario.
func loadSuites(root *RootOptions, paths []string) ([]*suite.Suite, error) {
	if len(paths) == 0 {
		return []*suite.Suite{pizza.LoginAndOrder(root.cfg.Params())}, nil
	}
	suites := make([]*suite.Suite, 0, len(paths))
	for _, p := range paths {
		s, err := suite.Load(p)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}
