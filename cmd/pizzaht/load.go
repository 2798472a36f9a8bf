// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/radmuffin/pizzaht/suite"
)

func newLoadCommand(root *RootOptions) *cobra.Command {
	vars := cmdlVar{}
	var csvFile string
	var noThink bool
	var plotWidth int

	cmd := &cobra.Command{
		Use:   "load [flags] [suite.yaml]",
		Short: "generate load with ramping virtual users",
		Long: `Load runs a suite repeatedly by a ramping number of virtual users
following the stages of the configuration and prints a latency summary
per test. Without argument the built-in login and order scenario is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suites, err := loadSuites(root, args)
			if err != nil {
				return err
			}
			opts := root.cfg.LoadOptions()
			opts.Variables = vars
			opts.Log = root.log
			opts.Verbosity = root.Verbosity
			if noThink {
				opts.NoThinkTime = true
			}

			result, err := suite.Throughput(cmd.Context(), suites[0], opts)
			if err != nil {
				return err
			}
			if err := result.Summary().Print(cmd.OutOrStdout()); err != nil {
				return err
			}
			if plotWidth > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
				if err := result.Plot(cmd.OutOrStdout(), plotWidth); err != nil {
					return err
				}
			}
			if csvFile == "" {
				return nil
			}
			return writeCSV(csvFile, result)
		},
	}
	cmd.Flags().VarP(vars, "define", "D", "set/overwrite a variable e.g. '-D EMAIL=a@jwt.com'")
	cmd.Flags().StringVar(&csvFile, "csv", "", "write all samples to `file`")
	cmd.Flags().IntVar(&plotWidth, "plot", 0, "plot latency distributions `width` characters wide")
	cmd.Flags().BoolVar(&noThink, "no-think-time", false, "disable the think times between tests")
	return cmd
}

func writeCSV(name string, result *suite.LoadResult) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "cannot write samples")
	}
	if err := result.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
