// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/radmuffin/pizzaht/browser"
	"github.com/radmuffin/pizzaht/ht"
	"github.com/radmuffin/pizzaht/pizza"
)

func newUICommand(root *RootOptions) *cobra.Command {
	var only []string
	var parallel int

	cmd := &cobra.Command{
		Use:   "ui [flags]",
		Short: "drive the frontend through the UI scenarios",
		Long: `UI opens the configured frontend in Chrome and runs the UI scenarios.
Backend calls are answered by the fixtures of each scenario.

Available scenarios:
    ` + strings.Join(scenarioNames(), "\n    "),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := selectScenarios(root.cfg.UI.BaseURL, only)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("parallel") {
				parallel = root.cfg.UI.Parallel
			}
			opts := browser.RunOptions{
				Timeout: root.cfg.UI.Timeout,
				Log:     root.log,
			}
			opener := root.newOpener(root.cfg, root.log)
			results := browser.RunAll(cmd.Context(), scenarios, opener, opts, parallel)
			for _, r := range results {
				if err := r.PrintReport(cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			if status := browser.Status(results); status > ht.Pass {
				return fmt.Errorf("status %s", status)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "run only these scenarios, e.g. --only 'home page'")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "number of scenarios run concurrently")
	return cmd
}

func scenarioNames() []string {
	var names []string
	for _, sc := range pizza.All("") {
		names = append(names, sc.Name)
	}
	return names
}

func selectScenarios(base string, only []string) ([]*browser.Scenario, error) {
	if len(only) == 0 {
		return pizza.All(base), nil
	}
	scenarios := make([]*browser.Scenario, 0, len(only))
	for _, name := range only {
		sc := pizza.ByName(base, strings.TrimSpace(name))
		if sc == nil {
			return nil, fmt.Errorf("no such scenario %q", name)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}
