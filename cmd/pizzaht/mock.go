// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/radmuffin/pizzaht/mock"
	"github.com/radmuffin/pizzaht/pizza"
)

func newMockCommand(root *RootOptions) *cobra.Command {
	var addr, file string

	cmd := &cobra.Command{
		Use:   "mock [flags] [scenario]",
		Short: "serve the fixtures of a UI scenario",
		Long: `Mock serves the backend fixtures of the named UI scenario, or the
mocks read from --file, on the given address until interrupted.
Requests are validated against the fixtures and logged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mocks []*mock.Mock
			switch {
			case file != "" && len(args) > 0:
				return fmt.Errorf("use either a scenario or --file")
			case file != "":
				var err error
				if mocks, err = mock.Load(file); err != nil {
					return err
				}
			case len(args) == 1:
				sc := pizza.ByName(root.cfg.UI.BaseURL, args[0])
				if sc == nil {
					return fmt.Errorf("no such scenario %q", args[0])
				}
				mocks = sc.Fixtures
			default:
				return fmt.Errorf("missing scenario or --file")
			}
			if len(mocks) == 0 {
				return fmt.Errorf("nothing to serve")
			}
			root.log.WithField("addr", addr).Infof("serving %d mocks", len(mocks))
			return mock.Serve(cmd.Context(), addr, mocks, root.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8880", "listen on `address`")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read mocks from YAML `file`")
	return cmd
}
