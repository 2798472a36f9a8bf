// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// pizzaht drives load and UI scenarios against a JWT Pizza deployment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/radmuffin/pizzaht/browser"
	"github.com/radmuffin/pizzaht/config"
)

// RootOptions are the global flags and the state they produce.
type RootOptions struct {
	ConfigFile string
	Verbosity  int
	LogFormat  string

	// Set up before any command runs.
	cfg *config.Config
	log *logrus.Logger

	// newOpener constructs the browser for the ui command.
	newOpener func(cfg *config.Config, log logrus.FieldLogger) browser.Opener
}

// NewRootCommand creates the pizzaht command with all subcommands.
func NewRootCommand() *cobra.Command {
	return newRootCommand(func(cfg *config.Config, log logrus.FieldLogger) browser.Opener {
		return cfg.Opener(log)
	})
}

func newRootCommand(newOpener func(*config.Config, logrus.FieldLogger) browser.Opener) *cobra.Command {
	opts := &RootOptions{newOpener: newOpener}

	cmd := &cobra.Command{
		Use:   "pizzaht",
		Short: "Load and UI scenarios for JWT Pizza",
		Long: `Pizzaht generates load against a JWT Pizza service and drives a
browser through the JWT Pizza frontend with mocked backend calls.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "read configuration from `file`")
	cmd.PersistentFlags().IntVar(&opts.Verbosity, "verbosity", 0, "force this verbosity level on all tests")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json), overrides the config")

	cmd.AddCommand(newLoadCommand(opts))
	cmd.AddCommand(newExecCommand(opts))
	cmd.AddCommand(newUICommand(opts))
	cmd.AddCommand(newMockCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	if o.Verbosity >= 3 && cfg.Log.Level != "trace" {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %s", err)
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	log.SetOutput(cmd.ErrOrStderr())
	o.cfg, o.log = cfg, log
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
