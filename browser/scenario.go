// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package browser

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/radmuffin/pizzaht/ht"
	"github.com/radmuffin/pizzaht/mock"
)

// DefaultTimeout is the step timeout used if RunOptions.Timeout is zero.
var DefaultTimeout = 5 * time.Second

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}()

// Scenario is a sequence of UI steps executed on a fresh page.
// The Fixtures intercept the requests of the page. Fixtures are owned
// by their Scenario: a Scenario must not run concurrently with itself.
type Scenario struct {
	Name        string
	Description string

	// BaseURL is used to resolve relative Goto URLs.
	BaseURL string

	Fixtures []*mock.Mock
	Steps    []Step
}

// RunOptions control the execution of a Scenario.
type RunOptions struct {
	// Timeout is the maximum duration of a single step.
	Timeout time.Duration

	// Poll is the interval in which the page is re-read while waiting.
	Poll time.Duration

	// Log is the logger to use. Nil discards all output.
	Log logrus.FieldLogger
}

// StepResult is the outcome of a single step.
type StepResult struct {
	Step     string
	Status   ht.Status
	Started  time.Time
	Duration time.Duration
	Error    error
}

// Result of a Scenario run.
type Result struct {
	ID       string
	Name     string
	Status   ht.Status
	Started  time.Time
	Duration time.Duration
	Steps    []StepResult
	Error    error
}

// StepError reports the failing step of a scenario.
type StepError struct {
	Scenario string
	N        int // 1-based
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("scenario %q step %d (%s): %s", e.Scenario, e.N, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// statusOf classifies err: violated expectations and failed fixture
// validations are failures, everything else is an error.
func statusOf(err error) ht.Status {
	if err == nil {
		return ht.Pass
	}
	var ae *AssertionError
	var ve *mock.ValidationError
	var se *StrictError
	if errors.As(err, &ae) || errors.As(err, &ve) || errors.As(err, &se) {
		return ht.Fail
	}
	return ht.Error
}

// Run executes the steps of sc in order on a page opened by opener.
// The page routes its requests through a new Router built from the
// fixtures of sc. Execution stops at the first failing step or at the
// first fixture validation failure; the remaining steps are skipped.
func (sc *Scenario) Run(ctx context.Context, opener Opener, opts RunOptions) *Result {
	log := opts.Log
	if log == nil {
		log = discard
	}
	log = log.WithField("scenario", sc.Name)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	result := &Result{
		ID:      uuid.NewString(),
		Name:    sc.Name,
		Status:  ht.NotRun,
		Started: time.Now(),
		Steps:   make([]StepResult, len(sc.Steps)),
	}
	for i, step := range sc.Steps {
		result.Steps[i] = StepResult{Step: step.String(), Status: ht.Skipped}
	}
	defer func() { result.Duration = time.Since(result.Started) }()

	rt := mock.NewRouter(sc.Fixtures...)
	rt.Log = log
	page, err := opener.Open(ctx, rt)
	if err != nil {
		result.Status = ht.Error
		result.Error = errors.Wrap(err, "cannot open page")
		log.Errorf("%s", result.Error)
		return result
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warnf("closing page: %s", err)
		}
	}()

	sess := &Session{Page: page, BaseURL: sc.BaseURL, Poll: opts.Poll, Log: log}
	seen := 0
	result.Status = ht.Pass
	for i, step := range sc.Steps {
		if ctx.Err() != nil {
			result.Status = ht.Error
			result.Error = errors.Wrap(ctx.Err(), "scenario aborted")
			break
		}
		sr := &result.Steps[i]
		sr.Started = time.Now()
		sctx, cancel := context.WithTimeout(ctx, timeout)
		err := step.Run(sctx, sess)
		cancel()
		if failures := rt.Failures(); len(failures) > seen {
			err = failures[seen]
			seen = len(failures)
		}
		sr.Duration = time.Since(sr.Started)
		sr.Status, sr.Error = statusOf(err), err
		log.Debugf("step %d %s: %s (%s)", i+1, sr.Status, sr.Step, sr.Duration)
		if err != nil {
			result.Status = sr.Status
			result.Error = &StepError{Scenario: sc.Name, N: i + 1, Step: sr.Step, Err: err}
			log.Warnf("%s", result.Error)
			break
		}
	}
	return result
}

// RunAll runs the scenarios with at most parallel of them running at
// the same time. A failing scenario does not affect the others. The
// results are in the order of scenarios.
func RunAll(ctx context.Context, scenarios []*Scenario, opener Opener, opts RunOptions, parallel int) []*Result {
	results := make([]*Result, len(scenarios))
	var g errgroup.Group
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			results[i] = sc.Run(ctx, opener, opts)
			return nil
		})
	}
	g.Wait()
	return results
}

// Status returns the worst status of results.
func Status(results []*Result) ht.Status {
	status := ht.NotRun
	for _, r := range results {
		if r.Status > status {
			status = r.Status
		}
	}
	return status
}
