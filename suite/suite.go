// Copyright 2016 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package suite

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"

	"github.com/radmuffin/pizzaht/ht"
	"github.com/radmuffin/pizzaht/scope"
)

// A Suite is an ordered sequence of Tests which share session variables.
type Suite struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Variables   scope.Variables `yaml:"variables,omitempty"`
	Tests       []*ht.Test      `yaml:"tests"`
}

// Options control the execution of a Suite.
type Options struct {
	// Jar and Client are handed to each test. A nil Client makes each
	// test construct its own client using Jar.
	Jar    http.CookieJar
	Client *http.Client

	// Log is the logger to use. Nil discards all output.
	Log logrus.FieldLogger

	// Verbosity raises the verbosity of all tests to at least this level.
	Verbosity int

	// NoThinkTime disables the sleeps after each test.
	NoThinkTime bool

	// Stop, if non-nil, asks the execution to stop once the current
	// test and its think time are done. The remaining tests are skipped.
	Stop <-chan struct{}
}

// Result is the outcome of executing a Suite.
type Result struct {
	Name        string
	Status      ht.Status
	Error       error
	Started     time.Time
	Duration    time.Duration
	Interrupted bool // Stopped via Options.Stop before all tests ran.

	Tests []*ht.Test

	Variables      scope.Variables // At the start of the execution.
	FinalVariables scope.Variables // Including all extracted values.
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}()

// Execute runs the tests of s strictly in order. Each test is substituted
// with the current session variables, executed and its extracted values
// are merged into the session variables for the following tests. The
// first test with a status worse than Pass ends the execution: all
// remaining tests are reported as Skipped.
//
// The session variables are built from vars, which dominate, and the
// variables of s. They are private to this execution.
func (s *Suite) Execute(ctx context.Context, vars map[string]string, opts Options) *Result {
	log := opts.Log
	if log == nil {
		log = discard
	}
	log = log.WithField("suite", s.Name)

	session := scope.New(vars, s.Variables, true)
	result := &Result{
		Name:      session.Replacer().Replace(s.Name),
		Status:    ht.NotRun,
		Started:   time.Now(),
		Tests:     make([]*ht.Test, len(s.Tests)),
		Variables: session.Copy(),
	}
	if opts.Verbosity >= 3 {
		log.Debugf("Variables:\n%s", pretty.Sprint(result.Variables))
	}

	execute := true
	for i, raw := range s.Tests {
		test := raw.Substitute(session)
		test.Jar = opts.Jar
		test.Client = opts.Client
		test.Log = log
		if opts.Verbosity > test.Execution.Verbosity {
			test.Execution.Verbosity = opts.Verbosity
		}
		thinkTime := test.Execution.PostSleep
		test.Execution.PostSleep = 0
		result.Tests[i] = test

		if execute && stopped(opts.Stop) {
			result.Interrupted = true
			execute = false
		}
		if !execute {
			test.Status = ht.Skipped
			continue
		}

		err := test.Run(ctx)
		if test.Status == ht.Pass {
			session.Merge(test.Extract())
		}
		if test.Status > ht.Pass {
			log.WithField("test", test.Name).Infof("%s: %v",
				strings.ToUpper(test.Status.String()), test.Error)
			if test.Status >= ht.Error || err != nil {
				log.Debugf("Failing request:\n%s", test.CurlCall())
			}
			result.Error = fmt.Errorf("test %d %q: %s", i+1, test.Name, test.Error)
			execute = false
			continue
		}

		if !opts.NoThinkTime && !thinkFor(ctx, thinkTime, opts.Stop) {
			execute = false
			result.Interrupted = i < len(s.Tests)-1
		}
	}

	for _, test := range result.Tests {
		if test.Status > result.Status {
			result.Status = test.Status
		}
	}
	result.Duration = time.Since(result.Started)
	result.FinalVariables = session.Copy()
	if opts.Verbosity >= 3 {
		log.Debugf("Final variables:\n%s", pretty.Sprint(result.FinalVariables))
	}

	return result
}

func stopped(stop <-chan struct{}) bool {
	if stop == nil {
		return false
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// thinkFor sleeps d and reports whether the whole time was slept.
func thinkFor(ctx context.Context, d time.Duration, stop <-chan struct{}) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	}
}

// Stats counts the test results of r.
func (r *Result) Stats() (notRun int, skipped int, passed int, failed int, errored int, bogus int) {
	for _, tr := range r.Tests {
		switch tr.Status {
		case ht.NotRun:
			notRun++
		case ht.Skipped:
			skipped++
		case ht.Pass:
			passed++
		case ht.Fail:
			failed++
		case ht.Error:
			errored++
		case ht.Bogus:
			bogus++
		default:
			panic(fmt.Sprintf("No such Status %d in suite %q test %q",
				tr.Status, r.Name, tr.Name))
		}
	}
	return
}
