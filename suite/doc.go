// Copyright 2016 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package suite executes scenarios (suites) of HTTP tests and runs
// ramping load tests from them.
//
//
// Variable Handling
//
// There are two "scopes" for variables when executing a suite:
//
//  * Global Scope: Variables set from "the outside", typically via the -D
//    command line flag to cmd/pizzaht or the VU and ITER variables of a
//    load test. Executing a suite does not modify variables in this scope.
//
//  * Session Scope: The variables of one execution of a suite. The initial
//    session scope is:
//      - a copy of the Global Scope, with
//      - added COUNTER, RANDOM and UUID variables and
//      - merged defaults from the suite's Variables section.
//    Values extracted from a passing test are merged into the session
//    scope and are available to all following tests.
//
// Each test is substituted with the session scope right before it is
// executed. A session scope is never shared between executions.
//
//
// Failing Tests
//
// The first test with a status worse than Pass ends the execution of the
// suite; all remaining tests are reported as Skipped. Other executions, e.g.
// the iterations of other virtual users in a load test, are unaffected.
//
//
// Load Tests
//
// Throughput executes the suite in a loop per virtual user. The number of
// virtual users follows a ramp schedule of stages. Think times (the sleep
// of each test) are honored and interrupted when a virtual user is asked
// to stop.
package suite
