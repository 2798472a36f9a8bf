// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scope provides variables scopes for the session variables of
// scenario executions.
//
// A scope is a simple name to value map. Scopes are nested: an outer scope
// (e.g. values extracted during the current execution) dominates the inner
// scope (e.g. the defaults of a suite). Variables are referenced in
// strings as {{name}}.
package scope

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Variables is a set of variable name/value pairs.
type Variables map[string]string

// Counter is the global counter handed out in the COUNTER auto variable.
var Counter int64

// New returns a new variable scope with inner variables dominated by outer.
// If auto is true the automatic variables COUNTER, RANDOM and UUID are
// added unless outer or inner define them already.
func New(outer, inner Variables, auto bool) Variables {
	scope := make(Variables, len(outer)+len(inner)+3)
	for n, v := range inner {
		scope[n] = v
	}
	for n, v := range outer {
		scope[n] = v
	}

	if !auto {
		return scope
	}
	if _, ok := scope["COUNTER"]; !ok {
		scope["COUNTER"] = strconv.FormatInt(atomic.AddInt64(&Counter, 1), 10)
	}
	if _, ok := scope["RANDOM"]; !ok {
		scope["RANDOM"] = strconv.Itoa(100000 + rand.Intn(900000))
	}
	if _, ok := scope["UUID"]; !ok {
		scope["UUID"] = uuid.NewString()
	}

	return scope
}

// Copy returns an independent copy of v.
func (v Variables) Copy() Variables {
	c := make(Variables, len(v))
	for n, val := range v {
		c[n] = val
	}
	return c
}

// Merge copies all variables in other into v.
func (v Variables) Merge(other map[string]string) {
	for n, val := range other {
		v[n] = val
	}
}

// Replacer returns a strings.Replacer which replaces all occurences of
// {{name}} with the value of name.
func (v Variables) Replacer() *strings.Replacer {
	oldnew := make([]string, 0, 2*len(v))
	for _, n := range v.Names() {
		oldnew = append(oldnew, "{{"+n+"}}", v[n])
	}
	return strings.NewReplacer(oldnew...)
}

// Names returns the sorted variable names in v.
func (v Variables) Names() []string {
	names := make([]string, 0, len(v))
	for n := range v {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// String renders v as one name=value pair per line.
func (v Variables) String() string {
	buf := &strings.Builder{}
	for _, n := range v.Names() {
		fmt.Fprintf(buf, "%s=%q\n", n, v[n])
	}
	return buf.String()
}
