// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ht

import (
	"errors"
	"testing"
)

var conditionTests = []struct {
	s string
	c Condition
	w string
}{
	// Equals
	{"foobar", Condition{Equals: "foobar"}, ``},
	{"foobar", Condition{Equals: "barfoo"}, `unequal, was "foobar"`},
	{"foobarX", Condition{Equals: "foobar"}, `unequal, was "foobarX"`},
	{"foobarXYZ", Condition{Equals: "foobar"}, `unequal, was "foobarXYZ"`},
	{"foobarbazwazturpot", Condition{Equals: "foobar"},
		`unequal, was "foobarbazwazturp"...`},

	// Corner cases of Equals
	{"A", Condition{Equals: "A"}, ``},
	{"", Condition{Equals: "A"}, `unequal, was ""`},
	{"BB", Condition{Equals: "A"}, `unequal, was "BB"`},

	// Prefix and Suffix
	{"foobar", Condition{Prefix: "foo"}, ``},
	{"foobar", Condition{Prefix: "waz"}, `bad prefix, got "foo"`},
	{"foobar", Condition{Prefix: "wazwazwaz"}, `bad prefix, got "foobar"`},
	{"foobar", Condition{Suffix: "bar"}, ``},
	{"foobar", Condition{Suffix: "waz"}, `bad suffix, got "bar"`},
	{"foobar", Condition{Suffix: "foofoobar"}, `bad suffix, got "foobar"`},
	{"foobar", Condition{Prefix: "foo", Suffix: "bar"}, ``},
	{"foobar", Condition{Prefix: "waz", Suffix: "waz"}, `bad prefix, got "foo"`},

	// Contains
	{"foobarfoobar", Condition{Contains: "oo"}, ``},
	{"foobarfoobar", Condition{Contains: "waz"}, `not found`},
	{"foobarfoobar", Condition{Contains: "waz", Count: -1}, ``},
	{"foobarfoobar", Condition{Contains: "oo", Count: -1}, `found forbidden`},
	{"foobarfoobar", Condition{Contains: "oo", Count: 2}, ``},
	{"foobarfoobar", Condition{Contains: "obarf", Count: 1}, ``},
	{"foobarfoobar", Condition{Contains: "o", Count: 4}, ``},
	{"foobarfoobar", Condition{Contains: "foo", Count: 1}, `found 2, want 1`},
	{"foobarfoobar", Condition{Contains: "foo", Count: 3}, `found 2, want 3`},

	// Regexp
	{"foobarwu", Condition{Regexp: "[aeiou]."}, ``},
	{"foobarwu", Condition{Regexp: "[aeiou].", Count: 2}, ``},
	{"foobarwu", Condition{Regexp: "[aeiou].", Count: 3}, `found 2, want 3`},
	{"foobarwu", Condition{Regexp: "[aeiou].", Count: -1}, `found forbidden`},
	{"frtgbwu", Condition{Regexp: "[aeiou]."}, `not found`},

	// Min and Max
	{"foobar", Condition{Min: 2}, ``},
	{"foobar", Condition{Min: 20}, `too short, was 6`},
	{"foobar", Condition{Max: 30}, ``},
	{"foobar", Condition{Max: 3}, `too long, was 6`},
}

func TestCondition(t *testing.T) {
	for i, tc := range conditionTests {
		if err := tc.c.Compile(); err != nil {
			t.Fatalf("%d. unexpected compile error %s", i, err)
		}
		err := tc.c.Fullfilled(tc.s)
		switch {
		case tc.w == "" && err != nil:
			t.Errorf("%d. %s, unexpected error %s", i, tc.s, err)
		case tc.w != "" && err == nil:
			t.Errorf("%d. %s, missing error", i, tc.s)
		case tc.w != "" && err != nil && err.Error() != tc.w:
			t.Errorf("%d. %s, wrong error %q, want %q", i, tc.s, err, tc.w)
		}
	}
}

func TestConditionMalformedRegexp(t *testing.T) {
	c := Condition{Regexp: "[a"}
	var mc MalformedCheck
	if err := c.Compile(); !errors.As(err, &mc) {
		t.Errorf("Compile: got %v, want MalformedCheck", err)
	}
	if err := c.Fullfilled("a"); !errors.As(err, &mc) {
		t.Errorf("Fullfilled: got %v, want MalformedCheck", err)
	}
}
