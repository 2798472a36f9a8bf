// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOuterDominates(t *testing.T) {
	outer := Variables{"A": "outer", "B": "b"}
	inner := Variables{"A": "inner", "C": "c"}

	s := New(outer, inner, false)
	assert.Equal(t, Variables{"A": "outer", "B": "b", "C": "c"}, s)

	// New must not alias its inputs.
	s["A"] = "changed"
	assert.Equal(t, "outer", outer["A"])
	assert.Equal(t, "inner", inner["A"])
}

func TestNewAuto(t *testing.T) {
	s1 := New(nil, nil, true)
	s2 := New(nil, nil, true)
	require.Contains(t, s1, "COUNTER")
	require.Contains(t, s1, "RANDOM")
	require.Contains(t, s1, "UUID")
	assert.NotEqual(t, s1["COUNTER"], s2["COUNTER"])
	assert.Len(t, s1["RANDOM"], 6)
	assert.NotEqual(t, s1["UUID"], s2["UUID"])

	s3 := New(Variables{"COUNTER": "7"}, nil, true)
	assert.Equal(t, "7", s3["COUNTER"])
}

func TestReplacer(t *testing.T) {
	vars := Variables{"token": "abc", "jwt": "x.y.z", "t": "short"}
	tests := []struct {
		in, want string
	}{
		{"Bearer {{token}}", "Bearer abc"},
		{`{"jwt":"{{jwt}}"}`, `{"jwt":"x.y.z"}`},
		{"{{t}}{{token}}", "shortabc"},
		{"{{unknown}}", "{{unknown}}"},
		{"no vars", "no vars"},
	}
	repl := vars.Replacer()
	for i, tc := range tests {
		if got := repl.Replace(tc.in); got != tc.want {
			t.Errorf("%d. Replace(%q) = %q, want %q", i, tc.in, got, tc.want)
		}
	}
}

func TestCopyAndMerge(t *testing.T) {
	v := Variables{"a": "1"}
	c := v.Copy()
	c.Merge(map[string]string{"b": "2", "a": "3"})
	assert.Equal(t, Variables{"a": "1"}, v)
	assert.Equal(t, Variables{"a": "3", "b": "2"}, c)
	assert.Equal(t, []string{"a", "b"}, c.Names())
	assert.Equal(t, "a=\"3\"\nb=\"2\"\n", c.String())
}
