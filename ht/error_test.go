// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ht

import (
	"errors"
	"regexp"
	"regexp/syntax"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorList(t *testing.T) {
	assert.NoError(t, ErrorList{}.Err())
	assert.NoError(t, ErrorList(nil).Err())

	el := ErrorList{
		ErrNotFound,
		ErrorList{WrongCount{Got: 1, Want: 2}, ErrFoundForbidden},
	}
	assert.Equal(t, []string{"not found", "found 1, want 2", "found forbidden"}, el.AsStrings())
	assert.EqualError(t, el.Err(), "not found; found 1, want 2; found forbidden")
}

func TestMalformedCheckUnwrap(t *testing.T) {
	_, err := regexp.Compile("(")
	mc := MalformedCheck{Err: err}
	var re *syntax.Error
	assert.True(t, errors.As(mc, &re))
	assert.Contains(t, mc.Error(), "malformed check: ")
}
