// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ht

import (
	"fmt"
	"regexp"
	"strings"
)

// Condition is a conjunction of tests against a string. Note that Contains and
// Regexp conditions both use the same Count; most likely one would use either
// Contains or Regexp but not both.
type Condition struct {
	// Equals is the exact value to be expected.
	// No other tests are performed if Equals is non-zero as these
	// other tests would be redundant.
	Equals string `yaml:"equals,omitempty" json:",omitempty"`

	// Prefix is the required prefix
	Prefix string `yaml:"prefix,omitempty" json:",omitempty"`

	// Suffix is the required suffix.
	Suffix string `yaml:"suffix,omitempty" json:",omitempty"`

	// Contains must be contained in the string.
	Contains string `yaml:"contains,omitempty" json:",omitempty"`

	// Regexp is a regular expression to look for.
	Regexp string `yaml:"regexp,omitempty" json:",omitempty"`

	// Count determines how many occurences of Contains or Regexp
	// are required for a match:
	//     0: Any positive number of matches is okay
	//   > 0: Exactly that many matches required
	//   < 0: No match allowed (invert the condition)
	Count int `yaml:"count,omitempty" json:",omitempty"`

	// Min and Max are the minimum and maximum length the string may
	// have. Two zero values disables this test.
	Min int `yaml:"min,omitempty" json:",omitempty"`
	Max int `yaml:"max,omitempty" json:",omitempty"`

	re *regexp.Regexp
}

// Fullfilled returns whether s matches all requirements of c.
// A nil return value indicates that s matches the defined conditions.
// A non-nil return indicates missmatch.
func (c Condition) Fullfilled(s string) error {
	if c.Equals != "" {
		if s == c.Equals {
			return nil
		}
		// Show at most 10 characters more than expected.
		if end := len(c.Equals) + 10; len(s) > end && len(s) > (15*len(c.Equals))/10 {
			return fmt.Errorf("unequal, was %q...", s[:end])
		}
		return fmt.Errorf("unequal, was %q", s)
	}

	if c.Prefix != "" && !strings.HasPrefix(s, c.Prefix) {
		n := len(c.Prefix)
		if len(s) < n {
			n = len(s)
		}
		return fmt.Errorf("bad prefix, got %q", s[:n])
	}

	if c.Suffix != "" && !strings.HasSuffix(s, c.Suffix) {
		n := len(c.Suffix)
		if len(s) < n {
			n = len(s)
		}
		return fmt.Errorf("bad suffix, got %q", s[len(s)-n:])
	}

	if c.Contains != "" {
		if err := c.counted(strings.Count(s, c.Contains)); err != nil {
			return err
		}
	}

	if c.Regexp != "" {
		re := c.re
		if re == nil {
			var err error
			if re, err = regexp.Compile(c.Regexp); err != nil {
				return MalformedCheck{Err: err}
			}
		}
		if err := c.counted(len(re.FindAllStringIndex(s, -1))); err != nil {
			return err
		}
	}

	if c.Min > 0 && len(s) < c.Min {
		return fmt.Errorf("too short, was %d", len(s))
	}
	if c.Max > 0 && len(s) > c.Max {
		return fmt.Errorf("too long, was %d", len(s))
	}

	return nil
}

// counted applies the Count rule to n found occurences.
func (c Condition) counted(n int) error {
	switch {
	case c.Count == 0 && n == 0:
		return ErrNotFound
	case c.Count < 0 && n > 0:
		return ErrFoundForbidden
	case c.Count > 0 && n != c.Count:
		return WrongCount{Got: n, Want: c.Count}
	}
	return nil
}

// Compile pre-compiles the regular expression if part of c.
func (c *Condition) Compile() (err error) {
	c.re = nil
	if c.Regexp != "" {
		c.re, err = regexp.Compile(c.Regexp)
		if err != nil {
			c.re = nil
			return MalformedCheck{Err: err}
		}
	}
	return nil
}
