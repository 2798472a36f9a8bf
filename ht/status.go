// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// status.go provides the Status of tests and checks and the StatusCode check.

package ht

import (
	"fmt"
	"strings"
)

func init() {
	RegisterCheck(StatusCode{})
}

// Status describes the status of a Test or a Check.
type Status int

// Possible status of Checks, Tests and Suites.
const (
	NotRun  Status = iota // Not jet executed
	Skipped               // Omitted deliberately
	Pass                  // That's what we want
	Fail                  // One ore more checks failed
	Error                 // Request or body reading failed (not for checks).
	Bogus                 // Bogus test or check (malformd URL, bad regexp, etc.)
)

var statusNames = []string{"NotRun", "Skipped", "Pass", "Fail", "Error", "Bogus"}

func (s Status) String() string {
	if s < 0 || s > Bogus {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[int(s)]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s < 0 || s > Bogus {
		return []byte(""), fmt.Errorf("no such status %d", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if strings.EqualFold(name, string(text)) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("no such status %q", text)
}

// ----------------------------------------------------------------------------
// StatusCode

// StatusCode checks the HTTP statuscode.
type StatusCode struct {
	Expect int `yaml:"expect"`
}

// Execute implements Check's Execute method.
func (c StatusCode) Execute(t *Test) error {
	if t.Response.Response == nil {
		return ErrBadBody
	}
	if t.Response.Response.StatusCode != c.Expect {
		return fmt.Errorf("got %d, want %d", t.Response.Response.StatusCode, c.Expect)
	}
	return nil
}
