// Copyright 2015 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// error.go contains the error types of checks.

package ht

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrBadBody is returned from checks if the response body is
	// not available, e.g. because the service could not be reached.
	ErrBadBody = errors.New("skipped due to bad body")

	// ErrNotFound is returned by checks if some expected value was
	// not found.
	ErrNotFound = errors.New("not found")

	// ErrFoundForbidden is returned by checks if a forbidden value
	// is found.
	ErrFoundForbidden = errors.New("found forbidden")
)

// WrongCount is the error type returned by checks which require a certain
// number of matches.
type WrongCount struct {
	Got, Want int
}

func (m WrongCount) Error() string {
	return fmt.Sprintf("found %d, want %d", m.Got, m.Want)
}

// MalformedCheck is the error type returned by checks who are badly
// parametrized, e.g. who try to check against a malformed regular expression.
type MalformedCheck struct {
	Err error
}

func (m MalformedCheck) Error() string {
	return fmt.Sprintf("malformed check: %s", m.Err.Error())
}

func (m MalformedCheck) Unwrap() error { return m.Err }

// ErrorList is a collection of errors.
type ErrorList []error

// Error implements the Error method of error.
func (el ErrorList) Error() string {
	return strings.Join(el.AsStrings(), "; ")
}

// Err returns el or nil if el is empty.
func (el ErrorList) Err() error {
	if len(el) == 0 {
		return nil
	}
	return el
}

// AsStrings returns the error list as a string slice, flattening
// nested lists.
func (el ErrorList) AsStrings() []string {
	s := []string{}
	for _, e := range el {
		if nel, ok := e.(ErrorList); ok {
			s = append(s, nel.AsStrings()...)
		} else {
			s = append(s, e.Error())
		}
	}
	return s
}
