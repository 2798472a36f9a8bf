// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ht

import (
	"net/http"
	"testing"
)

var statusCodeTests = []TC{
	{Response{Response: &http.Response{StatusCode: 200}}, StatusCode{200}, nil},
	{Response{Response: &http.Response{StatusCode: 200}}, StatusCode{400},
		errorString("got 200, want 400")},
	{Response{Response: &http.Response{StatusCode: 404}}, &StatusCode{404}, nil},
	{Response{}, StatusCode{200}, ErrBadBody},
}

func TestStatusCode(t *testing.T) {
	for i, tc := range statusCodeTests {
		runTest(t, i, tc)
	}
}

func TestStatusText(t *testing.T) {
	for _, s := range []Status{NotRun, Skipped, Pass, Fail, Error, Bogus} {
		text, err := s.MarshalText()
		if err != nil {
			t.Fatalf("%s: unexpected error %s", s, err)
		}
		var back Status
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("%s: unexpected error %s", text, err)
		}
		if back != s {
			t.Errorf("Got %s, want %s", back, s)
		}
	}

	var s Status
	if err := s.UnmarshalText([]byte("pass")); err != nil || s != Pass {
		t.Errorf("Got %s %v, want Pass", s, err)
	}
	if err := s.UnmarshalText([]byte("foobar")); err == nil {
		t.Errorf("Missing error")
	}
	if _, err := Status(17).MarshalText(); err == nil {
		t.Errorf("Missing error")
	}
	if got := Status(17).String(); got != "Status(17)" {
		t.Errorf("Got %q", got)
	}
}
