// Copyright 2017 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mock provides route fixtures: canned HTTP responses for requests
// whose URL matches a pattern.
//
// Its main use is a UI scenario where a browser page talks to a backend
// which is replaced by a set of mocks. Each intercepted request is
// validated by the checks of its mock before the canned response is sent.
// Validation failures are recorded and reported to the scenario.
//
//    Scenario   Page    Router     Mock
//      |         |        |          |
//    +---+       |        |          |
//    |   +---declare fixtures---->   |
//    |   |     +---+      |          |
//    |   +---->|   |    +---+        |
//    |   |     |   |--->|   |------->|
//    |   |     |   |    |   | check  |
//    |   |     |   |<---|   |<-------|
//    |   |<----|   |    +---+        |
//    |   |     +---+      |          |
//    |   |<--failures-----|          |
//    +---+                |          |
//
// URL patterns are globs matched against the whole URL:
//    *    matches any sequence of characters except '/'
//    **   matches any sequence of characters including '/'
//    ?    matches a single character
// So "*/**/api/order/menu" matches "http://localhost:5173/api/order/menu"
// but not "http://localhost:5173/api/order/menu/1".
package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/radmuffin/pizzaht/ht"
	"github.com/radmuffin/pizzaht/scope"
)

// Mock allows to mock a HTTP response for a certain request.
type Mock struct {
	// Name of this mock
	Name string `yaml:"name"`

	// Description of this mock.
	Description string `yaml:"description,omitempty"`

	// Method for which this mock applies to. Empty means any method.
	Method string `yaml:"method,omitempty"`

	// URL pattern this mock applies to, see package doc.
	// For Serve the URL may contain Gorilla mux style path templates
	// like /user/{id} instead; the path variables are available in the
	// response.
	URL string `yaml:"url"`

	// VarEx contains variable extraction definitions which are applied
	// to the incoming request.
	VarEx ht.ExtractorMap `yaml:"extract,omitempty"`

	// Checks are applied to to the received HTTP request. This is done
	// by converting the request to a HTTP response and populating a
	// synthetic ht.Test. This implies that several checks are inappropriate
	// here; body and header checks like JSONMatch work.
	Checks ht.CheckList `yaml:"checks,omitempty"`

	// Response to send for this mock.
	Response Response `yaml:"response"`

	// Variables provide default values for {{name}} placeholders in the
	// response. Extracted values and path variables dominate.
	Variables scope.Variables `yaml:"variables,omitempty"`
}

// Response to send as mocked answer.
type Response struct {
	StatusCode int         `yaml:"status,omitempty"` // Zero means 200.
	Header     http.Header `yaml:"header,omitempty"`
	Body       string      `yaml:"body,omitempty"`
}

// JSONResponse returns a 200 response with v encoded as JSON.
// It panics if v cannot be marshalled.
func JSONResponse(v interface{}) Response {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mock: cannot marshal response: %s", err))
	}
	return Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       string(body),
	}
}

// Status returns the status code to send.
func (r Response) Status() int {
	if r.StatusCode == 0 {
		return http.StatusOK
	}
	return r.StatusCode
}

// Write sends r to w.
func (r Response) Write(w http.ResponseWriter) {
	for h, vs := range r.Header {
		for _, v := range vs {
			w.Header().Add(h, v)
		}
	}
	w.WriteHeader(r.Status())
	_, _ = w.Write([]byte(r.Body))
}

// ValidationError reports an intercepted request which did not satisfy
// the fixture it was routed to.
type ValidationError struct {
	Mock   string // Name of the mock, empty if no mock for Method exists.
	Method string
	URL    string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Mock == "" {
		return fmt.Sprintf("mock: %s %s: %s", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("mock %s: %s %s: %s", e.Mock, e.Method, e.URL, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ----------------------------------------------------------------------------
// Glob patterns

var globCache = struct {
	sync.Mutex
	m map[string]*regexp.Regexp
}{m: make(map[string]*regexp.Regexp)}

// globRegexp translates the glob pattern to an anchored regular expression.
func globRegexp(pattern string) *regexp.Regexp {
	globCache.Lock()
	defer globCache.Unlock()
	if re, ok := globCache.m[pattern]; ok {
		return re
	}

	buf := &strings.Builder{}
	buf.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch c := runes[i]; c {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				buf.WriteString(".*")
				i++
			} else {
				buf.WriteString("[^/]*")
			}
		case '?':
			buf.WriteString(".")
		default:
			buf.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	buf.WriteString("$")

	re := regexp.MustCompile(buf.String())
	globCache.m[pattern] = re
	return re
}

// MatchGlob reports whether the whole url matches the glob pattern.
func MatchGlob(pattern, url string) bool {
	return globRegexp(pattern).MatchString(url)
}

// isGlob reports whether the URL of a mock is a glob pattern.
func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}
