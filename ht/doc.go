// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ht provides functions for easy testing of HTTP based protocols.
//
// Testing is done by constructing a request, executing the request and
// performing various checks on the returned response. The type Test captures
// this idea. Each Test may contain an arbitrary list of Checks which
// perform the actual validation work and a set of Extractors which pull
// values out of the response for use in later Tests.
//
// Checks
//
// A typical check validates a certain property of the received response.
// E.g.
//     StatusCode{Expect: 200}
//     Body{Contains: "foobar"}
//     Body{Contains: "foobar", Count: 2}
//     Body{Contains: "illegal", Count: -1}
// The last three examples show how zero values of optional fields are
// commonly used: The zero value of Count means "any number of occurrences".
// Forbidding the occurenc of "foobar" thus requires a negative Count.
//
// The following checks are provided
//     * Body            checks text in the response body
//     * ContentType     checks Content-Type header
//     * CustomJS        evaluates a JavaScript expression on the response
//     * Header          checks presence and values of received HTTP header
//     * HTMLTag         checks occurrence HTML elements chosen via CSS-selectors
//     * JSON            checks an element of a JSON body
//     * JSONMatch       checks a JSON body partially against an expected object
//     * StatusCode      checks the received HTTP status code
//
// Parametrisations
//
// Variables may occur in all (exported) string fields of Checks and
// in the URL, parameters, header values and body of the Request in the form:
//     {{VARNAME}}
// Substitute produces a copy of a Test with the variables replaced.
//
// Extractions
//
// Values can be extracted from the response with the extractors
//     * JSONExtractor   a single element of a JSON body, e.g. $.token
//     * HeaderExtractor the first value of a header
//     * BodyExtractor   a regular expression match on the body
//     * HTMLExtractor   an attribute or the text of a CSS-selected element
// Extractions happen only for passing tests; a failing extraction
// fails the Test.
package ht
