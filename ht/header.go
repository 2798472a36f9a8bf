// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// header.go provides generic checks of HTTP headers.

package ht

import (
	"fmt"
	"mime"
	"net/http"
	"strings"
)

func init() {
	RegisterCheck(&Header{})
	RegisterCheck(ContentType{})
}

// Header provides a textual test of single-valued HTTP headers.
type Header struct {
	// Header is the HTTP header to check.
	Header string `yaml:"header"`

	// Condition is applied to the first header value. A zero value checks
	// for the existence of the given Header only.
	Condition `yaml:",inline" json:",omitempty"`

	// Absent indicates that no header Header shall be part of the response.
	Absent bool `yaml:"absent,omitempty" json:",omitempty"`
}

// Execute implements Check's Execute method.
func (h Header) Execute(t *Test) error {
	if t.Response.Response == nil {
		return ErrBadBody
	}
	key := http.CanonicalHeaderKey(h.Header)
	values := t.Response.Response.Header[key]
	switch {
	case len(values) == 0 && h.Absent:
		return nil
	case len(values) == 0:
		return fmt.Errorf("header %s not received", h.Header)
	case h.Absent:
		return fmt.Errorf("forbidden header %s received", h.Header)
	}
	return h.Fullfilled(values[0])
}

// Prepare implements Check's Prepare method.
func (h *Header) Prepare() error {
	return h.Condition.Compile()
}

// ----------------------------------------------------------------------------
// ContentType

// ContentType checks the Content-Type header.
type ContentType struct {
	// Is is the wanted content type. It may be abrevated, e.g.
	// "json" would match "application/json"
	Is string `yaml:"is"`

	// Charset is an optional charset
	Charset string `yaml:"charset,omitempty" json:",omitempty"`
}

// Execute implements Check's Execute method.
func (c ContentType) Execute(t *Test) error {
	if t.Response.Response == nil || t.Response.Response.Header == nil {
		return fmt.Errorf("no proper response available")
	}
	ct := t.Response.Response.Header["Content-Type"]
	if len(ct) == 0 {
		return fmt.Errorf("no Content-Type header received")
	}
	if len(ct) > 1 {
		return fmt.Errorf("received %d Content-Type headers", len(ct))
	}
	mediatype, params, err := mime.ParseMediaType(ct[0])
	if err != nil {
		return fmt.Errorf("bad Content-Type %q: %s", ct[0], err)
	}
	want := c.Is
	if !strings.Contains(want, "/") {
		want = "/" + want
	}
	if !strings.HasSuffix(mediatype, want) {
		return fmt.Errorf("Content-Type is %s", ct[0])
	}

	if c.Charset != "" && !strings.EqualFold(params["charset"], c.Charset) {
		return fmt.Errorf("bad charset in %s", ct[0])
	}

	return nil
}
