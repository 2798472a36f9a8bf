// Copyright 2016 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// otto.go contains checks based on otto, a JavaScript interpreter

package ht

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/robertkrimen/otto"
)

func init() {
	RegisterCheck(&CustomJS{})
}

// ----------------------------------------------------------------------------
// CustomJS

// CustomJS executes the provided JavaScript.
//
// The response is present in the JavaScript VM as the top-level object
// "response" with the fields
//     status    the HTTP status code
//     body      the response body as a string
//     headers   the response headers, names in lower case
//     json      the parsed body or undefined if the body is no JSON
//     duration  the response time in milliseconds
//
// The Script's last value indicates success or failure:
//   - Success: true, 0, ""
//   - Failure: false, any number != 0, any string != ""
//
// So the script
//     response.status === 200 && response.json.token.length > 0
// works like a k6 check.
//
// The JavaScript code is interpreted by otto. See the documentation at
// https://godoc.org/github.com/robertkrimen/otto for details.
type CustomJS struct {
	// Script is JavaScript code to be evaluated.
	//
	// The script may be read from disk with the following syntax:
	//     @file:/path/to/script
	Script string `yaml:"script"`

	vm     *otto.Otto
	script *otto.Script
}

// Prepare implements Check's Prepare method.
func (s *CustomJS) Prepare() error {
	script, basename := s.Script, "<inline>"
	if strings.HasPrefix(script, "@file:") {
		filename := script[len("@file:"):]
		data, err := os.ReadFile(filename)
		if err != nil {
			return MalformedCheck{Err: err}
		}
		script, basename = string(data), filepath.Base(filename)
	}

	var err error
	s.vm = otto.New()
	s.script, err = s.vm.Compile(basename, script)
	if err != nil {
		return MalformedCheck{Err: err}
	}
	return nil
}

// Execute implements Check's Execute method.
func (s *CustomJS) Execute(t *Test) error {
	if s.vm == nil {
		if err := s.Prepare(); err != nil {
			return err
		}
	}
	if t.Response.Response == nil {
		return ErrBadBody
	}

	headers := make(map[string]interface{}, len(t.Response.Response.Header))
	for h, v := range t.Response.Response.Header {
		headers[strings.ToLower(h)] = strings.Join(v, ", ")
	}
	response := map[string]interface{}{
		"status":   t.Response.Response.StatusCode,
		"body":     t.Response.BodyStr,
		"headers":  headers,
		"duration": float64(t.Response.Duration.Microseconds()) / 1000,
	}
	var parsed interface{}
	if json.Unmarshal([]byte(t.Response.BodyStr), &parsed) == nil {
		response["json"] = parsed
	}
	if err := s.vm.Set("response", response); err != nil {
		return err
	}

	val, err := s.vm.Run(s.script)
	if err != nil {
		return err
	}

	str, err := val.ToString()
	if err != nil {
		return err
	}
	if str == "0" || str == "true" || str == "" {
		return nil
	}
	return errors.New(str)
}
