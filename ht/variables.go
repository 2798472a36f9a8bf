// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ht

import (
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/radmuffin/pizzaht/scope"
)

// Substitute returns a copy of t with all {{name}} variables replaced
// by their values in vars. Substitution is applied to the name, the
// request URL, parameters, header values and body and to all string
// fields of the checks. Extractors, execution parameters, the client and
// the cookie jar are shared with t. Results of t are not copied.
func (t *Test) Substitute(vars map[string]string) *Test {
	return t.substituteVariables(scope.Variables(vars).Replacer())
}

// substituteVariables returns a copy of t with repl applied.
func (t *Test) substituteVariables(repl *strings.Replacer) *Test {
	c := &Test{
		Name:        repl.Replace(t.Name),
		Description: repl.Replace(t.Description),
		Request: Request{
			Method:  repl.Replace(t.Request.Method),
			URL:     repl.Replace(t.Request.URL),
			Body:    repl.Replace(t.Request.Body),
			Timeout: t.Request.Timeout,
		},
		VarEx:     t.VarEx,
		Execution: t.Execution,
		Client:    t.Client,
		Jar:       t.Jar,
		Log:       t.Log,
	}

	if t.Request.Params != nil {
		c.Request.Params = make(url.Values, len(t.Request.Params))
		for param, vals := range t.Request.Params {
			c.Request.Params[param] = replaceAll(repl, vals)
		}
	}

	if t.Request.Header != nil {
		c.Request.Header = make(http.Header, len(t.Request.Header))
		for h, vals := range t.Request.Header {
			c.Request.Header[h] = replaceAll(repl, vals)
		}
	}

	if t.Checks != nil {
		c.Checks = make(CheckList, len(t.Checks))
		for i := range t.Checks {
			c.Checks[i] = SubstituteVariables(t.Checks[i], repl)
		}
	}

	return c
}

func replaceAll(repl *strings.Replacer, vals []string) []string {
	rv := make([]string, len(vals))
	for i, v := range vals {
		rv[i] = repl.Replace(v)
	}
	return rv
}

// SubstituteVariables returns a deep copy of check with repl applied to
// all exported string fields. Unexported fields are copied shallowly; the
// check has to be prepared again before use.
func SubstituteVariables(check Check, repl *strings.Replacer) Check {
	v := reflect.ValueOf(check)
	if !v.IsValid() {
		return check
	}
	return substituteRec(repl, v).Interface().(Check)
}

func substituteRec(repl *strings.Replacer, val reflect.Value) reflect.Value {
	cpy := reflect.New(val.Type()).Elem()

	switch val.Kind() {
	case reflect.String:
		cpy.SetString(repl.Replace(val.String()))
	case reflect.Struct:
		cpy.Set(val)
		for i := 0; i < val.NumField(); i++ {
			if val.Type().Field(i).PkgPath != "" {
				continue // unexported
			}
			cpy.Field(i).Set(substituteRec(repl, val.Field(i)))
		}
	case reflect.Ptr:
		if val.IsNil() {
			return cpy
		}
		elem := substituteRec(repl, val.Elem())
		ptr := reflect.New(val.Type().Elem())
		ptr.Elem().Set(elem)
		cpy.Set(ptr)
	case reflect.Interface:
		if val.IsNil() {
			return cpy
		}
		cpy.Set(substituteRec(repl, val.Elem()))
	case reflect.Slice:
		if val.IsNil() {
			return cpy
		}
		s := reflect.MakeSlice(val.Type(), val.Len(), val.Len())
		for i := 0; i < val.Len(); i++ {
			s.Index(i).Set(substituteRec(repl, val.Index(i)))
		}
		cpy.Set(s)
	case reflect.Map:
		if val.IsNil() {
			return cpy
		}
		m := reflect.MakeMapWithSize(val.Type(), val.Len())
		iter := val.MapRange()
		for iter.Next() {
			m.SetMapIndex(iter.Key(), substituteRec(repl, iter.Value()))
		}
		cpy.Set(m)
	default:
		cpy.Set(val)
	}

	return cpy
}
