// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// json.go contains checks for a JSON body.

package ht

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

func init() {
	RegisterCheck(&JSON{})
	RegisterCheck(&JSONMatch{})
}

// ----------------------------------------------------------------------------
// JSON

// JSON allow to check an element in a JSON document against a Condition.
//
// The element of the JSON document is selected by its "path". Example:
// In the JSON document
//     {
//       "foo": 5,
//       "bar": [ 1, "qux" ,3 ],
//       "waz": true,
//       "maa": { "muh": 3.141, "mee": 0 },
//       "nil": null
//     }
// the following table shows several element paths and their value:
//     foo       5
//     bar       [ 1, "qux" ,3 ]
//     bar.0     1
//     bar.1     "qux"
//     $.bar[2]  3
//     maa.muh   3.141
//     nil       null
// Note that the value for "bar" is the raw string and contains the original
// white space characters as present in the original JSON document.
type JSON struct {
	// Element in the JSON document to apply the Condition to.
	// An empty value result in just a check for 'wellformedness' of
	// the JSON.
	Element string `yaml:"element"`

	// Condition to apply to the value selected by Element.
	// If Condition is the zero value then only the existence of
	// a JSON element selected by Element is checked.
	// Note that Condition is checked against the actual raw value of
	// the JSON document and will contain quotation marks for strings.
	Condition `yaml:",inline"`

	// Sep is the separator in Element when checking the Condition.
	// A zero value is equivalent to "."
	Sep string `yaml:"sep,omitempty" json:",omitempty"`
}

// Prepare implements Check's Prepare method.
func (c *JSON) Prepare() error {
	return c.Compile()
}

// Execute implements Check's Execute method.
func (c *JSON) Execute(t *Test) error {
	if t.Response.BodyErr != nil {
		return ErrBadBody
	}

	raw, err := findJSONelement([]byte(t.Response.BodyStr), c.Element, c.sep())
	if err != nil {
		return err
	}

	// Check for wellformed JSON.
	var v interface{}
	err = json.Unmarshal(raw, &v)
	if err != nil {
		return err
	}

	return c.Fullfilled(string(raw))
}

func (c *JSON) sep() string {
	if c.Sep != "" {
		return c.Sep
	}
	return "."
}

// normalizeElement rewrites the JSONPath-like forms "$.a.b", ".a.b" and
// "a[0].b" into the plain element path "a.0.b".
func normalizeElement(element, sep string) string {
	element = strings.TrimPrefix(element, "$")
	element = strings.TrimPrefix(element, sep)
	if strings.ContainsAny(element, "[]") {
		element = strings.NewReplacer("[", sep, "]", "").Replace(element)
		element = strings.TrimPrefix(element, sep)
	}
	return element
}

// findJSONelement returns the raw JSON value of element in data.
func findJSONelement(data []byte, element, sep string) ([]byte, error) {
	element = normalizeElement(element, sep)
	if element == "" {
		return bytes.TrimSpace(data), nil
	}
	path := strings.Split(element, sep)
	for e, elem := range path {
		if elem == "" {
			continue
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			return nil, fmt.Errorf("element %s not found",
				strings.Join(path[:e+1], sep))
		}
		switch data[0] {
		case '[':
			v := []json.RawMessage{}
			err := json.Unmarshal(data, &v)
			if err != nil {
				return nil, err
			}
			i, err := strconv.Atoi(elem)
			if err != nil {
				return nil, fmt.Errorf("%s is not a valid index", elem)
			}
			if i < 0 || i >= len(v) {
				return nil, fmt.Errorf("no index %d in array %s of len %d",
					i, strings.Join(path[:e], sep), len(v))
			}
			data = []byte(v[i])
		case '{':
			v := map[string]json.RawMessage{}
			err := json.Unmarshal(data, &v)
			if err != nil {
				return nil, err
			}
			raw, ok := v[elem]
			if !ok {
				return nil, fmt.Errorf("element %s not found",
					strings.Join(path[:e+1], sep))
			}
			data = []byte(raw)
		default:
			return nil, fmt.Errorf("element %s not found",
				strings.Join(path[:e+1], sep))
		}
	}
	return bytes.TrimSpace(data), nil
}

// ----------------------------------------------------------------------------
// JSONMatch

// JSONMatch checks that the JSON document (or the element selected by
// Element) matches the expected value Expect.
//
// Objects in Expect match partially: every member of an expected object
// must be present and match in the actual object while additional members
// of the actual object are ignored. Arrays must have the same length and
// match element wise. Numbers are compared by value, all other values
// must be equal. The expectation
//     {"storeId": "4", "items": [{"menuId": 1}, {"menuId": 2}]}
// matches
//     {"storeId": "4", "franchiseId": 2,
//      "items": [{"menuId": 1, "price": 0.0038}, {"menuId": 2, "price": 0.0042}]}
type JSONMatch struct {
	// Element in the JSON document to match. Empty selects the whole
	// document.
	Element string `yaml:"element,omitempty" json:",omitempty"`

	// Expect is the expected value. A string is parsed as a JSON
	// document, any other value is used as is.
	Expect interface{} `yaml:"expect"`

	want interface{}
}

// Prepare implements Check's Prepare method.
func (c *JSONMatch) Prepare() error {
	var raw []byte
	switch e := c.Expect.(type) {
	case nil:
		return MalformedCheck{Err: fmt.Errorf("missing expectation")}
	case string:
		raw = []byte(e)
	case []byte:
		raw = e
	default:
		var err error
		raw, err = json.Marshal(e)
		if err != nil {
			return MalformedCheck{Err: err}
		}
	}
	c.want = nil
	if err := json.Unmarshal(raw, &c.want); err != nil {
		return MalformedCheck{Err: err}
	}
	return nil
}

// Execute implements Check's Execute method.
func (c *JSONMatch) Execute(t *Test) error {
	if c.want == nil {
		if err := c.Prepare(); err != nil {
			return err
		}
	}
	if t.Response.BodyErr != nil {
		return ErrBadBody
	}

	raw, err := findJSONelement([]byte(t.Response.BodyStr), c.Element, ".")
	if err != nil {
		return err
	}
	var got interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		return err
	}

	return MatchJSON(normalizeElement(c.Element, "."), got, c.want)
}

// MatchJSON reports the first deviation of got from the expected value
// want. Both must be values as produced by encoding/json.Unmarshal
// into an interface{}.
func MatchJSON(element string, got, want interface{}) error {
	return matchValue(element, reflect.ValueOf(got), reflect.ValueOf(want))
}

func matchValue(element string, got, want reflect.Value) error {
	for got.Kind() == reflect.Interface {
		got = got.Elem()
	}
	for want.Kind() == reflect.Interface {
		want = want.Elem()
	}
	if !want.IsValid() {
		if got.IsValid() {
			return fmt.Errorf("element %s: got %s, want null",
				elementName(element), jsonKind(got))
		}
		return nil
	}
	if !got.IsValid() {
		return fmt.Errorf("element %s: got null, want %s",
			elementName(element), jsonKind(want))
	}

	switch want.Kind() {
	case reflect.Map:
		return matchObject(element, got, want)
	case reflect.Slice:
		return matchArray(element, got, want)
	}

	if got.Kind() != want.Kind() {
		return fmt.Errorf("element %s: got %s, want %s",
			elementName(element), jsonKind(got), jsonKind(want))
	}
	if !reflect.DeepEqual(got.Interface(), want.Interface()) {
		return fmt.Errorf("element %s: got %v, want %v",
			elementName(element), got.Interface(), want.Interface())
	}
	return nil
}

func matchObject(element string, got, want reflect.Value) error {
	if got.Kind() != reflect.Map {
		return fmt.Errorf("element %s: got %s, want object",
			elementName(element), jsonKind(got))
	}
	keys := make([]string, 0, want.Len())
	for _, k := range want.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	for _, key := range keys {
		child := joinElement(element, key)
		gv := got.MapIndex(reflect.ValueOf(key))
		if !gv.IsValid() {
			return fmt.Errorf("element %s: missing", child)
		}
		if err := matchValue(child, gv, want.MapIndex(reflect.ValueOf(key))); err != nil {
			return err
		}
	}
	return nil
}

func matchArray(element string, got, want reflect.Value) error {
	if got.Kind() != reflect.Slice {
		return fmt.Errorf("element %s: got %s, want array",
			elementName(element), jsonKind(got))
	}
	if got.Len() != want.Len() {
		return fmt.Errorf("element %s: got %d array elements, want %d",
			elementName(element), got.Len(), want.Len())
	}
	for i := 0; i < want.Len(); i++ {
		child := joinElement(element, strconv.Itoa(i))
		if err := matchValue(child, got.Index(i), want.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func joinElement(element, child string) string {
	if element == "" {
		return child
	}
	return element + "." + child
}

func elementName(element string) string {
	if element == "" {
		return "(document)"
	}
	return element
}

func jsonKind(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Map:
		return "object"
	case reflect.Slice:
		return "array"
	case reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "bool"
	}
	return v.Kind().String()
}
