// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ht

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Check is a single check performed on a Response.
type Check interface {
	// Execute executes the check.
	Execute(*Test) error
}

// Preparable is the type a Check may implement to signal that it needs some
// preparation work to be done before the HTTP request is made.
type Preparable interface {
	// Prepare is called to prepare the check, e.g. to compile
	// regular expressions or that like.
	Prepare() error
}

// NameOf returns the name of the type of inst.
func NameOf(inst interface{}) string {
	typ := reflect.TypeOf(inst)
	if typ == nil {
		return "<nil>"
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ.Name()
}

// ----------------------------------------------------------------------------
// Check Registry

// CheckRegistry keeps track of all known Checks.
var CheckRegistry = make(map[string]reflect.Type)

// RegisterCheck registers the check. Once a check is registered it may be
// unmarshaled from its name and marshaled data.
func RegisterCheck(check Check) {
	name := NameOf(check)
	typ := reflect.TypeOf(check)
	if _, ok := CheckRegistry[name]; ok {
		panic(fmt.Sprintf("Check with name %q already registered.", name))
	}
	CheckRegistry[name] = typ
}

// ----------------------------------------------------------------------------
// CheckList

// CheckList is a slice of checks with the sole purpose of
// attaching (un)marshaling methods.
type CheckList []Check

// MarshalJSON produces a JSON arry of the checks in cl.
// Each check is serialized in the form
//     { "Check": "NameOfCheckAsRegistered",
//         "Field1OfCheck": "Value1", "Field2": "Value2", ... }
func (cl CheckList) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteRune('[')
	for i, check := range cl {
		raw, err := json.Marshal(check)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`{"Check":"`)
		buf.WriteString(NameOf(check))
		buf.WriteByte('"')
		if string(raw) != "{}" && string(raw) != "null" {
			buf.WriteRune(',')
			buf.Write(raw[1 : len(raw)-1])
		}
		buf.WriteRune('}')
		if i < len(cl)-1 {
			buf.WriteString(", ")
		}
	}
	buf.WriteRune(']')

	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a list of checks. Each check is a mapping
// naming the check type in the "check" key, the remaining keys are the
// fields of the check:
//     - check: StatusCode
//       expect: 200
//     - check: JSON
//       element: token
//       prefix: '"ey'
// The JSON check sees the raw value, so strings keep their quotes.
func (cl *CheckList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("ht: line %d: checks must be a list", node.Line)
	}

	list := make(CheckList, 0, len(node.Content))
	for i, item := range node.Content {
		name, fields, err := splitTypeKey(item, "check")
		if err != nil {
			return err
		}
		typ, ok := CheckRegistry[name]
		if !ok {
			return noSuchCheckError(name)
		}
		if typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		rcheck := reflect.New(typ)
		if err := fields.Decode(rcheck.Interface()); err != nil {
			return fmt.Errorf("ht: problems constructing check %d %s: %s",
				i+1, name, err)
		}
		list = append(list, rcheck.Interface().(Check))
	}
	*cl = list
	return nil
}

// splitTypeKey splits the mapping node into the value of key and a
// mapping node of the remaining fields.
func splitTypeKey(node *yaml.Node, key string) (string, *yaml.Node, error) {
	if node.Kind != yaml.MappingNode {
		return "", nil, fmt.Errorf("ht: line %d: expected a mapping with a %q key",
			node.Line, key)
	}
	name := ""
	rest := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Line: node.Line}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if strings.EqualFold(k.Value, key) {
			name = v.Value
			continue
		}
		rest.Content = append(rest.Content, k, v)
	}
	if name == "" {
		return "", nil, fmt.Errorf("ht: line %d: missing %q key", node.Line, key)
	}
	return name, rest, nil
}

// ----------------------------------------------------------------------------
// Handling misspelled checks

func noSuchCheckError(name string) error {
	checkNames := make([]string, 0, len(CheckRegistry))
	for cn := range CheckRegistry {
		checkNames = append(checkNames, cn)
	}
	if suggestions := possibleNames(name, checkNames); len(suggestions) > 0 {
		return fmt.Errorf("ht: no such check %s (did you mean %s?)", name,
			strings.Join(suggestions, ", "))
	}
	return fmt.Errorf("ht: no such check %s", name)
}

// possibleNames returns a list of actual existing names from valid which
// are similar to orig. "Similar" in the sense of
// https://en.wikipedia.org/wiki/Damerau–Levenshtein_distance of the
// upper cased names being at most 2.
func possibleNames(orig string, valid []string) []string {
	ORIG := strings.ToUpper(orig)
	suggestions := []string{}
	for _, name := range valid {
		NAME := strings.ToUpper(name)
		if damerauLevenshtein(NAME, ORIG) <= 2 {
			suggestions = append(suggestions, name)
		}
	}
	sort.Strings(suggestions)

	return suggestions
}

// https://en.wikipedia.org/wiki/Damerau%E2%80%93Levenshtein_distance#Distance_with_adjacent_transpositions
func damerauLevenshtein(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	maxdist := len(a) + len(b)

	if len(a) == 0 {
		return len(b)
	} else if len(b) == 0 {
		return len(a)
	}

	d := make([][]int, len(a)+2)
	for i := range d {
		d[i] = make([]int, len(b)+2)
	}
	seen := make(map[rune]int)

	d[0][0] = maxdist
	for i := 0; i <= len(a); i++ {
		d[i+1][0] = maxdist
		d[i+1][1] = i
	}
	for j := 0; j <= len(b); j++ {
		d[0][j+1] = maxdist
		d[1][j+1] = j
	}

	for i := 1; i <= len(a); i++ {
		db := 0
		for j := 1; j <= len(b); j++ {
			k := seen[b[j-1]]
			l := db
			cost := 0
			if a[i-1] == b[j-1] {
				db = j
			} else {
				cost = 1
			}
			d[i+1][j+1] = minOf(
				d[i][j]+cost,              // substitution
				d[i+1][j]+1,               // insertion
				d[i][j+1]+1,               // deletion
				d[k][l]+(i-k-1)+1+(j-l-1), // transposition
			)
		}
		seen[a[i-1]] = i
	}

	return d[len(a)+1][len(b)+1]
}

func minOf(first int, rest ...int) int {
	m := first
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}
