// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ht

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"sort"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// Extractor allows to extract information from an executed Test.
type Extractor interface {
	Extract(t *Test) (string, error)
}

// ----------------------------------------------------------------------------
// Extractor Registry

// ExtractorRegistry keeps track of all known Extractors.
var ExtractorRegistry = make(map[string]reflect.Type)

// RegisterExtractor registers the extratcor type. Once an extractor is
// registered it may be unmarshaled from its name and marshaled data.
func RegisterExtractor(ex Extractor) {
	name := NameOf(ex)
	typ := reflect.TypeOf(ex)
	if _, ok := ExtractorRegistry[name]; ok {
		panic(fmt.Sprintf("Extractor with name %q already registered.", name))
	}
	ExtractorRegistry[name] = typ
}

func init() {
	RegisterExtractor(JSONExtractor{})
	RegisterExtractor(HeaderExtractor{})
	RegisterExtractor(BodyExtractor{})
	RegisterExtractor(HTMLExtractor{})
}

// ----------------------------------------------------------------------------
// ExtractorMap

// ExtractorMap is a map of Extractors with the sole purpose of
// attaching (un)marshaling methods.
type ExtractorMap map[string]Extractor

// MarshalJSON produces a JSON object of the Extractors in em.
// Each Extractor is serialized in the form
//     "name": {"Extractor": "NameOfExtractorAsRegistered", "Field1": Value1, ... }
func (em ExtractorMap) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(em))
	for name := range em {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := &bytes.Buffer{}
	buf.WriteRune('{')
	for i, name := range names {
		ex := em[name]
		raw, err := json.Marshal(ex)
		if err != nil {
			return nil, err
		}
		qname, _ := json.Marshal(name)
		buf.Write(qname)
		buf.WriteString(`:{"Extractor":"`)
		buf.WriteString(NameOf(ex))
		buf.WriteRune('"')
		if string(raw) != "{}" {
			buf.WriteString(",")
			buf.Write(raw[1 : len(raw)-1])
		}
		buf.WriteRune('}')
		if i < len(names)-1 {
			buf.WriteString(",")
		}
	}
	buf.WriteRune('}')

	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a mapping of variable names to extractors:
//     token:
//       extractor: JSONExtractor
//       element: $.token
func (em *ExtractorMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("ht: line %d: extractors must be a mapping", node.Line)
	}
	m := make(ExtractorMap, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		varname := node.Content[i].Value
		name, fields, err := splitTypeKey(node.Content[i+1], "extractor")
		if err != nil {
			return err
		}
		typ, ok := ExtractorRegistry[name]
		if !ok {
			return fmt.Errorf("ht: no such extractor %s", name)
		}
		if typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		extractor := reflect.New(typ)
		if err := fields.Decode(extractor.Interface()); err != nil {
			return fmt.Errorf("ht: problems constructing extractor for %s: %s",
				varname, err)
		}
		m[varname] = extractor.Elem().Interface().(Extractor)
	}
	*em = m
	return nil
}

// ----------------------------------------------------------------------------
// JSONExtractor

// JSONExtractor extracts a single value from a JSON response body.
// Strings are returned unquoted, all other values as their raw JSON.
type JSONExtractor struct {
	// Element is the path of the value, see JSON check for details.
	// The JSONPath forms $.token and $.items[0].id are accepted too.
	Element string `yaml:"element"`
}

// Extract implements Extractor's Extract method.
func (e JSONExtractor) Extract(t *Test) (string, error) {
	if t.Response.BodyErr != nil {
		return "", ErrBadBody
	}
	raw, err := findJSONelement([]byte(t.Response.BodyStr), e.Element, ".")
	if err != nil {
		return "", err
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	if v == nil {
		return "", fmt.Errorf("element %s is null", e.Element)
	}
	return string(raw), nil
}

// ----------------------------------------------------------------------------
// HeaderExtractor

// HeaderExtractor extracts the first value of a response header.
type HeaderExtractor struct {
	Header string `yaml:"header"`
}

// Extract implements Extractor's Extract method.
func (e HeaderExtractor) Extract(t *Test) (string, error) {
	if t.Response.Response == nil {
		return "", ErrBadBody
	}
	values := t.Response.Response.Header[http.CanonicalHeaderKey(e.Header)]
	if len(values) == 0 {
		return "", fmt.Errorf("header %s not received", e.Header)
	}
	return values[0], nil
}

// ----------------------------------------------------------------------------
// HTMLExtractor

// HTMLExtractor allows to extract data from an executed Test.
// It supports extracting HTML attribute values and HTML text node values.
// Examples for CSRF token in the HTML:
//    <meta name="_csrf" content="18f0ca3f-a50a-437f-9bd1-15c0caa28413" />
//    <input type="hidden" name="_csrf" value="18f0ca3f-a50a-437f-9bd1-15c0caa28413"/>
type HTMLExtractor struct {
	// Selector is the CSS selector of an element, e.g.
	//     head meta[name="_csrf"]   or
	//     form#login input[name="tok"]
	//     div.token span
	Selector string `yaml:"selector"`

	// Attribute is the name of the attribute from which the
	// value should be extracted.  The magic value "~text~" refers to the
	// text content of the element. E.g. in the examples above the following
	// should be sensible:
	//     content
	//     value
	//     ~text~
	Attribute string `yaml:"attribute"`
}

// Extract implements Extractor's Extract method.
func (e HTMLExtractor) Extract(t *Test) (string, error) {
	if e.Selector == "" {
		return "", errors.New("missing selector")
	}
	if t.Response.BodyErr != nil {
		return "", ErrBadBody
	}
	sel, err := cascadia.Compile(e.Selector)
	if err != nil {
		return "", MalformedCheck{Err: err}
	}
	doc, err := html.Parse(t.Response.Body())
	if err != nil {
		return "", err
	}

	node := sel.MatchFirst(doc)
	if node == nil {
		return "", fmt.Errorf("could not find node '%s'", e.Selector)
	}
	if e.Attribute == "~text~" {
		return TextContent(node, false), nil
	}
	for _, a := range node.Attr {
		if a.Key == e.Attribute {
			return a.Val, nil
		}
	}

	return "", ErrNotFound
}

// ----------------------------------------------------------------------------
// BodyExtractor

// BodyExtractor extracts a value from the uninterpreted response body.
type BodyExtractor struct {
	// Regexp is the regular expression to look for in the body.
	Regexp string `yaml:"regexp"`

	// SubMatch selects which submatch (capturing group) of Regexp shall
	// be returned. A 0 value indicates the whole match.
	Submatch int `yaml:"submatch,omitempty" json:",omitempty"`
}

// Extract implements Extractor's Extract method.
func (e BodyExtractor) Extract(t *Test) (string, error) {
	if t.Response.BodyErr != nil {
		return "", ErrBadBody
	}

	re, err := regexp.Compile(e.Regexp)
	if err != nil {
		return "", err
	}

	if e.Submatch < 0 {
		return "", errors.New("BodyExtractor.Submatch < 0")
	}

	submatches := re.FindStringSubmatch(t.Response.BodyStr)
	if submatches == nil {
		return "", ErrNotFound
	}
	if len(submatches) > e.Submatch {
		return submatches[e.Submatch], nil
	}

	return "", fmt.Errorf("got only %d submatches in %q", len(submatches)-1, submatches[0])
}
