// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// html.go contains checks on a HTML body and text content helpers.

package ht

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

func init() {
	RegisterCheck(&HTMLTag{})
}

// ----------------------------------------------------------------------------
// HTMLTag

// HTMLTag checks for the existens of HTML elements selected by CSS selectors.
type HTMLTag struct {
	// Selector is the CSS selector of the HTML elements.
	Selector string `yaml:"selector"`

	// Count determines the number of occurrences to check for:
	//     < 0: no occurrence
	//    == 0: one ore more occurrences
	//     > 0: exactly that many occurrences
	Count int `yaml:"count,omitempty" json:",omitempty"`

	sel cascadia.Selector
}

// Execute implements Check's Execute method.
func (c *HTMLTag) Execute(t *Test) error {
	if c.sel == nil {
		if err := c.Prepare(); err != nil {
			return err
		}
	}
	if t.Response.BodyErr != nil {
		return ErrBadBody
	}

	doc, err := html.Parse(t.Response.Body())
	if err != nil {
		return err
	}

	n := len(c.sel.MatchAll(doc))
	switch {
	case c.Count < 0 && n > 0:
		return ErrFoundForbidden
	case c.Count == 0 && n == 0:
		return ErrNotFound
	case c.Count > 0 && n != c.Count:
		return WrongCount{Got: n, Want: c.Count}
	}

	return nil
}

// Prepare implements Check's Prepare method.
func (c *HTMLTag) Prepare() (err error) {
	c.sel, err = cascadia.Compile(c.Selector)
	if err != nil {
		c.sel = nil
		return MalformedCheck{Err: err}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Text content

// TextContent returns the full text content of n. With raw processing the
// unprocessed content is returned like the DOM textContent property does.
// If raw==false then block elements are separated by whitespace and
// whitespace is normalized.
func TextContent(n *html.Node, raw bool) string {
	buf := &strings.Builder{}
	textContentRec(buf, n, raw)
	if raw {
		return buf.String()
	}
	return NormalizeWhitespace(buf.String())
}

// NormalizeWhitespace replaces newlines and tabs with spaces, collapses
// multiple spaces to one and trims s on both ends from spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// inlineElement contains the inline span HTML tags. Taken from
// https://developer.mozilla.org/de/docs/Web/HTML/Inline_elemente
var inlineElement = map[string]bool{
	"b":        true,
	"big":      true,
	"i":        true,
	"small":    true,
	"tt":       true,
	"abbr":     true,
	"acronym":  true,
	"cite":     true,
	"code":     true,
	"dfn":      true,
	"em":       true,
	"kbd":      true,
	"strong":   true,
	"samp":     true,
	"var":      true,
	"a":        true,
	"bdo":      true,
	"br":       true,
	"img":      true,
	"map":      true,
	"object":   true,
	"q":        true,
	"span":     true,
	"sub":      true,
	"sup":      true,
	"button":   true,
	"input":    true,
	"label":    true,
	"select":   true,
	"textarea": true,
}

// IsInline reports whether tag is an inline element.
func IsInline(tag string) bool {
	return inlineElement[tag]
}

// textContentRec writes the text content of n to buf. Script and style
// content is never text. If raw == false then content of block elements
// is surrounded by additional newlines.
func textContentRec(buf *strings.Builder, n *html.Node, raw bool) {
	if n == nil {
		return
	}
	switch n.Type {
	case html.TextNode:
		buf.WriteString(n.Data)
	case html.ElementNode, html.DocumentNode:
		if n.Data == "script" || n.Data == "style" || n.Data == "template" {
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			block := !raw && child.Type == html.ElementNode && !inlineElement[child.Data]
			if block {
				buf.WriteByte('\n')
			}
			textContentRec(buf, child, raw)
			if block {
				buf.WriteByte('\n')
			}
		}
	}
}
