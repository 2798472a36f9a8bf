// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package browser

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/radmuffin/pizzaht/ht"
)

// attr returns the value of the attribute key of n or "".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// normalize collapses whitespace and brings s into NFC.
func normalize(s string) string {
	return ht.NormalizeWhitespace(norm.NFC.String(s))
}

// containsFold reports whether the normalized s contains the normalized
// sub, ignoring case.
func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(normalize(s)), strings.ToLower(normalize(sub)))
}

// neverRendered elements and their subtrees are hidden.
var neverRendered = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
	"title":    true,
}

// selfHidden reports whether n itself hides its subtree.
func selfHidden(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if neverRendered[n.Data] || hasAttr(n, "hidden") {
		return true
	}
	if n.Data == "input" && strings.EqualFold(attr(n, "type"), "hidden") {
		return true
	}
	if attr(n, "aria-hidden") == "true" {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(attr(n, "style")), " ", "")
	return strings.Contains(style, "display:none") ||
		strings.Contains(style, "visibility:hidden")
}

// isHidden reports whether n or one of its ancestors is hidden.
func isHidden(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if selfHidden(n) {
			return true
		}
	}
	return false
}

// Role returns the ARIA role of n: the first token of an explicit role
// attribute or the implicit role of the element.
func role(n *html.Node) string {
	if r := strings.Fields(attr(n, "role")); len(r) > 0 {
		return r[0]
	}
	switch n.Data {
	case "a", "area":
		if hasAttr(n, "href") {
			return "link"
		}
	case "button":
		return "button"
	case "input":
		switch strings.ToLower(attr(n, "type")) {
		case "button", "submit", "reset", "image":
			return "button"
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "range":
			return "slider"
		case "number":
			return "spinbutton"
		case "hidden":
			return ""
		case "search":
			if hasAttr(n, "list") {
				return "combobox"
			}
			return "searchbox"
		default:
			if hasAttr(n, "list") {
				return "combobox"
			}
			return "textbox"
		}
	case "textarea":
		return "textbox"
	case "select":
		if hasAttr(n, "multiple") || (attr(n, "size") != "" && attr(n, "size") != "1") {
			return "listbox"
		}
		return "combobox"
	case "option":
		return "option"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "img":
		if hasAttr(n, "alt") && attr(n, "alt") == "" {
			return "presentation"
		}
		return "img"
	case "svg":
		return "img"
	case "main":
		return "main"
	case "nav":
		return "navigation"
	case "header":
		return "banner"
	case "footer":
		return "contentinfo"
	case "aside":
		return "complementary"
	case "article":
		return "article"
	case "form":
		return "form"
	case "dialog":
		return "dialog"
	case "table":
		return "table"
	case "thead", "tbody", "tfoot":
		return "rowgroup"
	case "tr":
		return "row"
	case "td":
		return "cell"
	case "th":
		return "columnheader"
	case "ul", "ol", "menu":
		return "list"
	case "li":
		return "listitem"
	case "p":
		return "paragraph"
	case "hr":
		return "separator"
	}
	return ""
}

// nameFromContent lists the roles whose accessible name is computed
// from their content.
var nameFromContent = map[string]bool{
	"button":       true,
	"cell":         true,
	"checkbox":     true,
	"columnheader": true,
	"gridcell":     true,
	"heading":      true,
	"link":         true,
	"menuitem":     true,
	"option":       true,
	"radio":        true,
	"row":          true,
	"rowheader":    true,
	"switch":       true,
	"tab":          true,
	"tooltip":      true,
	"treeitem":     true,
}

// labelable elements can be named by a <label>.
var labelable = map[string]bool{
	"input":    true,
	"textarea": true,
	"select":   true,
	"button":   true,
	"meter":    true,
	"output":   true,
	"progress": true,
}

// accessibleName computes a simplified accessible name of n in the
// document rooted at doc.
func accessibleName(n, doc *html.Node) string {
	if name := labelledBy(n, doc); name != "" {
		return name
	}
	if l := normalize(attr(n, "aria-label")); l != "" {
		return l
	}

	switch n.Data {
	case "input":
		switch strings.ToLower(attr(n, "type")) {
		case "submit":
			if v := attr(n, "value"); v != "" {
				return normalize(v)
			}
			return "Submit"
		case "reset":
			if v := attr(n, "value"); v != "" {
				return normalize(v)
			}
			return "Reset"
		case "button":
			return normalize(attr(n, "value"))
		case "image":
			if alt := attr(n, "alt"); alt != "" {
				return normalize(alt)
			}
		}
		fallthrough
	case "textarea", "select":
		if l := labelText(n, doc); l != "" {
			return l
		}
		if t := normalize(attr(n, "title")); t != "" {
			return t
		}
		return normalize(attr(n, "placeholder"))
	case "img":
		if alt := normalize(attr(n, "alt")); alt != "" {
			return alt
		}
		return normalize(attr(n, "title"))
	}

	if labelable[n.Data] {
		if l := labelText(n, doc); l != "" {
			return l
		}
	}
	if nameFromContent[role(n)] {
		if c := contentName(n); c != "" {
			return c
		}
	}
	return normalize(attr(n, "title"))
}

// labelledBy concatenates the text of the elements referenced by the
// aria-labelledby attribute of n.
func labelledBy(n, doc *html.Node) string {
	ids := strings.Fields(attr(n, "aria-labelledby"))
	if len(ids) == 0 {
		return ""
	}
	var parts []string
	for _, id := range ids {
		if ref := elementByID(doc, id); ref != nil {
			parts = append(parts, contentName(ref))
		}
	}
	return normalize(strings.Join(parts, " "))
}

// labelText returns the text of the <label> elements associated with
// the control n: labels referencing its id and a wrapping label.
func labelText(n, doc *html.Node) string {
	var parts []string
	if id := attr(n, "id"); id != "" {
		walk(doc, func(e *html.Node) bool {
			if e.Type == html.ElementNode && e.Data == "label" && attr(e, "for") == id {
				parts = append(parts, contentNameExcept(e, n))
			}
			return true
		})
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "label" && !hasAttr(p, "for") {
			parts = append(parts, contentNameExcept(p, n))
			break
		}
	}
	return normalize(strings.Join(parts, " "))
}

func contentName(n *html.Node) string {
	return contentNameExcept(n, nil)
}

// contentNameExcept computes the name from the content of n, leaving
// out the subtree skip. Block level elements are separated by spaces.
func contentNameExcept(n, skip *html.Node) string {
	buf := &strings.Builder{}
	var rec func(*html.Node)
	rec = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			buf.WriteString(c.Data)
			return
		case html.ElementNode:
		default:
			return
		}
		if c == skip || selfHidden(c) {
			return
		}
		if l := normalize(attr(c, "aria-label")); l != "" && c != n {
			buf.WriteString(" " + l + " ")
			return
		}
		switch c.Data {
		case "img":
			buf.WriteString(" " + attr(c, "alt") + " ")
			return
		case "input", "textarea", "select":
			return
		case "br":
			buf.WriteString(" ")
			return
		}
		block := !ht.IsInline(c.Data)
		if block {
			buf.WriteString(" ")
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			rec(k)
		}
		if block {
			buf.WriteString(" ")
		}
	}
	for k := n.FirstChild; k != nil; k = k.NextSibling {
		rec(k)
	}
	return normalize(buf.String())
}

// elementByID returns the first element below doc with the given id.
func elementByID(doc *html.Node, id string) *html.Node {
	var found *html.Node
	walk(doc, func(e *html.Node) bool {
		if found != nil {
			return false
		}
		if e.Type == html.ElementNode && attr(e, "id") == id {
			found = e
			return false
		}
		return true
	})
	return found
}

// walk calls fn for n and its descendants in document order. Children
// of a node are not visited if fn returns false for it.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
