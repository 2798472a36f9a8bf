// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package browser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/radmuffin/pizzaht/ht"
)

type locatorKind int

const (
	cssLocator locatorKind = iota
	roleLocator
	textLocator
	placeholderLocator
	labelLocator
)

// Locator describes how to find elements on a page. Locators are
// resolved against an HTML snapshot of the page. A chained locator
// searches inside the elements found by its parent.
//
// Role, Text, Placeholder and Label locators match case-insensitive
// substrings after whitespace normalization and never match hidden
// elements. CSS locators match everything the selector selects.
type Locator struct {
	parent  *Locator
	kind    locatorKind
	role    string
	value   string
	hasText string
	hasRe   *regexp.Regexp
}

// CSS locates elements by a CSS selector.
func CSS(selector string) Locator {
	return Locator{kind: cssLocator, value: selector}
}

// Role locates elements by their ARIA role. A non-empty name restricts
// the match to elements whose accessible name contains name.
func Role(role, name string) Locator {
	return Locator{kind: roleLocator, role: role, value: name}
}

// Text locates the innermost elements whose text contains text.
func Text(text string) Locator {
	return Locator{kind: textLocator, value: text}
}

// Placeholder locates input elements by their placeholder.
func Placeholder(text string) Locator {
	return Locator{kind: placeholderLocator, value: text}
}

// Label locates elements by the text of their label, aria-label
// or aria-labelledby.
func Label(text string) Locator {
	return Locator{kind: labelLocator, value: text}
}

func (l Locator) chain(child Locator) Locator {
	child.parent = &l
	return child
}

// CSS locates elements matching selector inside the elements of l.
func (l Locator) CSS(selector string) Locator { return l.chain(CSS(selector)) }

// Role is like the package level Role but searches inside l.
func (l Locator) Role(role, name string) Locator { return l.chain(Role(role, name)) }

// Text is like the package level Text but searches inside l.
func (l Locator) Text(text string) Locator { return l.chain(Text(text)) }

// Placeholder is like the package level Placeholder but searches inside l.
func (l Locator) Placeholder(text string) Locator { return l.chain(Placeholder(text)) }

// Label is like the package level Label but searches inside l.
func (l Locator) Label(text string) Locator { return l.chain(Label(text)) }

// HasText narrows l to elements whose text content contains text,
// ignoring case.
func (l Locator) HasText(text string) Locator {
	l.hasText = text
	return l
}

// HasTextMatching narrows l to elements whose whitespace normalized
// text content matches re.
func (l Locator) HasTextMatching(re *regexp.Regexp) Locator {
	l.hasRe = re
	return l
}

// String renders l in a selector-like notation.
func (l Locator) String() string {
	s := ""
	switch l.kind {
	case cssLocator:
		s = "css=" + l.value
	case roleLocator:
		s = "role=" + l.role
		if l.value != "" {
			s += fmt.Sprintf("[name=%q]", l.value)
		}
	case textLocator:
		s = fmt.Sprintf("text=%q", l.value)
	case placeholderLocator:
		s = fmt.Sprintf("placeholder=%q", l.value)
	case labelLocator:
		s = fmt.Sprintf("label=%q", l.value)
	}
	if l.hasText != "" {
		s += fmt.Sprintf(" >> has-text=%q", l.hasText)
	}
	if l.hasRe != nil {
		s += fmt.Sprintf(" >> has-text=/%s/", l.hasRe)
	}
	if l.parent != nil {
		s = l.parent.String() + " >> " + s
	}
	return s
}

// Resolve returns all elements in doc located by l in document order.
func (l Locator) Resolve(doc *html.Node) ([]*html.Node, error) {
	scopes := []*html.Node{doc}
	if l.parent != nil {
		var err error
		scopes, err = l.parent.Resolve(doc)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[*html.Node]bool)
	found := []*html.Node{}
	for _, scope := range scopes {
		nodes, err := l.match(scope, doc)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if (n == scope && scope != doc) || seen[n] {
				continue
			}
			seen[n] = true
			if l.keep(n) {
				found = append(found, n)
			}
		}
	}
	return found, nil
}

func (l Locator) keep(n *html.Node) bool {
	if l.hasText == "" && l.hasRe == nil {
		return true
	}
	text := normalize(ht.TextContent(n, true))
	if l.hasText != "" && !containsFold(text, l.hasText) {
		return false
	}
	if l.hasRe != nil && !l.hasRe.MatchString(text) {
		return false
	}
	return true
}

func (l Locator) match(scope, doc *html.Node) ([]*html.Node, error) {
	switch l.kind {
	case cssLocator:
		sel, err := cascadia.Compile(l.value)
		if err != nil {
			return nil, errors.Wrapf(err, "bad selector %q", l.value)
		}
		return sel.MatchAll(scope), nil
	case roleLocator:
		return visibleElements(scope, func(n *html.Node) bool {
			return role(n) == l.role &&
				(l.value == "" || containsFold(accessibleName(n, doc), l.value))
		}), nil
	case placeholderLocator:
		return visibleElements(scope, func(n *html.Node) bool {
			return (n.Data == "input" || n.Data == "textarea") &&
				hasAttr(n, "placeholder") &&
				containsFold(attr(n, "placeholder"), l.value)
		}), nil
	case labelLocator:
		return visibleElements(scope, func(n *html.Node) bool {
			return containsFold(labelName(n, doc), l.value)
		}), nil
	case textLocator:
		return innermost(visibleElements(scope, func(n *html.Node) bool {
			return n.Data != "html" && n.Data != "body" &&
				containsFold(ht.TextContent(n, true), l.value)
		})), nil
	}
	return nil, fmt.Errorf("unknown locator kind %d", l.kind)
}

// labelName returns the label of n or "" if n has none.
func labelName(n, doc *html.Node) string {
	if name := labelledBy(n, doc); name != "" {
		return name
	}
	if l := normalize(attr(n, "aria-label")); l != "" {
		return l
	}
	if labelable[n.Data] {
		return labelText(n, doc)
	}
	return ""
}

// visibleElements returns the elements below root for which pred
// holds, skipping hidden subtrees.
func visibleElements(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var nodes []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.DocumentNode {
			return true
		}
		if n.Type != html.ElementNode || selfHidden(n) {
			return false
		}
		if pred(n) {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

// innermost drops every node which has another node of nodes as
// descendant. The order of nodes is retained.
func innermost(nodes []*html.Node) []*html.Node {
	inner := nodes[:0:0]
	for i, n := range nodes {
		outer := false
		for _, m := range nodes[i+1:] {
			if isAncestor(n, m) {
				outer = true
				break
			}
		}
		if !outer {
			inner = append(inner, n)
		}
	}
	return inner
}

func isAncestor(a, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

// CSSPath returns a CSS selector which selects exactly n in its document:
// the chain of tag names with their :nth-child positions starting at
// the root element.
func CSSPath(n *html.Node) string {
	var parts []string
	for ; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			parts = append(parts, n.Data)
			break
		}
		pos := 1
		for s := n.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode {
				pos++
			}
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", n.Data, pos))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}
