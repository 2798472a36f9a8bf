// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/radmuffin/pizzaht/ht"
)

// DefaultPoll is the interval in which a Session re-reads the page
// while waiting for elements or assertions.
var DefaultPoll = 100 * time.Millisecond

// Session is the state a step operates on.
type Session struct {
	Page    Page
	BaseURL string
	Poll    time.Duration
	Log     logrus.FieldLogger
}

// Step is a single action or assertion of a Scenario. Run must honor
// the deadline of ctx.
type Step interface {
	Run(ctx context.Context, s *Session) error
	String() string
}

// AssertionError is returned by steps whose expectation does not hold
// once the step timeout elapsed.
type AssertionError struct {
	Expect string
	Got    string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expect, e.Got)
}

// StrictError is returned if a locator which must select exactly one
// element selects several.
type StrictError struct {
	Locator Locator
	Count   int
}

func (e *StrictError) Error() string {
	return fmt.Sprintf("strict mode violation: %s resolved to %d elements", e.Locator, e.Count)
}

// poll calls check on fresh snapshots until it returns nil. It gives up
// once ctx is done, returning the last error of check. StrictErrors
// end polling immediately.
func (s *Session) poll(ctx context.Context, check func(doc *html.Node) error) error {
	interval := s.Poll
	if interval <= 0 {
		interval = DefaultPoll
	}
	var last error
	for {
		doc, err := Snapshot(ctx, s.Page)
		if err != nil {
			if ctx.Err() != nil && last != nil {
				return last
			}
			return err
		}
		last = check(doc)
		if last == nil {
			return nil
		}
		var strict *StrictError
		if errors.As(last, &strict) {
			return last
		}

		select {
		case <-ctx.Done():
			return last
		case <-time.After(interval):
		}
	}
}

// one waits until l resolves to exactly one visible element and
// returns its CSS path.
func (s *Session) one(ctx context.Context, l Locator) (string, error) {
	var path string
	err := s.poll(ctx, func(doc *html.Node) error {
		nodes, err := l.Resolve(doc)
		if err != nil {
			return err
		}
		switch {
		case len(nodes) > 1:
			return &StrictError{Locator: l, Count: len(nodes)}
		case len(nodes) == 0:
			return fmt.Errorf("timeout waiting for %s", l)
		case isHidden(nodes[0]):
			return fmt.Errorf("timeout waiting for %s to be visible", l)
		}
		path = CSSPath(nodes[0])
		return nil
	})
	return path, err
}

func (s *Session) log() logrus.FieldLogger {
	if s.Log == nil {
		return discard
	}
	return s.Log
}

// ----------------------------------------------------------------------------
// Actions

// Goto navigates to URL, which may be relative to the BaseURL.
type Goto struct {
	URL string
}

func (g Goto) String() string { return "goto " + g.URL }

// Run implements Step.
func (g Goto) Run(ctx context.Context, s *Session) error {
	target, err := resolveURL(s.BaseURL, g.URL)
	if err != nil {
		return err
	}
	s.log().Debugf("navigate to %s", target)
	return s.Page.Navigate(ctx, target)
}

func resolveURL(base, ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", errors.Wrapf(err, "bad url %q", ref)
	}
	if r.IsAbs() || base == "" {
		return r.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "bad base url %q", base)
	}
	return b.ResolveReference(r).String(), nil
}

// Click clicks the single element located by Locator.
type Click struct {
	Locator Locator
}

func (c Click) String() string { return "click " + c.Locator.String() }

// Run implements Step.
func (c Click) Run(ctx context.Context, s *Session) error {
	path, err := s.one(ctx, c.Locator)
	if err != nil {
		return err
	}
	return s.Page.Click(ctx, path)
}

// Fill replaces the value of the single input located by Locator.
type Fill struct {
	Locator Locator
	Value   string
}

func (f Fill) String() string { return fmt.Sprintf("fill %s with %q", f.Locator, f.Value) }

// Run implements Step.
func (f Fill) Run(ctx context.Context, s *Session) error {
	path, err := s.one(ctx, f.Locator)
	if err != nil {
		return err
	}
	return s.Page.Type(ctx, path, f.Value)
}

// Press presses Key on the single element located by Locator.
type Press struct {
	Locator Locator
	Key     string
}

func (p Press) String() string { return fmt.Sprintf("press %s on %s", p.Key, p.Locator) }

// Run implements Step.
func (p Press) Run(ctx context.Context, s *Session) error {
	path, err := s.one(ctx, p.Locator)
	if err != nil {
		return err
	}
	return s.Page.Press(ctx, path, p.Key)
}

// SelectOption selects the option Value of the single select element
// located by Locator.
type SelectOption struct {
	Locator Locator
	Value   string
}

func (o SelectOption) String() string { return fmt.Sprintf("select %q in %s", o.Value, o.Locator) }

// Run implements Step.
func (o SelectOption) Run(ctx context.Context, s *Session) error {
	path, err := s.one(ctx, o.Locator)
	if err != nil {
		return err
	}
	return s.Page.Select(ctx, path, o.Value)
}

// ----------------------------------------------------------------------------
// Assertions

// ExpectText asserts that the single element located by Locator
// contains Text. Both texts are compared after whitespace normalization
// and Unicode NFC normalization; case matters.
type ExpectText struct {
	Locator Locator
	Text    string
}

func (e ExpectText) String() string { return fmt.Sprintf("expect %s to contain %q", e.Locator, e.Text) }

// Run implements Step.
func (e ExpectText) Run(ctx context.Context, s *Session) error {
	want := normalize(e.Text)
	return s.poll(ctx, func(doc *html.Node) error {
		nodes, err := e.Locator.Resolve(doc)
		if err != nil {
			return err
		}
		switch len(nodes) {
		case 0:
			return &AssertionError{Expect: e.String(), Got: "no element"}
		case 1:
		default:
			return &StrictError{Locator: e.Locator, Count: len(nodes)}
		}
		got := normalize(ht.TextContent(nodes[0], true))
		if !strings.Contains(got, want) {
			return &AssertionError{Expect: e.String(), Got: fmt.Sprintf("%q", got)}
		}
		return nil
	})
}

// ExpectVisible asserts that Locator locates a single visible element.
type ExpectVisible struct {
	Locator Locator
}

func (e ExpectVisible) String() string { return fmt.Sprintf("expect %s to be visible", e.Locator) }

// Run implements Step.
func (e ExpectVisible) Run(ctx context.Context, s *Session) error {
	return s.poll(ctx, func(doc *html.Node) error {
		nodes, err := e.Locator.Resolve(doc)
		if err != nil {
			return err
		}
		switch len(nodes) {
		case 0:
			return &AssertionError{Expect: e.String(), Got: "no element"}
		case 1:
		default:
			return &StrictError{Locator: e.Locator, Count: len(nodes)}
		}
		if isHidden(nodes[0]) {
			return &AssertionError{Expect: e.String(), Got: "hidden element"}
		}
		return nil
	})
}

// ExpectTitle asserts that the document title equals Title.
type ExpectTitle struct {
	Title string
}

func (e ExpectTitle) String() string { return fmt.Sprintf("expect title %q", e.Title) }

// Run implements Step.
func (e ExpectTitle) Run(ctx context.Context, s *Session) error {
	return s.poll(ctx, func(*html.Node) error {
		title, err := s.Page.Title(ctx)
		if err != nil {
			return err
		}
		if title != e.Title {
			return &AssertionError{Expect: e.String(), Got: fmt.Sprintf("%q", title)}
		}
		return nil
	})
}
