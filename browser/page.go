// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package browser

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/radmuffin/pizzaht/mock"
)

// Page is a single browser tab. Elements are addressed by CSS selectors
// which select exactly one element, typically produced by CSSPath.
type Page interface {
	// Navigate loads url and waits until the document is loaded.
	Navigate(ctx context.Context, url string) error

	// Click clicks the element.
	Click(ctx context.Context, path string) error

	// Type replaces the value of the input element with text.
	Type(ctx context.Context, path, text string) error

	// Press focuses the element and presses the named key
	// like "Enter" or "Tab".
	Press(ctx context.Context, path, key string) error

	// Select selects the option with the given value of the select element.
	Select(ctx context.Context, path, value string) error

	// HTML returns the serialized current DOM.
	HTML(ctx context.Context) (string, error)

	// Title returns the document title.
	Title(ctx context.Context) (string, error)

	// Close releases the page.
	Close() error
}

// Opener opens new pages. Every request the page issues is offered to
// the Router first: requests without a matching route go to the network,
// requests failing the router's validation fail.
type Opener interface {
	Open(ctx context.Context, rt *mock.Router) (Page, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, rt *mock.Router) (Page, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, rt *mock.Router) (Page, error) {
	return f(ctx, rt)
}

// Snapshot parses the current DOM of p.
func Snapshot(ctx context.Context, p Page) (*html.Node, error) {
	s, err := p.HTML(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read page")
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse page")
	}
	return doc, nil
}
