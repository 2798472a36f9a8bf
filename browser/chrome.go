// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/radmuffin/pizzaht/mock"
)

// ChromeOpener opens pages in a locally installed Chrome or Chromium.
// Each page runs in its own browser process.
type ChromeOpener struct {
	// Headless starts the browser without a window.
	Headless bool

	// ExecPath is the path to the browser binary. Empty searches the
	// usual locations.
	ExecPath string

	// Log is the logger to use. Nil discards all output.
	Log logrus.FieldLogger
}

// Open implements Opener. All requests of the page are paused and
// offered to rt.
func (o ChromeOpener) Open(ctx context.Context, rt *mock.Router) (Page, error) {
	log := o.Log
	if log == nil {
		log = discard
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Debugf))

	p := &chromePage{
		ctx:    tabCtx,
		router: rt,
		log:    log,
		cancel: func() { cancelTab(); cancelAlloc() },
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)

	// The first Run starts the browser which lives as long as tabCtx.
	patterns := []*fetch.RequestPattern{{URLPattern: "*", RequestStage: fetch.RequestStageRequest}}
	stop := context.AfterFunc(ctx, p.cancel)
	err := chromedp.Run(tabCtx, fetch.Enable().WithPatterns(patterns))
	if !stop() || err != nil {
		p.cancel()
		if err == nil {
			err = ctx.Err()
		}
		return nil, errors.Wrap(err, "cannot start browser")
	}
	return p, nil
}

type chromePage struct {
	ctx    context.Context
	cancel func()
	router *mock.Router
	log    logrus.FieldLogger
}

// run executes actions in the tab of p until ctx is done.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

func (p *chromePage) onEvent(ev interface{}) {
	if paused, ok := ev.(*fetch.EventRequestPaused); ok {
		go p.intercept(paused)
	}
}

// intercept answers a paused request: mocked, continued or failed.
func (p *chromePage) intercept(ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(p.ctx)
	ctx := cdp.WithExecutor(p.ctx, c.Target)

	req, err := toHTTPRequest(ev.Request)
	if err != nil {
		p.log.Warnf("cannot convert request %s: %s", ev.Request.URL, err)
		p.answer(ctx, fetch.ContinueRequest(ev.RequestID))
		return
	}

	if req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != "" {
		// CORS preflight for a mocked route.
		if _, err := p.router.Lookup(req.Header.Get("Access-Control-Request-Method"), ev.Request.URL); err == nil {
			headers := corsHeaders(req, nil)
			headers = append(headers,
				&fetch.HeaderEntry{Name: "Access-Control-Allow-Methods", Value: "GET, POST, PUT, DELETE, OPTIONS"},
				&fetch.HeaderEntry{Name: "Access-Control-Allow-Headers", Value: "*, Authorization, Content-Type"},
			)
			p.answer(ctx, fetch.FulfillRequest(ev.RequestID, http.StatusNoContent).WithResponseHeaders(headers))
			return
		}
		p.answer(ctx, fetch.ContinueRequest(ev.RequestID))
		return
	}

	resp, err := p.router.Fulfill(req)
	switch {
	case err == mock.ErrNoRoute:
		p.answer(ctx, fetch.ContinueRequest(ev.RequestID))
	case err != nil:
		p.answer(ctx, fetch.FailRequest(ev.RequestID, network.ErrorReasonFailed))
	default:
		headers := corsHeaders(req, resp.Header)
		for name, values := range resp.Header {
			for _, v := range values {
				headers = append(headers, &fetch.HeaderEntry{Name: name, Value: v})
			}
		}
		p.answer(ctx, fetch.FulfillRequest(ev.RequestID, int64(resp.Status())).
			WithResponseHeaders(headers).
			WithBody(base64.StdEncoding.EncodeToString([]byte(resp.Body))))
	}
}

func (p *chromePage) answer(ctx context.Context, action chromedp.Action) {
	if err := action.Do(ctx); err != nil {
		p.log.Debugf("cannot answer paused request: %s", err)
	}
}

// corsHeaders allows the origin of req unless have sets CORS headers.
func corsHeaders(req *http.Request, have http.Header) []*fetch.HeaderEntry {
	origin := req.Header.Get("Origin")
	if origin == "" || have.Get("Access-Control-Allow-Origin") != "" {
		return nil
	}
	return []*fetch.HeaderEntry{
		{Name: "Access-Control-Allow-Origin", Value: origin},
		{Name: "Access-Control-Allow-Credentials", Value: "true"},
	}
}

func toHTTPRequest(r *network.Request) (*http.Request, error) {
	body := r.PostData
	if body == "" {
		for _, entry := range r.PostDataEntries {
			raw, err := base64.StdEncoding.DecodeString(entry.Bytes)
			if err != nil {
				return nil, err
			}
			body += string(raw)
		}
	}
	req, err := http.NewRequest(r.Method, r.URL, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	for name, value := range r.Headers {
		req.Header.Set(name, fmt.Sprint(value))
	}
	return req, nil
}

// Navigate implements Page.
func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

// Click implements Page.
func (p *chromePage) Click(ctx context.Context, path string) error {
	return p.run(ctx, chromedp.Click(path, chromedp.ByQuery, chromedp.NodeVisible))
}

// Type implements Page.
func (p *chromePage) Type(ctx context.Context, path, text string) error {
	return p.run(ctx,
		chromedp.Clear(path, chromedp.ByQuery),
		chromedp.SendKeys(path, text, chromedp.ByQuery),
	)
}

var keys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
}

// Press implements Page.
func (p *chromePage) Press(ctx context.Context, path, key string) error {
	k, ok := keys[key]
	if !ok {
		if len([]rune(key)) != 1 {
			return fmt.Errorf("unknown key %q", key)
		}
		k = key
	}
	return p.run(ctx,
		chromedp.Focus(path, chromedp.ByQuery),
		chromedp.SendKeys(path, k, chromedp.ByQuery),
	)
}

// selectScript sets the value through the native setter and dispatches
// the events frameworks listen to.
const selectScript = `(function(sel, value) {
	const el = document.querySelector(sel);
	if (!el) { return false; }
	const setter = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(el), "value").set;
	setter.call(el, value);
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
	return true;
})(%s, %s)`

// Select implements Page.
func (p *chromePage) Select(ctx context.Context, path, value string) error {
	sel, _ := json.Marshal(path)
	val, _ := json.Marshal(value)
	var ok bool
	err := p.run(ctx,
		chromedp.WaitVisible(path, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(selectScript, sel, val), &ok),
	)
	if err == nil && !ok {
		err = fmt.Errorf("no element %s", path)
	}
	return err
}

// HTML implements Page.
func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var s string
	err := p.run(ctx, chromedp.OuterHTML("html", &s, chromedp.ByQuery))
	return s, err
}

// Title implements Page.
func (p *chromePage) Title(ctx context.Context) (string, error) {
	var s string
	err := p.run(ctx, chromedp.Title(&s))
	return s, err
}

// Close implements Page.
func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}
