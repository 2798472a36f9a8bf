// Copyright 2017 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/radmuffin/pizzaht/ht"
	"github.com/radmuffin/pizzaht/scope"
)

// ErrNoRoute is returned by Fulfill if no mock pattern matches the request.
// Such requests are not intercepted.
var ErrNoRoute = errors.New("mock: no route")

// Router routes requests to the newest matching Mock.
type Router struct {
	// Monitor is used to report invocations of mocks.
	// The incoming request and the outgoing mocked response are encoded
	// in a ht.Test. The results of the Checks are stored in the
	// Test's CheckResult field. Monitor must be drained if set.
	Monitor chan *ht.Test

	// Log to report infos to.
	Log logrus.FieldLogger

	mu       sync.Mutex
	mocks    []*Mock
	failures []error
}

// NewRouter returns a router for mocks. Later mocks take precedence.
func NewRouter(mocks ...*Mock) *Router {
	rt := &Router{}
	rt.Add(mocks...)
	return rt
}

// Add declares additional mocks which take precedence over the ones
// already declared.
func (rt *Router) Add(mocks ...*Mock) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.mocks = append(rt.mocks, mocks...)
}

// Lookup returns the newest mock whose pattern matches url and which
// applies to method. If no pattern matches ErrNoRoute is returned. If
// patterns match but none for method a ValidationError is returned.
func (rt *Router) Lookup(method, url string) (*Mock, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.lookup(method, url)
}

func (rt *Router) lookup(method, url string) (*Mock, error) {
	matched := false
	for i := len(rt.mocks) - 1; i >= 0; i-- {
		m := rt.mocks[i]
		if !MatchGlob(m.URL, url) {
			continue
		}
		matched = true
		if m.Method == "" || strings.EqualFold(m.Method, method) {
			return m, nil
		}
	}
	if matched {
		return nil, &ValidationError{Method: method, URL: url,
			Err: fmt.Errorf("no fixture for method %s", method)}
	}
	return nil, ErrNoRoute
}

// Fulfill routes req to its mock, validates req with the checks of the
// mock and returns the mocked response. Requests without a matching
// pattern yield ErrNoRoute. Validation failures are returned and
// recorded.
func (rt *Router) Fulfill(req *http.Request) (Response, error) {
	u := fullURL(req)
	rt.mu.Lock()
	m, err := rt.lookup(req.Method, u)
	rt.mu.Unlock()
	if err == ErrNoRoute {
		rt.log().Debugf("No route for %s %s", req.Method, u)
		return Response{}, err
	}
	if err != nil {
		rt.fail(err)
		rt.report(req, nil, nil, nil, err)
		return Response{}, err
	}
	return rt.fulfill(m, req, nil)
}

// fulfill validates req against m and constructs the response with
// vars, extracted values and m.Variables available for substitution.
func (rt *Router) fulfill(m *Mock, req *http.Request, vars map[string]string) (Response, error) {
	log := rt.log().WithField("mock", m.Name)
	log.Infof("Serving %s %s", req.Method, req.URL)

	// Consume request body and set up a "reversed" fake Test to run
	// Checks against the request and extract variables from the request.
	var body []byte
	var bodyerr error
	if req.Body != nil {
		body, bodyerr = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	faketest := &ht.Test{
		Name:   "Request to mock " + m.Name,
		Checks: m.Checks,
		VarEx:  m.VarEx,
		Response: ht.Response{
			Response: &http.Response{
				Status:        "200 OK", // fake
				StatusCode:    200,      // fake
				Header:        req.Header,
				ContentLength: int64(len(body)),
			},
			Duration: 1 * time.Millisecond, // something nonzero
			BodyStr:  string(body),
			BodyErr:  bodyerr,
		},
	}

	// Checks are prepared per invocation and must not run concurrently.
	rt.mu.Lock()
	var verr error
	if err := faketest.PrepareChecks(); err != nil {
		faketest.Status, faketest.Error = ht.Bogus, err
		verr = err
	} else {
		faketest.ExecuteChecks()
		if faketest.Status <= ht.Pass && len(m.VarEx) > 0 {
			faketest.ExtractAll()
		}
		if faketest.Status > ht.Pass {
			verr = faketest.Error
		}
	}
	rt.mu.Unlock()

	if verr != nil {
		err := &ValidationError{Mock: m.Name, Method: req.Method, URL: fullURL(req), Err: verr}
		log.Warnf("Rejected request: %s", verr)
		rt.fail(err)
		rt.report(req, body, faketest, nil, err)
		return Response{}, err
	}

	repl := scope.New(scope.Variables(faketest.Extract()),
		scope.New(vars, m.Variables, false), true).Replacer()
	resp := Response{
		StatusCode: m.Response.Status(),
		Body:       repl.Replace(m.Response.Body),
	}
	if m.Response.Header != nil {
		resp.Header = make(http.Header, len(m.Response.Header))
		for h, vs := range m.Response.Header {
			for _, v := range vs {
				resp.Header.Add(h, repl.Replace(v))
			}
		}
	}
	rt.report(req, body, faketest, &resp, nil)

	return resp, nil
}

func (rt *Router) log() logrus.FieldLogger {
	if rt.Log == nil {
		return discard
	}
	return rt.Log
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}()

func (rt *Router) fail(err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.failures = append(rt.failures, err)
}

// report sends the received request and the mocked response or the
// validation error to the Monitor.
func (rt *Router) report(req *http.Request, body []byte, faketest *ht.Test, resp *Response, err error) {
	if rt.Monitor == nil {
		return
	}

	report := &ht.Test{
		Name:        "Mock invocation",
		Description: "Autogenerated during mocking a response.",
		Request: ht.Request{
			Method:   req.Method,
			URL:      fullURL(req),
			Header:   req.Header,
			Request:  req,
			SentBody: string(body),
		},
		Status:  ht.Pass,
		Started: time.Now(),
	}
	if faketest != nil {
		report.Name = faketest.Name
		report.CheckResults = faketest.CheckResults
		report.ExValues = faketest.ExValues
	}
	if resp != nil {
		report.Response = ht.Response{
			Response: &http.Response{
				Status:     fmt.Sprintf("%d %s", resp.Status(), http.StatusText(resp.Status())),
				StatusCode: resp.Status(),
				Header:     resp.Header,
			},
			Duration: 1 * time.Millisecond, // fake something nonzero
			BodyStr:  resp.Body,
		}
	}
	if err != nil {
		report.Status, report.Error = ht.Fail, err
		if faketest != nil && faketest.Status == ht.Bogus {
			report.Status = ht.Bogus
		}
	}

	rt.Monitor <- report
}

// Err returns all validation failures so far or nil if there are none.
func (rt *Router) Err() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.failures) == 0 {
		return nil
	}
	return append(ht.ErrorList(nil), rt.failures...)
}

// Failures returns the validation failures so far.
func (rt *Router) Failures() []error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]error(nil), rt.failures...)
}

// ServeHTTP implements http.Handler. Unrouted requests get a 404, rejected
// requests a 500 with the validation error as body.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := rt.Fulfill(r)
	switch {
	case err == ErrNoRoute:
		http.NotFound(w, r)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		resp.Write(w)
	}
}

// fullURL reconstructs the absolute URL of req.
func fullURL(req *http.Request) string {
	if req.URL.IsAbs() {
		return req.URL.String()
	}
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + req.Host + req.URL.RequestURI()
}
