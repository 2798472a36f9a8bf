// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ht

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// DefaultUserAgent is the user agent string to send in http requests
	// if no user agent header is specified explicitly.
	DefaultUserAgent = "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Mobile Safari/537.36"

	// DefaultAccept is the accept header to be sent if no accept header
	// is set explicitly in the test.
	DefaultAccept = "*/*"

	// DefaultClientTimeout is the timeout used by the http clients.
	DefaultClientTimeout = 10 * time.Second
)

// Transport is the http Transport used while making requests.
// It is exposed to allow different Timeouts or less idle connections.
var Transport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	MaxIdleConns:          1000,
	MaxIdleConnsPerHost:   200,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// Request is a HTTP request.
type Request struct {
	// Method is the HTTP method to use.
	// A empty method is equivalent to "GET"
	Method string `yaml:"method,omitempty" json:",omitempty"`

	// URL ist the URL of the request.
	URL string `yaml:"url"`

	// Params contains the parameters and their values to send in
	// the request. They are appended properly encoded to the URL.
	Params url.Values `yaml:"params,omitempty" json:",omitempty"`

	// Header contains the specific http headers to be sent in this request.
	// User-Agent and Accept headers are set automaticaly to the global
	// default values if not set explicitly.
	Header http.Header `yaml:"header,omitempty" json:",omitempty"`

	// Body is the full body to send in the request.
	Body string `yaml:"body,omitempty" json:",omitempty"`

	// Timeout of this request. If zero use DefaultClientTimeout.
	Timeout time.Duration `yaml:"timeout,omitempty" json:",omitempty"`

	Request  *http.Request `yaml:"-" json:"-"` // the 'real' request
	SentBody string        `yaml:"-" json:"-"` // the 'real' body
}

// Response captures information about a http response.
type Response struct {
	// Response is the received HTTP response. Its body has bean read and
	// closed already.
	Response *http.Response `json:",omitempty"`

	// Duration to receive response and read the whole body.
	Duration time.Duration `json:",omitempty"`

	// The received body and the error got while reading it.
	BodyStr string `json:",omitempty"`
	BodyErr error  `json:",omitempty"`
}

// Body returns a reader of the response body.
func (resp *Response) Body() io.Reader {
	return strings.NewReader(resp.BodyStr)
}

// Execution contains parameters controlling the test execution.
type Execution struct {
	// Skip disables the test. A skipped test never makes its request.
	Skip bool `yaml:"skip,omitempty" json:",omitempty"`

	// Pre-, Inter- and PostSleep are the sleep durations made
	// before the request, between request and the checks and
	// after the checks. PostSleep is the think time of a scenario step.
	PreSleep   time.Duration `yaml:"presleep,omitempty" json:",omitempty"`
	InterSleep time.Duration `yaml:"intersleep,omitempty" json:",omitempty"`
	PostSleep  time.Duration `yaml:"sleep,omitempty" json:",omitempty"`

	// Verbosity level in logging.
	Verbosity int `yaml:"verbosity,omitempty" json:",omitempty"`
}

// ----------------------------------------------------------------------------
// Test

// Test is a single logical test which does one HTTP request and checks
// a number of Checks on the received Response.
type Test struct {
	// Name of the test.
	Name string `yaml:"name"`

	// Description what this test's intentions are.
	Description string `yaml:"description,omitempty" json:",omitempty"`

	// Request is the HTTP request.
	Request Request `yaml:"request"`

	// Response to the Request
	Response Response `yaml:"-" json:",omitempty"`

	// Checks contains all checks to perform on the response to the HTTP request.
	Checks CheckList `yaml:"checks,omitempty"`

	// VarEx may be used to popultate variables from the response.
	VarEx ExtractorMap `yaml:"extract,omitempty" json:",omitempty"`

	// ExValues contains the result of the extractions.
	ExValues map[string]Extraction `yaml:"-" json:",omitempty"`

	// Execution controls the test execution.
	Execution Execution `yaml:",inline" json:",omitempty"`

	// Client is the http client to use. If nil a client sharing
	// Transport and using Jar is constructed.
	Client *http.Client `yaml:"-" json:"-"`

	// Jar is the cookie jar to use if Client is nil.
	Jar http.CookieJar `yaml:"-" json:"-"`

	// The following results are filled during Run.
	Status       Status        `yaml:"-" json:"-"`
	Started      time.Time     `yaml:"-" json:"-"`
	Error        error         `yaml:"-" json:"-"`
	Duration     time.Duration `yaml:"-" json:"-"`
	FullDuration time.Duration `yaml:"-" json:"-"`
	CheckResults []CheckResult `yaml:"-" json:"-"` // The individual checks.

	// Log is the logger to use.
	Log logrus.FieldLogger `yaml:"-" json:"-"`

	client *http.Client
}

// CheckResult captures the outcome of a single check inside a test.
type CheckResult struct {
	Name     string        // Name of the check as registered.
	JSON     string        // JSON serialization of check.
	Status   Status        // Outcome of check. All status but Error
	Duration time.Duration // How long the check took.
	Error    ErrorList     // For a Status of Bogus or Fail.
}

// Extraction captures the result of a variable extraction.
type Extraction struct {
	Value string
	Error error
}

// Disable disables t.
func (t *Test) Disable() {
	t.Execution.Skip = true
}

// AsJSON returns a JSON representation of the test. Several fields in
// the actual *http.Request and *http.Response structs are cleared
// during this serialisation.
func (t *Test) AsJSON() ([]byte, error) {
	t.client = nil
	if t.Request.Request != nil {
		t.Request.Request.Body = nil
		t.Request.Request.GetBody = nil
		t.Request.Request.TLS = nil
	}
	if t.Response.Response != nil {
		t.Response.Response.TLS = nil
		t.Response.Response.Body = nil
		t.Response.Response.Request = nil
	}

	return json.MarshalIndent(t, "", "    ")
}

// Run runs the test t. The actual HTTP request is crafted and executed and
// the checks are performed on the received response. There are no retries:
// a failing request or a failing check determine the final status.
//
// Normally all checks in t.Checks are executed. If the first check in
// t.Checks is a StatusCode check and it fails, then the rest of
// the checks are skipped.
//
// Run returns a non-nil error only if the test is bogus; a failing http
// request, problems reading the body or any failing checks do not trigger a
// non-nil return value.
func (t *Test) Run(ctx context.Context) error {
	t.Started = time.Now()
	defer func() { t.FullDuration = time.Since(t.Started) }()

	t.infof("Running")

	if t.Execution.Skip {
		t.Status = Skipped
		return nil
	}

	// Prepare checks and request. Both may declare the Test to be bogus.
	err := t.PrepareChecks()
	if err != nil {
		t.Status, t.Error = Bogus, err
		return err
	}
	err = t.prepareRequest(ctx)
	if err != nil {
		t.Status, t.Error = Bogus, err
		return err
	}

	if err := t.sleep(ctx, "PreSleep", t.Execution.PreSleep); err != nil {
		t.Status, t.Error = Skipped, err
		return nil
	}

	start := time.Now()
	t.Status, t.Error = NotRun, nil
	t.Response = Response{}
	t.execute(ctx)
	t.Duration = time.Since(start)

	t.infof("Result: %s (%s %s)", t.Status, t.Duration, t.Response.Duration)
	if t.Status > Pass && t.Error != nil {
		t.debugf("Error: %s", t.Error)
	}

	// A cancelled think time does not alter the outcome of the request.
	_ = t.sleep(ctx, "PostSleep", t.Execution.PostSleep)

	return nil
}

// sleep waits for d or until ctx is done.
func (t *Test) sleep(ctx context.Context, what string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t.debugf("%s %s", what, d)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// execute does a single request and check the response.
func (t *Test) execute(ctx context.Context) {
	var err error
	switch t.Request.Request.URL.Scheme {
	case "http", "https":
		err = t.executeRequest()
	default:
		t.Status = Bogus
		t.Error = fmt.Errorf("ht: unrecognized URL scheme %q", t.Request.Request.URL.Scheme)
		return
	}
	if err != nil {
		t.Status = Error
		t.Error = err
		return
	}

	if len(t.Checks) > 0 {
		if err := t.sleep(ctx, "InterSleep", t.Execution.InterSleep); err != nil {
			t.Status, t.Error = Error, err
			return
		}
		t.ExecuteChecks()
	} else {
		t.Status = Pass
	}
	if t.Status == Pass && len(t.VarEx) > 0 {
		t.ExtractAll()
	}
}

// PrepareChecks call Prepare() on all preparable checks and sets up t
// for execution.
func (t *Test) PrepareChecks() error {
	cel := ErrorList{}
	for i := range t.Checks {
		if prep, ok := t.Checks[i].(Preparable); ok {
			e := prep.Prepare()
			if e != nil {
				cel = append(cel, e)
				t.errorf("preparing check %d %q: %s",
					i, NameOf(t.Checks[i]), e.Error())
			}
		}
	}
	if len(cel) != 0 {
		return cel
	}

	// Prepare CheckResults.
	t.CheckResults = make([]CheckResult, len(t.Checks)) // Zero value is NotRun
	for i, c := range t.Checks {
		t.CheckResults[i].Name = NameOf(c)
		buf, err := json.Marshal(c)
		if err != nil {
			buf = []byte(err.Error())
		}
		t.CheckResults[i].JSON = string(buf)
	}

	return nil
}

// prepareRequest crafts the underlying http request.
func (t *Test) prepareRequest(ctx context.Context) error {
	if t.Request.Method == "" {
		t.Request.Method = http.MethodGet
	}

	rurl := t.Request.URL
	if len(t.Request.Params) > 0 {
		if strings.Contains(rurl, "?") {
			rurl += "&" + t.Request.Params.Encode()
		} else {
			rurl += "?" + t.Request.Params.Encode()
		}
	}

	t.Request.SentBody = t.Request.Body
	var body io.Reader
	if t.Request.SentBody != "" {
		body = strings.NewReader(t.Request.SentBody)
	}
	req, err := http.NewRequestWithContext(ctx, t.Request.Method, rurl, body)
	if err != nil {
		err = errors.Wrap(err, "failed preparing request")
		t.errorf("%s", err.Error())
		return err
	}
	t.Request.Request = req

	for h, v := range t.Request.Header {
		rv := make([]string, len(v))
		copy(rv, v)
		req.Header[http.CanonicalHeaderKey(h)] = rv
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", DefaultAccept)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", DefaultUserAgent)
	}

	if t.Request.Timeout <= 0 {
		t.Request.Timeout = DefaultClientTimeout
	}

	switch {
	case t.Client != nil:
		t.client = t.Client
	default:
		t.client = &http.Client{
			Transport: Transport,
			Jar:       t.Jar,
			Timeout:   t.Request.Timeout,
		}
	}

	return nil
}

// executeRequest performs the HTTP request defined in t which must have been
// prepared by prepareRequest.
func (t *Test) executeRequest() error {
	t.infof("%s %q", t.Request.Request.Method, t.Request.Request.URL.String())

	start := time.Now()

	if t.Execution.Verbosity >= 4 {
		buf := &bytes.Buffer{}
		_ = t.Request.Request.Write(buf)
		t.tracef(" Full Request\n%s\n", buf.String())
		// "Rewind body"
		if t.Request.SentBody != "" {
			t.Request.Request.Body = io.NopCloser(strings.NewReader(t.Request.SentBody))
		} else {
			t.Request.Request.Body = http.NoBody
		}
	}

	ctx, cancel := context.WithTimeout(t.Request.Request.Context(), t.Request.Timeout)
	defer cancel()
	resp, err := t.client.Do(t.Request.Request.WithContext(ctx))

	t.Response.Response = resp
	msg := "okay"
	if err == nil {
		var reader io.ReadCloser
		switch resp.Header.Get("Content-Encoding") {
		case "gzip":
			reader, err = gzip.NewReader(resp.Body)
			if err != nil {
				resp.Body.Close()
				t.Response.BodyErr = err
				break
			}
			t.debugf("Unzipping gzip body")
		default:
			reader = resp.Body
		}
		if reader != nil {
			bb, be := io.ReadAll(reader)
			t.Response.BodyStr = string(bb)
			t.Response.BodyErr = be
			reader.Close()
			resp.Body.Close()
		}
		if t.Execution.Verbosity >= 4 {
			t.tracef(" Full Response\n%s %s\n\n%s",
				resp.Proto, resp.Status, t.Response.BodyStr)
		}
	} else {
		msg = fmt.Sprintf("fail %s", err.Error())
	}

	t.Response.Duration = time.Since(start)
	t.debugf("Request took %s, %s", t.Response.Duration, msg)

	return err
}

// ExecuteChecks applies the checks in t to the HTTP response received during
// executeRequest.
//
// Normally all checks in t.Checks are executed. If the first check in
// t.Checks is a StatusCode check and it fails, then the rest of the
// checks are skipped.
func (t *Test) ExecuteChecks() {
	if len(t.CheckResults) != len(t.Checks) {
		if err := t.PrepareChecks(); err != nil {
			t.Status, t.Error = Bogus, err
			return
		}
	}
	done := false
	for i, ck := range t.Checks {
		start := time.Now()
		err := ck.Execute(t)
		t.CheckResults[i].Duration = time.Since(start)
		if el, ok := err.(ErrorList); ok {
			t.CheckResults[i].Error = el
		} else if err != nil {
			t.CheckResults[i].Error = ErrorList{err}
		}
		if err != nil {
			t.debugf("Check %d %s Fail: %s", i+1, NameOf(ck), err)
			if _, ok := err.(MalformedCheck); ok {
				t.CheckResults[i].Status = Bogus
			} else {
				t.CheckResults[i].Status = Fail
			}
			var errlist ErrorList
			if el, ok := t.Error.(ErrorList); ok {
				errlist = el
			}
			for _, pce := range t.CheckResults[i].Error {
				errlist = append(errlist, fmt.Errorf("Check %s: %s",
					t.CheckResults[i].Name, pce))
			}
			if len(errlist) != 0 {
				t.Error = errlist
			}

			// Abort needles checking if all went wrong.
			if i == 0 {
				_, isStatus := ck.(StatusCode)
				if _, isPtr := ck.(*StatusCode); isPtr {
					isStatus = true
				}
				if isStatus {
					t.debugf("skipping remaining checks as bad StatusCode %s",
						t.Response.Response.Status)
					for j := 1; j < len(t.CheckResults); j++ {
						t.CheckResults[j].Status = Skipped
						t.CheckResults[j].Error = nil
					}
					done = true
				}
			}
		} else {
			t.CheckResults[i].Status = Pass
			t.debugf("Check %d %s: Pass", i+1, NameOf(ck))
		}
		if t.CheckResults[i].Status > t.Status {
			t.Status = t.CheckResults[i].Status
		}
		if done {
			break
		}
	}
}

// ExtractAll runs the extractors in t.VarEx and records the outcome in
// t.ExValues. A failed extraction fails the test as later steps would be
// sent with an unset variable.
func (t *Test) ExtractAll() {
	t.ExValues = make(map[string]Extraction, len(t.VarEx))
	names := make([]string, 0, len(t.VarEx))
	for name := range t.VarEx {
		names = append(names, name)
	}
	sort.Strings(names)

	var errlist ErrorList
	for _, name := range names {
		value, err := t.VarEx[name].Extract(t)
		t.ExValues[name] = Extraction{Value: value, Error: err}
		if err != nil {
			t.errorf("Problems extracting %q: %s", name, err)
			errlist = append(errlist, fmt.Errorf("Extract %s: %s", name, err))
			continue
		}
		t.debugf("Extracted %s=%q", name, value)
	}
	if len(errlist) > 0 {
		t.Status, t.Error = Fail, errlist
	}
}

// Extract returns the successfully extracted variables of the executed Test t.
func (t *Test) Extract() map[string]string {
	data := make(map[string]string)
	for name, ex := range t.ExValues {
		if ex.Error == nil {
			data[name] = ex.Value
		}
	}
	return data
}

func (t *Test) errorf(format string, v ...interface{}) {
	if t.Execution.Verbosity >= 0 && t.Log != nil {
		t.Log.WithField("test", t.Name).Errorf(format, v...)
	}
}

func (t *Test) infof(format string, v ...interface{}) {
	if t.Execution.Verbosity >= 1 && t.Log != nil {
		t.Log.WithField("test", t.Name).Infof(format, v...)
	}
}

func (t *Test) debugf(format string, v ...interface{}) {
	if t.Execution.Verbosity >= 2 && t.Log != nil {
		t.Log.WithField("test", t.Name).Debugf(format, v...)
	}
}

func (t *Test) tracef(format string, v ...interface{}) {
	if t.Execution.Verbosity >= 3 && t.Log != nil {
		t.Log.WithField("test", t.Name).Debugf("TRACE "+format, v...)
	}
}

// ----------------------------------------------------------------------------
// Generating curl calls

func escapeForBash(s string) string {
	// The easy case: single quotes preserve everything in bash
	// but single quotes may not appear (not even escaped) within
	// single quoted strings so concatenate:
	//     foo'bar  -->  'foo'"'"'bar'
	parts := strings.Split(s, "'")
	for i, p := range parts {
		parts[i] = "'" + p + "'"
	}
	return strings.Join(parts, `"'"`)
}

// CurlCall tries to create a command line (for bash) curl call which produces
// the same HTTP request as t.
func (t *Test) CurlCall() string {
	call := "curl"

	if t.Request.Method != "" && t.Request.Method != http.MethodGet {
		call += fmt.Sprintf(" -X %s", t.Request.Method)
	}

	headers := make([]string, 0, len(t.Request.Header))
	for header := range t.Request.Header {
		headers = append(headers, header)
	}
	sort.Strings(headers)
	for _, header := range headers {
		ch := http.CanonicalHeaderKey(header)
		for _, v := range t.Request.Header[header] {
			line := fmt.Sprintf("%s: %s", ch, v)
			call += fmt.Sprintf(" -H %s", escapeForBash(line))
		}
	}

	if t.Request.Body != "" {
		call += fmt.Sprintf(" --data-binary %s", escapeForBash(t.Request.Body))
	}

	theURL := t.Request.URL
	if t.Request.Request != nil {
		theURL = t.Request.Request.URL.String()
	} else if len(t.Request.Params) > 0 {
		if u, err := url.Parse(theURL); err == nil {
			q := u.Query()
			for k, vs := range t.Request.Params {
				for _, v := range vs {
					q.Add(k, v)
				}
			}
			u.RawQuery = q.Encode()
			theURL = u.String()
		}
	}
	call += fmt.Sprintf(" %s", escapeForBash(theURL))

	return call
}
