// Copyright 2017 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radmuffin/pizzaht/ht"
)

func logger() logrus.FieldLogger {
	l := logrus.New()
	if !testing.Verbose() {
		l.Out = io.Discard
	}
	return l
}

var globTests = []struct {
	pattern, url string
	want         bool
}{
	{"*/**/api/order/menu", "http://localhost:5173/api/order/menu", true},
	{"*/**/api/order/menu", "https://pizza.example.com/api/order/menu", true},
	{"*/**/api/order", "http://localhost:5173/api/order/menu", false},
	{"*/**/api/order", "http://localhost:5173/api/order", true},
	{"*/**/api/order/menu", "http://localhost:5173/api/order/menu?x=1", false},
	{"*/**/version.json", "http://localhost:5173/version.json", true},
	{"http://localhost/*.png", "http://localhost/pizza1.png", true},
	{"http://localhost/*.png", "http://localhost/img/pizza1.png", false},
	{"http://localhost/**.png", "http://localhost/img/pizza1.png", true},
	{"http://localhost/pizza?.png", "http://localhost/pizza1.png", true},
	{"http://localhost/pizza?.png", "http://localhost/pizza12.png", false},
	{"http://localhost/a+b(c)", "http://localhost/a+b(c)", true},
	{"http://localhost/a+b(c)", "http://localhost/aab(c)", false},
	{"http://localhost/ü/*", "http://localhost/ü/x", true},
}

func TestMatchGlob(t *testing.T) {
	for i, tc := range globTests {
		if got := MatchGlob(tc.pattern, tc.url); got != tc.want {
			t.Errorf("%d. MatchGlob(%q, %q) = %t, want %t",
				i, tc.pattern, tc.url, got, tc.want)
		}
	}
}

func TestJSONResponse(t *testing.T) {
	r := JSONResponse(map[string]string{"version": "1.0.0"})
	assert.Equal(t, 200, r.Status())
	assert.Equal(t, `{"version":"1.0.0"}`, r.Body)
	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

	assert.Panics(t, func() { JSONResponse(make(chan int)) })
	assert.Equal(t, 200, Response{}.Status())
}

func TestLookup(t *testing.T) {
	first := &Mock{Name: "first", Method: "GET", URL: "*/**/api/auth"}
	put := &Mock{Name: "put", Method: "PUT", URL: "*/**/api/auth"}
	newest := &Mock{Name: "newest", Method: "GET", URL: "*/**/api/**"}
	anyMethod := &Mock{Name: "any", URL: "*/**/version.json"}
	rt := NewRouter(first, put)
	rt.Add(newest, anyMethod)

	m, err := rt.Lookup("GET", "http://localhost/api/auth")
	require.NoError(t, err)
	assert.Equal(t, "newest", m.Name)

	m, err = rt.Lookup("put", "http://localhost/api/auth")
	require.NoError(t, err)
	assert.Equal(t, "put", m.Name)

	_, err = rt.Lookup("DELETE", "http://localhost/api/auth")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Contains(t, err.Error(), "no fixture for method DELETE")

	m, err = rt.Lookup("POST", "http://localhost/version.json")
	require.NoError(t, err)
	assert.Equal(t, "any", m.Name)

	_, err = rt.Lookup("GET", "http://localhost/index.html")
	assert.Equal(t, ErrNoRoute, err)
}

func loginMock() *Mock {
	return &Mock{
		Name:   "login",
		Method: "PUT",
		URL:    "*/**/api/auth",
		Checks: ht.CheckList{
			&ht.JSONMatch{Expect: `{"email": "d@jwt.com", "password": "a"}`},
		},
		VarEx: ht.ExtractorMap{
			"email": ht.JSONExtractor{Element: "email"},
		},
		Response: Response{
			Header: http.Header{"Content-Type": {"application/json"}},
			Body:   `{"user":{"email":"{{email}}"},"token":"abcdef"}`,
		},
	}
}

func TestFulfill(t *testing.T) {
	rt := NewRouter(loginMock())
	rt.Log = logger()

	req := httptest.NewRequest("PUT", "http://localhost:5173/api/auth",
		strings.NewReader(`{"email":"d@jwt.com","password":"a","extra":1}`))
	resp, err := rt.Fulfill(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status())
	assert.Equal(t, `{"user":{"email":"d@jwt.com"},"token":"abcdef"}`, resp.Body)
	assert.NoError(t, rt.Err())

	// The request body is still readable.
	body, _ := io.ReadAll(req.Body)
	assert.Contains(t, string(body), "extra")

	req = httptest.NewRequest("PUT", "http://localhost:5173/api/auth",
		strings.NewReader(`{"email":"d@jwt.com","password":"wrong"}`))
	_, err = rt.Fulfill(req)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "login", verr.Mock)
	assert.Contains(t, err.Error(), "element password: got wrong, want a")

	req = httptest.NewRequest("GET", "http://localhost:5173/api/auth", nil)
	_, err = rt.Fulfill(req)
	assert.Error(t, err)

	req = httptest.NewRequest("GET", "http://localhost:5173/", nil)
	_, err = rt.Fulfill(req)
	assert.Equal(t, ErrNoRoute, err)

	assert.Len(t, rt.Failures(), 2)
	assert.Error(t, rt.Err())
}

func TestRouterServeHTTPAndMonitor(t *testing.T) {
	rt := NewRouter(loginMock(), &Mock{
		Name:     "version",
		URL:      "*/**/version.json",
		Response: JSONResponse(map[string]string{"version": "1.0.0"}),
	})
	rt.Monitor = make(chan *ht.Test, 10)
	ts := httptest.NewServer(rt)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/version.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, `{"version":"1.0.0"}`, string(body))

	report := <-rt.Monitor
	assert.Equal(t, ht.Pass, report.Status)
	assert.Equal(t, "GET", report.Request.Method)
	assert.Equal(t, `{"version":"1.0.0"}`, report.Response.BodyStr)

	req, _ := http.NewRequest("PUT", ts.URL+"/api/auth", strings.NewReader(`{}`))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 500, resp.StatusCode)

	report = <-rt.Monitor
	assert.Equal(t, ht.Fail, report.Status)
	assert.Error(t, report.Error)

	resp, err = http.Get(ts.URL + "/nothing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func get(t *testing.T, method, u string) (int, string) {
	req, err := http.NewRequest(method, u, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNewHandler(t *testing.T) {
	mocks := []*Mock{
		{
			Name:   "Mock A",
			Method: "GET",
			URL:    "http://localhost:8080/ma/{NAME}",
			Response: Response{
				// StatusCode defaults to 200
				Body: "Hello {{NAME}}",
			},
		},
		{
			Name: "Mock B",
			URL:  "*/**/mb/*",
			Response: Response{
				StatusCode: 202,
				Body:       "Hola",
			},
		},
		{
			Name:     "Mock C",
			Method:   "GET",
			URL:      "http://localhost:8080/ma/Special",
			Response: Response{Body: "Newest wins"},
		},
	}

	handler, rt, err := NewHandler(mocks, logger())
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	status, body := get(t, "GET", ts.URL+"/ma/Foo")
	assert.Equal(t, 200, status)
	assert.Equal(t, "Hello Foo", body)

	status, body = get(t, "GET", ts.URL+"/ma/Special")
	assert.Equal(t, 200, status)
	assert.Equal(t, "Newest wins", body)

	status, body = get(t, "DELETE", ts.URL+"/mb/Bar")
	assert.Equal(t, 202, status)
	assert.Equal(t, "Hola", body)

	status, body = get(t, "GET", ts.URL+"/xyz")
	assert.Equal(t, 404, status)
	assert.Equal(t, "404 page not found\n", body)

	assert.NoError(t, rt.Err())
	status, _ = get(t, "POST", ts.URL+"/ma/Foo")
	assert.Equal(t, 405, status)
	assert.Error(t, rt.Err())
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := Serve(ctx, "127.0.0.1:0", []*Mock{{Name: "x", URL: "/x"}}, logger())
	assert.NoError(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mocks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- name: menu
  method: GET
  url: "*/**/api/order/menu"
  response:
    header:
      Content-Type: [application/json]
    body: '[{"id":1,"title":"Veggie"}]'
- url: "*/**/api/auth"
  method: PUT
  checks:
    - check: JSONMatch
      expect:
        email: d@jwt.com
  response:
    status: 201
`), 0644))

	mocks, err := Load(path)
	require.NoError(t, err)
	require.Len(t, mocks, 2)
	assert.Equal(t, "menu", mocks[0].Name)
	assert.Equal(t, "Mock 2", mocks[1].Name)
	assert.Equal(t, 201, mocks[1].Response.Status())
	require.Len(t, mocks[1].Checks, 1)

	rt := NewRouter(mocks...)
	req := httptest.NewRequest("PUT", "http://localhost/api/auth",
		strings.NewReader(`{"email":"d@jwt.com","password":"x"}`))
	resp, err := rt.Fulfill(req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.Status())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
