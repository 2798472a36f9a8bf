// Copyright 2016 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package suite

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radmuffin/pizzaht/ht"
)

func logger() logrus.FieldLogger {
	l := logrus.New()
	if testing.Verbose() {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.Out = io.Discard
	}
	return l
}

// tokenServer hands out a new token on each PUT /login and serves
// /secret only to requests bearing a token.
func tokenServer() *httptest.Server {
	var n int64
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "bad method", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"token":"tok-%d"}`, atomic.AddInt64(&n, 1))
	})
	mux.HandleFunc("/secret", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, "the secret")
	})
	mux.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	return httptest.NewServer(mux)
}

func loginSuite(third string) *Suite {
	return &Suite{
		Name:      "Login Suite",
		Variables: map[string]string{"HOST": "overwritten"},
		Tests: []*ht.Test{
			{
				Name:    "Login",
				Request: ht.Request{Method: "PUT", URL: "{{HOST}}/login"},
				Checks:  ht.CheckList{ht.StatusCode{Expect: 200}},
				VarEx:   ht.ExtractorMap{"token": ht.JSONExtractor{Element: "token"}},
			},
			{
				Name: "Secret",
				Request: ht.Request{
					URL:    "{{HOST}}/secret",
					Header: http.Header{"Authorization": {"Bearer {{token}}"}},
				},
				Checks: ht.CheckList{
					ht.StatusCode{Expect: 200},
					&ht.Body{Equals: "the secret"},
				},
			},
			{
				Name: "Third",
				Request: ht.Request{
					URL:    "{{HOST}}" + third,
					Header: http.Header{"Authorization": {"Bearer {{token}}"}},
				},
				Checks: ht.CheckList{ht.StatusCode{Expect: 200}},
			},
		},
	}
}

func TestExecutePassesExtractedValues(t *testing.T) {
	ts := tokenServer()
	defer ts.Close()

	s := loginSuite("/secret")
	r := s.Execute(context.Background(), map[string]string{"HOST": ts.URL},
		Options{Log: logger()})

	require.Len(t, r.Tests, 3)
	for i, test := range r.Tests {
		assert.Equal(t, ht.Pass, test.Status, "test %d: %v", i, test.Error)
	}
	assert.Equal(t, ht.Pass, r.Status)
	assert.NoError(t, r.Error)
	assert.Equal(t, "tok-1", r.FinalVariables["token"])
	assert.Equal(t, ts.URL, r.FinalVariables["HOST"])
	assert.Equal(t, []string{"Bearer tok-1"},
		r.Tests[1].Request.Request.Header["Authorization"])

	// The raw suite is untouched.
	assert.Equal(t, "{{HOST}}/login", s.Tests[0].Request.URL)
	assert.Equal(t, ht.NotRun, s.Tests[0].Status)
}

func TestExecuteStopsAtFirstFailure(t *testing.T) {
	ts := tokenServer()
	defer ts.Close()

	s := loginSuite("/secret")
	s.Tests[1], s.Tests[2] = s.Tests[2], s.Tests[1]
	s.Tests[1].Request.URL = "{{HOST}}/fail"

	r := s.Execute(context.Background(), map[string]string{"HOST": ts.URL},
		Options{Log: logger()})

	assert.Equal(t, ht.Pass, r.Tests[0].Status)
	assert.Equal(t, ht.Fail, r.Tests[1].Status)
	assert.Equal(t, ht.Skipped, r.Tests[2].Status)
	assert.Equal(t, ht.Fail, r.Status)
	require.Error(t, r.Error)
	assert.Contains(t, r.Error.Error(), `test 2 "Third"`)

	notRun, skipped, passed, failed, errored, bogus := r.Stats()
	assert.Equal(t, []int{0, 1, 1, 1, 0, 0},
		[]int{notRun, skipped, passed, failed, errored, bogus})
}

func TestExecuteNetworkError(t *testing.T) {
	ts := tokenServer()
	url := ts.URL
	ts.Close()

	r := loginSuite("/secret").Execute(context.Background(),
		map[string]string{"HOST": url}, Options{Log: logger()})
	assert.Equal(t, ht.Error, r.Tests[0].Status)
	assert.Equal(t, ht.Skipped, r.Tests[1].Status)
	assert.Equal(t, ht.Error, r.Status)
}

// Session variables never leak from one execution into the next.
func TestExecuteIsolatesSessions(t *testing.T) {
	ts := tokenServer()
	defer ts.Close()

	s := loginSuite("/secret")
	vars := map[string]string{"HOST": ts.URL}
	r1 := s.Execute(context.Background(), vars, Options{Log: logger()})
	r2 := s.Execute(context.Background(), vars, Options{Log: logger()})

	assert.Equal(t, ht.Pass, r1.Status)
	assert.Equal(t, ht.Pass, r2.Status)
	assert.Equal(t, "tok-1", r1.FinalVariables["token"])
	assert.Equal(t, "tok-2", r2.FinalVariables["token"])
	assert.NotContains(t, r2.Variables, "token")
	assert.NotContains(t, vars, "token")
	assert.Len(t, vars, 1)
	assert.NotEqual(t, r1.Variables["COUNTER"], r2.Variables["COUNTER"])
}

func TestExecuteStop(t *testing.T) {
	ts := tokenServer()
	defer ts.Close()

	stop := make(chan struct{})
	close(stop)
	r := loginSuite("/secret").Execute(context.Background(),
		map[string]string{"HOST": ts.URL}, Options{Log: logger(), Stop: stop})

	assert.True(t, r.Interrupted)
	for _, test := range r.Tests {
		assert.Equal(t, ht.Skipped, test.Status)
	}
}

func TestExecuteStopInterruptsThinkTime(t *testing.T) {
	ts := tokenServer()
	defer ts.Close()

	s := loginSuite("/secret")
	s.Tests[0].Execution.PostSleep = 10 * time.Second

	stop := make(chan struct{})
	time.AfterFunc(50*time.Millisecond, func() { close(stop) })

	start := time.Now()
	r := s.Execute(context.Background(), map[string]string{"HOST": ts.URL},
		Options{Log: logger(), Stop: stop})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, r.Interrupted)
	assert.Equal(t, ht.Pass, r.Tests[0].Status)
	assert.Equal(t, ht.Skipped, r.Tests[1].Status)
	assert.Equal(t, ht.Pass, r.Status)
}

func TestExecuteThinkTime(t *testing.T) {
	ts := tokenServer()
	defer ts.Close()

	s := loginSuite("/secret")
	for _, test := range s.Tests {
		test.Execution.PostSleep = 30 * time.Millisecond
	}

	start := time.Now()
	r := s.Execute(context.Background(), map[string]string{"HOST": ts.URL},
		Options{Log: logger()})
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, ht.Pass, r.Status)

	start = time.Now()
	r = s.Execute(context.Background(), map[string]string{"HOST": ts.URL},
		Options{Log: logger(), NoThinkTime: true})
	assert.Less(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, ht.Pass, r.Status)
}
