// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package suite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radmuffin/pizzaht/ht"
)

var loginSuiteYAML = `
name: Login and read
variables:
  HOST: http://localhost:1
tests:
  - name: Login
    request:
      method: PUT
      url: "{{HOST}}/login"
      header:
        Content-Type: [application/json]
      body: '{"email":"d@jwt.com","password":"diner"}'
    checks:
      - check: StatusCode
        expect: 200
      - check: JSON
        element: token
        prefix: '"tok-'
    extract:
      token:
        extractor: JSONExtractor
        element: $.token
    sleep: 6s
  - request:
      url: "{{HOST}}/secret"
      header:
        Authorization: ["Bearer {{token}}"]
    checks:
      - check: StatusCode
        expect: 200
      - check: Body
        equals: the secret
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(loginSuiteYAML), "login.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Login and read", s.Name)
	assert.Equal(t, "http://localhost:1", s.Variables["HOST"])
	require.Len(t, s.Tests, 2)

	login := s.Tests[0]
	assert.Equal(t, "Login", login.Name)
	assert.Equal(t, "PUT", login.Request.Method)
	assert.Equal(t, "application/json", login.Request.Header.Get("Content-Type"))
	assert.Equal(t, 6*time.Second, login.Execution.PostSleep)
	require.Len(t, login.Checks, 2)
	assert.Equal(t, &ht.StatusCode{Expect: 200}, login.Checks[0])
	assert.Equal(t, "JSON", ht.NameOf(login.Checks[1]))
	assert.Equal(t, `"tok-`, login.Checks[1].(*ht.JSON).Prefix, "raw JSON values keep their quotes")
	require.Contains(t, login.VarEx, "token")
	assert.Equal(t, ht.JSONExtractor{Element: "$.token"}, login.VarEx["token"])

	assert.Equal(t, "Test 2", s.Tests[1].Name)
}

func TestParseErrors(t *testing.T) {
	for i, tc := range []struct {
		yaml string
		want string
	}{
		{"name: x\n", "has no tests"},
		{"name: x\ntests:\n  - name: a\n", "missing URL"},
		{"tests:\n  - request: {url: http://x}\n    checks: [{check: StatusKode}]\n",
			"did you mean StatusCode"},
		{"tests: [\n", "cannot parse"},
	} {
		_, err := Parse([]byte(tc.yaml), "bad.yaml")
		if assert.Error(t, err, "case %d", i) {
			assert.Contains(t, err.Error(), tc.want, "case %d", i)
		}
	}
}

func TestLoadAndExecute(t *testing.T) {
	ts := tokenServer()
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "login.yaml")
	require.NoError(t, os.WriteFile(path, []byte(loginSuiteYAML), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	r := s.Execute(context.Background(), map[string]string{"HOST": ts.URL},
		Options{Log: logger(), NoThinkTime: true})
	for i, test := range r.Tests {
		assert.Equal(t, ht.Pass, test.Status, "test %d: %v", i, test.Error)
	}
	assert.Equal(t, "tok-1", r.FinalVariables["token"])

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
