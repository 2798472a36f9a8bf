// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radmuffin/pizzaht/browser"
	"github.com/radmuffin/pizzaht/config"
	"github.com/radmuffin/pizzaht/internal/pizzatest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	service := pizzatest.NewService()
	cmd := newRootCommand(func(*config.Config, logrus.FieldLogger) browser.Opener {
		return pizzatest.Opener{
			Backend: service,
			Service: "http://localhost:3000",
			Factory: "http://localhost:3000",
		}
	})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pizzaht.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"load", "exec", "ui", "mock", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	for _, name := range []string{"config", "verbosity", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pizzaht version "+version+"\n", out)
}

func TestExec(t *testing.T) {
	ts := httptest.NewServer(pizzatest.NewService())
	defer ts.Close()
	cfg := writeConfig(t, "service: "+ts.URL+"\nfactory: "+ts.URL+"\n")

	out, err := run(t, "exec", "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS")

	out, err = run(t, "exec", "-c", cfg, "-D", "PASSWORD=wrong")
	assert.Error(t, err)
	assert.Contains(t, out, "FAIL")
}

func TestLoad(t *testing.T) {
	ts := httptest.NewServer(pizzatest.NewService())
	defer ts.Close()
	cfg := writeConfig(t, `service: `+ts.URL+`
factory: `+ts.URL+`
load:
  stages:
    - {target: 2, duration: 0s}
    - {target: 2, duration: 200ms}
  graceful_stop: 1s
`)
	csv := filepath.Join(t.TempDir(), "samples.csv")

	out, err := run(t, "load", "-c", cfg, "--no-think-time", "--csv", csv, "--plot", "100")
	require.NoError(t, err, out)
	for _, step := range []string{"Login", "Menu", "Franchise", "Order", "Verify"} {
		assert.Contains(t, out, step)
	}
	data, err := os.ReadFile(csv)
	require.NoError(t, err)
	assert.True(t, strings.Count(string(data), "\n") > 1)
}

func TestUI(t *testing.T) {
	out, err := run(t, "ui", "--only", "home page,visit about and history", "--parallel", "2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "home page")
	assert.Contains(t, out, "visit about and history")
	assert.NotContains(t, out, "verify jwt")

	_, err = run(t, "ui", "--only", "checkout")
	assert.EqualError(t, err, `no such scenario "checkout"`)
}

func TestBadConfig(t *testing.T) {
	_, err := run(t, "exec", "-c", writeConfig(t, "log: {level: loud}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = run(t, "exec", "--log-format", "xml")
	assert.Error(t, err)
}

func TestMockArguments(t *testing.T) {
	_, err := run(t, "mock", "verify jwt")
	assert.EqualError(t, err, "nothing to serve")
	_, err = run(t, "mock")
	assert.EqualError(t, err, "missing scenario or --file")
	_, err = run(t, "mock", "nope")
	assert.EqualError(t, err, `no such scenario "nope"`)
}

func TestDefineFlag(t *testing.T) {
	v := cmdlVar{}
	require.NoError(t, v.Set("A=b=c"))
	require.NoError(t, v.Set("B="))
	assert.Error(t, v.Set("novalue"))
	assert.Error(t, v.Set("=x"))
	assert.Equal(t, "[A=b=c,B=]", v.String())
}
