// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ht

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestChecklistMarshalJSON(t *testing.T) {
	cl := CheckList{
		&StatusCode{Expect: 404},
		&Body{Contains: "x"},
		ContentType{Is: "json"},
	}

	j, err := json.Marshal(cl)
	if err != nil {
		t.Fatalf("Unexpected error %v\n%s", err, j)
	}

	want := `[{"Check":"StatusCode","Expect":404},{"Check":"Body","Contains":"x"},{"Check":"ContentType","Is":"json"}]`
	if got := string(j); got != want {
		t.Errorf("Got: %s", got)
	}
}

func TestChecklistUnmarshalYAML(t *testing.T) {
	doc := `
- check: StatusCode
  expect: 200
- check: JSON
  element: $.token
  prefix: '"ey'
- check: Header
  header: Content-Type
  contains: json
- check: JSONMatch
  expect: {"storeId": "4", "items": [{"menuId": 1}]}
- check: CustomJS
  script: response.status === 200
`
	var cl CheckList
	require.NoError(t, yaml.Unmarshal([]byte(doc), &cl))
	require.Len(t, cl, 5)

	assert.Equal(t, &StatusCode{Expect: 200}, cl[0])
	js, ok := cl[1].(*JSON)
	require.True(t, ok)
	assert.Equal(t, "$.token", js.Element)
	assert.Equal(t, `"ey`, js.Prefix)
	h, ok := cl[2].(*Header)
	require.True(t, ok)
	assert.Equal(t, "json", h.Contains)
	jm, ok := cl[3].(*JSONMatch)
	require.True(t, ok)
	assert.NoError(t, jm.Prepare())
	assert.Equal(t, "CustomJS", NameOf(cl[4]))
}

func TestChecklistUnmarshalYAMLErrors(t *testing.T) {
	for i, doc := range []string{
		"check: StatusCode",
		"- expect: 200",
		"- check: StatusCod\n  expect: 200",
		"- check: StatusCode\n  expect: notanumber",
	} {
		var cl CheckList
		if err := yaml.Unmarshal([]byte(doc), &cl); err == nil {
			t.Errorf("%d. missing error for %q", i, doc)
		}
	}

	var cl CheckList
	err := yaml.Unmarshal([]byte("- check: Statuscode"), &cl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean StatusCode?")
}

// ----------------------------------------------------------------------------
// type TC and runTest: helpers for testing the different checks

type TC struct {
	r Response
	c Check
	e error
}

var errCheck = fmt.Errorf("any error during Execute of a check")
var errDuringPrepare = fmt.Errorf("prepare error")

func runTest(t *testing.T, i int, tc TC) {
	fakeTest := Test{Response: tc.r}
	if prep, ok := tc.c.(Preparable); ok {
		if err := prep.Prepare(); err != nil {
			if tc.e != errDuringPrepare {
				t.Errorf("%d. %s %+v: unexpected error during Prepare %v",
					i, NameOf(tc.c), tc.c, err)
			}
			return // expected error during prepare
		}
	}
	got := tc.c.Execute(&fakeTest)
	switch {
	case got == nil && tc.e == nil:
		return
	case got != nil && tc.e == nil:
		t.Errorf("%d. %s %+v: unexpected error %v",
			i, NameOf(tc.c), tc.c, got)
	case got == nil && tc.e != nil:
		t.Errorf("%d. %s %+v: missing error, want %v",
			i, NameOf(tc.c), tc.c, tc.e)
	case got != nil && tc.e != nil:
		if tc.e == errCheck {
			return // fine, any error
		}
		if tc.e.Error() != got.Error() {
			t.Errorf("%d. %s %+v:\n\tgot  %q  (of type %T)\n\twant %q  (of tyoe %T)",
				i, NameOf(tc.c), tc.c, got, got, tc.e, tc.e)
		}
	}
}

func TestPossibleCheckNames(t *testing.T) {
	valid := strings.Split("Body ContentType CustomJS HTMLTag Header "+
		"JSON JSONMatch StatusCode", " ")

	for _, tc := range []struct {
		name, want string
	}{
		{"JSONMatc", "JSONMatch"},
		{"JSN", "JSON"},
		{"StatusCod", "StatusCode"},
		{"Statuscode", "StatusCode"},
		{"statscode", "StatusCode"},
		{"Hedaer", "Header"},
		{"Grblfmpf", ""},
	} {
		got := strings.Join(possibleNames(tc.name, valid), ", ")
		if got != tc.want {
			t.Errorf("possibleCheckNames(%q) = %q, want %q",
				tc.name, got, tc.want)
		}
	}
}

func TestNameOf(t *testing.T) {
	assert.Equal(t, "StatusCode", NameOf(StatusCode{}))
	assert.Equal(t, "Body", NameOf(&Body{}))
	assert.Equal(t, "<nil>", NameOf(nil))
}
