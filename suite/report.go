// Copyright 2016 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package suite

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"
)

// ----------------------------------------------------------------------------
// Templates to output

var defaultCheckTmpl = `{{define "CHECK"}}{{printf "%-7s %-15s %s" .Status .Name .JSON}}{{if eq .Status 3 5}}
                {{.Error.Error}}{{end}}
{{end}}`

var defaultTestTmpl = `{{define "TEST"}}{{ToUpper .Status.String}}: {{.Name}}{{if .Request.Request}}
  {{.Request.Request.Method}} {{.Request.Request.URL.String}}{{end}}{{if .Response.Response}}
  {{.Response.Response.Proto}} {{.Response.Response.Status}} ({{niceduration .Response.Duration}}){{end}}{{if .Error}}
  Error: {{.Error}}{{end}}{{if .CheckResults}}
  Checks:
{{range .CheckResults}}    {{template "CHECK" .}}{{end}}{{end}}{{if .ExValues}}  Extracted:
{{range $k, $v := .ExValues}}    {{printf "%s = %q" $k $v.Value}}{{if $v.Error}} ({{$v.Error}}){{end}}
{{end}}{{end}}{{end}}`

var shortTestTmpl = `{{define "SHORTTEST"}}{{printf "%-7s %-30s %8s" (ToUpper .Status.String) .Name (niceduration .Response.Duration)}}{{if gt .Status 2}}  {{.Error}}{{end}}
{{end}}`

var defaultSuiteTmpl = `{{box (printf "%s: %s" (ToUpper .Status.String) .Name)}}{{if .Error}}
Error: {{.Error}}{{end}}
Started: {{nicetime .Started}}   Duration: {{niceduration .Duration}}{{if .Interrupted}}   (interrupted){{end}}

{{range .Tests}}{{template "TEST" .}}
{{end}}`

var shortSuiteTmpl = `======  Result of {{.Name}} =======
{{range .Tests}}{{template "SHORTTEST" .}}{{end}}{{printf "===> %s <=== %s" (ToUpper .Status.String) .Name}}
`

// Templates used to generate default and short text output.
var (
	SuiteTmpl      *template.Template
	ShortSuiteTmpl *template.Template
)

// box draws a frame around title.
func box(title string) string {
	n := utf8.RuneCountInString(title)
	line := "+-" + strings.Repeat("-", n) + "-+"
	return line + "\n| " + title + " |\n" + line
}

func dict(args ...interface{}) (map[string]interface{}, error) {
	n := len(args)
	if n%2 == 1 {
		return nil, errors.New("odd number of arguments to dict")
	}
	dict := make(map[string]interface{}, n/2)
	for i := 0; i < n; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key of type %T", args[i])
		}
		dict[key] = args[i+1]
	}
	return dict, nil
}

func roundTimeToMS(t time.Time) time.Time {
	return t.Round(time.Millisecond)
}

// roundDuration d to approximately 3 significant digits (but not less than
// to full second).
func roundDuration(d time.Duration) time.Duration {
	round := func(d time.Duration, to time.Duration) time.Duration {
		return to * ((d + to/2) / to)
	}
	min, sec, ms, mu, ns := time.Minute, time.Second, time.Millisecond, time.Microsecond, time.Nanosecond

	switch {
	case d >= 1*min:
		return round(d, sec)
	case d >= 10*sec:
		return round(d, 100*ms)
	case d >= 1*sec:
		return round(d, 10*ms)
	case d >= 100*ms:
		return round(d, 1*ms)
	case d >= 10*ms:
		return round(d, 100*mu)
	case d >= 1*ms:
		return round(d, 10*mu)
	case d >= 100*mu:
		return round(d, 1*mu)
	case d >= 1*mu:
		return round(d, 100*ns)
	case d >= 100*ns:
		return round(d, 10*ns)
	}
	return d
}

func init() {
	fm := make(template.FuncMap)
	fm["box"] = box
	fm["dict"] = dict
	fm["ToUpper"] = strings.ToUpper
	fm["nicetime"] = roundTimeToMS
	fm["niceduration"] = roundDuration

	SuiteTmpl = template.New("SUITE")
	SuiteTmpl.Funcs(fm)
	SuiteTmpl = template.Must(SuiteTmpl.Parse(defaultSuiteTmpl))
	SuiteTmpl = template.Must(SuiteTmpl.Parse(defaultTestTmpl))
	SuiteTmpl = template.Must(SuiteTmpl.Parse(defaultCheckTmpl))

	ShortSuiteTmpl = template.New("SHORTSUITE")
	ShortSuiteTmpl.Funcs(fm)
	ShortSuiteTmpl = template.Must(ShortSuiteTmpl.Parse(shortSuiteTmpl))
	ShortSuiteTmpl = template.Must(ShortSuiteTmpl.Parse(shortTestTmpl))
}

// PrintReport outputs a textual report of r to w.
func (r *Result) PrintReport(w io.Writer) error {
	return SuiteTmpl.Execute(w, r)
}

// PrintShortReport outputs a short textual report of r to w.
func (r *Result) PrintShortReport(w io.Writer) error {
	return ShortSuiteTmpl.Execute(w, r)
}
