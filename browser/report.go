// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package browser

import (
	"io"
	"strings"
	"text/template"
	"time"
)

var resultTmpl = `{{printf "%-7s %s" (ToUpper .Status.String) .Name}}  ({{niceduration .Duration}})
{{range $i, $s := .Steps}}{{printf "  %2d %-7s %8s  %s" (inc $i) .Status.String (niceduration .Duration) .Step}}{{if .Error}}
             {{.Error}}{{end}}
{{end}}`

// ResultTmpl renders a single Result.
var ResultTmpl = template.Must(template.New("RESULT").Funcs(template.FuncMap{
	"ToUpper": strings.ToUpper,
	"inc":     func(i int) int { return i + 1 },
	"niceduration": func(d time.Duration) string {
		return d.Round(time.Millisecond).String()
	},
}).Parse(resultTmpl))

// PrintReport writes a textual report of r to w.
func (r *Result) PrintReport(w io.Writer) error {
	return ResultTmpl.Execute(w, r)
}
