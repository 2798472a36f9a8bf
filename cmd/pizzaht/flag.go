// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

// cmdlVar collects variables set on the command line via -D name=value.
type cmdlVar map[string]string

var _ pflag.Value = cmdlVar(nil)

func (v cmdlVar) String() string {
	names := make([]string, 0, len(v))
	for n := range v {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + v[n]
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (v cmdlVar) Set(s string) error {
	part := strings.SplitN(s, "=", 2)
	if len(part) != 2 || part[0] == "" {
		return fmt.Errorf("bad argument %q to -D, want name=value", s)
	}
	v[part[0]] = part[1]
	return nil
}

func (v cmdlVar) Type() string { return "name=value" }
