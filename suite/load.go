// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package suite

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/radmuffin/pizzaht/ht"
)

// Load reads a Suite from the YAML file path.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read suite")
	}
	return Parse(data, path)
}

// Parse decodes a Suite from its YAML representation. The name is used in
// error messages and as the suite name if the document lacks one.
//
// A suite file looks like
//
//     name: Login
//     variables:
//       HOST: localhost:3000
//     tests:
//       - name: Login
//         request:
//           method: PUT
//           url: http://{{HOST}}/api/auth
//           body: '{"email":"a@jwt.com","password":"admin"}'
//         checks:
//           - check: StatusCode
//             expect: 200
//         extract:
//           token:
//             extractor: JSONExtractor
//             element: token
//         sleep: 6s
func Parse(data []byte, name string) (*Suite, error) {
	s := &Suite{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errors.Wrapf(err, "cannot parse suite %s", name)
	}
	if s.Name == "" {
		s.Name = name
	}
	if len(s.Tests) == 0 {
		return nil, fmt.Errorf("suite %s has no tests", name)
	}

	errs := ht.ErrorList{}
	for i, test := range s.Tests {
		if test == nil {
			errs = append(errs, fmt.Errorf("test %d is empty", i+1))
			continue
		}
		if test.Name == "" {
			test.Name = fmt.Sprintf("Test %d", i+1)
		}
		if test.Request.URL == "" {
			errs = append(errs, fmt.Errorf("test %d %q: missing URL", i+1, test.Name))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Wrapf(errs, "bad suite %s", name)
	}

	return s, nil
}
