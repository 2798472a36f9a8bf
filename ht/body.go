// Copyright 2014 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// body.go contains basic checks on the un-interpreted body of a HTTP response.

package ht

func init() {
	RegisterCheck(&Body{})
}

// ----------------------------------------------------------------------------
// Body

// Body provides simple condition checks on the response body.
type Body Condition

// Execute implements Check's Execute method.
func (b Body) Execute(t *Test) error {
	if t.Response.BodyErr != nil {
		return ErrBadBody
	}
	return Condition(b).Fullfilled(t.Response.BodyStr)
}

// Prepare implements Check's Prepare method.
func (b *Body) Prepare() error {
	return ((*Condition)(b)).Compile()
}
