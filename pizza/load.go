// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pizza contains the load and UI scenarios for the JWT Pizza
// service and its web frontend.
//
// The load scenario LoginAndOrder is a suite of five HTTP calls which
// is executed once per virtual user iteration by suite.Throughput:
//
//     PUT  {{SERVICE}}/api/auth          login, extracts token
//     GET  {{SERVICE}}/api/order/menu
//     GET  {{SERVICE}}/api/franchise
//     POST {{SERVICE}}/api/order         extracts jwt
//     POST {{FACTORY}}/api/order/verify  {"jwt":"{{jwt}}"}
//
// The UI scenarios drive the frontend through a browser.Page with the
// backend replaced by route fixtures.
package pizza

import (
	"net/http"
	"time"

	"github.com/radmuffin/pizzaht/ht"
	"github.com/radmuffin/pizzaht/internal/bender"
	"github.com/radmuffin/pizzaht/suite"
)

// Params of the load scenario.
type Params struct {
	Service  string // Base URL of the pizza service.
	Factory  string // Base URL of the pizza factory.
	Origin   string // Value of the Origin header, empty omits it.
	Email    string
	Password string

	// ThinkTimes are the pauses after login, menu, franchise and
	// order. Missing values are zero.
	ThinkTimes []time.Duration
}

// DefaultThinkTimes are the pauses a recorded diner took.
var DefaultThinkTimes = []time.Duration{
	6 * time.Second,
	10 * time.Second,
	16300 * time.Millisecond,
	2400 * time.Millisecond,
}

// DefaultParams target the diner d@jwt.com of the public deployment.
var DefaultParams = Params{
	Service:    "https://pizza-service.radmuffin.click",
	Factory:    "https://pizza-factory.cs329.click",
	Origin:     "https://pizza.radmuffin.click",
	Email:      "d@jwt.com",
	Password:   "diner",
	ThinkTimes: DefaultThinkTimes,
}

// DefaultStages ramp up to 20 VUs during the first minute, to 40 VUs
// during the second and down to zero in 30 seconds.
var DefaultStages = []bender.Stage{
	{Target: 20, Duration: time.Minute},
	{Target: 40, Duration: time.Minute},
	{Target: 0, Duration: 30 * time.Second},
}

// Graceful stop and ramp-down windows of the default load test.
const (
	DefaultGracefulStop     = 30 * time.Second
	DefaultGracefulRampDown = 30 * time.Second
)

// DefaultLoadOptions returns the ramping profile of the recorded load test.
func DefaultLoadOptions() suite.LoadOptions {
	return suite.LoadOptions{
		Stages:           append([]bender.Stage(nil), DefaultStages...),
		GracefulStop:     DefaultGracefulStop,
		GracefulRampDown: DefaultGracefulRampDown,
	}
}

func (p Params) thinkTime(i int) time.Duration {
	if i < len(p.ThinkTimes) {
		return p.ThinkTimes[i]
	}
	return 0
}

func (p Params) header(auth bool) http.Header {
	h := http.Header{
		"Accept":       {"*/*"},
		"Content-Type": {"application/json"},
	}
	if p.Origin != "" {
		h.Set("Origin", "{{ORIGIN}}")
	}
	if auth {
		h.Set("Authorization", "Bearer {{token}}")
	}
	return h
}

// LoginAndOrder returns the load scenario: a diner logs in, looks at
// the menu and the franchises, orders a Crusty and has the pizza JWT
// verified by the factory. The parameters become suite variables and
// can be overridden per execution.
func LoginAndOrder(p Params) *suite.Suite {
	s := &suite.Suite{
		Name:        "Login and order",
		Description: "Diner logs in, browses menu and franchises, orders and verifies.",
		Variables: map[string]string{
			"SERVICE":  p.Service,
			"FACTORY":  p.Factory,
			"ORIGIN":   p.Origin,
			"EMAIL":    p.Email,
			"PASSWORD": p.Password,
		},
	}

	login := &ht.Test{
		Name: "Login",
		Request: ht.Request{
			Method: http.MethodPut,
			URL:    "{{SERVICE}}/api/auth",
			Header: p.header(false),
			Body:   `{"email":"{{EMAIL}}","password":"{{PASSWORD}}"}`,
		},
		Checks: ht.CheckList{
			ht.StatusCode{Expect: http.StatusOK},
		},
		VarEx: ht.ExtractorMap{
			"token": ht.JSONExtractor{Element: "$.token"},
		},
	}
	menu := &ht.Test{
		Name: "Menu",
		Request: ht.Request{
			Method: http.MethodGet,
			URL:    "{{SERVICE}}/api/order/menu",
			Header: p.header(true),
		},
	}
	franchise := &ht.Test{
		Name: "Franchise",
		Request: ht.Request{
			Method: http.MethodGet,
			URL:    "{{SERVICE}}/api/franchise",
			Header: p.header(true),
		},
	}
	order := &ht.Test{
		Name: "Order",
		Request: ht.Request{
			Method: http.MethodPost,
			URL:    "{{SERVICE}}/api/order",
			Header: p.header(true),
			Body:   `{"items":[{"menuId":4,"description":"Crusty","price":0.0028}],"storeId":"1","franchiseId":1}`,
		},
		Checks: ht.CheckList{
			ht.StatusCode{Expect: http.StatusOK},
		},
		VarEx: ht.ExtractorMap{
			"jwt": ht.JSONExtractor{Element: "jwt"},
		},
	}
	verify := &ht.Test{
		Name: "Verify",
		Request: ht.Request{
			Method: http.MethodPost,
			URL:    "{{FACTORY}}/api/order/verify",
			Header: p.header(true),
			Body:   `{"jwt":"{{jwt}}"}`,
		},
	}

	s.Tests = []*ht.Test{login, menu, franchise, order, verify}
	for i, t := range s.Tests {
		t.Execution.PostSleep = p.thinkTime(i)
	}
	return s
}
