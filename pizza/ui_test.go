// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pizza

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radmuffin/pizzaht/browser"
	"github.com/radmuffin/pizzaht/ht"
	"github.com/radmuffin/pizzaht/internal/pizzatest"
	"github.com/radmuffin/pizzaht/mock"
)

const frontend = "http://localhost:5173"

func fakeFrontend() (pizzatest.Opener, *pizzatest.Service) {
	service := pizzatest.NewService()
	return pizzatest.Opener{
		Backend: service,
		Service: "http://localhost:3000",
		Factory: "https://pizza-factory.example.com",
	}, service
}

var uiOptions = browser.RunOptions{Timeout: time.Second, Poll: 5 * time.Millisecond}

func report(r *browser.Result) string {
	buf := &bytes.Buffer{}
	r.PrintReport(buf)
	return buf.String()
}

func TestUIScenarios(t *testing.T) {
	opener, _ := fakeFrontend()
	for _, sc := range All(frontend) {
		t.Run(sc.Name, func(t *testing.T) {
			result := sc.Run(context.Background(), opener, uiOptions)
			assert.Equal(t, ht.Pass, result.Status, report(result))
		})
	}
}

func TestPurchaseWithLoginValidatesOrder(t *testing.T) {
	opener, service := fakeFrontend()
	sc := PurchaseWithLogin(frontend)
	monitor := make(chan *ht.Test, 20)
	wrapped := browser.OpenerFunc(func(ctx context.Context, rt *mock.Router) (browser.Page, error) {
		rt.Monitor = monitor
		return opener.Open(ctx, rt)
	})

	result := sc.Run(context.Background(), wrapped, uiOptions)
	require.Equal(t, ht.Pass, result.Status, report(result))
	close(monitor)

	invoked := []string{}
	for call := range monitor {
		require.Equal(t, ht.Pass, call.Status, call.Name)
		invoked = append(invoked, call.Request.Method+" "+call.Request.URL)
	}
	assert.Equal(t, []string{
		"GET http://localhost:3000/api/order/menu",
		"GET http://localhost:3000/api/franchise",
		"PUT http://localhost:3000/api/auth",
		"POST http://localhost:3000/api/order",
	}, invoked)

	// Only version.json reached the backend.
	assert.Equal(t, []string{"GET /version.json"}, service.Calls())
}

func TestPurchaseWithLoginWrongStore(t *testing.T) {
	opener, _ := fakeFrontend()
	sc := PurchaseWithLogin(frontend)
	for i, step := range sc.Steps {
		if sel, ok := step.(browser.SelectOption); ok {
			sel.Value = "5"
			sc.Steps[i] = sel
		}
	}

	result := sc.Run(context.Background(), opener, uiOptions)
	require.Equal(t, ht.Fail, result.Status, report(result))
	var ve *mock.ValidationError
	require.True(t, errors.As(result.Error, &ve), "%v", result.Error)
	assert.Equal(t, "order", ve.Mock)
	assert.Contains(t, ve.Error(), "storeId")

	var se *browser.StepError
	require.True(t, errors.As(result.Error, &se))
	assert.Equal(t, "click role=button[name=\"Pay now\"]", se.Step)
}

func TestRegisterAndLogoutFranchisePrompt(t *testing.T) {
	opener, service := fakeFrontend()
	result := RegisterAndLogout(frontend).Run(context.Background(), opener, uiOptions)
	require.Equal(t, ht.Pass, result.Status, report(result))
	assert.Empty(t, service.Calls(), "all calls must be served by fixtures")
}

func TestVerifyJWTAgainstService(t *testing.T) {
	opener, service := fakeFrontend()
	result := VerifyJWT(frontend).Run(context.Background(), opener, uiOptions)
	require.Equal(t, ht.Pass, result.Status, report(result))

	assert.Equal(t, []string{
		"GET /version.json",
		"GET /api/order/menu",
		"GET /api/franchise",
		"PUT /api/auth",
		"PUT /api/auth",
		"PUT /api/auth",
		"POST /api/order",
		"POST /api/order/verify",
		"GET /api/order",
	}, service.Calls())
}

func TestVerifyJWTWithoutService(t *testing.T) {
	opener, _ := fakeFrontend()
	opener.Backend = nil
	result := VerifyJWT(frontend).Run(context.Background(), opener,
		browser.RunOptions{Timeout: 50 * time.Millisecond, Poll: 5 * time.Millisecond})
	assert.Equal(t, ht.Error, result.Status, report(result))
}

func TestUIScenariosIdempotent(t *testing.T) {
	opener, _ := fakeFrontend()
	run := func() []ht.Status {
		var status []ht.Status
		for _, r := range browser.RunAll(context.Background(), All(frontend), opener, uiOptions, 3) {
			status = append(status, r.Status)
		}
		return status
	}
	first := run()
	assert.Equal(t, first, run())
	assert.Equal(t, []ht.Status{ht.Pass, ht.Pass, ht.Pass, ht.Pass, ht.Pass}, first)
}

func TestByName(t *testing.T) {
	sc := ByName(frontend, "verify jwt")
	require.NotNil(t, sc)
	assert.Equal(t, frontend, sc.BaseURL)
	assert.Nil(t, ByName(frontend, "checkout"))

	a, b := PurchaseWithLogin(frontend), PurchaseWithLogin(frontend)
	assert.False(t, a.Fixtures[0] == b.Fixtures[0], "fixtures must be fresh")
}
