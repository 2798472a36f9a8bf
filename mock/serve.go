// Copyright 2017 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerShutdownGraceperiode is the time given the mock server
// to shut down.
var ServerShutdownGraceperiode = 250 * time.Millisecond

// NewHandler returns a handler serving mocks together with the Router
// which records validation failures. Mocks with a glob URL are matched
// against the full URL, all others by the path template of their URL.
// Later mocks take precedence.
func NewHandler(mocks []*Mock, log logrus.FieldLogger) (http.Handler, *Router, error) {
	rt := NewRouter(mocks...)
	rt.Log = log

	r := mux.NewRouter()
	// The first matching mux route wins.
	for i := len(mocks) - 1; i >= 0; i-- {
		m := mocks[i]
		var route *mux.Route
		if isGlob(m.URL) {
			route = r.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
				return MatchGlob(m.URL, fullURL(req))
			})
		} else {
			u, err := url.Parse(m.URL)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "mock %s", m.Name)
			}
			path := u.Path
			if path == "" {
				path = "/"
			}
			route = r.Path(path)
		}
		method := "*"
		if m.Method != "" {
			route = route.Methods(m.Method)
			method = m.Method
		}
		route.Handler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			resp, err := rt.fulfill(m, req, mux.Vars(req))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			resp.Write(w)
		}))
		rt.log().Infof("Will handle %s %s", method, m.URL)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rt.log().Infof("No mock for %s %s", req.Method, req.URL)
		http.NotFound(w, req)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		err := &ValidationError{Method: req.Method, URL: fullURL(req),
			Err: fmt.Errorf("no fixture for method %s", req.Method)}
		rt.fail(err)
		rt.report(req, nil, nil, nil, err)
		http.Error(w, err.Error(), http.StatusMethodNotAllowed)
	})

	return r, rt, nil
}

// Serve the given mocks on addr until ctx is done.
func Serve(ctx context.Context, addr string, mocks []*Mock, log logrus.FieldLogger) error {
	handler, _, err := NewHandler(mocks, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "mock server failed")
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), ServerShutdownGraceperiode)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

// Load reads a list of mocks from the YAML file path.
func Load(path string) ([]*Mock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read mocks")
	}
	var mocks []*Mock
	if err := yaml.Unmarshal(data, &mocks); err != nil {
		return nil, errors.Wrapf(err, "cannot parse mocks %s", path)
	}
	for i, m := range mocks {
		if m == nil || m.URL == "" {
			return nil, fmt.Errorf("mock %d in %s: missing url", i+1, path)
		}
		if m.Name == "" {
			m.Name = fmt.Sprintf("Mock %d", i+1)
		}
	}
	return mocks, nil
}
