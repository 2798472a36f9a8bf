// Copyright 2026 The pizzaht Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config reads the pizzaht configuration file.
//
// A configuration file is YAML:
//
//     service: https://pizza-service.example.com
//     factory: https://pizza-factory.example.com
//     email: d@jwt.com
//     password: diner
//     load:
//       stages:
//         - {target: 20, duration: 1m}
//         - {target: 40, duration: 1m}
//         - {target: 0, duration: 30s}
//       graceful_stop: 30s
//       graceful_ramp_down: 30s
//       think_times: [6s, 10s, 16.3s, 2.4s]
//     ui:
//       base_url: http://localhost:5173
//       headless: true
//       timeout: 5s
//       parallel: 2
//     log:
//       level: info
//       format: text
//
// Omitted values keep their defaults. The environment variables
// PIZZAHT_SERVICE, PIZZAHT_FACTORY, PIZZAHT_EMAIL, PIZZAHT_PASSWORD and
// PIZZAHT_BASE_URL override the file.
package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/radmuffin/pizzaht/browser"
	"github.com/radmuffin/pizzaht/ht"
	"github.com/radmuffin/pizzaht/internal/bender"
	"github.com/radmuffin/pizzaht/pizza"
	"github.com/radmuffin/pizzaht/suite"
)

// Config of pizzaht.
type Config struct {
	Service  string `yaml:"service"`
	Factory  string `yaml:"factory"`
	Origin   string `yaml:"origin,omitempty"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	Load LoadConfig `yaml:"load"`
	UI   UIConfig   `yaml:"ui"`
	Log  LogConfig  `yaml:"log"`
}

// LoadConfig configures the load test.
type LoadConfig struct {
	Stages           []bender.Stage  `yaml:"stages"`
	GracefulStop     time.Duration   `yaml:"graceful_stop"`
	GracefulRampDown time.Duration   `yaml:"graceful_ramp_down"`
	ThinkTimes       []time.Duration `yaml:"think_times"`
	NoThinkTime      bool            `yaml:"no_think_time,omitempty"`
}

// UIConfig configures the UI scenarios.
type UIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Headless   bool          `yaml:"headless"`
	Timeout    time.Duration `yaml:"timeout"`
	ChromePath string        `yaml:"chrome_path,omitempty"`
	Parallel   int           `yaml:"parallel"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // logrus level name
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration of the recorded load test against
// the public deployment and a local frontend.
func Default() *Config {
	p := pizza.DefaultParams
	return &Config{
		Service:  p.Service,
		Factory:  p.Factory,
		Origin:   p.Origin,
		Email:    p.Email,
		Password: p.Password,
		Load: LoadConfig{
			Stages:           append([]bender.Stage(nil), pizza.DefaultStages...),
			GracefulStop:     pizza.DefaultGracefulStop,
			GracefulRampDown: pizza.DefaultGracefulRampDown,
			ThinkTimes:       append([]time.Duration(nil), pizza.DefaultThinkTimes...),
		},
		UI: UIConfig{
			BaseURL:  "http://localhost:5173",
			Headless: true,
			Timeout:  browser.DefaultTimeout,
			Parallel: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration file path on top of the defaults and
// applies the environment overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read config")
		}
		if err := Parse(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "config %s", path)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// Parse decodes YAML data into cfg. Fields absent in data are kept.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return errors.Wrap(err, "cannot parse config")
	}
	return nil
}

// ApplyEnv overrides cfg with the PIZZAHT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for name, field := range map[string]*string{
		"PIZZAHT_SERVICE":  &c.Service,
		"PIZZAHT_FACTORY":  &c.Factory,
		"PIZZAHT_EMAIL":    &c.Email,
		"PIZZAHT_PASSWORD": &c.Password,
		"PIZZAHT_BASE_URL": &c.UI.BaseURL,
	} {
		if v, ok := lookup(name); ok && v != "" {
			*field = v
		}
	}
}

func checkURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %s", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: %q is not an absolute http(s) URL", name, raw)
	}
	return nil
}

// Validate reports all problems of c.
func (c *Config) Validate() error {
	el := ht.ErrorList{}
	for _, u := range []struct{ name, value string }{
		{"service", c.Service},
		{"factory", c.Factory},
		{"ui.base_url", c.UI.BaseURL},
	} {
		if err := checkURL(u.name, u.value); err != nil {
			el = append(el, err)
		}
	}
	if c.Email == "" {
		el = append(el, errors.New("email: missing"))
	}
	if err := suite.ValidateStages(c.Load.Stages); err != nil {
		el = append(el, fmt.Errorf("load.stages: %s", err))
	}
	if c.Load.GracefulStop < 0 {
		el = append(el, errors.New("load.graceful_stop: negative"))
	}
	if c.Load.GracefulRampDown < 0 {
		el = append(el, errors.New("load.graceful_ramp_down: negative"))
	}
	for i, d := range c.Load.ThinkTimes {
		if d < 0 {
			el = append(el, fmt.Errorf("load.think_times[%d]: negative", i))
		}
	}
	if c.UI.Timeout <= 0 {
		el = append(el, errors.New("ui.timeout: must be positive"))
	}
	if c.UI.Parallel < 1 {
		el = append(el, errors.New("ui.parallel: must be at least 1"))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		el = append(el, fmt.Errorf("log.level: %s", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		el = append(el, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return el.Err()
}

// Params returns the parameters of the load scenario.
func (c *Config) Params() pizza.Params {
	return pizza.Params{
		Service:    strings.TrimSuffix(c.Service, "/"),
		Factory:    strings.TrimSuffix(c.Factory, "/"),
		Origin:     c.Origin,
		Email:      c.Email,
		Password:   c.Password,
		ThinkTimes: c.Load.ThinkTimes,
	}
}

// LoadOptions returns the options of the load test.
func (c *Config) LoadOptions() suite.LoadOptions {
	return suite.LoadOptions{
		Stages:           c.Load.Stages,
		GracefulStop:     c.Load.GracefulStop,
		GracefulRampDown: c.Load.GracefulRampDown,
		NoThinkTime:      c.Load.NoThinkTime,
	}
}

// Opener returns the browser used for UI scenarios.
func (c *Config) Opener(log logrus.FieldLogger) browser.Opener {
	return browser.ChromeOpener{
		Headless: c.UI.Headless,
		ExecPath: c.UI.ChromePath,
		Log:      log,
	}
}

// Logger returns a logger configured by c.Log.
func (c *Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetLevel(level)
	switch c.Log.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return log, nil
}
