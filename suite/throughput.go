// Copyright 2016 Volker Dobler.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package suite

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/radmuffin/pizzaht/ht"
	"github.com/radmuffin/pizzaht/internal/asciistat"
	"github.com/radmuffin/pizzaht/internal/bender"
	"github.com/radmuffin/pizzaht/scope"
)

// LoadOptions control a load test.
type LoadOptions struct {
	Stages           []bender.Stage
	GracefulStop     time.Duration
	GracefulRampDown time.Duration

	// Tick is the VU adjustment interval, zero means 100ms.
	Tick time.Duration

	// Variables are handed to each suite execution. The variables VU
	// and ITER are added per iteration.
	Variables map[string]string

	Log         logrus.FieldLogger
	Verbosity   int
	NoThinkTime bool
}

// LoadResult is the outcome of a load test.
type LoadResult struct {
	ID       string
	Suite    string
	Started  time.Time
	Duration time.Duration

	Iterations int
	ByStatus   map[ht.Status]int // Iterations by status.
	MaxVUs     int

	Samples []bender.Sample
}

// Throughput runs s repeatedly by virtual users whose number follows
// opts.Stages. Each iteration is one execution of s with a fresh cookie
// jar and its own client. A failing test aborts only the iteration it
// belongs to.
func Throughput(ctx context.Context, s *Suite, opts LoadOptions) (*LoadResult, error) {
	if len(s.Tests) == 0 {
		return nil, fmt.Errorf("suite %s has no tests", s.Name)
	}
	if err := ValidateStages(opts.Stages); err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = discard
	}
	result := &LoadResult{
		ID:      uuid.NewString(),
		Suite:   s.Name,
		Samples: make([]bender.Sample, 0, 1000),
	}
	log = log.WithField("run", result.ID)

	recorder := make(chan bender.Event, 100)
	done := make(chan bool)
	counts := bender.Counts{}
	go bender.Record(recorder, done,
		bender.NewLoggingRecorder(log),
		bender.NewDataRecorder(&result.Samples),
		bender.NewCountingRecorder(&counts))

	iterate := func(ctx context.Context, vu *bender.VU) (ht.Status, []*ht.Test, error) {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return ht.Bogus, nil, err
		}
		client := &http.Client{
			Transport: ht.Transport,
			Jar:       jar,
			Timeout:   ht.DefaultClientTimeout,
		}
		vars := scope.New(scope.Variables{
			"VU":   strconv.Itoa(vu.ID),
			"ITER": strconv.Itoa(vu.Iteration),
		}, opts.Variables, false)
		r := s.Execute(ctx, vars, Options{
			Jar:         jar,
			Client:      client,
			Log:         log.WithFields(logrus.Fields{"vu": vu.ID, "iteration": vu.Iteration}),
			Verbosity:   opts.Verbosity,
			NoThinkTime: opts.NoThinkTime,
			Stop:        vu.Stop,
		})
		return r.Status, r.Tests, r.Error
	}

	result.Started = time.Now()
	bender.RampingVUs(ctx, bender.Options{
		Stages:           opts.Stages,
		GracefulStop:     opts.GracefulStop,
		GracefulRampDown: opts.GracefulRampDown,
		Tick:             opts.Tick,
	}, iterate, recorder)
	<-done
	result.Duration = time.Since(result.Started)

	result.Iterations = counts.Iterations
	result.ByStatus = counts.ByStatus
	result.MaxVUs = counts.MaxVUs

	if err := ctx.Err(); err != nil {
		return result, errors.Wrap(err, "load test aborted")
	}
	return result, nil
}

// ValidateStages checks that stages describe a usable ramp schedule.
func ValidateStages(stages []bender.Stage) error {
	if len(stages) == 0 {
		return errors.New("no stages")
	}
	for i, s := range stages {
		if s.Target < 0 {
			return fmt.Errorf("stage %d: negative target %d", i+1, s.Target)
		}
		if s.Duration < 0 {
			return fmt.Errorf("stage %d: negative duration %s", i+1, s.Duration)
		}
	}
	if bender.TotalDuration(stages) <= 0 {
		return errors.New("stages have zero total duration")
	}
	return nil
}

// ----------------------------------------------------------------------------
// Summary

// Latency summarises request durations.
type Latency struct {
	Min, Mean, P50, P90, P95, P99, Max time.Duration
}

// StepSummary summarises all samples of one test of the suite.
type StepSummary struct {
	Step    int
	Name    string
	Count   int
	Failed  int // Status worse than Pass.
	Latency Latency
}

// Summary of a load test.
type Summary struct {
	ID         string
	Suite      string
	Duration   time.Duration
	MaxVUs     int
	Iterations int
	ByStatus   map[ht.Status]int
	Requests   int
	Failed     int
	Overall    Latency
	Steps      []StepSummary
}

func dToMs(d time.Duration) float64 { return float64(d/1000) / 1000 }

func msToD(ms float64) time.Duration { return time.Duration(ms * float64(time.Millisecond)) }

// latency computes the latency distribution of the durations given in
// milliseconds.
func latency(ms stats.Float64Data) Latency {
	if len(ms) == 0 {
		return Latency{}
	}
	l := Latency{}
	at := func(p float64) time.Duration {
		v, err := stats.Percentile(ms, p)
		if err != nil {
			return 0
		}
		return msToD(v)
	}
	min, _ := stats.Min(ms)
	max, _ := stats.Max(ms)
	mean, _ := stats.Mean(ms)
	l.Min, l.Max, l.Mean = msToD(min), msToD(max), msToD(mean)
	l.P50, l.P90, l.P95, l.P99 = at(50), at(90), at(95), at(99)
	return l
}

// Summary computes counts and latency percentiles of r.
func (r *LoadResult) Summary() Summary {
	sum := Summary{
		ID:         r.ID,
		Suite:      r.Suite,
		Duration:   r.Duration,
		MaxVUs:     r.MaxVUs,
		Iterations: r.Iterations,
		ByStatus:   r.ByStatus,
	}

	all := make(stats.Float64Data, 0, len(r.Samples))
	perStep := make(map[int]stats.Float64Data)
	steps := make(map[int]*StepSummary)
	for _, s := range r.Samples {
		sum.Requests++
		ss, ok := steps[s.Step]
		if !ok {
			ss = &StepSummary{Step: s.Step, Name: s.Name}
			steps[s.Step] = ss
		}
		ss.Count++
		if s.Status > ht.Pass {
			sum.Failed++
			ss.Failed++
		}
		// Requests which never got a response carry no latency.
		if s.Status == ht.Error || s.Status == ht.Bogus {
			continue
		}
		ms := dToMs(s.Duration)
		all = append(all, ms)
		perStep[s.Step] = append(perStep[s.Step], ms)
	}
	sum.Overall = latency(all)

	order := make([]int, 0, len(steps))
	for i := range steps {
		order = append(order, i)
	}
	sort.Ints(order)
	for _, i := range order {
		ss := steps[i]
		ss.Latency = latency(perStep[i])
		sum.Steps = append(sum.Steps, *ss)
	}
	return sum
}

// Print writes a textual summary to out.
func (s Summary) Print(out io.Writer) error {
	ew := &errWriter{w: out}
	ew.printf("Load test %s of suite %q\n", s.ID, s.Suite)
	ew.printf("Duration %s, max %d VUs\n", roundDuration(s.Duration), s.MaxVUs)
	ew.printf("Iterations: %d total", s.Iterations)
	for st := ht.Pass; st <= ht.Bogus; st++ {
		ew.printf(", %d %s", s.ByStatus[st], st)
	}
	ew.printf("\nRequests:   %d total, %d failed\n\n", s.Requests, s.Failed)

	ew.printf("%-4s %-28s %6s %6s %9s %9s %9s %9s %9s %9s %9s\n",
		"#", "Step", "Count", "Fail", "Min", "Mean", "P50", "P90", "P95", "P99", "Max")
	row := func(no, name string, count, failed int, l Latency) {
		ew.printf("%-4s %-28s %6d %6d %9s %9s %9s %9s %9s %9s %9s\n",
			no, name, count, failed,
			roundDuration(l.Min), roundDuration(l.Mean), roundDuration(l.P50),
			roundDuration(l.P90), roundDuration(l.P95), roundDuration(l.P99),
			roundDuration(l.Max))
	}
	for _, st := range s.Steps {
		row(strconv.Itoa(st.Step+1), st.Name, st.Count, st.Failed, st.Latency)
	}
	row("", "all", s.Requests, s.Failed, s.Overall)
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, a ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, a...)
}

// Plot draws the latency distribution of each step of r as box plots of
// the given width to out.
func (r *LoadResult) Plot(out io.Writer, width int) error {
	index := make(map[int]int)
	var steps []int
	for _, s := range r.Samples {
		if _, ok := index[s.Step]; !ok {
			index[s.Step] = -1
			steps = append(steps, s.Step)
		}
	}
	sort.Ints(steps)
	for i, step := range steps {
		index[step] = i
	}
	series := make([]asciistat.Series, len(steps))
	for _, s := range r.Samples {
		i := index[s.Step]
		series[i].Name = s.Name
		if s.Status == ht.Error || s.Status == ht.Bogus {
			continue
		}
		series[i].Latencies = append(series[i].Latencies, s.Duration)
	}
	if err := asciistat.Plot(out, series, width); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out, asciistat.Legend)
	return err
}

// ----------------------------------------------------------------------------
// Raw data

// PrintSamples writes all samples of r as a table to out.
func (r *LoadResult) PrintSamples(out io.Writer) {
	timeLayout := "2006-01-02T15:04:05.999"

	fmt.Fprintln(out, "Started                  Status   Duration  VU/Iter/Step  Test                 Error")
	fmt.Fprintln(out, "===========================================================================================")
	for _, d := range r.Samples {
		emsg := ""
		if d.Error != nil {
			emsg = d.Error.Error()
		}
		fmt.Fprintf(out, "%-24s %-8s %8.2f  %-12s  %-20s %s\n",
			d.Started.Format(timeLayout), d.Status,
			dToMs(d.Duration),
			fmt.Sprintf("%d/%d/%d", d.VU, d.Iteration, d.Step+1),
			d.Name, emsg)
	}
}

// WriteCSV writes all samples of r in CSV format to out.
func (r *LoadResult) WriteCSV(out io.Writer) error {
	writer := csv.NewWriter(out)

	header := []string{
		"Number",
		"Started",
		"Elapsed",
		"VU",
		"Iteration",
		"Step",
		"Test",
		"Status",
		"Duration",
		"Error",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	var first time.Time
	for i, d := range r.Samples {
		if i == 0 || d.Started.Before(first) {
			first = d.Started
		}
	}

	rec := make([]string, 0, len(header))
	for i, d := range r.Samples {
		rec = append(rec, strconv.Itoa(i))
		rec = append(rec, d.Started.Format("2006-01-02T15:04:05.99999Z07:00"))
		rec = append(rec, fmt.Sprintf("%.3f", dToMs(d.Started.Sub(first))))
		rec = append(rec, strconv.Itoa(d.VU))
		rec = append(rec, strconv.Itoa(d.Iteration))
		rec = append(rec, strconv.Itoa(d.Step+1))
		rec = append(rec, d.Name)
		rec = append(rec, d.Status.String())
		rec = append(rec, fmt.Sprintf("%.3f", dToMs(d.Duration)))
		if d.Error != nil {
			rec = append(rec, d.Error.Error())
		} else {
			rec = append(rec, "")
		}

		if err := writer.Write(rec); err != nil {
			return err
		}
		rec = rec[:0]
	}

	writer.Flush()
	return writer.Error()
}
