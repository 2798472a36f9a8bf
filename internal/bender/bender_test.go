/*
Copyright 2014 Pinterest.com
Copyright 2016 Volker Dobler

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package bender

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radmuffin/pizzaht/ht"
)

var (
	sec = time.Second
	ms  = time.Millisecond
)

var pizzaStages = []Stage{
	{Target: 20, Duration: 60 * sec},
	{Target: 40, Duration: 60 * sec},
	{Target: 0, Duration: 30 * sec},
}

func TestTargetAt(t *testing.T) {
	for i, tc := range []struct {
		at   time.Duration
		want int
	}{
		{0, 0},
		{2999 * ms, 0},
		{3 * sec, 1},
		{30 * sec, 10},
		{59999 * ms, 19},
		{60 * sec, 20},
		{90 * sec, 30},
		{120 * sec, 40},
		{121 * sec, 39}, // Ramp down truncates towards the previous target.
		{135 * sec, 20},
		{149999 * ms, 1},
		{150 * sec, 0},
		{time.Hour, 0},
	} {
		if got := TargetAt(pizzaStages, tc.at); got != tc.want {
			t.Errorf("%d. TargetAt(%s) = %d, want %d", i, tc.at, got, tc.want)
		}
	}

	jump := []Stage{{Target: 5}, {Target: 5, Duration: sec}}
	assert.Equal(t, 5, TargetAt(jump, 0))
	assert.Equal(t, 5, TargetAt(jump, 2*sec))
	assert.Equal(t, 0, TargetAt(nil, sec))
}

func TestTotalAndMax(t *testing.T) {
	assert.Equal(t, 150*sec, TotalDuration(pizzaStages))
	assert.Equal(t, 40, MaxTarget(pizzaStages))
	assert.Equal(t, time.Duration(0), TotalDuration(nil))
}

type collector struct {
	sync.Mutex
	events []Event
}

func (c *collector) record(e Event) {
	c.Lock()
	c.events = append(c.events, e)
	c.Unlock()
}

func runLoad(opts Options, iterate IterationFunc) []Event {
	c := &collector{}
	recorder := make(chan Event, 10)
	done := make(chan bool)
	go Record(recorder, done, c.record)
	RampingVUs(context.Background(), opts, iterate, recorder)
	<-done
	return c.events
}

func TestRampingVUs(t *testing.T) {
	var live, maxLive int64
	iterate := func(ctx context.Context, vu *VU) (ht.Status, []*ht.Test, error) {
		n := atomic.AddInt64(&live, 1)
		for {
			m := atomic.LoadInt64(&maxLive)
			if n <= m || atomic.CompareAndSwapInt64(&maxLive, m, n) {
				break
			}
		}
		time.Sleep(10 * ms)
		atomic.AddInt64(&live, -1)
		return ht.Pass, nil, nil
	}

	events := runLoad(Options{
		Stages: []Stage{
			{Target: 4, Duration: 100 * ms},
			{Target: 4, Duration: 100 * ms},
			{Target: 0, Duration: 100 * ms},
		},
		GracefulStop:     100 * ms,
		GracefulRampDown: 100 * ms,
		Tick:             5 * ms,
	}, iterate)

	require.NotEmpty(t, events)
	assert.Equal(t, StartEvent, events[0].Typ)
	assert.Equal(t, EndEvent, events[len(events)-1].Typ)

	count := make(map[EventType]int)
	started := make(map[int]bool)
	for _, e := range events {
		count[e.Typ]++
		switch e.Typ {
		case VUStartEvent:
			started[e.VU] = true
		case IterationEvent:
			assert.True(t, started[e.VU], "iteration of unstarted VU %d", e.VU)
			assert.Equal(t, ht.Pass, e.Status)
		}
		assert.LessOrEqual(t, e.Active, 4)
	}
	assert.Equal(t, 4, count[VUStartEvent])
	assert.Equal(t, 4, count[VUStopEvent])
	assert.Greater(t, count[IterationEvent], 8)
	assert.LessOrEqual(t, atomic.LoadInt64(&maxLive), int64(4))
	assert.Equal(t, int64(0), atomic.LoadInt64(&live))
}

// VUs which ignore the stop request are cancelled after the graceful
// stop window.
func TestRampingVUsGracefulStop(t *testing.T) {
	iterate := func(ctx context.Context, vu *VU) (ht.Status, []*ht.Test, error) {
		<-ctx.Done()
		return ht.Error, nil, ctx.Err()
	}

	start := time.Now()
	events := runLoad(Options{
		Stages:       []Stage{{Target: 2}, {Target: 2, Duration: 50 * ms}},
		GracefulStop: 100 * ms,
		Tick:         5 * ms,
	}, iterate)
	took := time.Since(start)

	assert.GreaterOrEqual(t, took, 150*ms)
	assert.Less(t, took, 2*sec)

	n := 0
	for _, e := range events {
		if e.Typ == IterationEvent {
			n++
			assert.Equal(t, context.Canceled, e.Err)
			assert.Equal(t, ht.Error, e.Status)
		}
	}
	assert.Equal(t, 2, n)
}

// Surplus VUs of a ramp down are cancelled once the graceful ramp-down
// window elapsed while the remaining VU keeps running.
func TestRampingVUsGracefulRampDown(t *testing.T) {
	iterate := func(ctx context.Context, vu *VU) (ht.Status, []*ht.Test, error) {
		if vu.ID == 1 {
			select {
			case <-vu.Stop:
				return ht.Pass, nil, nil
			case <-ctx.Done():
				return ht.Error, nil, ctx.Err()
			}
		}
		<-ctx.Done()
		return ht.Error, nil, ctx.Err()
	}

	events := runLoad(Options{
		Stages: []Stage{
			{Target: 3},
			{Target: 3, Duration: 50 * ms},
			{Target: 1},
			{Target: 1, Duration: 300 * ms},
		},
		GracefulStop:     time.Hour,
		GracefulRampDown: 50 * ms,
		Tick:             5 * ms,
	}, iterate)

	require.NotEmpty(t, events)
	start := events[0].Start
	stopped := make(map[int]time.Duration)
	for _, e := range events {
		switch e.Typ {
		case VUStopEvent:
			stopped[e.VU] = e.End.Sub(start)
		case IterationEvent:
			if e.VU == 1 {
				assert.Equal(t, ht.Pass, e.Status)
			} else {
				assert.Equal(t, ht.Error, e.Status, "VU %d", e.VU)
				assert.Equal(t, context.Canceled, e.Err)
			}
		}
	}
	require.Len(t, stopped, 3)
	for _, vu := range []int{2, 3} {
		assert.GreaterOrEqual(t, stopped[vu], 90*ms, "VU %d", vu)
		assert.Less(t, stopped[vu], 300*ms, "VU %d", vu)
	}
	assert.GreaterOrEqual(t, stopped[1], 350*ms)
}

// VUs which honour the stop request finish early.
func TestRampingVUsStopRequest(t *testing.T) {
	iterate := func(ctx context.Context, vu *VU) (ht.Status, []*ht.Test, error) {
		select {
		case <-vu.Stop:
			return ht.Pass, nil, nil
		case <-ctx.Done():
			return ht.Error, nil, ctx.Err()
		}
	}

	start := time.Now()
	events := runLoad(Options{
		Stages:       []Stage{{Target: 3}, {Target: 3, Duration: 50 * ms}},
		GracefulStop: time.Hour,
		Tick:         5 * ms,
	}, iterate)
	assert.Less(t, time.Since(start), 2*sec)

	for _, e := range events {
		if e.Typ == IterationEvent {
			assert.Equal(t, ht.Pass, e.Status)
			assert.NoError(t, e.Err)
		}
	}
}

func TestRampingVUsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*ms, cancel)

	recorder := make(chan Event)
	done := make(chan bool)
	counts := Counts{}
	go Record(recorder, done, NewCountingRecorder(&counts))

	start := time.Now()
	RampingVUs(ctx, Options{
		Stages:       []Stage{{Target: 1}, {Target: 1, Duration: time.Hour}},
		GracefulStop: time.Hour,
		Tick:         5 * ms,
	}, func(ctx context.Context, vu *VU) (ht.Status, []*ht.Test, error) {
		<-ctx.Done()
		return ht.Error, nil, ctx.Err()
	}, recorder)
	<-done

	assert.Less(t, time.Since(start), 2*sec)
	assert.Equal(t, 1, counts.Iterations)
	assert.Equal(t, 1, counts.ByStatus[ht.Error])
	assert.Equal(t, 1, counts.MaxVUs)
}

func TestRecorders(t *testing.T) {
	tests := []*ht.Test{
		{Name: "Login", Status: ht.Pass},
		{Name: "Menu", Status: ht.Fail},
		{Name: "Order", Status: ht.Skipped},
	}
	tests[0].Response.Duration = 12 * ms
	tests[1].Response.Duration = 34 * ms

	var data []Sample
	counts := Counts{}
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.Out = buf
	log.SetLevel(logrus.DebugLevel)

	c := make(chan Event)
	done := make(chan bool)
	go Record(c, done, NewDataRecorder(&data), NewCountingRecorder(&counts),
		NewLoggingRecorder(log))
	now := time.Now()
	c <- Event{Typ: StartEvent, Start: now}
	c <- Event{Typ: VUStartEvent, VU: 1, Active: 1}
	c <- Event{Typ: IterationEvent, VU: 1, Iteration: 0, Active: 1,
		Status: ht.Fail, Tests: tests, Start: now, End: now.Add(46 * ms)}
	c <- Event{Typ: VUStopEvent, VU: 1}
	c <- Event{Typ: EndEvent, Start: now, End: now.Add(time.Second)}
	close(c)
	<-done

	require.Len(t, data, 2)
	assert.Equal(t, Sample{VU: 1, Step: 0, Name: "Login", Status: ht.Pass, Duration: 12 * ms}, data[0])
	assert.Equal(t, 1, data[1].Step)
	assert.Equal(t, ht.Fail, data[1].Status)

	assert.Equal(t, 1, counts.Iterations)
	assert.Equal(t, 1, counts.ByStatus[ht.Fail])
	assert.Equal(t, 1, counts.MaxVUs)

	out := buf.String()
	assert.Contains(t, out, "Begin of load test")
	assert.Contains(t, out, "Fail Menu")
	assert.Contains(t, out, "Finish of load test, took 1s")
}
