/*
Copyright 2014 Pinterest.com
Copyright 2016 Volker Dobler.

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

// Package bender drives closed-loop load tests: a number of virtual users
// (VUs) which loop over iterations of a scenario while the number of
// active VUs follows a ramp schedule.
package bender

import (
	"context"
	"sync"
	"time"

	"github.com/radmuffin/pizzaht/ht"
)

// Stage is one segment of a ramp schedule: the number of active VUs moves
// linearly to Target during Duration.
type Stage struct {
	Target   int           `yaml:"target"`
	Duration time.Duration `yaml:"duration"`
}

// TotalDuration is the length of the schedule.
func TotalDuration(stages []Stage) time.Duration {
	var total time.Duration
	for _, s := range stages {
		total += s.Duration
	}
	return total
}

// TargetAt returns the number of VUs which should be active at elapsed
// time t. Schedules start at 0 VUs; fractional values are truncated
// towards the previous target. After the last stage its target is
// returned.
func TargetAt(stages []Stage, t time.Duration) int {
	prev := 0
	for _, s := range stages {
		if s.Duration > 0 && t < s.Duration {
			frac := float64(t) / float64(s.Duration)
			return prev + int(float64(s.Target-prev)*frac)
		}
		t -= s.Duration
		prev = s.Target
	}
	return prev
}

// MaxTarget is the largest target in stages.
func MaxTarget(stages []Stage) int {
	max := 0
	for _, s := range stages {
		if s.Target > max {
			max = s.Target
		}
	}
	return max
}

// EventType distinguishes the different Events.
type EventType int

const (
	StartEvent     EventType = iota // Once at the start of the load test.
	EndEvent                        // Once at the end, no more events follow.
	VUStartEvent                    // A VU became active.
	VUStopEvent                     // A VU finished.
	IterationEvent                  // A VU finished one iteration.
)

func (t EventType) String() string {
	switch t {
	case StartEvent:
		return "Start"
	case EndEvent:
		return "End"
	case VUStartEvent:
		return "VUStart"
	case VUStopEvent:
		return "VUStop"
	case IterationEvent:
		return "Iteration"
	}
	return "Unknown"
}

// Event is sent to the recorder during the load test.
type Event struct {
	Typ        EventType
	Start, End time.Time // Of the load test or the iteration.
	VU         int       // 1-based VU number, zero for Start and End.
	Iteration  int       // 0-based iteration number of the VU.
	Active     int       // Number of active VUs when sent.

	// Result of an iteration.
	Status ht.Status
	Tests  []*ht.Test
	Err    error
}

// VU is a virtual user.
type VU struct {
	ID        int
	Iteration int

	// Stop is closed when the VU is asked to stop after its current step.
	Stop <-chan struct{}
}

// IterationFunc executes one iteration for the VU. The context is
// cancelled once the graceful stop or ramp-down window has elapsed.
type IterationFunc func(ctx context.Context, vu *VU) (ht.Status, []*ht.Test, error)

// Options controls a load test.
type Options struct {
	Stages []Stage

	// GracefulStop is the time VUs get to finish their current step
	// after the last stage ended.
	GracefulStop time.Duration

	// GracefulRampDown is the time VUs which are no longer needed
	// during a ramp down get to finish their current step.
	GracefulRampDown time.Duration

	// Tick is the interval in which the number of VUs is adjusted.
	// Zero means 100ms.
	Tick time.Duration
}

type vuHandle struct {
	vu     *VU
	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// stopGracefully asks the VU to stop and cancels its context after grace
// unless the VU is done earlier.
func (h *vuHandle) stopGracefully(grace time.Duration) {
	close(h.stop)
	go func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-timer.C:
			h.cancel()
		case <-h.done:
		}
	}()
}

// RampingVUs runs a load test with the number of active VUs following
// opts.Stages. Each VU loops calling iterate until it is asked to stop.
// All events are sent to recorder which is closed at the end. RampingVUs
// blocks until all VUs finished.
func RampingVUs(ctx context.Context, opts Options, iterate IterationFunc, recorder chan<- Event) {
	defer close(recorder)

	tick := opts.Tick
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	start := time.Now()
	recorder <- Event{Typ: StartEvent, Start: start}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		active []*vuHandle
		nextID = 1
	)
	activeCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(active)
	}

	spawn := func() {
		vuCtx, cancel := context.WithCancel(runCtx)
		h := &vuHandle{
			stop:   make(chan struct{}),
			done:   make(chan struct{}),
			cancel: cancel,
		}
		h.vu = &VU{ID: nextID, Stop: h.stop}
		nextID++
		active = append(active, h)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(h.done)
			defer cancel()
			runVU(vuCtx, h, iterate, recorder, activeCount)
		}()
	}

	adjust := func(target int) {
		mu.Lock()
		defer mu.Unlock()
		for len(active) < target {
			spawn()
		}
		for len(active) > target {
			last := active[len(active)-1]
			active = active[:len(active)-1]
			last.stopGracefully(opts.GracefulRampDown)
		}
	}

	total := TotalDuration(opts.Stages)
	adjust(TargetAt(opts.Stages, 0))

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed >= total {
				break loop
			}
			adjust(TargetAt(opts.Stages, elapsed))
		}
	}

	mu.Lock()
	for _, h := range active {
		h.stopGracefully(opts.GracefulStop)
	}
	active = nil
	mu.Unlock()

	wg.Wait()
	recorder <- Event{Typ: EndEvent, Start: start, End: time.Now()}
}

func runVU(ctx context.Context, h *vuHandle, iterate IterationFunc, recorder chan<- Event, active func() int) {
	vu := h.vu
	recorder <- Event{Typ: VUStartEvent, Start: time.Now(), VU: vu.ID, Active: active()}
	defer func() {
		recorder <- Event{Typ: VUStopEvent, End: time.Now(), VU: vu.ID,
			Iteration: vu.Iteration, Active: active()}
	}()

	for it := 0; ; it++ {
		select {
		case <-h.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		vu.Iteration = it
		started := time.Now()
		status, tests, err := iterate(ctx, vu)
		recorder <- Event{
			Typ:       IterationEvent,
			Start:     started,
			End:       time.Now(),
			VU:        vu.ID,
			Iteration: it,
			Active:    active(),
			Status:    status,
			Tests:     tests,
			Err:       err,
		}
	}
}
