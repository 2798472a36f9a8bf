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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/radmuffin/pizzaht/ht"
)

// Recorder consumes Events.
type Recorder func(Event)

// Record feeds all events from c to the recorders and closes done once c
// is closed.
func Record(c <-chan Event, done chan<- bool, recorders ...Recorder) {
	for e := range c {
		for _, recorder := range recorders {
			recorder(e)
		}
	}
	close(done)
}

func logMessage(l logrus.FieldLogger, e Event) {
	switch e.Typ {
	case StartEvent:
		l.Infof("Begin of load test at %s", e.Start.Format(time.RFC3339))
	case EndEvent:
		l.Infof("Finish of load test, took %s", e.End.Sub(e.Start).Round(time.Millisecond))
	case VUStartEvent:
		l.WithField("vu", e.VU).Debugf("VU started, %d active", e.Active)
	case VUStopEvent:
		l.WithField("vu", e.VU).Debugf("VU stopped after %d iterations, %d active",
			e.Iteration+1, e.Active)
	case IterationEvent:
		entry := l.WithFields(logrus.Fields{"vu": e.VU, "iteration": e.Iteration})
		took := e.End.Sub(e.Start).Round(time.Millisecond)
		if e.Status > ht.Pass {
			for _, t := range e.Tests {
				if t.Status > ht.Pass {
					entry.Warnf("%s %s: %v", t.Status, t.Name, t.Error)
					break
				}
			}
			return
		}
		entry.Debugf("%s in %s", e.Status, took)
	}
}

// NewLoggingRecorder logs events to l. Failed iterations are logged with
// their first failing step.
func NewLoggingRecorder(l logrus.FieldLogger) Recorder {
	return func(e Event) {
		logMessage(l, e)
	}
}

// Sample is the outcome of one step of one iteration.
type Sample struct {
	VU        int
	Iteration int
	Step      int
	Name      string
	Started   time.Time
	Status    ht.Status
	Duration  time.Duration // Of the HTTP request only.
	Error     error
}

// NewDataRecorder collects one Sample per executed step of each
// iteration into data. Skipped steps are omitted.
func NewDataRecorder(data *[]Sample) Recorder {
	return func(e Event) {
		if e.Typ != IterationEvent {
			return
		}
		for i, t := range e.Tests {
			if t.Status == ht.NotRun || t.Status == ht.Skipped {
				continue
			}
			*data = append(*data, Sample{
				VU:        e.VU,
				Iteration: e.Iteration,
				Step:      i,
				Name:      t.Name,
				Started:   t.Started,
				Status:    t.Status,
				Duration:  t.Response.Duration,
				Error:     t.Error,
			})
		}
	}
}

// Counts tallies iterations by status.
type Counts struct {
	Iterations int
	ByStatus   map[ht.Status]int
	MaxVUs     int
}

// NewCountingRecorder counts iterations and the peak number of active VUs.
func NewCountingRecorder(c *Counts) Recorder {
	if c.ByStatus == nil {
		c.ByStatus = make(map[ht.Status]int)
	}
	return func(e Event) {
		if e.Active > c.MaxVUs {
			c.MaxVUs = e.Active
		}
		if e.Typ == IterationEvent {
			c.Iterations++
			c.ByStatus[e.Status]++
		}
	}
}
