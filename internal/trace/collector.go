package trace

import (
	"sync"

	"github.com/roach88/fieldnet/internal/engine"
)

// Collector is an engine.Observer that accumulates a Trace in memory.
type Collector struct {
	mu    sync.Mutex
	trace Trace
}

// NewCollector creates an empty collector.
func NewCollector() *Collector { return &Collector{} }

func (c *Collector) add(s *engine.Session, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.trace.SessionID == "" {
		c.trace.SessionID = s.ID()
	}
	ev.Seq = int64(len(c.trace.Events) + 1)
	c.trace.Events = append(c.trace.Events, ev)
}

func (c *Collector) StepAdded(s *engine.Session, st engine.Step) {
	c.add(s, StepEvent(s, KindStepAdded, st))
}

func (c *Collector) StepExecuted(s *engine.Session, st engine.Step) {
	c.add(s, StepEvent(s, KindStepExecuted, st))
}

func (c *Collector) ElementCreated(s *engine.Session, el engine.Element) {
	c.add(s, ElementEvent(s, KindElementCreated, el))
}

func (c *Collector) ElementUpdated(s *engine.Session, el engine.Element) {
	c.add(s, ElementEvent(s, KindElementUpdated, el))
}

// Trace returns a copy of the collected trace.
func (c *Collector) Trace() Trace {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := Trace{SessionID: c.trace.SessionID, Events: make([]Event, len(c.trace.Events))}
	copy(out.Events, c.trace.Events)
	return out
}

// Len returns the number of collected events.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.trace.Events)
}

// Last returns the most recent event.
func (c *Collector) Last() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.trace.Events) == 0 {
		return Event{}, false
	}
	return c.trace.Events[len(c.trace.Events)-1], true
}
