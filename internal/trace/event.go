package trace

import (
	"strconv"

	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/field"
)

// Kind is the type of a trace event.
type Kind string

const (
	KindStepAdded      Kind = "step_added"
	KindStepExecuted   Kind = "step_executed"
	KindElementCreated Kind = "element_created"
	KindElementUpdated Kind = "element_updated"
)

// IsStep reports whether k is a step event.
func (k Kind) IsStep() bool { return k == KindStepAdded || k == KindStepExecuted }

// FieldValue is one field's value in an element snapshot.
type FieldValue struct {
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
}

// Event is one observed session event.
//
// Step events carry the step header; element events carry the element label
// and a snapshot of its fields. Timestamp is the step's insertion timestamp
// for step events and the session clock for element events.
type Event struct {
	Seq       int64        `json:"seq" yaml:"seq"`
	Kind      Kind         `json:"kind" yaml:"kind"`
	Element   int64        `json:"element" yaml:"element"`
	Label     string       `json:"label,omitempty" yaml:"label,omitempty"`
	Step      string       `json:"step,omitempty" yaml:"step,omitempty"`
	Phase     string       `json:"phase,omitempty" yaml:"phase,omitempty"`
	Round     int          `json:"round" yaml:"round"`
	Timestamp int64        `json:"timestamp" yaml:"timestamp"`
	Fields    []FieldValue `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Trace is the event log of one session.
type Trace struct {
	SessionID string  `json:"session_id" yaml:"session_id"`
	Events    []Event `json:"events" yaml:"events"`
}

type labeled interface{ Label() string }

type fieldOwner interface{ Fields() []*field.Field }

// StepEvent builds the event for a step notification.
func StepEvent(s *engine.Session, kind Kind, st engine.Step) Event {
	b := engine.Base(st)
	ev := Event{
		Kind:      kind,
		Step:      st.Kind(),
		Phase:     s.Phases().Name(b.Phase()),
		Round:     b.Round(),
		Timestamp: b.Timestamp(),
	}
	if el := b.Element(); el != nil {
		ev.Element = el.ElementID()
	}
	return ev
}

// ElementEvent builds the event for an element notification.
func ElementEvent(s *engine.Session, kind Kind, el engine.Element) Event {
	ev := Event{
		Kind:      kind,
		Element:   el.ElementID(),
		Round:     s.Round(),
		Timestamp: s.Now(),
	}
	if l, ok := el.(labeled); ok {
		ev.Label = l.Label()
	}
	if o, ok := el.(fieldOwner); ok {
		for _, f := range o.Fields() {
			ev.Fields = append(ev.Fields, FieldValue{Label: f.Label(), Value: f.Value()})
		}
	}
	return ev
}

// FormatFloat renders a float in its shortest round-trip form.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseFloat is the inverse of FormatFloat.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
