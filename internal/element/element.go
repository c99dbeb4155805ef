// Package element implements graph elements: the owners of fields and the
// targets of scheduler steps.
package element

import (
	"fmt"

	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/field"
)

// NotFired is the fired timestamp of an element that has not crossed its threshold.
const NotFired int64 = -1

// UpdateFunc is called after one of an element's fields changed.
type UpdateFunc func(f *field.Field, old float64)

// Element is a node of the session graph. It owns fields, carries a creation
// and a fired timestamp from the session clock, and reports field changes to
// the session's observers.
type Element struct {
	id        int64
	label     string
	session   *engine.Session
	created   int64
	fired     int64
	fields    []*field.Field
	listeners []UpdateFunc
	destroyed bool
}

// New creates an element in session s and fires the ElementCreated hooks.
func New(s *engine.Session, label string) *Element {
	e := &Element{
		id:      s.NewElementID(),
		label:   label,
		session: s,
		created: s.Tick(),
		fired:   NotFired,
	}
	s.NotifyElementCreated(e)
	return e
}

// ElementID returns the session-unique id.
func (e *Element) ElementID() int64 { return e.id }

// Label returns the element label.
func (e *Element) Label() string { return e.label }

// Session returns the owning session.
func (e *Element) Session() *engine.Session { return e.session }

// Created returns the creation timestamp.
func (e *Element) Created() int64 { return e.created }

// Fired returns the fired timestamp, or NotFired.
func (e *Element) Fired() int64 { return e.fired }

// IsFired reports whether the fired timestamp is set.
func (e *Element) IsFired() bool { return e.fired != NotFired }

// IsDestroyed reports whether Teardown has run.
func (e *Element) IsDestroyed() bool { return e.destroyed }

// MarkFired stamps the fired timestamp. Only the first call has an effect.
// Returns true if this call set it.
func (e *Element) MarkFired() bool {
	if e.IsFired() {
		return false
	}
	e.fired = e.session.Tick()
	e.session.NotifyElementUpdated(e)
	return true
}

// CausedBy reports whether other fired before e was created, i.e. whether
// other can be a cause of e.
func (e *Element) CausedBy(other *Element) bool {
	return other.IsFired() && other.fired < e.created
}

// Register records f as owned by e. Registering nil is an invariant breach.
func (e *Element) Register(f *field.Field) {
	if f == nil {
		engine.Fatal(engine.ErrCodeNilField, "nil field registered on element %d (%s)", e.id, e.label)
	}
	e.fields = append(e.fields, f)
}

// Fields returns the owned fields in registration order.
func (e *Element) Fields() []*field.Field {
	out := make([]*field.Field, len(e.fields))
	copy(out, e.fields)
	return out
}

// Field returns the owned field with the given label.
func (e *Element) Field(label string) (*field.Field, bool) {
	for _, f := range e.fields {
		if f.Label() == label {
			return f, true
		}
	}
	return nil, false
}

// OnFieldUpdate registers a listener for field changes.
func (e *Element) OnFieldUpdate(fn UpdateFunc) {
	e.listeners = append(e.listeners, fn)
}

// FieldUpdated implements field.Owner.
func (e *Element) FieldUpdated(f *field.Field, old float64) {
	for _, fn := range e.listeners {
		fn(f, old)
	}
	e.session.NotifyElementUpdated(e)
}

// Teardown disconnects the element from the rest of the graph and destroys
// its fields. Only links that cross the element border are retracted and
// unlinked; internal wiring stays in place for inspection.
func (e *Element) Teardown() {
	if e.destroyed {
		return
	}
	for _, f := range e.fields {
		f.Disconnect(field.BorderLinks, true, true)
	}
	for _, f := range e.fields {
		f.Destroy()
	}
	e.destroyed = true
	e.session.NotifyElementUpdated(e)
}

// String renders the element for logs.
func (e *Element) String() string {
	return fmt.Sprintf("%s#%d", e.label, e.id)
}
