package network

import (
	"fmt"

	"github.com/roach88/fieldnet/internal/element"
	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/field"
	"github.com/roach88/fieldnet/internal/phase"
	"github.com/roach88/fieldnet/internal/visitor"
)

// requiredPhases are the phases the network's steps are scheduled in.
var requiredPhases = []string{
	phase.NameInputLinking,
	phase.NameLinking,
	phase.NameInference,
	phase.NameTraining,
	phase.NameCounting,
}

// Activation is a session instance of a Neuron.
type Activation struct {
	*element.Element
	visitor.Mark

	model  *Model
	neuron *Neuron
	net    *field.Field
	value  *field.Field
	fired  *field.Field

	inputs  []*Link
	outputs []*Link
}

// Link is a session connection between two activations, instantiating a synapse.
type Link struct {
	synapse *Synapse
	input   *Activation
	output  *Activation
	cell    *field.Link
}

// Synapse returns the instantiated synapse.
func (l *Link) Synapse() *Synapse { return l.synapse }

// From returns the input activation.
func (l *Link) From() *Activation { return l.input }

// To returns the output activation.
func (l *Link) To() *Activation { return l.output }

// Cell returns the field link carrying the weighted value.
func (l *Link) Cell() *field.Link { return l.cell }

// Input implements visitor.Edge.
func (l *Link) Input() visitor.Node { return l.input }

// Output implements visitor.Edge.
func (l *Link) Output() visitor.Node { return l.output }

// Scopes implements visitor.Edge.
func (l *Link) Scopes() (in, out visitor.Scope) {
	return l.input.neuron.scope, l.output.neuron.scope
}

func (l *Link) String() string {
	return fmt.Sprintf("%s->%s", l.input, l.output)
}

// Input creates an activation of n in session s and schedules an InputStep
// that injects value into its net in the input-linking phase.
func (m *Model) Input(s *engine.Session, n *Neuron, value float64) (*Activation, error) {
	if err := s.Phases().Require(requiredPhases...); err != nil {
		return nil, fmt.Errorf("network input: %w", err)
	}
	a := m.newActivation(s, n)
	s.Enqueue(newInputStep(a, value))
	return a, nil
}

func (m *Model) newActivation(s *engine.Session, n *Neuron) *Activation {
	a := &Activation{
		Element: element.New(s, n.label),
		model:   m,
		neuron:  n,
	}
	inference := s.Phases().MustLookup(phase.NameInference)

	a.net = field.New(a, "net", field.Sum{})
	if n.bias != 0 {
		field.NewConstLink(n.bias, a.net, 1).Connect(true)
	}
	a.value = field.New(a, "value", m.fn, field.Deferred(inference))
	field.NewLink(a.net, a.value, 1).Connect(true)
	a.fired = field.New(a, "fired", field.Threshold{Value: n.threshold, Cmp: field.Above})
	field.NewLink(a.value, a.fired, 1).Connect(true)

	a.OnFieldUpdate(func(f *field.Field, old float64) {
		if f == a.fired && old == 0 && f.Value() > 0 {
			a.fire()
		}
	})

	acts, _ := m.activations.Get(n.id)
	m.activations.Put(n.id, append(acts, a))
	s.Logger().Debug("activation created", "neuron", n.String(), "activation", a.ElementID())
	return a
}

// Neuron returns the activated neuron.
func (a *Activation) Neuron() *Neuron { return a.neuron }

// Net returns the net input field.
func (a *Activation) Net() *field.Field { return a.net }

// Value returns the deferred value field.
func (a *Activation) Value() *field.Field { return a.value }

// FiredField returns the threshold field.
func (a *Activation) FiredField() *field.Field { return a.fired }

// InputLinks returns the links into the activation.
func (a *Activation) InputLinks() []*Link { return append([]*Link(nil), a.inputs...) }

// OutputLinks returns the links leaving the activation.
func (a *Activation) OutputLinks() []*Link { return append([]*Link(nil), a.outputs...) }

// Edges implements visitor.Node.
func (a *Activation) Edges(d visitor.Direction) []visitor.Edge {
	links := a.inputs
	if d == visitor.Up {
		links = a.outputs
	}
	out := make([]visitor.Edge, len(links))
	for i, l := range links {
		out[i] = l
	}
	return out
}

// linkedFrom reports whether a already has an input link from src via syn.
func (a *Activation) linkedFrom(src *Activation, syn *Synapse) bool {
	for _, l := range a.inputs {
		if l.input == src && l.synapse == syn {
			return true
		}
	}
	return false
}

// link connects src to dst through syn and pushes src's value across.
func link(src, dst *Activation, syn *Synapse) *Link {
	l := &Link{
		synapse: syn,
		input:   src,
		output:  dst,
		cell:    field.NewLink(src.value, dst.net, syn.weight, field.CrossesBorder()),
	}
	src.outputs = append(src.outputs, l)
	dst.inputs = append(dst.inputs, l)
	l.cell.Connect(true)
	return l
}

// fire runs when the fired field first turns on.
func (a *Activation) fire() {
	s := a.Session()
	if !a.MarkFired() {
		return
	}
	round := s.Round()
	s.Enqueue(newFireStep(a, round))
	if a.model.rate != 0 {
		s.Enqueue(newTrainStep(a, round))
	}
	s.Enqueue(newCountStep(a, round))
}

// discover finds existing activations that should receive a link from a
// through syn: siblings of the target neuron that share an input with a.
// The shared input must have fired before the sibling was created, so links
// attached by hand or ahead of the input's firing are not followed.
func (a *Activation) discover(syn *Synapse) []*Activation {
	c := &visitor.Collector{
		Turn: func(v *visitor.Visitor, n visitor.Node) bool {
			return n != visitor.Node(a)
		},
		Expand: func(v *visitor.Visitor, _ visitor.Edge, _ visitor.Node) bool {
			return !v.IsCompanion()
		},
		Accept: func(v *visitor.Visitor, e visitor.Edge, n visitor.Node) bool {
			if !v.IsCompanion() {
				return false
			}
			cand := n.(*Activation)
			if cand == a || cand.neuron != syn.output || cand.IsDestroyed() || cand.linkedFrom(a, syn) {
				return false
			}
			shared := e.Input().(*Activation)
			return cand.CausedBy(shared.Element)
		},
	}
	a.model.reg.Walk(a, visitor.Config{
		Direction:  visitor.Down,
		Scope:      a.neuron.scope,
		Compatible: a.model.compatible,
		Callbacks:  c,
	})

	var out []*Activation
	seen := make(map[*Activation]bool)
	for _, n := range c.Nodes() {
		cand := n.(*Activation)
		if !seen[cand] {
			seen[cand] = true
			out = append(out, cand)
		}
	}
	return out
}
