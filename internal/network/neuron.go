package network

import (
	"fmt"
	"math"

	"github.com/roach88/fieldnet/internal/field"
	"github.com/roach88/fieldnet/internal/registry"
	"github.com/roach88/fieldnet/internal/visitor"
)

// DefaultScope is the scope of neurons created without WithScope.
const DefaultScope visitor.Scope = "net"

// Neuron is a persistent node. Activations are its per-session instances.
type Neuron struct {
	id        int64
	label     string
	threshold float64
	bias      float64
	scope     visitor.Scope
	frequency int64

	inputs  []*Synapse
	outputs []*Synapse
}

// NodeID implements registry.Node.
func (n *Neuron) NodeID() int64 { return n.id }

// Label returns the neuron label.
func (n *Neuron) Label() string { return n.label }

// Threshold returns the firing threshold on the activation value.
func (n *Neuron) Threshold() float64 { return n.threshold }

// Bias returns the constant input added to every activation's net.
func (n *Neuron) Bias() float64 { return n.bias }

// Scope returns the structural region the neuron belongs to.
func (n *Neuron) Scope() visitor.Scope { return n.scope }

// Frequency returns how many activations of the neuron were counted.
func (n *Neuron) Frequency() int64 { return n.frequency }

// Inputs returns the synapses feeding the neuron.
func (n *Neuron) Inputs() []*Synapse { return append([]*Synapse(nil), n.inputs...) }

// Outputs returns the synapses leaving the neuron.
func (n *Neuron) Outputs() []*Synapse { return append([]*Synapse(nil), n.outputs...) }

func (n *Neuron) String() string { return fmt.Sprintf("%s(%d)", n.label, n.id) }

// NeuronOption configures a Neuron.
type NeuronOption func(*Neuron)

// WithThreshold sets the firing threshold.
func WithThreshold(t float64) NeuronOption {
	return func(n *Neuron) { n.threshold = t }
}

// WithBias sets the bias.
func WithBias(b float64) NeuronOption {
	return func(n *Neuron) { n.bias = b }
}

// WithScope sets the neuron scope.
func WithScope(s visitor.Scope) NeuronOption {
	return func(n *Neuron) { n.scope = s }
}

// Synapse is a persistent weighted connection between two neurons.
type Synapse struct {
	id     int64
	input  *Neuron
	output *Neuron
	weight float64
}

// ID returns the synapse id.
func (s *Synapse) ID() int64 { return s.id }

// Input returns the presynaptic neuron.
func (s *Synapse) Input() *Neuron { return s.input }

// Output returns the postsynaptic neuron.
func (s *Synapse) Output() *Neuron { return s.output }

// Weight returns the current weight.
func (s *Synapse) Weight() float64 { return s.weight }

func (s *Synapse) String() string {
	return fmt.Sprintf("%s->%s(%g)", s.input.label, s.output.label, s.weight)
}

// Model owns the persistent network and its per-session activation index.
type Model struct {
	reg         *registry.Registry
	rate        float64
	compatible  visitor.Compatible
	fn          field.Func1
	activations *registry.Cache[int64, []*Activation]
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithLearningRate enables Hebbian training at the given rate. Zero disables
// training steps.
func WithLearningRate(r float64) ModelOption {
	return func(m *Model) { m.rate = r }
}

// WithCompatible sets the scope predicate used when discovering link targets.
func WithCompatible(c visitor.Compatible) ModelOption {
	return func(m *Model) { m.compatible = c }
}

// WithActivationFunc sets the value function of activations.
func WithActivationFunc(label string, fn func(float64) float64) ModelOption {
	return func(m *Model) { m.fn = field.Func1{Label: label, Fn: fn} }
}

// NewModel creates an empty model on reg.
func NewModel(reg *registry.Registry, opts ...ModelOption) *Model {
	m := &Model{
		reg:         reg,
		compatible:  visitor.SameScope,
		fn:          field.Func1{Label: "tanh", Fn: math.Tanh},
		activations: registry.NewCache[int64, []*Activation](reg),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the registry the model lives in.
func (m *Model) Registry() *registry.Registry { return m.reg }

// LearningRate returns the Hebbian learning rate.
func (m *Model) LearningRate() float64 { return m.rate }

// NewNeuron creates and registers a neuron.
func (m *Model) NewNeuron(label string, opts ...NeuronOption) (*Neuron, error) {
	n := &Neuron{id: m.reg.NewID(), label: label, scope: DefaultScope}
	for _, opt := range opts {
		opt(n)
	}
	if err := m.reg.Register(n); err != nil {
		return nil, fmt.Errorf("register neuron %q: %w", label, err)
	}
	return n, nil
}

// Connect creates a synapse from in to out.
func (m *Model) Connect(in, out *Neuron, weight float64) *Synapse {
	s := &Synapse{id: m.reg.NewID(), input: in, output: out, weight: weight}
	in.outputs = append(in.outputs, s)
	out.inputs = append(out.inputs, s)
	return s
}

// Activations returns the current session's activations of n in creation order.
func (m *Model) Activations(n *Neuron) []*Activation {
	acts, _ := m.activations.Get(n.id)
	return append([]*Activation(nil), acts...)
}
