package network

import (
	"fmt"

	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/phase"
)

func lookup(a *Activation, name string) phase.Phase {
	return a.Session().Phases().MustLookup(name)
}

// InputStep injects an external value into an input activation.
type InputStep struct {
	engine.StepBase
	act   *Activation
	value float64
}

func newInputStep(a *Activation, value float64) *InputStep {
	return &InputStep{
		StepBase: engine.NewStepBase(a, lookup(a, phase.NameInputLinking), a.Session().Round()),
		act:      a,
		value:    value,
	}
}

func (s *InputStep) Kind() string { return "input" }

func (s *InputStep) Process() { s.act.net.Receive(s.value) }

// FireStep discovers link targets for a freshly fired activation. Steps
// spawned by a firing run in firing order within their phase.
type FireStep struct {
	engine.StepBase
	act *Activation
}

func newFireStep(a *Activation, round int) *FireStep {
	s := &FireStep{
		StepBase: engine.NewStepBase(a, lookup(a, phase.NameInference), round),
		act:      a,
	}
	s.SetSecondaryKey(a.Fired())
	return s
}

func (s *FireStep) Kind() string { return "fire" }

func (s *FireStep) Dedup() engine.DedupPolicy { return engine.KeepFirst }

func (s *FireStep) Process() {
	a := s.act
	sess := a.Session()
	next := sess.Round() + 1
	for _, syn := range a.neuron.outputs {
		targets := a.discover(syn)
		if len(targets) == 0 {
			sess.Enqueue(newActivationStep(a, syn, next))
			continue
		}
		for _, dst := range targets {
			sess.Enqueue(newLinkStep(a, dst, syn, next))
		}
	}
}

// LinkStep links an activation to an existing target activation.
type LinkStep struct {
	engine.StepBase
	from    *Activation
	to      *Activation
	synapse *Synapse
}

func newLinkStep(from, to *Activation, syn *Synapse, round int) *LinkStep {
	return &LinkStep{
		StepBase: engine.NewStepBase(to, lookup(to, phase.NameLinking), round),
		from:     from,
		to:       to,
		synapse:  syn,
	}
}

func (s *LinkStep) Kind() string {
	return fmt.Sprintf("link:%d:%d", s.synapse.id, s.from.ElementID())
}

func (s *LinkStep) Dedup() engine.DedupPolicy { return engine.KeepFirst }

func (s *LinkStep) Process() {
	if s.to.IsDestroyed() || s.to.linkedFrom(s.from, s.synapse) {
		return
	}
	link(s.from, s.to, s.synapse)
}

// ActivationStep instantiates the output neuron of a synapse and links the
// source activation to it.
type ActivationStep struct {
	engine.StepBase
	from    *Activation
	synapse *Synapse
}

func newActivationStep(from *Activation, syn *Synapse, round int) *ActivationStep {
	return &ActivationStep{
		StepBase: engine.NewStepBase(from, lookup(from, phase.NameLinking), round),
		from:     from,
		synapse:  syn,
	}
}

func (s *ActivationStep) Kind() string { return fmt.Sprintf("activate:%d", s.synapse.id) }

func (s *ActivationStep) Dedup() engine.DedupPolicy { return engine.KeepFirst }

func (s *ActivationStep) Process() {
	dst := s.from.model.newActivation(s.from.Session(), s.synapse.output)
	link(s.from, dst, s.synapse)
}

// TrainStep applies a Hebbian update to the input synapses of a fired
// activation: w += rate * in * out.
type TrainStep struct {
	engine.StepBase
	act *Activation
}

func newTrainStep(a *Activation, round int) *TrainStep {
	s := &TrainStep{
		StepBase: engine.NewStepBase(a, lookup(a, phase.NameTraining), round),
		act:      a,
	}
	s.SetSecondaryKey(a.Fired())
	return s
}

func (s *TrainStep) Kind() string { return "train" }

func (s *TrainStep) Dedup() engine.DedupPolicy { return engine.ReplaceQueued }

func (s *TrainStep) Process() {
	a := s.act
	out := a.value.Value()
	for _, l := range a.inputs {
		if !l.input.IsFired() {
			continue
		}
		dw := a.model.rate * l.input.value.Value() * out
		if dw == 0 {
			continue
		}
		l.synapse.weight += dw
		l.cell.SetWeight(l.synapse.weight)
	}
}

// CountStep counts a fired activation towards its neuron's frequency.
type CountStep struct {
	engine.StepBase
	act *Activation
}

func newCountStep(a *Activation, round int) *CountStep {
	s := &CountStep{
		StepBase: engine.NewStepBase(a, lookup(a, phase.NameCounting), round),
		act:      a,
	}
	s.SetSecondaryKey(a.Fired())
	return s
}

func (s *CountStep) Kind() string { return "count" }

func (s *CountStep) Dedup() engine.DedupPolicy { return engine.KeepFirst }

func (s *CountStep) Process() { s.act.neuron.frequency++ }
