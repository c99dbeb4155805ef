package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/roach88/fieldnet/internal/config"
	"github.com/roach88/fieldnet/internal/element"
	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/field"
	"github.com/roach88/fieldnet/internal/network"
	"github.com/roach88/fieldnet/internal/phase"
	"github.com/roach88/fieldnet/internal/registry"
	"github.com/roach88/fieldnet/internal/testutil"
	"github.com/roach88/fieldnet/internal/trace"
	"github.com/roach88/fieldnet/internal/visitor"
)

// Harness is the scenario execution engine.
// It builds the declared graph in a fresh registry session with a fixed
// session id, so repeated runs produce identical traces.
type Harness struct {
	scenario  *Scenario
	cfg       *config.Config
	logger    *slog.Logger
	reg       *registry.Registry
	session   *engine.Session
	order     *phase.Order
	collector *trace.Collector

	elements map[string]*element.Element
	cells    map[string]*field.Field
	links    map[string]*field.Link

	model    *network.Model
	neurons  map[string]*network.Neuron
	synapses map[string]*network.Synapse
}

type options struct {
	cfg       *config.Config
	logger    *slog.Logger
	observers []engine.Observer
}

// Option configures Run.
type Option func(*options)

// WithConfig overrides the scenario's config file.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver adds a session observer, e.g. a store.Recorder.
// May be given more than once.
func WithObserver(obs engine.Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, obs)
	}
}

// Run executes a scenario and returns the result.
//
// Expectation failures are reported in the Result. Setup failures and
// scheduler invariant breaches are returned as errors.
func Run(scenario *Scenario, opts ...Option) (result *Result, err error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		if scenario.Config != "" {
			if cfg, err = config.Load(scenario.Config); err != nil {
				return nil, err
			}
		} else {
			cfg = config.Default()
		}
	}

	order, err := cfg.PhaseOrder()
	if len(scenario.Phases) > 0 {
		order, err = phase.NewOrder(scenario.Phases...)
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	h := &Harness{
		scenario:  scenario,
		cfg:       cfg,
		logger:    o.logger,
		reg:       registry.New(registry.WithLogger(o.logger)),
		order:     order,
		collector: trace.NewCollector(),
		elements:  make(map[string]*element.Element),
		cells:     make(map[string]*field.Field),
		links:     make(map[string]*field.Link),
		neurons:   make(map[string]*network.Neuron),
		synapses:  make(map[string]*network.Synapse),
	}

	sessionOpts := []engine.SessionOption{
		engine.WithPhases(order),
		engine.WithLogger(o.logger),
		engine.WithIDGenerator(testutil.NewFixedSessionGenerator(scenario.SessionID)),
		engine.WithObserver(h.collector),
	}
	for _, obs := range o.observers {
		sessionOpts = append(sessionOpts, engine.WithObserver(obs))
	}
	h.session, err = h.reg.Open(sessionOpts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := h.reg.Close(h.session); cerr != nil && err == nil {
			err = cerr
		}
	}()

	// Invariant breaches panic inside the scheduler; surface them as errors.
	defer func() {
		if r := recover(); r != nil {
			var ie *engine.InvariantError
			if e, ok := r.(error); ok && errors.As(e, &ie) {
				result, err = nil, fmt.Errorf("scenario %q: %w", scenario.Name, ie)
				return
			}
			panic(r)
		}
	}()

	if err := h.build(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	result = NewResult()
	for i := range scenario.Actions {
		if err := h.execute(i, &scenario.Actions[i], result); err != nil {
			return nil, fmt.Errorf("scenario %q: actions[%d]: %w", scenario.Name, i, err)
		}
	}

	result.Trace = h.collector.Trace()
	if result.Hash, err = trace.Hash(result.Trace); err != nil {
		return nil, err
	}
	for ref, f := range h.cells {
		result.Values[ref] = f.Value()
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"events", len(result.Trace.Events),
		"executed", h.session.Executed(),
	)
	return result, nil
}

// build creates the declared elements, cells, links and network.
func (h *Harness) build() error {
	sc := h.scenario

	if sc.Network != nil {
		rate := h.cfg.Network.LearningRate
		if sc.Network.LearningRate != nil {
			rate = *sc.Network.LearningRate
		}
		h.model = network.NewModel(h.reg, network.WithLearningRate(rate))
		for _, ns := range sc.Network.Neurons {
			opts := []network.NeuronOption{network.WithThreshold(ns.Threshold), network.WithBias(ns.Bias)}
			if ns.Scope != "" {
				opts = append(opts, network.WithScope(visitor.Scope(ns.Scope)))
			}
			n, err := h.model.NewNeuron(ns.Name, opts...)
			if err != nil {
				return err
			}
			h.neurons[ns.Name] = n
		}
		for _, ss := range sc.Network.Synapses {
			syn := h.model.Connect(h.neurons[ss.From], h.neurons[ss.To], ss.Weight)
			h.synapses[ss.From+"->"+ss.To] = syn
		}
	}

	for _, es := range sc.Elements {
		el := element.New(h.session, es.Name)
		h.elements[es.Name] = el
		for _, cs := range es.Cells {
			rule, err := ruleFor(cs)
			if err != nil {
				return err
			}
			opts := []field.Option{field.WithTolerance(h.cfg.Field.Tolerance)}
			if cs.Tolerance != nil {
				opts = append(opts, field.WithTolerance(*cs.Tolerance))
			}
			if cs.Phase != "" {
				p, ok := h.order.Lookup(cs.Phase)
				if !ok {
					return fmt.Errorf("cell %s.%s: unknown phase %q", es.Name, cs.Name, cs.Phase)
				}
				opts = append(opts, field.Deferred(p))
			}
			if cs.RoundShift != 0 {
				opts = append(opts, field.RoundShift(cs.RoundShift))
			}
			if cs.Initial != 0 {
				opts = append(opts, field.WithInitial(cs.Initial))
			}
			h.cells[es.Name+"."+cs.Name] = field.New(el, cs.Name, rule, opts...)
		}
	}

	for _, ls := range sc.Links {
		weight := 1.0
		if ls.Weight != nil {
			weight = *ls.Weight
		}
		var opts []field.LinkOption
		if ls.Arg != 0 {
			opts = append(opts, field.Arg(ls.Arg))
		}
		if ls.Border {
			opts = append(opts, field.CrossesBorder())
		}
		if ls.NoProp {
			opts = append(opts, field.NoPropagate())
		}

		dst := h.cells[ls.To]
		var l *field.Link
		if ls.Const != nil {
			l = field.NewConstLink(*ls.Const, dst, weight, opts...)
		} else {
			l = field.NewLink(h.cells[ls.From], dst, weight, opts...)
		}
		h.links[ls.Name] = l
		if !ls.Detached {
			l.Connect(true)
		}
	}
	return nil
}

// execute runs one action and checks its expectation.
func (h *Harness) execute(i int, a *Action, result *Result) error {
	verb, err := a.verb()
	if err != nil {
		return err
	}
	h.logger.Debug("action", "index", i, "verb", verb)

	var diverged error
	switch verb {
	case "inject":
		h.cells[a.Inject].Receive(a.Delta)
	case "drain":
		if err := h.drain(a.Drain); err != nil {
			if !engine.IsDivergence(err) {
				return err
			}
			diverged = err
		}
	case "connect":
		initialize := true
		if a.Initialize != nil {
			initialize = *a.Initialize
		}
		h.links[a.Connect].Connect(initialize)
	case "disconnect":
		h.links[a.Disconnect].Disconnect(a.Deinit, a.Unlink)
	case "set_weight":
		h.links[a.SetWeight].SetWeight(a.Weight)
	case "teardown":
		h.elements[a.Teardown].Teardown()
	case "input":
		if _, err := h.model.Input(h.session, h.neurons[a.Input], a.Value); err != nil {
			return err
		}
	}

	if a.Expect == nil {
		if diverged != nil {
			result.AddError(fmt.Sprintf("actions[%d]: unexpected divergence: %v", i, diverged))
		}
		return nil
	}
	h.check(i, a.Expect, diverged, result)
	return nil
}

// drain runs a bounded drain. A guarded drain may return a divergence error.
func (h *Harness) drain(d *DrainSpec) error {
	maxRound := engine.MaxRound
	if d.MaxRound != nil {
		maxRound = *d.MaxRound
	}
	maxPhase := phase.Unset
	if d.MaxPhase != "" {
		p, ok := h.order.Lookup(d.MaxPhase)
		if !ok {
			return fmt.Errorf("drain: unknown phase %q", d.MaxPhase)
		}
		maxPhase = p
	}

	if !d.Guarded {
		h.session.Drain(maxRound, maxPhase)
		return nil
	}
	_, err := h.cfg.Guard().Drain(h.session, maxRound, maxPhase)
	return err
}

func (h *Harness) check(i int, exp *Expectation, diverged error, result *Result) {
	fail := func(format string, args ...any) {
		result.AddError(fmt.Sprintf("actions[%d]: ", i) + fmt.Sprintf(format, args...))
	}

	switch {
	case exp.Diverges && diverged == nil:
		fail("expected divergence, drain converged")
	case !exp.Diverges && diverged != nil:
		fail("unexpected divergence: %v", diverged)
	}

	for _, ref := range sortedKeys(exp.Values) {
		want := exp.Values[ref]
		got := h.cells[ref].Value()
		if math.Abs(got-want) > h.scenario.Tolerance {
			fail("%s = %s, want %s", ref, trace.FormatFloat(got), trace.FormatFloat(want))
		}
	}
	if exp.Queue != nil && h.session.Len() != *exp.Queue {
		fail("queue length = %d, want %d", h.session.Len(), *exp.Queue)
	}
	if exp.Round != nil && h.session.Round() != *exp.Round {
		fail("round = %d, want %d", h.session.Round(), *exp.Round)
	}
	if exp.Executed != nil && h.session.Executed() != *exp.Executed {
		fail("executed = %d, want %d", h.session.Executed(), *exp.Executed)
	}

	for _, name := range sortedKeys(exp.Activations) {
		n, ok := h.neurons[name]
		if !ok {
			fail("unknown neuron %q", name)
			continue
		}
		if got := len(h.model.Activations(n)); got != exp.Activations[name] {
			fail("activations of %s = %d, want %d", name, got, exp.Activations[name])
		}
	}
	for _, name := range sortedKeys(exp.Frequency) {
		n, ok := h.neurons[name]
		if !ok {
			fail("unknown neuron %q", name)
			continue
		}
		if got := n.Frequency(); got != exp.Frequency[name] {
			fail("frequency of %s = %d, want %d", name, got, exp.Frequency[name])
		}
	}
	for _, name := range sortedKeys(exp.Weights) {
		syn, ok := h.synapses[name]
		if !ok {
			fail("unknown synapse %q", name)
			continue
		}
		if math.Abs(syn.Weight()-exp.Weights[name]) > h.scenario.Tolerance {
			fail("weight of %s = %s, want %s", name,
				trace.FormatFloat(syn.Weight()), trace.FormatFloat(exp.Weights[name]))
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
