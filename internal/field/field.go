package field

import (
	"math"

	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/phase"
)

// DefaultTolerance is the smallest outgoing delta a field forwards.
const DefaultTolerance = 1e-9

// Owner is the graph element a field belongs to.
type Owner interface {
	engine.Element

	// Session returns the scheduling session deferred fields enqueue into.
	Session() *engine.Session

	// Register records f as owned. Called once by New.
	Register(f *Field)

	// FieldUpdated is called after f's value changed from old.
	FieldUpdated(f *Field, old float64)
}

// Field is a scalar cell in the computation graph.
//
// INVARIANTS:
//   - the value only changes by applying a delta through the rule
//   - a deferred field's value never includes a delta whose step has not run
//   - the sum of the output links' delivered deltas equals propagated*weight
type Field struct {
	owner      Owner
	label      string
	rule       Rule
	phase      phase.Phase
	roundShift int
	tolerance  float64

	value      float64
	propagated float64
	injected   float64
	hasInput   bool

	inputs   []*Link
	outputs  []*Link
	detached []*Link

	pending   []update
	step      *Step
	destroyed bool
}

// update is a delta held by a deferred field until its step runs.
type update struct {
	link    *Link
	delta   float64
	retract bool
}

// Option configures a Field.
type Option func(*Field)

// Deferred makes the field recombine in a step of phase p instead of inline.
func Deferred(p phase.Phase) Option {
	return func(f *Field) {
		f.phase = p
	}
}

// RoundShift schedules the field's steps n rounds after the session's
// current round. Used for fields that feed a later convergence pass.
func RoundShift(n int) Option {
	return func(f *Field) {
		f.roundShift = n
	}
}

// WithTolerance sets the smallest outgoing delta that is forwarded.
func WithTolerance(t float64) Option {
	return func(f *Field) {
		f.tolerance = t
	}
}

// WithInitial sets the starting value. It counts as already propagated.
func WithInitial(v float64) Option {
	return func(f *Field) {
		f.value = v
		f.propagated = v
	}
}

// New creates a field owned by owner and registers it there.
//
// owner may be nil for free-standing synchronous fields. A deferred field
// needs an owner with a session.
func New(owner Owner, label string, rule Rule, opts ...Option) *Field {
	f := &Field{
		owner:     owner,
		label:     label,
		rule:      rule,
		phase:     phase.Unset,
		tolerance: DefaultTolerance,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.phase != phase.Unset && owner == nil {
		engine.Fatal(engine.ErrCodeNoOwner, "deferred field %q has no owner", label)
	}
	if owner != nil {
		owner.Register(f)
	}
	return f
}

// Label returns the field label.
func (f *Field) Label() string { return f.label }

// Owner returns the owning element, or nil.
func (f *Field) Owner() Owner { return f.owner }

// Rule returns the combination rule.
func (f *Field) Rule() Rule { return f.rule }

// Value returns the current value.
func (f *Field) Value() float64 { return f.value }

// Phase returns the deferral phase, or phase.Unset for synchronous fields.
func (f *Field) Phase() phase.Phase { return f.phase }

// IsDeferred reports whether updates are applied in a scheduled step.
func (f *Field) IsDeferred() bool { return f.phase != phase.Unset }

// IsDestroyed reports whether the field has been torn down.
func (f *Field) IsDestroyed() bool { return f.destroyed }

// Tolerance returns the forwarding tolerance.
func (f *Field) Tolerance() float64 { return f.tolerance }

// Inputs returns a copy of the registered input links.
func (f *Field) Inputs() []*Link { return copyLinks(f.inputs) }

// Outputs returns a copy of the registered output links.
func (f *Field) Outputs() []*Link { return copyLinks(f.outputs) }

// PendingDelta returns the sum of deltas waiting for the field's step.
func (f *Field) PendingDelta() float64 {
	var sum float64
	for _, u := range f.pending {
		if !u.retract {
			sum += u.delta
		}
	}
	return sum
}

// QueuedStep returns the field's queued step, or nil.
func (f *Field) QueuedStep() *Step {
	if f.step != nil && f.step.IsQueued() {
		return f.step
	}
	return nil
}

// InputSum returns the sum of all input contributions plus injected deltas.
func (f *Field) InputSum() float64 {
	sum := f.injected
	f.eachInput(func(l *Link) {
		sum += l.contribution
	})
	return sum
}

// ArgSum returns the sum of contributions on argument arg. Injected deltas
// count toward argument 0.
func (f *Field) ArgSum(arg int) float64 {
	var sum float64
	if arg == 0 {
		sum = f.injected
	}
	f.eachInput(func(l *Link) {
		if l.arg == arg {
			sum += l.contribution
		}
	})
	return sum
}

// reduceInputs folds the contributions of active inputs. Returns 0 when no
// input is active.
func (f *Field) reduceInputs(init float64, fn func(a, b float64) float64) float64 {
	acc := init
	found := false
	if f.hasInput {
		acc = fn(acc, f.injected)
		found = true
	}
	f.eachInput(func(l *Link) {
		if l.connected || l.contribution != 0 {
			acc = fn(acc, l.contribution)
			found = true
		}
	})
	if !found {
		return 0
	}
	return acc
}

// eachInput visits registered inputs, then unlinked inputs that still hold a contribution.
func (f *Field) eachInput(fn func(l *Link)) {
	for _, l := range f.inputs {
		fn(l)
	}
	for _, l := range f.detached {
		fn(l)
	}
}

// Receive injects an external delta, as if delivered by an unweighted link.
func (f *Field) Receive(delta float64) {
	f.receive(update{delta: delta})
}

// Connect connects every link selected by sel. See Link.Connect.
func (f *Field) Connect(sel Selector, initialize bool) {
	for _, l := range f.selected(sel) {
		l.Connect(initialize)
	}
}

// Disconnect disconnects every link selected by sel. See Link.Disconnect.
func (f *Field) Disconnect(sel Selector, deinitialize, unlink bool) {
	for _, l := range f.selected(sel) {
		l.Disconnect(deinitialize, unlink)
	}
}

// Destroy marks the field torn down. Later deltas and connections into it are
// ignored. Links stay registered for inspection.
func (f *Field) Destroy() {
	if f.destroyed {
		return
	}
	f.destroyed = true
	f.pending = nil
	if st := f.QueuedStep(); st != nil {
		f.owner.Session().Remove(st)
	}
}

func (f *Field) selected(sel Selector) []*Link {
	var out []*Link
	if sel.Dir != Output {
		for _, l := range f.inputs {
			if sel.matches(l) {
				out = append(out, l)
			}
		}
	}
	if sel.Dir != Input {
		for _, l := range f.outputs {
			if sel.matches(l) {
				out = append(out, l)
			}
		}
	}
	return out
}

func (f *Field) receive(u update) {
	if f.destroyed {
		return
	}
	if !f.IsDeferred() {
		f.apply(u)
		f.propagate()
		return
	}

	f.pending = append(f.pending, u)
	if f.QueuedStep() == nil {
		s := f.owner.Session()
		f.step = newStep(f, s.Round()+f.roundShift)
		s.Enqueue(f.step)
	}
}

// process applies all pending deltas. Called by the field's step.
func (f *Field) process() {
	if f.destroyed {
		return
	}
	pending := f.pending
	f.pending = nil
	for _, u := range pending {
		f.apply(u)
	}
	f.propagate()
}

func (f *Field) apply(u update) {
	delta := u.delta
	var prior float64
	if u.link == nil {
		prior = f.injected
		f.injected += delta
		f.hasInput = true
	} else {
		prior = u.link.contribution
		if u.retract {
			delta = -prior
			u.link.contribution = 0
			if !u.link.registered {
				f.detached = removeLink(f.detached, u.link)
			}
		} else {
			u.link.contribution += delta
		}
	}

	old := f.value
	f.value = f.rule.Combine(Update{
		Old:   old,
		Delta: delta,
		Prior: prior,
		Link:  u.link,
		Field: f,
	})

	if f.value != old && f.owner != nil {
		f.owner.FieldUpdated(f, old)
	}
}

// propagate forwards the change since the last propagation, if it exceeds
// the tolerance.
func (f *Field) propagate() {
	delta := f.value - f.propagated
	if math.Abs(delta) <= f.tolerance {
		return
	}
	f.propagated = f.value

	// Iterate a copy: receivers may unlink while we forward.
	for _, l := range copyLinks(f.outputs) {
		if l.connected && l.propagate {
			l.dst.receive(update{link: l, delta: delta * l.weight})
		}
	}
}

func copyLinks(links []*Link) []*Link {
	out := make([]*Link, len(links))
	copy(out, links)
	return out
}
