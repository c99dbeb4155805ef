package engine

import (
	"log/slog"
	"slices"

	"github.com/roach88/fieldnet/internal/phase"
)

// Session is one scheduling session: a queue, a round counter, a timestamp
// clock and a current-step slot.
//
// Thread-safety: a Session must be driven by a single goroutine. Sessions
// share no state with each other.
//
// INVARIANTS:
//   - the round counter never decreases
//   - every queued step is in the queue exactly once, at the position its key implies
//   - at most one step runs at a time; Drain and Next never nest
type Session struct {
	id        string
	phases    *phase.Order
	clock     *Clock
	elements  *Clock
	round     int
	queue     *stepQueue
	byElement map[int64][]Step
	current   Step
	executed  int64
	observers []Observer
	logger    *slog.Logger
	idGen     SessionIDGenerator
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPhases sets the declared phase order. Default: phase.Default().
func WithPhases(o *phase.Order) SessionOption {
	return func(s *Session) {
		s.phases = o
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithObserver registers an observer. May be given more than once.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		s.observers = append(s.observers, o)
	}
}

// WithIDGenerator sets the session id generator. Default: UUIDv7Generator.
func WithIDGenerator(g SessionIDGenerator) SessionOption {
	return func(s *Session) {
		s.idGen = g
	}
}

// NewSession creates an empty session in round 0.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		phases:    phase.Default(),
		clock:     NewClock(),
		elements:  NewClock(),
		queue:     newStepQueue(),
		byElement: make(map[int64][]Step),
		logger:    slog.Default(),
		idGen:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.id = s.idGen.Generate()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Phases returns the declared phase order.
func (s *Session) Phases() *phase.Order { return s.phases }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Round returns the current round.
func (s *Session) Round() int { return s.round }

// Len returns the number of queued steps.
func (s *Session) Len() int { return s.queue.len() }

// Executed returns the number of steps processed so far.
func (s *Session) Executed() int64 { return s.executed }

// Current returns the running step, or nil between steps.
func (s *Session) Current() Step { return s.current }

// Tick advances the session clock and returns the new timestamp. Elements use
// it for creation and fired timestamps so they share the step order.
func (s *Session) Tick() int64 { return s.clock.Next() }

// Now returns the last issued timestamp.
func (s *Session) Now() int64 { return s.clock.Current() }

// NewElementID allocates a session-unique element id.
func (s *Session) NewElementID() int64 { return s.elements.Next() }

// Enqueue assigns st the next timestamp and inserts it into the queue.
//
// If st's kind declares a dedup policy and a step of the same kind is queued
// for the same (element, phase), the policy decides: KeepFirst drops st and
// returns false; ReplaceQueued removes the queued step first.
//
// Enqueue is safe to call from inside a running step.
func (s *Session) Enqueue(st Step) bool {
	b := st.base()
	if b.queued {
		s.fatal(ErrCodeDoubleEnqueue, st, "step enqueued while already queued")
	}
	if b.session != nil && b.session != s {
		s.fatal(ErrCodeForeignStep, st, "step belongs to another session")
	}
	if !s.phases.Contains(b.phase) {
		s.fatal(ErrCodeUnknownPhase, st, "step phase is not declared in the session order")
	}

	if policy := dedupPolicy(st); policy != AllowDuplicates {
		if queued := s.findDuplicate(st); queued != nil {
			switch policy {
			case KeepFirst:
				s.logger.Debug("step collapsed",
					"session", s.id,
					"kind", st.Kind(),
					"policy", policy.String(),
				)
				return false
			case ReplaceQueued:
				s.Remove(queued)
			}
		}
	}

	b.session = s
	b.timestamp = s.clock.Next()
	b.queued = true
	s.queue.insert(st)
	s.index(st)

	for _, o := range s.observers {
		o.StepAdded(s, st)
	}
	return true
}

// Remove takes a queued step out of the queue. Returns false if st is not
// queued. Panics if st is marked queued but not at its expected position.
func (s *Session) Remove(st Step) bool {
	b := st.base()
	if !b.queued {
		return false
	}
	if b.session != s {
		s.fatal(ErrCodeForeignStep, st, "step belongs to another session")
	}
	if !s.queue.remove(st) {
		s.fatal(ErrCodeBadRemoval, st, "step not found at its expected queue position")
	}
	b.queued = false
	s.unindex(st)
	return true
}

// Next pops and runs the lowest-ordered step. Returns false if the queue is empty.
func (s *Session) Next() bool {
	if s.current != nil {
		s.fatal(ErrCodeReentrantDrain, s.current, "Next called from inside a running step")
	}
	st, ok := s.queue.pop()
	if !ok {
		return false
	}
	s.run(st)
	return true
}

// Drain runs steps while the queue is non-empty and the top step lies within
// the bound. Returns the number of steps executed.
//
// The bound is lexicographic: a step passes if its round is below maxRound,
// or equals maxRound and its phase is at most maxPhase. phase.Unset lifts the
// phase bound. With maxRound == MaxRound the round bound is lifted and
// maxPhase applies to every round, so Drain(MaxRound, p) runs up to and
// including phase p and stops at the first later phase.
func (s *Session) Drain(maxRound int, maxPhase phase.Phase) int {
	if s.current != nil {
		s.fatal(ErrCodeReentrantDrain, s.current, "Drain called from inside a running step")
	}

	n := 0
	for s.ready(maxRound, maxPhase) {
		s.Next()
		n++
	}

	s.logger.Debug("drain finished",
		"session", s.id,
		"executed", n,
		"round", s.round,
		"queued", s.queue.len(),
	)
	return n
}

// ready reports whether the top step lies within the (round, phase) bound.
func (s *Session) ready(maxRound int, maxPhase phase.Phase) bool {
	top, ok := s.queue.peek()
	if !ok {
		return false
	}
	b := top.base()
	if b.round > maxRound {
		return false
	}
	if maxPhase == phase.Unset || b.phase <= maxPhase {
		return true
	}
	// Phase beyond the bound: only earlier rounds may still run.
	if maxRound == MaxRound {
		return false
	}
	return b.round < maxRound
}

// Peek returns the lowest-ordered queued step without removing it.
func (s *Session) Peek() (Step, bool) {
	return s.queue.peek()
}

// Snapshot returns the queued steps in execution order. The slice is a copy;
// it stays stable while steps run and enqueue.
func (s *Session) Snapshot() []Step {
	return s.queue.snapshot()
}

// StepsFor returns the queued steps of el in execution order.
// Returns an empty slice if none are queued.
func (s *Session) StepsFor(el Element) []Step {
	queued := s.byElement[el.ElementID()]
	out := make([]Step, len(queued))
	copy(out, queued)
	slices.SortFunc(out, func(a, b Step) int {
		return compareSteps(a.base(), b.base())
	})
	return out
}

// NotifyElementCreated fires ElementCreated hooks.
func (s *Session) NotifyElementCreated(el Element) {
	for _, o := range s.observers {
		o.ElementCreated(s, el)
	}
}

// NotifyElementUpdated fires ElementUpdated hooks.
func (s *Session) NotifyElementUpdated(el Element) {
	for _, o := range s.observers {
		o.ElementUpdated(s, el)
	}
}

func (s *Session) run(st Step) {
	b := st.base()
	b.queued = false
	s.unindex(st)

	if b.round > s.round {
		s.logger.Debug("round advanced", "session", s.id, "from", s.round, "to", b.round)
		s.round = b.round
	}

	s.current = st
	defer func() {
		s.current = nil
	}()

	s.logger.Debug("step executing",
		"session", s.id,
		"step", Describe(st, s.phases),
	)

	st.Process()
	s.executed++

	for _, o := range s.observers {
		o.StepExecuted(s, st)
	}
}

func (s *Session) findDuplicate(st Step) Step {
	b := st.base()
	if b.element == nil {
		return nil
	}
	for _, q := range s.byElement[b.element.ElementID()] {
		if q.Kind() == st.Kind() && q.base().phase == b.phase {
			return q
		}
	}
	return nil
}

func (s *Session) index(st Step) {
	el := st.base().element
	if el == nil {
		return
	}
	id := el.ElementID()
	s.byElement[id] = append(s.byElement[id], st)
}

func (s *Session) unindex(st Step) {
	el := st.base().element
	if el == nil {
		return
	}
	id := el.ElementID()
	queued := s.byElement[id]
	i := slices.IndexFunc(queued, func(q Step) bool { return q.base() == st.base() })
	if i < 0 {
		return
	}
	queued = slices.Delete(queued, i, i+1)
	if len(queued) == 0 {
		delete(s.byElement, id)
		return
	}
	s.byElement[id] = queued
}

func (s *Session) fatal(code InvariantCode, st Step, msg string) {
	err := &InvariantError{
		Code:      code,
		Message:   msg,
		SessionID: s.id,
		Step:      Describe(st, s.phases),
	}
	s.logger.Error("scheduler invariant violated",
		"session", s.id,
		"code", string(code),
		"step", err.Step,
	)
	panic(err)
}
