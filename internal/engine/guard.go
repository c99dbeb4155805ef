package engine

import "github.com/roach88/fieldnet/internal/phase"

// Guard bounds a drain for callers that cannot rule out divergence, such as
// convergence loops over feedback edges.
//
// Two checks run before each step:
//   - Max-steps budget: catches linear explosions (many distinct steps)
//   - Oscillation limit: catches the same (element, kind) pair re-queueing
//     itself without settling
//
// Either check stops the drain before the offending step runs and returns an
// error. The session stays consistent and may be inspected, but callers must
// not resume it as if the pass had completed. Zero limits disable a check.
type Guard struct {
	MaxSteps         int
	OscillationLimit int
}

// DefaultMaxSteps is the default budget for a guarded drain.
const DefaultMaxSteps = 100000

// DefaultOscillationLimit is the default per-(element, kind) execution limit.
const DefaultOscillationLimit = 1000

// DefaultGuard returns a guard with the default limits.
func DefaultGuard() Guard {
	return Guard{MaxSteps: DefaultMaxSteps, OscillationLimit: DefaultOscillationLimit}
}

// Drain is Session.Drain with divergence checks. Returns the number of steps
// executed and a *StepsExceededError or *OscillationError if a limit tripped.
func (g Guard) Drain(s *Session, maxRound int, maxPhase phase.Phase) (int, error) {
	if s.current != nil {
		s.fatal(ErrCodeReentrantDrain, s.current, "guarded Drain called from inside a running step")
	}

	budget := newStepBudget(g.MaxSteps)
	tracker := newOscillationTracker(g.OscillationLimit)

	n := 0
	for s.ready(maxRound, maxPhase) {
		top, _ := s.queue.peek()

		if err := budget.check(s.id); err != nil {
			s.logger.Error("max steps exceeded",
				"session", s.id,
				"steps", budget.current,
				"limit", budget.max,
			)
			return n, err
		}
		if err := tracker.check(s.id, top); err != nil {
			s.logger.Error("step oscillation detected",
				"session", s.id,
				"step", Describe(top, s.phases),
				"limit", tracker.limit,
			)
			return n, err
		}

		s.Next()
		n++
	}
	return n, nil
}

// stepBudget counts steps against a maximum.
type stepBudget struct {
	max     int
	current int
}

func newStepBudget(max int) *stepBudget {
	return &stepBudget{max: max}
}

func (b *stepBudget) check(sessionID string) error {
	b.current++
	if b.max > 0 && b.current > b.max {
		return &StepsExceededError{SessionID: sessionID, Steps: b.current, Limit: b.max}
	}
	return nil
}

type oscillationKey struct {
	element int64
	kind    string
}

// oscillationTracker counts executions per (element, kind).
type oscillationTracker struct {
	limit  int
	counts map[oscillationKey]int
}

func newOscillationTracker(limit int) *oscillationTracker {
	return &oscillationTracker{limit: limit, counts: make(map[oscillationKey]int)}
}

func (t *oscillationTracker) check(sessionID string, st Step) error {
	if t.limit <= 0 {
		return nil
	}
	var elID int64
	if el := st.base().element; el != nil {
		elID = el.ElementID()
	}
	key := oscillationKey{element: elID, kind: st.Kind()}
	t.counts[key]++
	if n := t.counts[key]; n > t.limit {
		return &OscillationError{
			SessionID:  sessionID,
			ElementID:  elID,
			Kind:       st.Kind(),
			Executions: n,
			Limit:      t.limit,
		}
	}
	return nil
}
