package engine

import (
	"cmp"
	"fmt"

	"github.com/roach88/fieldnet/internal/phase"
)

// MaxRound is the "ignore round bound" sentinel for Drain.
const MaxRound = int(^uint(0) >> 1)

// Element is the graph element a Step is tied to.
type Element interface {
	// ElementID is unique within a session and keys per-element step lookup.
	ElementID() int64
}

// Step is a deferred unit of work.
//
// Collaborators define step kinds by embedding StepBase and supplying Kind and
// Process. The scheduler is agnostic to kinds beyond their dedup policy.
type Step interface {
	// Kind names the step type. Used for dedup, guards and traces.
	Kind() string

	// Process runs the step. It may enqueue further steps.
	Process()

	base() *StepBase
}

// DedupPolicy controls what happens when a Step is enqueued while another
// Step of the same kind is queued for the same (element, phase).
type DedupPolicy int

const (
	// AllowDuplicates queues every Step.
	AllowDuplicates DedupPolicy = iota

	// KeepFirst drops the new Step and keeps the queued one.
	KeepFirst

	// ReplaceQueued removes the queued Step and queues the new one.
	ReplaceQueued
)

// String returns the policy name.
func (p DedupPolicy) String() string {
	switch p {
	case AllowDuplicates:
		return "allow-duplicates"
	case KeepFirst:
		return "keep-first"
	case ReplaceQueued:
		return "replace-queued"
	default:
		return fmt.Sprintf("dedup(%d)", int(p))
	}
}

// Deduplicated is implemented by step kinds that collapse duplicates.
type Deduplicated interface {
	Dedup() DedupPolicy
}

// StepBase carries the scheduling state of a Step. Embed it by value.
type StepBase struct {
	element   Element
	phase     phase.Phase
	round     int
	secondary int64
	timestamp int64
	queued    bool
	session   *Session
}

// NewStepBase creates the scheduling state for a step of element in phase p
// and round r. The timestamp is assigned on enqueue.
func NewStepBase(el Element, p phase.Phase, r int) StepBase {
	return StepBase{element: el, phase: p, round: r}
}

func (b *StepBase) base() *StepBase { return b }

// Element returns the graph element this step belongs to.
func (b *StepBase) Element() Element { return b.element }

// Phase returns the step's phase.
func (b *StepBase) Phase() phase.Phase { return b.phase }

// Round returns the step's round.
func (b *StepBase) Round() int { return b.round }

// Timestamp returns the insertion timestamp, or 0 if never enqueued.
func (b *StepBase) Timestamp() int64 { return b.timestamp }

// IsQueued reports whether the step is currently in a session queue.
func (b *StepBase) IsQueued() bool { return b.queued }

// SecondaryKey returns the within-phase sort key evaluated before the timestamp.
func (b *StepBase) SecondaryKey() int64 { return b.secondary }

// SetSecondaryKey sets the within-phase sort key, for example an element's
// fired timestamp. It is fixed once the step is queued.
func (b *StepBase) SetSecondaryKey(k int64) {
	if b.queued {
		Fatal(ErrCodeDoubleEnqueue, "secondary key changed while step is queued")
	}
	b.secondary = k
}

// SetRound escalates the step's round. Rounds never decrease, and a queued
// step's round is fixed.
func (b *StepBase) SetRound(r int) {
	if b.queued {
		Fatal(ErrCodeDoubleEnqueue, "round changed while step is queued")
	}
	if r > b.round {
		b.round = r
	}
}

// compareSteps orders steps by (round, phase, secondary key, timestamp).
func compareSteps(a, b *StepBase) int {
	if c := cmp.Compare(a.round, b.round); c != 0 {
		return c
	}
	if c := cmp.Compare(a.phase, b.phase); c != 0 {
		return c
	}
	if c := cmp.Compare(a.secondary, b.secondary); c != 0 {
		return c
	}
	return cmp.Compare(a.timestamp, b.timestamp)
}

func dedupPolicy(st Step) DedupPolicy {
	if d, ok := st.(Deduplicated); ok {
		return d.Dedup()
	}
	return AllowDuplicates
}

// Base returns the scheduling header of st, for observers that only hold
// the Step interface.
func Base(st Step) *StepBase { return st.base() }

// Describe renders a step for logs and invariant messages.
func Describe(st Step, order *phase.Order) string {
	b := st.base()
	var elID int64
	if b.element != nil {
		elID = b.element.ElementID()
	}
	name := fmt.Sprintf("phase(%d)", int(b.phase))
	if order != nil {
		name = order.Name(b.phase)
	}
	return fmt.Sprintf("%s[e=%d r=%d p=%s t=%d]", st.Kind(), elID, b.round, name, b.timestamp)
}
