package engine

import (
	"slices"
	"sort"
)

// stepQueue is the ordered pending-work collection of a session.
//
// Steps are kept in a slice sorted by compareSteps. Insertion and removal use
// binary search; the slice is never iterated by callers while it may change.
// Snapshot hands out a copy instead.
type stepQueue struct {
	steps []Step
}

func newStepQueue() *stepQueue {
	return &stepQueue{steps: make([]Step, 0, 64)}
}

// search returns the index of the first step not ordered before b.
func (q *stepQueue) search(b *StepBase) int {
	return sort.Search(len(q.steps), func(i int) bool {
		return compareSteps(q.steps[i].base(), b) >= 0
	})
}

func (q *stepQueue) insert(st Step) {
	i := q.search(st.base())
	q.steps = slices.Insert(q.steps, i, st)
}

// remove deletes st from its sorted position. Returns false if st is not
// at the position its key implies.
func (q *stepQueue) remove(st Step) bool {
	b := st.base()
	i := q.search(b)
	if i >= len(q.steps) || q.steps[i].base() != b {
		return false
	}
	q.steps = slices.Delete(q.steps, i, i+1)
	return true
}

func (q *stepQueue) peek() (Step, bool) {
	if len(q.steps) == 0 {
		return nil, false
	}
	return q.steps[0], true
}

func (q *stepQueue) pop() (Step, bool) {
	if len(q.steps) == 0 {
		return nil, false
	}
	st := q.steps[0]

	// Nil out the slot so the backing array does not retain the step.
	q.steps[0] = nil
	if len(q.steps) == 1 {
		q.steps = q.steps[:0]
	} else {
		q.steps = q.steps[1:]
	}
	return st, true
}

func (q *stepQueue) len() int {
	return len(q.steps)
}

func (q *stepQueue) snapshot() []Step {
	out := make([]Step, len(q.steps))
	copy(out, q.steps)
	return out
}
