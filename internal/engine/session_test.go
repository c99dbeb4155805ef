package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldnet/internal/phase"
)

func TestSession_DrainOrder(t *testing.T) {
	s := newTestSession()
	var log []string

	// Enqueued out of order on purpose.
	s.Enqueue(newStep(1, pTraining, 1, "r1-training", &log))
	s.Enqueue(newStep(2, pInference, 0, "r0-inference-a", &log))
	s.Enqueue(newStep(3, pTraining, 0, "r0-training", &log))
	s.Enqueue(newStep(4, pLinking, 1, "r1-linking", &log))
	s.Enqueue(newStep(5, pInference, 0, "r0-inference-b", &log))

	n := s.Drain(MaxRound, phase.Unset)

	assert.Equal(t, 5, n)
	assert.Equal(t, []string{
		"r0-inference-a",
		"r0-inference-b",
		"r0-training",
		"r1-linking",
		"r1-training",
	}, log)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(5), s.Executed())
}

func TestSession_ExecutionOrderIsNonDecreasing(t *testing.T) {
	s := newTestSession()

	var seen []*StepBase
	observer := ObserverFuncs{
		OnStepExecuted: func(_ *Session, st Step) {
			seen = append(seen, st.base())
		},
	}
	s.observers = append(s.observers, observer)

	phases := []phase.Phase{pTraining, pLinking, pInference}
	for i := 0; i < 30; i++ {
		s.Enqueue(newStep(int64(i%4), phases[i%3], (i*7)%3, "", nil))
	}
	s.Drain(MaxRound, phase.Unset)

	require.Len(t, seen, 30)
	for i := 1; i < len(seen); i++ {
		assert.Negative(t, compareSteps(seen[i-1], seen[i]), "steps %d and %d out of order", i-1, i)
	}
}

func TestSession_DrainPhaseBoundWithinRound(t *testing.T) {
	s := newTestSession()
	var log []string

	s.Enqueue(newStep(1, pInference, 0, "inference", &log))
	s.Enqueue(newStep(2, pTraining, 0, "training", &log))

	n := s.Drain(0, pInference)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"inference"}, log)
	assert.Equal(t, 1, s.Len())

	top, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, pTraining, top.base().Phase())
}

func TestSession_DrainRoundBound(t *testing.T) {
	s := newTestSession()
	var log []string

	s.Enqueue(newStep(1, pTraining, 0, "r0", &log))
	s.Enqueue(newStep(2, pLinking, 1, "r1", &log))
	s.Enqueue(newStep(3, pLinking, 2, "r2", &log))

	n := s.Drain(1, phase.Unset)

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"r0", "r1"}, log)
	assert.Equal(t, 1, s.Round())
	assert.Equal(t, 1, s.Len())
}

func TestSession_DrainRoundAndPhaseBound(t *testing.T) {
	s := newTestSession()
	var log []string

	s.Enqueue(newStep(1, pTraining, 0, "r0-training", &log))
	s.Enqueue(newStep(2, pLinking, 1, "r1-linking", &log))
	s.Enqueue(newStep(3, pTraining, 1, "r1-training", &log))

	// Earlier rounds run every phase; the final round stops after linking.
	n := s.Drain(1, pLinking)

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"r0-training", "r1-linking"}, log)
}

func TestSession_DrainMaxRoundWithPhase(t *testing.T) {
	s := newTestSession()
	var log []string

	s.Enqueue(newStep(1, pLinking, 0, "linking", &log))
	s.Enqueue(newStep(2, pTraining, 0, "training", &log))
	s.Enqueue(newStep(3, pLinking, 1, "next-round", &log))

	n := s.Drain(MaxRound, pInference)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"linking"}, log)
}

func TestSession_RoundRatchetsUpOnly(t *testing.T) {
	s := newTestSession()

	s.Enqueue(newStep(1, pLinking, 3, "", nil))
	s.Next()
	assert.Equal(t, 3, s.Round())

	// A late step from an earlier round does not move the counter back.
	s.Enqueue(newStep(1, pLinking, 1, "", nil))
	s.Next()
	assert.Equal(t, 3, s.Round())
}

func TestSession_ReentrantEnqueueSameElement(t *testing.T) {
	s := newTestSession()
	var log []string

	remaining := 3
	var step *recordingStep
	var requeue func()
	requeue = func() {
		remaining--
		if remaining == 0 {
			return
		}
		next := newStep(7, pInference, 0, "again", &log)
		next.onRun = requeue
		step = next
		require.True(t, s.Enqueue(next))
		assert.Len(t, s.StepsFor(testElement(7)), 1)
	}

	first := newStep(7, pInference, 0, "first", &log)
	first.onRun = requeue
	step = first
	s.Enqueue(first)

	n := s.Drain(MaxRound, phase.Unset)

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"first", "again", "again"}, log)
	assert.False(t, step.IsQueued())
	assert.Equal(t, 0, s.Len())
}

func TestSession_CurrentStepSlot(t *testing.T) {
	s := newTestSession()

	var during Step
	st := newStep(1, pLinking, 0, "", nil)
	st.onRun = func() { during = s.Current() }
	s.Enqueue(st)

	s.Next()

	assert.Same(t, st, during)
	assert.Nil(t, s.Current())
}

func TestSession_SnapshotIsStable(t *testing.T) {
	s := newTestSession()

	var snapshot []Step
	st := newStep(1, pLinking, 0, "", nil)
	st.onRun = func() {
		snapshot = s.Snapshot()
		s.Enqueue(newStep(2, pLinking, 0, "", nil))
		s.Enqueue(newStep(3, pLinking, 0, "", nil))
	}
	s.Enqueue(st)
	s.Enqueue(newStep(4, pTraining, 0, "", nil))

	s.Next()

	assert.Len(t, snapshot, 1)
	assert.Equal(t, 3, s.Len())
}

func TestSession_StepsFor(t *testing.T) {
	s := newTestSession()

	empty := s.StepsFor(testElement(99))
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	late := newStep(1, pTraining, 0, "", nil)
	early := newStep(1, pLinking, 0, "", nil)
	s.Enqueue(late)
	s.Enqueue(early)
	s.Enqueue(newStep(2, pLinking, 0, "", nil))

	steps := s.StepsFor(testElement(1))
	require.Len(t, steps, 2)
	assert.Same(t, early, steps[0])
	assert.Same(t, late, steps[1])

	s.Next()
	assert.Len(t, s.StepsFor(testElement(1)), 1)
}

func TestSession_DedupPolicies(t *testing.T) {
	tests := []struct {
		name      string
		policy    DedupPolicy
		wantLen   int
		wantLabel string
	}{
		{"allow duplicates", AllowDuplicates, 2, "first"},
		{"keep first", KeepFirst, 1, "first"},
		{"replace queued", ReplaceQueued, 1, "second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession()
			var log []string

			first := newStep(1, pInference, 0, "first", &log)
			first.policy = tt.policy
			second := newStep(1, pInference, 0, "second", &log)
			second.policy = tt.policy

			assert.True(t, s.Enqueue(first))
			added := s.Enqueue(second)

			assert.Equal(t, tt.policy != KeepFirst, added)
			assert.Equal(t, tt.wantLen, s.Len())

			s.Drain(MaxRound, phase.Unset)
			assert.Equal(t, tt.wantLabel, log[0])
		})
	}
}

func TestSession_DedupIgnoresOtherPhasesAndKinds(t *testing.T) {
	s := newTestSession()

	a := newStep(1, pInference, 0, "", nil)
	a.policy = KeepFirst
	b := newStep(1, pTraining, 0, "", nil)
	b.policy = KeepFirst
	c := newStep(1, pInference, 0, "", nil)
	c.policy = KeepFirst
	c.kind = "other"

	assert.True(t, s.Enqueue(a))
	assert.True(t, s.Enqueue(b))
	assert.True(t, s.Enqueue(c))
	assert.Equal(t, 3, s.Len())
}

func TestSession_Remove(t *testing.T) {
	s := newTestSession()
	var log []string

	a := newStep(1, pLinking, 0, "a", &log)
	b := newStep(2, pLinking, 0, "b", &log)
	s.Enqueue(a)
	s.Enqueue(b)

	assert.True(t, s.Remove(a))
	assert.False(t, s.Remove(a), "second removal is a no-op")
	assert.False(t, a.IsQueued())
	assert.Empty(t, s.StepsFor(testElement(1)))

	s.Drain(MaxRound, phase.Unset)
	assert.Equal(t, []string{"b"}, log)
}

func TestSession_RemoveFromWrongPositionPanics(t *testing.T) {
	s := newTestSession()

	a := newStep(1, pLinking, 0, "", nil)
	s.Enqueue(a)
	s.Enqueue(newStep(2, pLinking, 0, "", nil))

	// Corrupt the key behind the scheduler's back.
	a.timestamp = 1000

	code := recoverInvariant(func() { s.Remove(a) })
	assert.Equal(t, ErrCodeBadRemoval, code)
}

func TestSession_DoubleEnqueuePanics(t *testing.T) {
	s := newTestSession()
	a := newStep(1, pLinking, 0, "", nil)
	s.Enqueue(a)

	code := recoverInvariant(func() { s.Enqueue(a) })
	assert.Equal(t, ErrCodeDoubleEnqueue, code)
}

func TestSession_ForeignStepPanics(t *testing.T) {
	s1 := newTestSession()
	s2 := NewSession(WithPhases(testOrder), WithIDGenerator(NewFixedGenerator("other")), WithLogger(s1.Logger()))

	a := newStep(1, pLinking, 0, "", nil)
	s1.Enqueue(a)
	s1.Next()

	code := recoverInvariant(func() { s2.Enqueue(a) })
	assert.Equal(t, ErrCodeForeignStep, code)
}

func TestSession_UnknownPhasePanics(t *testing.T) {
	s := newTestSession()

	code := recoverInvariant(func() { s.Enqueue(newStep(1, phase.Phase(42), 0, "", nil)) })
	assert.Equal(t, ErrCodeUnknownPhase, code)
}

func TestSession_ReentrantDrainPanics(t *testing.T) {
	s := newTestSession()

	var code InvariantCode
	st := newStep(1, pLinking, 0, "", nil)
	st.onRun = func() {
		code = recoverInvariant(func() { s.Drain(MaxRound, phase.Unset) })
	}
	s.Enqueue(st)
	s.Next()

	assert.Equal(t, ErrCodeReentrantDrain, code)
}

func TestSession_SecondaryKeyOrdersWithinPhase(t *testing.T) {
	s := newTestSession()
	var log []string

	late := newStep(1, pInference, 0, "fired-late", &log)
	late.SetSecondaryKey(20)
	early := newStep(2, pInference, 0, "fired-early", &log)
	early.SetSecondaryKey(10)

	s.Enqueue(late)
	s.Enqueue(early)
	s.Drain(MaxRound, phase.Unset)

	assert.Equal(t, []string{"fired-early", "fired-late"}, log)
}

func TestSession_ObserverHooks(t *testing.T) {
	var added, executed, created, updated int
	s := newTestSession(WithObserver(ObserverFuncs{
		OnStepAdded:      func(*Session, Step) { added++ },
		OnStepExecuted:   func(*Session, Step) { executed++ },
		OnElementCreated: func(*Session, Element) { created++ },
		OnElementUpdated: func(*Session, Element) { updated++ },
	}))

	s.Enqueue(newStep(1, pLinking, 0, "", nil))
	s.Enqueue(newStep(1, pTraining, 0, "", nil))
	s.Next()
	s.NotifyElementCreated(testElement(1))
	s.NotifyElementUpdated(testElement(1))

	assert.Equal(t, 2, added)
	assert.Equal(t, 1, executed)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, updated)
}

func TestSession_TimestampsStrictlyIncrease(t *testing.T) {
	s := newTestSession()

	a := newStep(1, pLinking, 0, "", nil)
	b := newStep(1, pLinking, 0, "", nil)
	s.Enqueue(a)
	tick := s.Tick()
	s.Enqueue(b)

	assert.Less(t, a.Timestamp(), tick)
	assert.Less(t, tick, b.Timestamp())
	assert.Equal(t, b.Timestamp(), s.Now())
}

func TestSession_NextOnEmptyQueue(t *testing.T) {
	s := newTestSession()
	assert.False(t, s.Next())
	assert.Equal(t, 0, s.Drain(MaxRound, phase.Unset))
}

func TestStepBase_SetRoundEscalatesOnly(t *testing.T) {
	b := NewStepBase(testElement(1), pLinking, 2)
	b.SetRound(1)
	assert.Equal(t, 2, b.Round())
	b.SetRound(5)
	assert.Equal(t, 5, b.Round())
}

func TestBaseAndDescribe(t *testing.T) {
	s := newTestSession()
	st := newStep(7, pInference, 3, "x", nil)
	s.Enqueue(st)

	b := Base(st)
	assert.Same(t, &st.StepBase, b)
	assert.Equal(t, "record[e=7 r=3 p=inference t=1]", Describe(st, testOrder))
	assert.Equal(t, "record[e=7 r=3 p=phase(1) t=1]", Describe(st, nil))
}
