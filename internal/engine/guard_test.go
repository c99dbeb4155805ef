package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldnet/internal/phase"
)

// selfRequeue enqueues a fresh step for the same element every time it runs.
func selfRequeue(s *Session, el int64) *recordingStep {
	st := newStep(el, pInference, 0, "", nil)
	st.onRun = func() {
		s.Enqueue(selfRequeue(s, el))
	}
	return st
}

func TestGuard_Oscillation(t *testing.T) {
	s := newTestSession()
	s.Enqueue(selfRequeue(s, 1))

	g := Guard{OscillationLimit: 10}
	n, err := g.Drain(s, MaxRound, phase.Unset)

	require.Error(t, err)
	assert.True(t, IsOscillation(err))
	assert.True(t, IsDivergence(err))
	assert.Equal(t, 10, n)
	assert.Equal(t, 1, s.Len(), "offending step stays queued")

	var oe *OscillationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, int64(1), oe.ElementID)
	assert.Equal(t, "record", oe.Kind)
	assert.Contains(t, err.Error(), "test-session")
}

func TestGuard_MaxSteps(t *testing.T) {
	s := newTestSession()
	for i := 0; i < 5; i++ {
		s.Enqueue(newStep(int64(i), pLinking, 0, "", nil))
	}

	g := Guard{MaxSteps: 3}
	n, err := g.Drain(s, MaxRound, phase.Unset)

	require.Error(t, err)
	assert.True(t, IsStepsExceeded(err))
	assert.False(t, IsOscillation(err))
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, s.Len())
}

func TestGuard_WithinLimits(t *testing.T) {
	s := newTestSession()
	var log []string
	s.Enqueue(newStep(1, pLinking, 0, "a", &log))
	s.Enqueue(newStep(2, pTraining, 0, "b", &log))

	n, err := DefaultGuard().Drain(s, 0, pLinking)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a"}, log)
}

func TestGuard_ZeroLimitsDisableChecks(t *testing.T) {
	s := newTestSession()
	for i := 0; i < 20; i++ {
		s.Enqueue(newStep(1, pLinking, 0, "", nil))
	}

	n, err := Guard{}.Drain(s, MaxRound, phase.Unset)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}
