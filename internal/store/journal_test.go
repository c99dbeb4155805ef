package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/trace"
)

func TestWriteReadSession(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	rec := SessionRecord{ID: "s1", Scenario: "loop", Phases: []string{"linking", "inference"}}
	require.NoError(t, s.WriteSession(ctx, rec))
	require.NoError(t, s.WriteSession(ctx, rec), "idempotent")

	got, err := s.ReadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	require.NoError(t, s.FinishSession(ctx, "s1", "abc", 7))
	got, err = s.ReadSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.Finished)
	assert.Equal(t, "abc", got.TraceHash)
	assert.Equal(t, int64(7), got.EventCount)
}

func TestReadSession_NotFound(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.ReadSession(ctx, "missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	_, err = s.ReadTrace(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = s.FinishSession(ctx, "missing", "h", 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, s.WriteSession(ctx, SessionRecord{ID: id, Phases: []string{"p"}}))
	}
	sessions, err = s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "a", sessions[0].ID)
	assert.Equal(t, "c", sessions[2].ID)
}

func TestWriteEvent_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.WriteSession(ctx, SessionRecord{ID: "s1", Phases: []string{"inference"}}))

	update := trace.Event{
		Seq:       2,
		Kind:      trace.KindElementUpdated,
		Element:   1,
		Label:     "cell",
		Round:     3,
		Timestamp: 9,
		Fields:    []trace.FieldValue{{Label: "a", Value: 1.0 / 3}, {Label: "b", Value: -2}},
	}
	require.NoError(t, s.WriteEvent(ctx, "s1", update))
	require.NoError(t, s.WriteEvent(ctx, "s1", createTestEvent(1, "field:b")))
	require.NoError(t, s.WriteEvent(ctx, "s1", createTestEvent(1, "ignored")), "same seq is ignored")

	tr, err := s.ReadTrace(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, tr.Events, 2)
	assert.Equal(t, "field:b", tr.Events[0].Step, "ordered by seq")
	assert.Nil(t, tr.Events[0].Fields)
	assert.Equal(t, update, tr.Events[1])

	events, err := s.ReadElementEvents(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = s.ReadElementEvents(ctx, "s1", 42)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestWriteEvent_UnknownSession(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	err := s.WriteEvent(ctx, "nope", createTestEvent(1, "x"))
	assert.Error(t, err, "foreign key enforced")
}

func TestRecorder_JournalsSession(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	rec := NewRecorder(ctx, s, "two-cells")
	sess := runCell(t, "rec-1", 1.5, rec)

	require.NoError(t, rec.Err())
	assert.Equal(t, "rec-1", rec.SessionID())
	hash, err := rec.Finish()
	require.NoError(t, err)

	stored, err := s.ReadTrace(ctx, sess.ID())
	require.NoError(t, err)
	assert.Equal(t, rec.Trace().Events, stored.Events)

	info, err := s.ReadSession(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "two-cells", info.Scenario)
	assert.Equal(t, sess.Phases().Names(), info.Phases)
	assert.Equal(t, hash, info.TraceHash)
	assert.Equal(t, int64(len(stored.Events)), info.EventCount)
}

func TestRecorder_FinishWithoutEvents(t *testing.T) {
	rec := NewRecorder(context.Background(), createTestStore(t), "")
	_, err := rec.Finish()
	assert.ErrorContains(t, err, "no events recorded")
}

func TestCompareTraces(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	rec := NewRecorder(ctx, s, "two-cells")
	runCell(t, "orig", 1.5, rec)
	_, err := rec.Finish()
	require.NoError(t, err)

	same := trace.NewCollector()
	runCell(t, "replay", 1.5, same)
	res, err := s.CompareTraces(ctx, "orig", same.Trace())
	require.NoError(t, err)
	assert.True(t, res.Match())
	assert.Equal(t, res.RecordedHash, res.ReplayHash)

	changed := trace.NewCollector()
	runCell(t, "changed", 2.5, changed)
	res, err = s.CompareTraces(ctx, "orig", changed.Trace())
	require.NoError(t, err)
	require.False(t, res.Match())
	assert.NotEqual(t, res.RecordedHash, res.ReplayHash)
	assert.Equal(t, trace.KindElementUpdated, res.Divergence.Want.Kind)

	_, err = s.CompareTraces(ctx, "missing", same.Trace())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

var _ engine.Observer = (*Recorder)(nil)
