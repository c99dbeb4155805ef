package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/fieldnet/internal/element"
	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/field"
	"github.com/roach88/fieldnet/internal/phase"
	"github.com/roach88/fieldnet/internal/trace"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvent creates a step event with minimal fields.
func createTestEvent(seq int64, step string) trace.Event {
	return trace.Event{
		Seq:       seq,
		Kind:      trace.KindStepAdded,
		Element:   1,
		Step:      step,
		Phase:     phase.NameInference,
		Timestamp: seq,
	}
}

// runCell drives a two-cell session (a -> deferred b) with the given observer
// and returns the session.
func runCell(t *testing.T, id string, delta float64, obs engine.Observer) *engine.Session {
	t.Helper()
	s := engine.NewSession(
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithIDGenerator(engine.NewFixedGenerator(id)),
		engine.WithObserver(obs),
	)
	el := element.New(s, "cell")
	a := field.New(el, "a", field.Sum{})
	b := field.New(el, "b", field.Sum{}, field.Deferred(s.Phases().MustLookup(phase.NameInference)))
	field.NewLink(a, b, 2).Connect(true)
	a.Receive(delta)
	s.Drain(engine.MaxRound, phase.Unset)
	return s
}
