package field

import (
	"io"
	"log/slog"

	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/phase"
)

type testOwner struct {
	id      int64
	session *engine.Session
	fields  []*Field
	updates int
}

func (o *testOwner) ElementID() int64                 { return o.id }
func (o *testOwner) Session() *engine.Session         { return o.session }
func (o *testOwner) Register(f *Field)                { o.fields = append(o.fields, f) }
func (o *testOwner) FieldUpdated(f *Field, _ float64) { o.updates++ }

func newTestSession() *engine.Session {
	return engine.NewSession(
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithIDGenerator(engine.NewFixedGenerator("field-test")),
	)
}

func inference(s *engine.Session) phase.Phase {
	return s.Phases().MustLookup(phase.NameInference)
}

func drainAll(s *engine.Session) int {
	return s.Drain(engine.MaxRound, phase.Unset)
}
