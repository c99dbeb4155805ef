package element

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/field"
	"github.com/roach88/fieldnet/internal/phase"
)

func newSession(opts ...engine.SessionOption) *engine.Session {
	base := []engine.SessionOption{
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithIDGenerator(engine.NewFixedGenerator("element-test")),
	}
	return engine.NewSession(append(base, opts...)...)
}

func TestNew_AssignsIDsAndTimestamps(t *testing.T) {
	var created []engine.Element
	s := newSession(engine.WithObserver(engine.ObserverFuncs{
		OnElementCreated: func(_ *engine.Session, el engine.Element) { created = append(created, el) },
	}))

	a := New(s, "a")
	b := New(s, "b")

	assert.NotEqual(t, a.ElementID(), b.ElementID())
	assert.Less(t, a.Created(), b.Created())
	assert.Equal(t, NotFired, a.Fired())
	assert.False(t, a.IsFired())
	assert.Len(t, created, 2)
	assert.Equal(t, "a#1", a.String())
}

func TestMarkFired_OnlyOnce(t *testing.T) {
	s := newSession()
	e := New(s, "e")

	require.True(t, e.MarkFired())
	first := e.Fired()
	assert.Greater(t, first, e.Created())

	assert.False(t, e.MarkFired())
	assert.Equal(t, first, e.Fired())
}

func TestCausedBy(t *testing.T) {
	s := newSession()
	cause := New(s, "cause")
	early := New(s, "early")
	cause.MarkFired()
	late := New(s, "late")

	assert.True(t, late.CausedBy(cause))
	assert.False(t, early.CausedBy(cause), "created before the cause fired")
	assert.False(t, cause.CausedBy(late), "late never fired")
}

func TestRegister_NilFieldPanics(t *testing.T) {
	s := newSession()
	e := New(s, "e")

	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.True(t, engine.IsInvariantError(r))
		ie := r.(*engine.InvariantError)
		assert.Equal(t, engine.ErrCodeNilField, ie.Code)
	}()
	e.Register(nil)
}

func TestFields_LookupAndUpdates(t *testing.T) {
	var updates int
	s := newSession(engine.WithObserver(engine.ObserverFuncs{
		OnElementUpdated: func(*engine.Session, engine.Element) { updates++ },
	}))
	e := New(s, "e")

	var seen []string
	e.OnFieldUpdate(func(f *field.Field, old float64) {
		seen = append(seen, f.Label())
	})

	net := field.New(e, "net", field.Sum{})
	field.New(e, "out", field.Sum{})

	got, ok := e.Field("net")
	require.True(t, ok)
	assert.Same(t, net, got)
	_, ok = e.Field("missing")
	assert.False(t, ok)
	assert.Len(t, e.Fields(), 2)

	net.Receive(1)
	assert.Equal(t, []string{"net"}, seen)
	assert.Equal(t, 1, updates)
}

func TestTeardown_KeepsInternalWiring(t *testing.T) {
	s := newSession()
	upstream := New(s, "upstream")
	src := field.New(upstream, "value", field.Sum{}, field.WithInitial(2))

	e := New(s, "e")
	net := field.New(e, "net", field.Sum{})
	value := field.New(e, "value", field.Sum{}, field.Deferred(s.Phases().MustLookup(phase.NameInference)))

	border := field.NewLink(src, net, 1, field.CrossesBorder())
	internal := field.NewLink(net, value, 1)
	border.Connect(true)
	internal.Connect(true)
	require.Equal(t, 1, s.Len())

	e.Teardown()

	assert.True(t, e.IsDestroyed())
	assert.False(t, border.IsRegistered())
	assert.True(t, internal.IsConnected(), "internal link remains for inspection")
	assert.Equal(t, 0.0, net.Value())
	assert.Equal(t, 0, s.Len(), "destroyed field's step is removed")
	assert.Empty(t, s.StepsFor(e))

	// Reconnecting into the torn-down element is inert.
	border.Connect(true)
	assert.False(t, border.IsConnected())

	e.Teardown()
}
