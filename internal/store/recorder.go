package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/trace"
)

// Recorder is an engine.Observer that journals every event of one session.
//
// Observer hooks cannot fail, so the first write error is kept and returned
// by Err and Finish; later events are dropped once an error occurred.
type Recorder struct {
	store    *Store
	ctx      context.Context
	scenario string

	mu        sync.Mutex
	sessionID string
	collector *trace.Collector
	err       error
}

// NewRecorder creates a recorder writing to st. Pass it to the session with
// engine.WithObserver.
func NewRecorder(ctx context.Context, st *Store, scenario string) *Recorder {
	return &Recorder{store: st, ctx: ctx, scenario: scenario, collector: trace.NewCollector()}
}

func (r *Recorder) StepAdded(s *engine.Session, st engine.Step) {
	r.collector.StepAdded(s, st)
	r.persist(s)
}

func (r *Recorder) StepExecuted(s *engine.Session, st engine.Step) {
	r.collector.StepExecuted(s, st)
	r.persist(s)
}

func (r *Recorder) ElementCreated(s *engine.Session, el engine.Element) {
	r.collector.ElementCreated(s, el)
	r.persist(s)
}

func (r *Recorder) ElementUpdated(s *engine.Session, el engine.Element) {
	r.collector.ElementUpdated(s, el)
	r.persist(s)
}

// persist writes the newest collected event.
func (r *Recorder) persist(s *engine.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	if r.sessionID == "" {
		r.sessionID = s.ID()
		rec := SessionRecord{ID: s.ID(), Scenario: r.scenario, Phases: s.Phases().Names()}
		if err := r.store.WriteSession(r.ctx, rec); err != nil {
			r.err = err
			return
		}
	}
	ev, ok := r.collector.Last()
	if !ok {
		return
	}
	if err := r.store.WriteEvent(r.ctx, r.sessionID, ev); err != nil {
		r.err = err
	}
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// SessionID returns the recorded session id, empty before the first event.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Trace returns the trace recorded so far.
func (r *Recorder) Trace() trace.Trace { return r.collector.Trace() }

// Finish stores the trace hash and marks the session finished.
func (r *Recorder) Finish() (string, error) {
	if err := r.Err(); err != nil {
		return "", fmt.Errorf("finish recording: %w", err)
	}
	tr := r.collector.Trace()
	if r.SessionID() == "" {
		return "", fmt.Errorf("finish recording: no events recorded")
	}
	hash, err := trace.Hash(tr)
	if err != nil {
		return "", fmt.Errorf("finish recording: %w", err)
	}
	if err := r.store.FinishSession(r.ctx, r.SessionID(), hash, int64(len(tr.Events))); err != nil {
		return "", fmt.Errorf("finish recording: %w", err)
	}
	return hash, nil
}
