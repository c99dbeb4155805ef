package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/fieldnet/internal/trace"
)

// ErrSessionNotFound is returned when a session id is not in the journal.
var ErrSessionNotFound = errors.New("session not found")

// ReadSession returns the record of one session.
func (s *Store) ReadSession(ctx context.Context, id string) (SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, phases, trace_hash, event_count, finished
		FROM sessions
		WHERE id = ?
	`, id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("read session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("read session %s: %w", id, err)
	}
	return rec, nil
}

// ListSessions returns every session ordered by id. Session ids are UUIDv7,
// so this is also start order.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, phases, trace_hash, event_count, finished
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionRecord{}
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadTrace returns the recorded trace of a session.
// Events are ordered by seq ASC.
func (s *Store) ReadTrace(ctx context.Context, sessionID string) (trace.Trace, error) {
	if _, err := s.ReadSession(ctx, sessionID); err != nil {
		return trace.Trace{}, err
	}
	events, err := s.readEvents(ctx, `
		SELECT seq, kind, element, label, step, phase, round, timestamp, fields
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return trace.Trace{}, err
	}
	return trace.Trace{SessionID: sessionID, Events: events}, nil
}

// ReadElementEvents returns the events of one element in a session, ordered
// by seq ASC. Returns an empty slice if the element has none.
func (s *Store) ReadElementEvents(ctx context.Context, sessionID string, element int64) ([]trace.Event, error) {
	return s.readEvents(ctx, `
		SELECT seq, kind, element, label, step, phase, round, timestamp, fields
		FROM events
		WHERE session_id = ? AND element = ?
		ORDER BY seq ASC
	`, sessionID, element)
}

func (s *Store) readEvents(ctx context.Context, query string, args ...any) ([]trace.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (SessionRecord, error) {
	var (
		rec      SessionRecord
		phases   string
		finished int
	)
	if err := row.Scan(&rec.ID, &rec.Scenario, &phases, &rec.TraceHash, &rec.EventCount, &finished); err != nil {
		return SessionRecord{}, err
	}
	names, err := unmarshalPhases(phases)
	if err != nil {
		return SessionRecord{}, err
	}
	rec.Phases = names
	rec.Finished = finished != 0
	return rec, nil
}

func scanEvent(row scanner) (trace.Event, error) {
	var (
		ev     trace.Event
		kind   string
		fields string
	)
	if err := row.Scan(&ev.Seq, &kind, &ev.Element, &ev.Label, &ev.Step, &ev.Phase, &ev.Round, &ev.Timestamp, &fields); err != nil {
		return trace.Event{}, fmt.Errorf("scan event: %w", err)
	}
	ev.Kind = trace.Kind(kind)
	fv, err := unmarshalFields(fields)
	if err != nil {
		return trace.Event{}, err
	}
	ev.Fields = fv
	return ev, nil
}
