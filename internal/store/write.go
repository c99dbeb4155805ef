package store

import (
	"context"
	"fmt"

	"github.com/roach88/fieldnet/internal/trace"
)

// SessionRecord is the journal row of one session.
type SessionRecord struct {
	ID         string
	Scenario   string
	Phases     []string
	TraceHash  string
	EventCount int64
	Finished   bool
}

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteSession(ctx context.Context, rec SessionRecord) error {
	phases, err := marshalPhases(rec.Phases)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, scenario, phases)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.Scenario, phases)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteEvent appends one event of a session.
// Uses ON CONFLICT DO NOTHING for idempotency: rewriting the same seq is ignored.
//
// The session referenced by sessionID must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, sessionID string, ev trace.Event) error {
	fields, err := marshalFields(ev.Fields)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	hash, err := trace.EventHash(ev)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
		(session_id, seq, kind, element, label, step, phase, round, timestamp, fields, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sessionID,
		ev.Seq,
		string(ev.Kind),
		ev.Element,
		ev.Label,
		ev.Step,
		ev.Phase,
		ev.Round,
		ev.Timestamp,
		fields,
		hash,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// FinishSession stores the final trace hash and event count of a session.
func (s *Store) FinishSession(ctx context.Context, sessionID, traceHash string, events int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET trace_hash = ?, event_count = ?, finished = 1
		WHERE id = ?
	`, traceHash, events, sessionID)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish session %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}
