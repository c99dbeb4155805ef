package store

import (
	"context"
	"fmt"

	"github.com/roach88/fieldnet/internal/trace"
)

// ReplayResult is the outcome of comparing a fresh run to a recorded session.
type ReplayResult struct {
	SessionID    string
	RecordedHash string
	ReplayHash   string
	Divergence   *trace.Divergence // nil when the traces match
}

// Match reports whether the replay reproduced the recording.
func (r ReplayResult) Match() bool { return r.Divergence == nil }

// CompareTraces compares got with the trace recorded for sessionID.
// Session ids are not compared, so a replay under a new id still matches.
func (s *Store) CompareTraces(ctx context.Context, sessionID string, got trace.Trace) (ReplayResult, error) {
	res := ReplayResult{SessionID: sessionID}

	want, err := s.ReadTrace(ctx, sessionID)
	if err != nil {
		return res, fmt.Errorf("compare traces: %w", err)
	}
	rec, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return res, fmt.Errorf("compare traces: %w", err)
	}
	res.RecordedHash = rec.TraceHash

	if res.ReplayHash, err = trace.Hash(got); err != nil {
		return res, fmt.Errorf("compare traces: %w", err)
	}

	res.Divergence, err = trace.Diff(want, got)
	if err != nil {
		return res, fmt.Errorf("compare traces: %w", err)
	}
	return res, nil
}
