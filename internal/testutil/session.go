// Package testutil holds deterministic helpers shared by tests and the
// scenario harness.
package testutil

import (
	"io"
	"log/slog"
)

// FixedSessionGenerator generates the same session id every time.
//
// Unlike engine.FixedGenerator, which hands out ids in sequence, this
// generator always returns one id, so every run of a scenario records the
// same session id and produces a byte-identical trace.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a fixed session id generator.
// If id is empty, Generate returns "test-session-default".
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = "test-session-default"
	}
	return &FixedSessionGenerator{id: id}
}

// Generate implements engine.SessionIDGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
