package engine

import (
	"errors"
	"fmt"
)

// InvariantCode categorizes invariant breaches.
type InvariantCode string

const (
	// ErrCodeBadRemoval indicates a queued Step was not at its expected position.
	ErrCodeBadRemoval InvariantCode = "BAD_REMOVAL"

	// ErrCodeDoubleEnqueue indicates a Step was enqueued while already queued.
	ErrCodeDoubleEnqueue InvariantCode = "DOUBLE_ENQUEUE"

	// ErrCodeReentrantDrain indicates Drain or Next was called from inside a running Step.
	ErrCodeReentrantDrain InvariantCode = "REENTRANT_DRAIN"

	// ErrCodeForeignStep indicates a Step was handed to a session it does not belong to.
	ErrCodeForeignStep InvariantCode = "FOREIGN_STEP"

	// ErrCodeNilField indicates a nil field was registered on an element.
	ErrCodeNilField InvariantCode = "NIL_FIELD"

	// ErrCodeNoOwner indicates a deferred field was built without an owning element.
	ErrCodeNoOwner InvariantCode = "NO_OWNER"

	// ErrCodeUnknownPhase indicates a Step carries a phase outside the session's order.
	ErrCodeUnknownPhase InvariantCode = "UNKNOWN_PHASE"
)

// InvariantError describes a programming-invariant violation.
//
// It is never returned: the scheduler panics with it, because continuing with
// a corrupted order would silently break determinism. Tests and wrappers can
// recover it and inspect the code with IsInvariantError.
type InvariantError struct {
	Code      InvariantCode
	Message   string
	SessionID string
	Step      string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.SessionID != "" && e.Step != "" {
		return fmt.Sprintf("%s: %s (session=%s, step=%s)", e.Code, e.Message, e.SessionID, e.Step)
	}
	if e.SessionID != "" {
		return fmt.Sprintf("%s: %s (session=%s)", e.Code, e.Message, e.SessionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Fatal panics with an InvariantError. Exported for collaborators (element,
// field) that enforce their own invariants in the same way.
func Fatal(code InvariantCode, format string, args ...any) {
	panic(&InvariantError{Code: code, Message: fmt.Sprintf(format, args...)})
}

// IsInvariantError reports whether err (or a recovered panic value) is an InvariantError.
func IsInvariantError(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	var ie *InvariantError
	return errors.As(err, &ie)
}

// StepsExceededError is returned by a Guard when a drain executes more
// Steps than its budget allows.
type StepsExceededError struct {
	SessionID string
	Steps     int
	Limit     int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("session %s exceeded max steps: %d steps > %d limit",
		e.SessionID, e.Steps, e.Limit)
}

// OscillationError is returned by a Guard when the same (element, kind) pair
// executes more often than the oscillation limit within one guarded drain.
type OscillationError struct {
	SessionID  string
	ElementID  int64
	Kind       string
	Executions int
	Limit      int
}

// Error implements the error interface.
func (e *OscillationError) Error() string {
	return fmt.Sprintf("session %s: element %d step %s oscillating: %d executions > %d limit",
		e.SessionID, e.ElementID, e.Kind, e.Executions, e.Limit)
}

// IsStepsExceeded reports whether err is a StepsExceededError.
func IsStepsExceeded(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}

// IsOscillation reports whether err is an OscillationError.
func IsOscillation(err error) bool {
	var oe *OscillationError
	return errors.As(err, &oe)
}

// IsDivergence reports whether err is either kind of divergence guard error.
func IsDivergence(err error) bool {
	return IsStepsExceeded(err) || IsOscillation(err)
}
