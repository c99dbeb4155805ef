package field

import "github.com/roach88/fieldnet/internal/engine"

// Step applies a deferred field's pending deltas.
//
// A field has at most one queued step. Deltas arriving while it is queued are
// added to the same step; deltas arriving while it runs queue a new one.
type Step struct {
	engine.StepBase
	field *Field
}

func newStep(f *Field, round int) *Step {
	return &Step{
		StepBase: engine.NewStepBase(f.owner, f.phase, round),
		field:    f,
	}
}

// Kind names the step after the field label so fields of one element stay distinct.
func (s *Step) Kind() string { return "field:" + s.field.label }

// Process applies the pending deltas.
func (s *Step) Process() { s.field.process() }

// Field returns the deferred field.
func (s *Step) Field() *Field { return s.field }
