package engine

// Observer receives scheduler and element notifications.
//
// Hooks exist for observability tooling (the trace journal, debuggers). The
// scheduler never depends on what an observer does, and observers must not
// enqueue or remove steps.
type Observer interface {
	StepAdded(s *Session, st Step)
	StepExecuted(s *Session, st Step)
	ElementCreated(s *Session, el Element)
	ElementUpdated(s *Session, el Element)
}

// ObserverFuncs adapts optional functions to the Observer interface.
// Nil fields are skipped.
type ObserverFuncs struct {
	OnStepAdded      func(s *Session, st Step)
	OnStepExecuted   func(s *Session, st Step)
	OnElementCreated func(s *Session, el Element)
	OnElementUpdated func(s *Session, el Element)
}

func (o ObserverFuncs) StepAdded(s *Session, st Step) {
	if o.OnStepAdded != nil {
		o.OnStepAdded(s, st)
	}
}

func (o ObserverFuncs) StepExecuted(s *Session, st Step) {
	if o.OnStepExecuted != nil {
		o.OnStepExecuted(s, st)
	}
}

func (o ObserverFuncs) ElementCreated(s *Session, el Element) {
	if o.OnElementCreated != nil {
		o.OnElementCreated(s, el)
	}
}

func (o ObserverFuncs) ElementUpdated(s *Session, el Element) {
	if o.OnElementUpdated != nil {
		o.OnElementUpdated(s, el)
	}
}
