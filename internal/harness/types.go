package harness

import "github.com/roach88/fieldnet/internal/trace"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses match.
	Pass bool `json:"pass"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Trace is every observed scheduler and element event, in order.
	Trace trace.Trace `json:"trace"`

	// Hash is the content hash of Trace.
	Hash string `json:"hash"`

	// Values holds the final value of every declared cell, keyed "element.cell".
	Values map[string]float64 `json:"values"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Values: make(map[string]float64),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
