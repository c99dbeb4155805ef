// Package phase defines the declared total order of scheduler passes.
//
// A Phase is a rank within an Order. Steps carry a Phase, and within a round
// the scheduler executes lower ranks first. The member list is supplied by the
// domain (see config.cue); Default is the order used by the reference network.
package phase

import (
	"fmt"
	"strings"
)

// Phase is the rank of a named pass within an Order.
type Phase int

// Unset marks "no phase bound" for Session.Drain and "synchronous" for fields.
const Unset Phase = -1

// Names of the phases in the default order.
const (
	NameInputLinking = "input-linking"
	NameLinking      = "linking"
	NameInference    = "inference"
	NameTraining     = "training"
	NameAnneal       = "anneal"
	NameCounting     = "counting"
)

// Order is an immutable, declared total order of phase names.
type Order struct {
	names []string
	ranks map[string]Phase
}

// Default returns the phase order used when no configuration overrides it.
func Default() *Order {
	return MustNewOrder(
		NameInputLinking,
		NameLinking,
		NameInference,
		NameTraining,
		NameAnneal,
		NameCounting,
	)
}

// NewOrder builds an Order from names in ascending rank.
// Names must be non-empty and unique.
func NewOrder(names ...string) (*Order, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("phase order: at least one phase is required")
	}

	o := &Order{
		names: make([]string, len(names)),
		ranks: make(map[string]Phase, len(names)),
	}
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("phase order: empty name at index %d", i)
		}
		if _, dup := o.ranks[name]; dup {
			return nil, fmt.Errorf("phase order: duplicate phase %q", name)
		}
		o.names[i] = name
		o.ranks[name] = Phase(i)
	}
	return o, nil
}

// MustNewOrder is like NewOrder but panics on error.
// Use only with literal phase lists.
func MustNewOrder(names ...string) *Order {
	o, err := NewOrder(names...)
	if err != nil {
		panic(err)
	}
	return o
}

// Lookup returns the phase with the given name.
func (o *Order) Lookup(name string) (Phase, bool) {
	p, ok := o.ranks[name]
	return p, ok
}

// MustLookup is like Lookup but panics if the name is not declared.
func (o *Order) MustLookup(name string) Phase {
	p, ok := o.ranks[name]
	if !ok {
		panic(fmt.Sprintf("phase order: undeclared phase %q (declared: %s)", name, strings.Join(o.names, ", ")))
	}
	return p
}

// Name returns the declared name of p, or a placeholder for Unset/unknown ranks.
func (o *Order) Name(p Phase) string {
	if p == Unset {
		return "unset"
	}
	if int(p) < 0 || int(p) >= len(o.names) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return o.names[p]
}

// Names returns a copy of the declared names in rank order.
func (o *Order) Names() []string {
	out := make([]string, len(o.names))
	copy(out, o.names)
	return out
}

// Len returns the number of declared phases.
func (o *Order) Len() int {
	return len(o.names)
}

// Contains reports whether p is a declared rank of this order.
func (o *Order) Contains(p Phase) bool {
	return int(p) >= 0 && int(p) < len(o.names)
}

// Require checks that every name is declared. Collaborators call this once
// at construction so a misconfigured order fails before any step is queued.
func (o *Order) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := o.ranks[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("phase order: missing required phases %v", missing)
	}
	return nil
}
