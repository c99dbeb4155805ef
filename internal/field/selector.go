package field

// Direction selects links relative to a field.
type Direction int

const (
	// Both selects inputs and outputs.
	Both Direction = iota
	// Input selects links into the field.
	Input
	// Output selects links out of the field.
	Output
)

// Selector filters links for bulk Connect and Disconnect.
type Selector struct {
	Dir Direction

	// BorderOnly restricts the selection to links that cross an element border.
	BorderOnly bool

	// Match optionally narrows the selection further.
	Match func(l *Link) bool
}

// Common selectors.
var (
	AllLinks    = Selector{Dir: Both}
	InputLinks  = Selector{Dir: Input}
	OutputLinks = Selector{Dir: Output}
	BorderLinks = Selector{Dir: Both, BorderOnly: true}
)

func (s Selector) matches(l *Link) bool {
	if s.BorderOnly && !l.crossesBorder {
		return false
	}
	if s.Match != nil && !s.Match(l) {
		return false
	}
	return true
}
