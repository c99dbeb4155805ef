package visitor

// Decision is the outcome of Callbacks.Check.
type Decision uint8

const (
	// Continue expands the walk from the checked node.
	Continue Decision = 1 << iota
	// Accept marks the checked node as a match.
	Accept
)

// Reject neither accepts nor expands.
const Reject Decision = 0

// Has reports whether all bits of flag are set.
func (d Decision) Has(flag Decision) bool { return d&flag == flag }

// Callbacks carry the domain decisions of a walk.
type Callbacks interface {
	// Check is called once per newly reached node, with the edge the walk
	// crossed to reach it.
	Check(v *Visitor, e Edge, n Node) Decision
	// Up is asked at every node a Down visitor enters, origin included.
	// Returning true seeds a companion Up visitor from n; the Down visitor
	// does not expand from n.
	Up(v *Visitor, n Node) bool
}

// CallbackFuncs adapts functions to Callbacks. A nil CheckFunc accepts
// nothing and always continues; a nil UpFunc never turns.
type CallbackFuncs struct {
	CheckFunc func(v *Visitor, e Edge, n Node) Decision
	UpFunc    func(v *Visitor, n Node) bool
}

func (c CallbackFuncs) Check(v *Visitor, e Edge, n Node) Decision {
	if c.CheckFunc == nil {
		return Continue
	}
	return c.CheckFunc(v, e, n)
}

func (c CallbackFuncs) Up(v *Visitor, n Node) bool {
	if c.UpFunc == nil {
		return false
	}
	return c.UpFunc(v, n)
}

// Match is one node accepted by a Collector.
type Match struct {
	Node      Node
	Edge      Edge
	VisitID   uint64
	Direction Direction
}

// Collector is a Callbacks implementation that accumulates matches.
//
// Accept selects matches (nil accepts nothing). Expand decides whether the
// walk continues through a node (nil always continues). Turn is the Up
// decision (nil never turns).
type Collector struct {
	Accept func(v *Visitor, e Edge, n Node) bool
	Expand func(v *Visitor, e Edge, n Node) bool
	Turn   func(v *Visitor, n Node) bool

	matches []Match
}

func (c *Collector) Check(v *Visitor, e Edge, n Node) Decision {
	d := Reject
	if c.Expand == nil || c.Expand(v, e, n) {
		d |= Continue
	}
	if c.Accept != nil && c.Accept(v, e, n) {
		c.matches = append(c.matches, Match{Node: n, Edge: e, VisitID: v.ID(), Direction: v.Direction()})
		d |= Accept
	}
	return d
}

func (c *Collector) Up(v *Visitor, n Node) bool {
	return c.Turn != nil && c.Turn(v, n)
}

// Matches returns the accepted matches in delivery order.
func (c *Collector) Matches() []Match {
	out := make([]Match, len(c.matches))
	copy(out, c.matches)
	return out
}

// Nodes returns the accepted nodes in delivery order.
func (c *Collector) Nodes() []Node {
	out := make([]Node, len(c.matches))
	for i, m := range c.matches {
		out[i] = m.Node
	}
	return out
}

// Reset drops accumulated matches.
func (c *Collector) Reset() { c.matches = c.matches[:0] }
