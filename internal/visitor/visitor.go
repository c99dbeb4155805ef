package visitor

import (
	"fmt"
	"sync/atomic"
)

// Direction is the role a walk follows along edges.
type Direction uint8

const (
	// Down walks toward inputs (producers).
	Down Direction = iota
	// Up walks toward outputs (consumers).
	Up
)

func (d Direction) String() string {
	switch d {
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return fmt.Sprintf("direction(%d)", d)
	}
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if d == Down {
		return Up
	}
	return Down
}

// Scope tags a structural region of the graph. The taxonomy belongs to the
// domain; the walk only hands scopes to the Compatible predicate.
type Scope string

// Mark holds a node's visit stamps. Embed it in node types.
type Mark struct {
	down uint64
	up   uint64
}

// VisitMark implements the stamp accessor of Node for embedding types.
func (m *Mark) VisitMark() *Mark { return m }

// LastVisit returns the last visit id stamped in direction d (0 if never).
func (m *Mark) LastVisit(d Direction) uint64 {
	if d == Up {
		return m.up
	}
	return m.down
}

// stamp records id for direction d. Returns false if the node already
// carries id.
func (m *Mark) stamp(d Direction, id uint64) bool {
	slot := &m.down
	if d == Up {
		slot = &m.up
	}
	if *slot == id {
		return false
	}
	*slot = id
	return true
}

// Node is a walkable graph vertex.
type Node interface {
	VisitMark() *Mark
	// Edges returns the edges leaving the node in direction d: input edges
	// for Down, output edges for Up.
	Edges(d Direction) []Edge
}

// Edge is a walkable directed edge from an input node to an output node.
type Edge interface {
	Input() Node
	Output() Node
	// Scopes returns the scope tags at the input and output ends.
	Scopes() (in, out Scope)
}

// IDs allocates visit ids. Ids are strictly increasing and never 0.
// Safe for concurrent use.
type IDs struct {
	last atomic.Uint64
}

// Next returns a fresh visit id.
func (a *IDs) Next() uint64 { return a.last.Add(1) }

// Last returns the most recently issued id.
func (a *IDs) Last() uint64 { return a.last.Load() }

// Visitor is the state of one walk.
type Visitor struct {
	id     uint64
	dir    Direction
	scope  Scope
	origin Node
	parent *Visitor
}

// ID returns the walk's visit id.
func (v *Visitor) ID() uint64 { return v.id }

// Direction returns the direction the visitor walks.
func (v *Visitor) Direction() Direction { return v.dir }

// Scope returns the walk's declared scope.
func (v *Visitor) Scope() Scope { return v.scope }

// Origin returns the node the visitor was seeded from.
func (v *Visitor) Origin() Node { return v.origin }

// Parent returns the visitor that turned into this one, or nil for the root.
func (v *Visitor) Parent() *Visitor { return v.parent }

// Root returns the outermost visitor of the walk.
func (v *Visitor) Root() *Visitor {
	for v.parent != nil {
		v = v.parent
	}
	return v
}

// IsCompanion reports whether the visitor was seeded by a turn.
func (v *Visitor) IsCompanion() bool { return v.parent != nil }

func (v *Visitor) String() string {
	return fmt.Sprintf("visitor[%d %s scope=%s]", v.id, v.dir, v.scope)
}

// crossing orients an edge's scopes for the visitor's direction.
func (v *Visitor) crossing(e Edge) (next Node, from, to Scope) {
	in, out := e.Scopes()
	if v.dir == Down {
		return e.Input(), out, in
	}
	return e.Output(), in, out
}
