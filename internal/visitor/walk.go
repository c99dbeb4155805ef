package visitor

// Compatible decides whether a walk declared in scope walk may cross an edge
// from scope from to scope to.
type Compatible func(walk, from, to Scope) bool

// SameScope lets a walk cross only edges that stay inside its own scope.
func SameScope(walk, from, to Scope) bool { return from == walk && to == walk }

// AnyScope lets a walk cross every edge.
func AnyScope(Scope, Scope, Scope) bool { return true }

// Config describes one external walk.
type Config struct {
	Direction  Direction
	Scope      Scope
	Compatible Compatible // nil means AnyScope
	Callbacks  Callbacks  // nil visits without matching
	IDs        *IDs       // required; shared by every walk over the graph
}

// Result summarises a walk.
type Result struct {
	VisitID    uint64 // id of the root visitor
	Visited    int    // nodes entered, origins included, across companions
	Accepted   int
	Companions int
}

// Walk runs a walk from origin and returns its summary. A fresh visit id is
// drawn from cfg.IDs.
func Walk(origin Node, cfg Config) Result {
	if cfg.IDs == nil {
		panic("visitor: Walk without an IDs allocator")
	}
	if cfg.Compatible == nil {
		cfg.Compatible = AnyScope
	}
	if cfg.Callbacks == nil {
		cfg.Callbacks = CallbackFuncs{}
	}
	w := &walker{cfg: cfg}
	root := &Visitor{id: cfg.IDs.Next(), dir: cfg.Direction, scope: cfg.Scope, origin: origin}
	w.result.VisitID = root.id
	w.run(root)
	return w.result
}

type walker struct {
	cfg    Config
	result Result
}

// run drives one visitor to completion. Companions run nested, before the
// parent's frontier continues.
func (w *walker) run(v *Visitor) {
	if !v.origin.VisitMark().stamp(v.dir, v.id) {
		return
	}
	w.result.Visited++

	frontier := []Node{v.origin}
	for len(frontier) > 0 {
		n := frontier[0]
		frontier[0] = nil
		frontier = frontier[1:]

		if v.dir == Down && w.cfg.Callbacks.Up(v, n) {
			w.turn(v, n)
			continue
		}

		for _, e := range n.Edges(v.dir) {
			next, from, to := v.crossing(e)
			if next == nil || !w.cfg.Compatible(v.scope, from, to) {
				continue
			}
			if !next.VisitMark().stamp(v.dir, v.id) {
				continue
			}
			w.result.Visited++

			d := w.cfg.Callbacks.Check(v, e, next)
			if d.Has(Accept) {
				w.result.Accepted++
			}
			if d.Has(Continue) {
				frontier = append(frontier, next)
			}
		}
	}
}

func (w *walker) turn(parent *Visitor, n Node) {
	companion := &Visitor{
		id:     w.cfg.IDs.Next(),
		dir:    Up,
		scope:  parent.scope,
		origin: n,
		parent: parent,
	}
	w.result.Companions++
	w.run(companion)
}
