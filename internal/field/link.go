package field

import "fmt"

// Link is a directed, weighted edge from a source field (or a constant) to a
// destination field.
type Link struct {
	src      *Field
	constant float64
	dst      *Field
	weight   float64
	arg      int

	connected     bool
	propagate     bool
	crossesBorder bool
	registered    bool

	// contribution is the sum of weighted deltas applied at the destination.
	contribution float64
}

// LinkOption configures a Link.
type LinkOption func(*Link)

// Arg sets the argument index for binary rules (Func2, Mul).
func Arg(i int) LinkOption {
	return func(l *Link) {
		l.arg = i
	}
}

// CrossesBorder marks the link as crossing an element border. Element
// teardown only disconnects such links.
func CrossesBorder() LinkOption {
	return func(l *Link) {
		l.crossesBorder = true
	}
}

// NoPropagate stops the link from forwarding ongoing updates. It still
// transmits on Connect(initialize) and retracts on Disconnect(deinitialize).
func NoPropagate() LinkOption {
	return func(l *Link) {
		l.propagate = false
	}
}

// NewLink registers a link from src to dst on both endpoints. The link starts
// disconnected; call Connect to activate it.
func NewLink(src, dst *Field, weight float64, opts ...LinkOption) *Link {
	if src == nil || dst == nil {
		panic(fmt.Sprintf("field: NewLink with nil endpoint (src=%v, dst=%v)", src != nil, dst != nil))
	}
	l := &Link{src: src, dst: dst, weight: weight, propagate: true}
	for _, opt := range opts {
		opt(l)
	}
	l.register()
	return l
}

// NewConstLink registers a link from a constant value into dst.
func NewConstLink(value float64, dst *Field, weight float64, opts ...LinkOption) *Link {
	if dst == nil {
		panic("field: NewConstLink with nil destination")
	}
	l := &Link{constant: value, dst: dst, weight: weight, propagate: true}
	for _, opt := range opts {
		opt(l)
	}
	l.register()
	return l
}

// Source returns the source field, or nil for a constant link.
func (l *Link) Source() *Field { return l.src }

// Destination returns the destination field.
func (l *Link) Destination() *Field { return l.dst }

// Weight returns the link weight.
func (l *Link) Weight() float64 { return l.weight }

// ArgIndex returns the argument index.
func (l *Link) ArgIndex() int { return l.arg }

// IsConnected reports whether the link transmits.
func (l *Link) IsConnected() bool { return l.connected }

// IsRegistered reports whether the link is in its endpoints' adjacency lists.
func (l *Link) IsRegistered() bool { return l.registered }

// Propagates reports whether ongoing updates are forwarded.
func (l *Link) Propagates() bool { return l.propagate }

// CrossesBorderFlag reports whether the link crosses an element border.
func (l *Link) CrossesBorderFlag() bool { return l.crossesBorder }

// Contribution returns the weighted sum this link has delivered.
func (l *Link) Contribution() float64 { return l.contribution }

// IsConstant reports whether the link's source is a constant.
func (l *Link) IsConstant() bool { return l.src == nil }

// sourceValue is the value the destination should currently see, before weighting.
func (l *Link) sourceValue() float64 {
	if l.src == nil {
		return l.constant
	}
	return l.src.propagated
}

// Connect activates the link. If initialize is set, the source's current
// value is pushed through the link as an initial delta (less anything the
// link still holds from an earlier connection).
//
// Connecting an already connected link is a no-op. Connecting into a
// destroyed destination (or from a destroyed source) is inert. An unlinked
// link is registered again first.
func (l *Link) Connect(initialize bool) {
	if l.connected {
		return
	}
	if l.dst.destroyed || (l.src != nil && l.src.destroyed) {
		return
	}
	if !l.registered {
		l.register()
	}
	l.connected = true

	if initialize {
		// Deliver only what is missing, so a link disconnected without
		// retraction is not counted twice.
		if delta := l.sourceValue()*l.weight - l.delivered(); delta != 0 {
			l.dst.receive(update{link: l, delta: delta})
		}
	}
}

// delivered is the contribution the destination will hold once its pending
// deltas for this link are applied.
func (l *Link) delivered() float64 {
	acc := l.contribution
	for _, u := range l.dst.pending {
		if u.link != l {
			continue
		}
		if u.retract {
			acc = 0
		} else {
			acc += u.delta
		}
	}
	return acc
}

// Disconnect deactivates the link. If deinitialize is set, everything the
// link contributed is retracted from the destination. If unlink is set, the
// link is also removed from both endpoints.
//
// Disconnecting an already disconnected link changes nothing except that
// unlink still removes it from the adjacency lists.
func (l *Link) Disconnect(deinitialize, unlink bool) {
	if l.connected {
		l.connected = false
		if deinitialize {
			l.dst.receive(update{link: l, retract: true})
		}
	}
	if unlink {
		l.unregister()
	}
}

// SetWeight changes the weight. A connected link forwards the resulting
// change of its delivered value.
func (l *Link) SetWeight(w float64) {
	old := l.weight
	l.weight = w
	if !l.connected || w == old {
		return
	}
	if v := l.sourceValue(); v != 0 {
		l.dst.receive(update{link: l, delta: v * (w - old)})
	}
}

func (l *Link) register() {
	if l.registered {
		return
	}
	l.registered = true
	if l.src != nil {
		l.src.outputs = append(l.src.outputs, l)
	}
	l.dst.detached = removeLink(l.dst.detached, l)
	l.dst.inputs = append(l.dst.inputs, l)
}

func (l *Link) unregister() {
	if !l.registered {
		return
	}
	l.registered = false
	if l.src != nil {
		l.src.outputs = removeLink(l.src.outputs, l)
	}
	l.dst.inputs = removeLink(l.dst.inputs, l)

	// An unlinked link keeps counting toward the destination's input sums
	// until whatever it delivered has been retracted.
	if l.contribution != 0 || l.hasPending() {
		l.dst.detached = append(l.dst.detached, l)
	}
}

// hasPending reports whether the destination holds an unapplied update from l.
func (l *Link) hasPending() bool {
	for _, u := range l.dst.pending {
		if u.link == l {
			return true
		}
	}
	return false
}

// String renders the link for debugging.
func (l *Link) String() string {
	src := fmt.Sprintf("const(%g)", l.constant)
	if l.src != nil {
		src = l.src.label
	}
	return fmt.Sprintf("%s -[%g]-> %s", src, l.weight, l.dst.label)
}

func removeLink(links []*Link, l *Link) []*Link {
	for i, x := range links {
		if x == l {
			return append(links[:i], links[i+1:]...)
		}
	}
	return links
}
