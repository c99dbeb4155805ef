// Package registry holds the state shared across scheduling sessions:
// persistent node ids, the node table, the visit id allocator and the single
// current session.
//
// Only the operations on this shared state take the mutex. Everything
// session-scoped lives in the engine.Session and is driven from one
// goroutine.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/visitor"
)

var (
	// ErrSessionActive is returned by Open while another session is current.
	ErrSessionActive = errors.New("registry: a session is already current")
	// ErrNotCurrent is returned by Close for a session that is not current.
	ErrNotCurrent = errors.New("registry: session is not current")
)

// DuplicateNodeError reports a Register call with an id already in use.
type DuplicateNodeError struct {
	ID int64
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("registry: node %d already registered", e.ID)
}

// Node is a persistent graph node that outlives sessions.
type Node interface {
	NodeID() int64
}

// Registry is the top-level registry. The zero value is not usable; call New.
type Registry struct {
	mu      sync.Mutex
	lastID  int64
	nodes   map[int64]Node
	current *engine.Session
	evict   []func()

	visits visitor.IDs
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithStartID resumes id allocation after a previously issued id.
func WithStartID(last int64) Option {
	return func(r *Registry) { r.lastID = last }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		nodes:  make(map[int64]Node),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewID allocates a persistent node id.
func (r *Registry) NewID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	return r.lastID
}

// Register adds n to the node table.
func (r *Registry) Register(n Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := n.NodeID()
	if _, ok := r.nodes[id]; ok {
		return &DuplicateNodeError{ID: id}
	}
	r.nodes[id] = n
	if id > r.lastID {
		r.lastID = id
	}
	return nil
}

// Unregister removes the node with the given id. Returns false if absent.
func (r *Registry) Unregister(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[id]; !ok {
		return false
	}
	delete(r.nodes, id)
	return true
}

// Lookup returns the node with the given id.
func (r *Registry) Lookup(id int64) (Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	return n, ok
}

// Nodes returns every registered node ordered by id.
func (r *Registry) Nodes() []Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = r.nodes[id]
	}
	return out
}

// Open creates a session and makes it current. At most one session is
// current at a time.
func (r *Registry) Open(opts ...engine.SessionOption) (*engine.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, r.current.ID())
	}
	s := engine.NewSession(opts...)
	r.current = s
	r.logger.Info("session opened", "session", s.ID())
	return s, nil
}

// Close ends the current session and evicts every session-scoped cache.
func (r *Registry) Close(s *engine.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s == nil || r.current != s {
		return ErrNotCurrent
	}
	for _, fn := range r.evict {
		fn()
	}
	r.current = nil
	r.logger.Info("session closed",
		"session", s.ID(),
		"executed", s.Executed(),
		"pending", s.Len(),
	)
	return nil
}

// Current returns the current session, or nil.
func (r *Registry) Current() *engine.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// VisitIDs returns the visit id allocator shared by every walk over the
// registry's graph.
func (r *Registry) VisitIDs() *visitor.IDs { return &r.visits }

// Walk runs a visitor walk with a fresh id from the registry's allocator.
func (r *Registry) Walk(origin visitor.Node, cfg visitor.Config) visitor.Result {
	cfg.IDs = &r.visits
	return visitor.Walk(origin, cfg)
}

func (r *Registry) onClose(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evict = append(r.evict, fn)
}
