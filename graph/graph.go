package graph

import (
	"math"
	"sync"

	"github.com/hupe1980/gosdt/bitmask"
)

// FeatureBound is one candidate split's bound contribution to a subproblem:
// the objective interval of splitting on Feature, combining both children.
type FeatureBound struct {
	Feature int
	Lower   float64
	Upper   float64
}

// BoundsList holds a subproblem's per-feature split bounds. Entries are
// ordered by ascending feature index and mutated in place as children
// report tighter bounds; the list itself is created exactly once.
type BoundsList struct {
	mu      sync.Mutex
	entries []FeatureBound
}

// Visit runs fn with exclusive access to the entries. The slice must not
// be retained beyond the call.
func (bl *BoundsList) Visit(fn func(entries []FeatureBound)) {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	fn(bl.entries)
}

// Snapshot returns a copy of the entries.
func (bl *BoundsList) Snapshot() []FeatureBound {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	out := make([]FeatureBound, len(bl.entries))
	copy(out, bl.entries)
	return out
}

// ParentSignal is a snapshot of one parent back-link: the parent's
// signature, the features of the parent awaiting this child's bounds, and
// the tightest scope the parent dispatched the child under.
type ParentSignal struct {
	Parent  Signature
	Pending *bitmask.Bitmask
	Scope   float64
}

type edgeKey struct {
	parent  Signature
	feature int // signed: +(j+1) positive branch, -(j+1) negative branch
}

type parentLink struct {
	pending *bitmask.Bitmask
	scope   float64
}

// vertexEntry guards one in-flight or completed task computation. The
// first caller computes; racing callers block on ready and adopt the
// winner's record instead of recomputing.
type vertexEntry struct {
	ready chan struct{}
	task  *Task
	err   error
}

// Graph is the subproblem cache for one run: the signature-keyed vertex
// store plus child edges, parent back-links and per-vertex split bounds.
// It is the only multi-writer shared structure in the engine.
type Graph struct {
	mu       sync.RWMutex
	vertices map[Signature]*vertexEntry

	edgeMu   sync.RWMutex
	children map[edgeKey]Signature

	parentMu sync.Mutex
	parents  map[Signature]map[Signature]*parentLink

	boundMu sync.Mutex
	bounds  map[Signature]*BoundsList
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		vertices: make(map[Signature]*vertexEntry),
		children: make(map[edgeKey]Signature),
		parents:  make(map[Signature]map[Signature]*parentLink),
		bounds:   make(map[Signature]*BoundsList),
	}
}

// Size returns the number of subproblem records.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vertices)
}

// Get returns the task for a signature if its computation has completed.
func (g *Graph) Get(sig Signature) (*Task, bool) {
	g.mu.RLock()
	e, ok := g.vertices[sig]
	g.mu.RUnlock()
	if !ok {
		return nil, false
	}
	<-e.ready
	if e.err != nil {
		return nil, false
	}
	return e.task, true
}

// GetOrCreate returns the task for a signature, computing it with create
// if absent. At most one caller runs create per signature; concurrent
// callers block until the winner's result is ready and then observe it.
// Reports whether this call performed the creation.
func (g *Graph) GetOrCreate(sig Signature, create func() (*Task, error)) (*Task, bool, error) {
	g.mu.Lock()
	if e, ok := g.vertices[sig]; ok {
		g.mu.Unlock()
		<-e.ready
		return e.task, false, e.err
	}
	e := &vertexEntry{ready: make(chan struct{})}
	g.vertices[sig] = e
	g.mu.Unlock()

	e.task, e.err = create()
	close(e.ready)
	if e.err != nil {
		// Leave the poisoned entry in place: the fault is fatal for the
		// whole run, and replacing it could mask the first cause.
		return nil, true, e.err
	}
	return e.task, true, e.err
}

// LinkChild records the forward edge (parent, signed feature) -> child.
func (g *Graph) LinkChild(parent Signature, feature int, child Signature) {
	g.edgeMu.Lock()
	defer g.edgeMu.Unlock()
	g.children[edgeKey{parent: parent, feature: feature}] = child
}

// Child resolves the forward edge (parent, signed feature), if present.
func (g *Graph) Child(parent Signature, feature int) (Signature, bool) {
	g.edgeMu.RLock()
	defer g.edgeMu.RUnlock()
	sig, ok := g.children[edgeKey{parent: parent, feature: feature}]
	return sig, ok
}

// LinkParent records (or tightens) the backward edge child -> parent for
// the given feature, keeping the minimum scope across insertions. The
// pending mask accumulates the parent features awaiting this child.
func (g *Graph) LinkParent(child, parent Signature, feature int, scope float64) {
	g.parentMu.Lock()
	defer g.parentMu.Unlock()

	links := g.parents[child]
	if links == nil {
		links = make(map[Signature]*parentLink)
		g.parents[child] = links
	}
	link := links[parent]
	if link == nil {
		link = &parentLink{pending: bitmask.New(), scope: math.Inf(1)}
		links[parent] = link
	}
	link.pending.Add(uint32(feature))
	link.scope = math.Min(link.scope, scope)
}

// Parents returns a snapshot of the child's parent back-links. The fan-in
// from subproblem sharing means a child may have many parents; bound
// tightening is propagated to all of them explicitly.
func (g *Graph) Parents(child Signature) []ParentSignal {
	g.parentMu.Lock()
	defer g.parentMu.Unlock()

	links := g.parents[child]
	if len(links) == 0 {
		return nil
	}
	out := make([]ParentSignal, 0, len(links))
	for parent, link := range links {
		out = append(out, ParentSignal{
			Parent:  parent,
			Pending: link.pending.Clone(),
			Scope:   link.scope,
		})
	}
	return out
}

// StoreBounds installs the split-bound list for a subproblem if absent.
// Reports whether this call created it.
func (g *Graph) StoreBounds(sig Signature, entries []FeatureBound) bool {
	g.boundMu.Lock()
	defer g.boundMu.Unlock()
	if _, ok := g.bounds[sig]; ok {
		return false
	}
	g.bounds[sig] = &BoundsList{entries: entries}
	return true
}

// Bounds returns the split-bound list for a subproblem, if present.
func (g *Graph) Bounds(sig Signature) (*BoundsList, bool) {
	g.boundMu.Lock()
	defer g.boundMu.Unlock()
	bl, ok := g.bounds[sig]
	return bl, ok
}
