package solver

import (
	"container/heap"
	"sync"

	"github.com/hupe1980/gosdt/bitmask"
	"github.com/hupe1980/gosdt/graph"
)

type messageKind uint8

const (
	exploreMessage messageKind = iota
	exploitMessage
)

// message is one unit of scheduled work. Exploration messages travel
// downward in the dependency graph and materialize a subproblem; exploitation
// messages travel upward and fold refined child bounds into a parent.
type message struct {
	kind messageKind

	// sender is the parent signature for explorations; empty at the root.
	sender graph.Signature

	// recipient is the target signature for exploitations.
	recipient graph.Signature

	// capture and features describe the subproblem to materialize
	// (explorations). For exploitations, features is the pending mask of
	// parent features awaiting updated child bounds.
	capture  *bitmask.Bitmask
	features *bitmask.Bitmask

	// feature is the signed split edge from the sender: +(j+1) for the
	// positive branch, -(j+1) for the negative branch, 0 at the root.
	feature int

	// depth is the recipient's remaining depth budget (explorations).
	depth int

	scope    float64
	priority float64

	// order breaks priority ties deterministically.
	order string
}

func messageLess(a, b message) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if a.kind != b.kind {
		// Exploitations first, so refined bounds propagate before more of
		// the graph is materialized.
		return a.kind > b.kind
	}
	return a.order < b.order
}

// Compile time check to ensure messageHeap satisfies the heap interface.
var _ heap.Interface = (*messageHeap)(nil)

type messageHeap []message

func (h messageHeap) Len() int            { return len(h) }
func (h messageHeap) Less(i, j int) bool  { return messageLess(h[i], h[j]) }
func (h messageHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *messageHeap) Push(x any)         { *h = append(*h, x.(message)) }
func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// messageQueue is the shared frontier: a mutex-guarded priority queue
// ordered by descending priority with deterministic tie-breaks, so the pop
// order does not depend on worker arrival order.
type messageQueue struct {
	mu   sync.Mutex
	heap messageHeap
}

func newMessageQueue() *messageQueue {
	return &messageQueue{}
}

func (q *messageQueue) Push(m message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, m)
}

// Pop removes the highest priority message. It never blocks; an empty
// frontier near termination is handled by the worker loop.
func (q *messageQueue) Pop() (message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return message{}, false
	}
	return heap.Pop(&q.heap).(message), true
}

func (q *messageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}
