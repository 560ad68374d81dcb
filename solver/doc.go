// Package solver implements the branch and bound search over the
// subproblem graph. An Optimizer drains a shared priority frontier of
// exploration and exploitation messages: explorations materialize and bound
// new subproblems, exploitations fold refined child bounds back into their
// parents. The run terminates when the root's bounds meet, the frontier
// drains, the time limit elapses or the context is cancelled, and the
// optimal (or best known) trees are extracted from the solved graph.
package solver
