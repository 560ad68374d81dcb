// Package graph implements the subproblem cache: a dependency graph of
// Task records keyed by the canonical signature of the sample subset they
// capture.
//
// Canonicalization by sample subset (not by split path) is what makes the
// search space a DAG instead of a depth-2^d tree: two split sequences
// reaching the same subset share one record, one bound interval and one
// expansion. Bounds only tighten over a record's lifetime; once the lower
// and upper bound meet the record is solved and effectively immutable.
package graph
