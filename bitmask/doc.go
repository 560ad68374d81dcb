// Package bitmask provides roaring-bitmap-backed index sets.
//
// The engine identifies every subproblem by the set of samples it captures.
// Bitmask is that set: intersections with feature column masks produce child
// capture sets, cardinalities produce subset statistics, and Key() produces
// the canonical identity under which a subproblem is cached.
package bitmask
