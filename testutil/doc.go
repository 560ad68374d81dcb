// Package testutil provides testing utilities for gosdt.
//
// This package is intended for use in tests and benchmarks only. It
// provides a seeded, thread-safe random source, random dataset
// generation, and an exhaustive reference search that computes the true
// optimal objective for small instances.
//
// # Random Dataset Generation
//
//	rng := testutil.NewRNG(seed)
//	ds := testutil.RandomDataset(rng, 32, 4, 2)
//
// # Ground Truth
//
//	objective := testutil.ExhaustiveObjective(ds, 0.01, 3)
package testutil
