package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/gosdt/bitmask"
	"github.com/hupe1980/gosdt/dataset"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Bool returns true with probability p.
func (r *RNG) Bool(p float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64() < p
}

// RandomBitMatrix generates a rows by cols matrix where each cell is set
// with probability 0.5.
func (r *RNG) RandomBitMatrix(rows, cols int) *dataset.BitMatrix {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := dataset.NewBitMatrix(rows, cols)
	for i := range rows {
		for j := range cols {
			m.Set(i, j, r.rand.Intn(2) == 1)
		}
	}
	return m
}

// RandomDataset generates a dataset with uniformly random binary features
// and uniformly random class labels. Labels carry no signal, which makes
// the instances adversarial for pruning and useful for stress tests.
func RandomDataset(rng *RNG, rows, features, classes int) (*dataset.Dataset, error) {
	m := dataset.NewBitMatrix(rows, features+classes)
	for i := range rows {
		for j := range features {
			m.Set(i, j, rng.Bool(0.5))
		}
		m.Set(i, features+rng.Intn(classes), true)
	}
	return dataset.New(m, dataset.UnitCosts(classes, rows), nil)
}

// ExhaustiveObjective computes the true optimal risk of a dataset by
// enumerating every tree up to maxDepth decision levels. It is the ground
// truth for verifying the branch and bound search on small instances; the
// cost grows doubly exponentially with depth.
func ExhaustiveObjective(ds *dataset.Dataset, regularization float64, maxDepth int) float64 {
	return exhaustive(ds, ds.FullCapture(), regularization, maxDepth)
}

func exhaustive(ds *dataset.Dataset, capture *bitmask.Bitmask, regularization float64, depth int) float64 {
	stats := ds.SummaryStatistics(capture)
	best := stats.MaxLoss + regularization
	if depth == 0 {
		return best
	}

	for j := 0; j < ds.NumFeatures; j++ {
		negative := ds.Subset(capture, j, false)
		positive := ds.Subset(capture, j, true)
		if negative.IsEmpty() || positive.IsEmpty() {
			continue
		}
		risk := exhaustive(ds, negative, regularization, depth-1) +
			exhaustive(ds, positive, regularization, depth-1)
		best = math.Min(best, risk)
	}
	return best
}
