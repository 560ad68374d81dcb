package graph

import (
	"fmt"
	"math"
	"sync"

	"github.com/hupe1980/gosdt/bitmask"
	"github.com/hupe1980/gosdt/dataset"
)

// epsilon absorbs floating point drift when comparing objective values.
const epsilon = 1e-9

// Signature is the canonical identity of a subproblem: the capture set's
// canonical bytes plus the remaining depth budget. Two split sequences
// reaching the same sample subset (at the same remaining depth) map to the
// same Signature, which is what turns the search space into a DAG.
type Signature string

// MakeSignature builds the signature for a capture set with the given
// remaining depth budget (0 = unlimited).
func MakeSignature(capture *bitmask.Bitmask, depth int) Signature {
	return Signature(capture.Key() + string([]byte{byte(depth)}))
}

// InvariantError reports a violated bound invariant: a lower bound crossing
// above an upper bound, or a loosening update. It is always fatal; an
// unsound model is worse than no model.
type InvariantError struct {
	Op           string
	Lower, Upper float64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: invalid bounds [%g, %g]", e.Op, e.Lower, e.Upper)
}

// Params carries the configuration slice the bounding arithmetic needs.
type Params struct {
	// Regularization is the penalty charged once per leaf.
	Regularization float64

	// ReferenceLB selects the reference-guided lower bound. When set, the
	// working lower bound may be an overestimate, and GuaranteedLowerbound
	// tracks the provable bound separately.
	ReferenceLB bool
}

// Task is one subproblem record: a capture set with its bound state. All
// bound state mutation is serialized by the record's own mutex; the capture
// set and signature are immutable after construction.
type Task struct {
	mu sync.Mutex

	capture  *bitmask.Bitmask
	features *bitmask.Bitmask
	sig      Signature
	depth    int

	support       float64
	baseObjective float64

	lowerbound           float64
	upperbound           float64
	guaranteedLowerbound float64

	lowerScope float64
	upperScope float64
	coverage   float64

	optimalFeature int
}

// NewTask bounds a fresh subproblem: it computes the capture set's summary
// statistics, derives the initial [lower, upper] interval, and decides
// whether the subproblem is already forced to be a leaf (insufficient
// accuracy or support, no remaining features, a single captured sample, or
// an exhausted depth budget).
//
// The features set is taken over by the task and may be pruned in place.
func NewTask(capture, features *bitmask.Bitmask, depth int, ds *dataset.Dataset, params Params) (*Task, error) {
	stats := ds.SummaryStatistics(capture)
	reg := params.Regularization
	terminal := capture.Count() <= 1 || features.IsEmpty()

	t := &Task{
		capture:        capture,
		features:       features,
		sig:            MakeSignature(capture, depth),
		depth:          depth,
		support:        float64(capture.Count()) / float64(ds.NumRows),
		baseObjective:  stats.MaxLoss + reg,
		lowerScope:     math.Inf(-1),
		upperScope:     math.Inf(1),
		coverage:       math.Inf(-1),
		optimalFeature: -1,
	}

	// The base objective is the best single-leaf tree. Anything better must
	// use at least two leaves, hence the 2*reg floor on the min loss.
	lower := math.Min(t.baseObjective, stats.MinLoss+2*reg)
	t.guaranteedLowerbound = math.Min(t.baseObjective, stats.GuaranteedMinLoss+2*reg)

	switch {
	case 1.0-stats.MinLoss < reg || (stats.Potential < 2*reg && 1.0-stats.MaxLoss < reg):
		// Provably not part of any optimal tree.
		t.lowerbound = t.baseObjective
		t.upperbound = t.baseObjective
		t.features.Clear()
	case stats.MaxLoss-stats.MinLoss < reg || stats.Potential < 2*reg || terminal || depth == 1:
		// Provably not an internal node of any optimal tree.
		t.lowerbound = t.baseObjective
		t.upperbound = t.baseObjective
		t.features.Clear()
	default:
		t.lowerbound = lower
		t.upperbound = t.baseObjective
	}

	if t.lowerbound > t.upperbound+epsilon {
		return nil, &InvariantError{Op: "graph: bound task", Lower: t.lowerbound, Upper: t.upperbound}
	}
	return t, nil
}

// Signature returns the task's canonical identity.
func (t *Task) Signature() Signature {
	return t.sig
}

// Capture returns the capture set. Callers must not mutate it.
func (t *Task) Capture() *bitmask.Bitmask {
	return t.capture
}

// Depth returns the remaining depth budget (0 = unlimited).
func (t *Task) Depth() int {
	return t.depth
}

// Support returns the captured fraction of the dataset.
func (t *Task) Support() float64 {
	return t.support
}

// BaseObjective returns the objective of the best single-leaf tree for
// this subproblem.
func (t *Task) BaseObjective() float64 {
	return t.baseObjective
}

// Bounds returns the current [lower, upper] objective interval.
func (t *Task) Bounds() (lower, upper float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lowerbound, t.upperbound
}

// Lowerbound returns the current objective lower bound.
func (t *Task) Lowerbound() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lowerbound
}

// Upperbound returns the current objective upper bound.
func (t *Task) Upperbound() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.upperbound
}

// GuaranteedLowerbound returns a provable lower bound even in reference
// mode, where the working lower bound may overestimate.
func (t *Task) GuaranteedLowerbound(params Params) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if params.ReferenceLB {
		return t.guaranteedLowerbound
	}
	return t.lowerbound
}

// Uncertainty returns the width of the bound interval; zero means solved.
func (t *Task) Uncertainty() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return math.Max(0, t.upperbound-t.lowerbound)
}

// Solved reports whether the bounds have met.
func (t *Task) Solved() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.upperbound-t.lowerbound <= epsilon
}

// OptimalFeature returns the split feature recorded by the last bound
// update, or -1 if the subproblem is best left a leaf.
func (t *Task) OptimalFeature() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.optimalFeature
}

// Scope folds a new look-ahead scope into the task's scope interval.
func (t *Task) Scope(scope float64) {
	if scope == 0 {
		return
	}
	scope = math.Max(0, scope)
	t.mu.Lock()
	defer t.mu.Unlock()
	if math.IsInf(t.upperScope, 1) {
		t.upperScope = scope
	} else {
		t.upperScope = math.Max(t.upperScope, scope)
	}
	if math.IsInf(t.lowerScope, -1) {
		t.lowerScope = scope
	} else {
		t.lowerScope = math.Min(t.lowerScope, scope)
	}
}

// UpperScope returns the loosest look-ahead scope seen so far.
func (t *Task) UpperScope() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.upperScope
}

// LowerScope returns the tightest look-ahead scope seen so far.
func (t *Task) LowerScope() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lowerScope
}

// Coverage returns the scope up to which children have been dispatched.
func (t *Task) Coverage() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.coverage
}

// SetCoverage records the scope up to which children have been dispatched.
func (t *Task) SetCoverage(coverage float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.coverage = coverage
}

// PruneFeature removes a feature from the candidate set.
func (t *Task) PruneFeature(feature int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.features.Remove(uint32(feature))
}

// FeatureArray returns a snapshot of the remaining candidate features in
// ascending order.
func (t *Task) FeatureArray() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.features.ToArray()
}

// Features returns a copy of the remaining candidate feature set.
func (t *Task) Features() *bitmask.Bitmask {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.features.Clone()
}

// Update tightens the bound interval. Bounds only move inward: the lower
// bound never decreases and the upper bound never increases. A crossing
// beyond floating point drift is an invariant fault and aborts the run.
// Within drift, near-met bounds snap shut so the subproblem reads as
// solved. Reports whether the interval changed.
func (t *Task) Update(lower, upper float64, optimalFeature int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := lower != t.lowerbound || upper != t.upperbound
	t.lowerbound = math.Max(t.lowerbound, lower)
	t.upperbound = math.Min(t.upperbound, upper)

	if t.lowerbound > t.upperbound+epsilon {
		return false, &InvariantError{Op: "graph: update task", Lower: t.lowerbound, Upper: t.upperbound}
	}
	t.lowerbound = math.Min(t.lowerbound, t.upperbound)

	t.optimalFeature = optimalFeature

	if t.upperbound-t.lowerbound <= epsilon {
		t.lowerbound = t.upperbound
	}
	return changed, nil
}
