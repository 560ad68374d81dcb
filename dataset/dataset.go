package dataset

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/gosdt/bitmask"
)

var (
	// ErrNoRows is returned when the input matrix has no sample rows.
	ErrNoRows = errors.New("dataset has no rows")

	// ErrNoFeatures is returned when the input matrix has no feature columns
	// beyond the trailing target columns.
	ErrNoFeatures = errors.New("dataset has no feature columns")

	// ErrEmptyTargetRow is returned when a sample row carries no target bit.
	ErrEmptyTargetRow = errors.New("dataset row contains no target value")
)

// ErrCostShape indicates a malformed cost matrix.
type ErrCostShape struct {
	Rows, Cols int
}

func (e *ErrCostShape) Error() string {
	return fmt.Sprintf("cost matrix must be square and non-empty, got %dx%d", e.Rows, e.Cols)
}

// ErrReferenceShape indicates a reference label matrix whose shape does not
// match the dataset's rows and target columns.
type ErrReferenceShape struct {
	Rows, Cols         int
	WantRows, WantCols int
}

func (e *ErrReferenceShape) Error() string {
	return fmt.Sprintf("reference matrix is %dx%d, want %dx%d", e.Rows, e.Cols, e.WantRows, e.WantCols)
}

// ErrFeatureMap indicates a feature map that does not partition the
// binarized feature columns.
type ErrFeatureMap struct {
	Column int
	Reason string
}

func (e *ErrFeatureMap) Error() string {
	return fmt.Sprintf("feature map: column %d %s", e.Column, e.Reason)
}

// SummaryStatistics describes a capture set under the dataset's cost matrix.
type SummaryStatistics struct {
	// Potential is the maximum cost reduction achievable across different
	// prediction choices for the captured samples.
	Potential float64

	// MaxLoss is the loss incurred by classifying every captured sample
	// with the single cost-minimizing class, before regularization.
	MaxLoss float64

	// GuaranteedMinLoss is the equivalent-points lower bound: the loss that
	// any classifier over these features must incur because identical
	// feature rows carry conflicting targets.
	GuaranteedMinLoss float64

	// MinLoss equals GuaranteedMinLoss unless reference labels are present,
	// in which case it is the loss of the reference predictions over the
	// capture set.
	MinLoss float64

	// Optimal is the class index realizing MaxLoss.
	Optimal int
}

// Option configures Dataset construction.
type Option func(*config)

type config struct {
	reference *BitMatrix
}

// WithReference attaches reference labels (rows x targets, one-hot) used for
// the reference-guided lower bound.
func WithReference(ref *BitMatrix) Option {
	return func(c *config) {
		c.reference = ref
	}
}

// Dataset owns the binarized training data in column-mask form together
// with the cost matrix and derived per-class cost vectors. It is built once
// per run and read-only afterwards, so it is freely shared across workers.
type Dataset struct {
	// NumRows is the number of samples.
	NumRows int

	// NumFeatures is the number of binarized feature columns.
	NumFeatures int

	// NumTargets is the number of classes.
	NumTargets int

	colFeatures []*bitmask.Bitmask
	colTargets  []*bitmask.Bitmask

	// majority marks the rows whose target matches the cost-minimizing
	// target of their feature-equivalence class.
	majority *bitmask.Bitmask

	costs         *mat.Dense
	diffCosts     []float64
	matchCosts    []float64
	mismatchCosts []float64

	featureMap [][]int
	reference  []*bitmask.Bitmask
}

// New builds a Dataset from a binarized input matrix whose trailing columns
// are the one-hot target columns, a classes x classes cost matrix with zero
// diagonal, and a feature map partitioning the binarized feature columns by
// original feature. A nil feature map assigns each column its own feature.
//
// Shape violations are construction errors; nothing is coerced.
func New(input *BitMatrix, costs *mat.Dense, featureMap [][]int, optFns ...Option) (*Dataset, error) {
	cfg := config{}
	for _, fn := range optFns {
		fn(&cfg)
	}

	rows, cols := input.Dims()
	costRows, costCols := costs.Dims()
	if costRows != costCols || costRows == 0 {
		return nil, &ErrCostShape{Rows: costRows, Cols: costCols}
	}
	if rows == 0 {
		return nil, ErrNoRows
	}
	if cols <= costRows {
		return nil, ErrNoFeatures
	}

	ds := &Dataset{
		NumRows:     rows,
		NumFeatures: cols - costRows,
		NumTargets:  costRows,
	}

	if featureMap == nil {
		featureMap = make([][]int, ds.NumFeatures)
		for j := range featureMap {
			featureMap[j] = []int{j}
		}
	}
	if err := validateFeatureMap(featureMap, ds.NumFeatures); err != nil {
		return nil, err
	}
	ds.featureMap = featureMap

	ds.constructMasks(input)
	ds.constructCosts(costs)
	if err := ds.constructMajority(input); err != nil {
		return nil, err
	}

	if cfg.reference != nil {
		refRows, refCols := cfg.reference.Dims()
		if refRows != ds.NumRows || refCols != ds.NumTargets {
			return nil, &ErrReferenceShape{
				Rows: refRows, Cols: refCols,
				WantRows: ds.NumRows, WantCols: ds.NumTargets,
			}
		}
		ds.reference = make([]*bitmask.Bitmask, ds.NumTargets)
		for t := 0; t < ds.NumTargets; t++ {
			ds.reference[t] = bitmask.New()
			for i := 0; i < ds.NumRows; i++ {
				if cfg.reference.Get(i, t) {
					ds.reference[t].Add(uint32(i))
				}
			}
		}
	}

	return ds, nil
}

func validateFeatureMap(featureMap [][]int, numFeatures int) error {
	seen := make([]bool, numFeatures)
	for _, group := range featureMap {
		for _, col := range group {
			if col < 0 || col >= numFeatures {
				return &ErrFeatureMap{Column: col, Reason: "out of range"}
			}
			if seen[col] {
				return &ErrFeatureMap{Column: col, Reason: "covered twice"}
			}
			seen[col] = true
		}
	}
	for col, ok := range seen {
		if !ok {
			return &ErrFeatureMap{Column: col, Reason: "not covered"}
		}
	}
	return nil
}

func (ds *Dataset) constructMasks(input *BitMatrix) {
	ds.colFeatures = make([]*bitmask.Bitmask, ds.NumFeatures)
	for j := 0; j < ds.NumFeatures; j++ {
		ds.colFeatures[j] = bitmask.New()
	}
	ds.colTargets = make([]*bitmask.Bitmask, ds.NumTargets)
	for t := 0; t < ds.NumTargets; t++ {
		ds.colTargets[t] = bitmask.New()
	}

	for i := 0; i < ds.NumRows; i++ {
		for j := 0; j < ds.NumFeatures; j++ {
			if input.Get(i, j) {
				ds.colFeatures[j].Add(uint32(i))
			}
		}
		for t := 0; t < ds.NumTargets; t++ {
			if input.Get(i, ds.NumFeatures+t) {
				ds.colTargets[t].Add(uint32(i))
			}
		}
	}
}

func (ds *Dataset) constructCosts(costs *mat.Dense) {
	ds.costs = mat.DenseCopyOf(costs)
	ds.diffCosts = make([]float64, ds.NumTargets)
	ds.matchCosts = make([]float64, ds.NumTargets)
	ds.mismatchCosts = make([]float64, ds.NumTargets)

	for i := 0; i < ds.NumTargets; i++ {
		maxCost := math.Inf(-1)
		minCost := math.Inf(1)
		ds.mismatchCosts[i] = math.Inf(1)
		for j := 0; j < ds.NumTargets; j++ {
			c := ds.costs.At(j, i)
			maxCost = math.Max(maxCost, c)
			minCost = math.Min(minCost, c)
			if i == j {
				ds.matchCosts[i] = c
			} else {
				ds.mismatchCosts[i] = math.Min(ds.mismatchCosts[i], c)
			}
		}
		ds.diffCosts[i] = maxCost - minCost
	}
}

// constructMajority groups rows into feature-equivalence classes (the same
// feature row can appear multiple times with different targets), picks the
// cost-minimizing target per class, and marks the rows that agree with it.
func (ds *Dataset) constructMajority(input *BitMatrix) error {
	distributions := make(map[string][]int)
	for i := 0; i < ds.NumRows; i++ {
		key := input.rowPrefixKey(i, ds.NumFeatures)
		dist := distributions[key]
		if dist == nil {
			dist = make([]int, ds.NumTargets)
			distributions[key] = dist
		}
		for t := 0; t < ds.NumTargets; t++ {
			if input.Get(i, ds.NumFeatures+t) {
				dist[t]++
			}
		}
	}

	minimizers := make(map[string]int, len(distributions))
	for key, dist := range distributions {
		minimizers[key] = ds.costMinimizer(dist)
	}

	ds.majority = bitmask.New()
	for i := 0; i < ds.NumRows; i++ {
		empirical := -1
		for t := 0; t < ds.NumTargets; t++ {
			if input.Get(i, ds.NumFeatures+t) {
				empirical = t
				break
			}
		}
		if empirical < 0 {
			return fmt.Errorf("%w: row %d", ErrEmptyTargetRow, i)
		}
		if minimizers[input.rowPrefixKey(i, ds.NumFeatures)] == empirical {
			ds.majority.Add(uint32(i))
		}
	}
	return nil
}

// costMinimizer returns the class whose cost row minimizes the expected
// cost under the given target distribution. This is not necessarily the
// majority class when off-diagonal costs are asymmetric.
func (ds *Dataset) costMinimizer(distribution []int) int {
	best := 0
	bestCost := math.Inf(1)
	for i := 0; i < ds.NumTargets; i++ {
		cost := 0.0
		for j := 0; j < ds.NumTargets; j++ {
			cost += ds.costs.At(i, j) * float64(distribution[j])
		}
		if cost < bestCost {
			bestCost = cost
			best = i
		}
	}
	return best
}

// HasReference reports whether reference labels were attached.
func (ds *Dataset) HasReference() bool {
	return ds.reference != nil
}

// Costs returns the cost matrix. Callers must not mutate it.
func (ds *Dataset) Costs() *mat.Dense {
	return ds.costs
}

// FullCapture returns a capture set containing every sample.
func (ds *Dataset) FullCapture() *bitmask.Bitmask {
	return bitmask.NewFull(ds.NumRows)
}

// FullFeatureSet returns a feature set containing every binarized feature.
func (ds *Dataset) FullFeatureSet() *bitmask.Bitmask {
	return bitmask.NewFull(ds.NumFeatures)
}

// Subset returns the subset of capture that has (positive) or lacks
// (negative) the given binarized feature.
func (ds *Dataset) Subset(capture *bitmask.Bitmask, feature int, positive bool) *bitmask.Bitmask {
	if positive {
		return bitmask.And(capture, ds.colFeatures[feature])
	}
	return bitmask.AndNot(capture, ds.colFeatures[feature])
}

// SummaryStatistics computes the capture set's target distribution and the
// bound ingredients derived from it. Work is proportional to the capture
// set's cardinality, not the dataset size.
func (ds *Dataset) SummaryStatistics(capture *bitmask.Bitmask) SummaryStatistics {
	distribution := make([]float64, ds.NumTargets)
	for t := 0; t < ds.NumTargets; t++ {
		distribution[t] = float64(capture.AndCount(ds.colTargets[t]))
	}

	// Loss of the best constant prediction over the capture set.
	maxLoss := math.Inf(1)
	optimal := 0
	for i := 0; i < ds.NumTargets; i++ {
		cost := 0.0
		for j := 0; j < ds.NumTargets; j++ {
			cost += ds.costs.At(i, j) * distribution[j]
		}
		if cost < maxLoss {
			maxLoss = cost
			optimal = i
		}
	}

	guaranteedMinLoss := 0.0
	potential := 0.0
	for t := 0; t < ds.NumTargets; t++ {
		potential += ds.diffCosts[t] * distribution[t]

		captured := bitmask.And(capture, ds.colTargets[t])
		agreeing := float64(captured.AndCount(ds.majority))
		guaranteedMinLoss += ds.matchCosts[t] * agreeing
		guaranteedMinLoss += ds.mismatchCosts[t] * (float64(captured.Count()) - agreeing)
	}

	// Floating point drift can push the equivalent-points loss past the
	// leaf loss; clamp to keep GuaranteedMinLoss <= MaxLoss.
	guaranteedMinLoss = math.Min(guaranteedMinLoss, maxLoss)

	minLoss := guaranteedMinLoss
	if ds.reference != nil {
		minLoss = 0
		for t := 0; t < ds.NumTargets; t++ {
			captured := bitmask.And(capture, ds.colTargets[t])
			agreeing := float64(captured.AndCount(ds.reference[t]))
			minLoss += ds.matchCosts[t] * agreeing
			minLoss += ds.mismatchCosts[t] * (float64(captured.Count()) - agreeing)
		}
	}

	return SummaryStatistics{
		Potential:         potential,
		MaxLoss:           maxLoss,
		GuaranteedMinLoss: guaranteedMinLoss,
		MinLoss:           minLoss,
		Optimal:           optimal,
	}
}

// FootprintBytes returns the serialized size of the dataset's column masks,
// the dominant share of its resident memory.
func (ds *Dataset) FootprintBytes() uint64 {
	var total uint64
	for _, col := range ds.colFeatures {
		total += col.GetSizeInBytes()
	}
	for _, col := range ds.colTargets {
		total += col.GetSizeInBytes()
	}
	total += ds.majority.GetSizeInBytes()
	for _, col := range ds.reference {
		total += col.GetSizeInBytes()
	}
	return total
}

// Distance returns the maximum loss swing between splitting the capture set
// on feature i versus feature j: the cost the samples in their symmetric
// difference could contribute. It underpins the similar-support bound.
func (ds *Dataset) Distance(capture *bitmask.Bitmask, i, j int) float64 {
	positive, negative := 0.0, 0.0
	diff := bitmask.Xor(ds.colFeatures[i], ds.colFeatures[j])
	diff.And(capture)
	for t := 0; t < ds.NumTargets; t++ {
		captured := float64(capture.AndCount(ds.colTargets[t]))
		differing := float64(diff.AndCount(ds.colTargets[t]))
		positive += ds.diffCosts[t] * differing
		negative += ds.diffCosts[t] * (captured - differing)
	}
	return math.Min(positive, negative)
}

// OriginalFeature maps a binarized feature column back to the original
// feature it was derived from.
func (ds *Dataset) OriginalFeature(binarized int) (int, error) {
	for original, group := range ds.featureMap {
		for _, col := range group {
			if col == binarized {
				return original, nil
			}
		}
	}
	return 0, &ErrFeatureMap{Column: binarized, Reason: "not covered"}
}
