package dataset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// twoClassMatrix builds a binarized input whose last two columns are the
// one-hot labels.
func twoClassMatrix(t *testing.T, features [][]bool, labels []int) *BitMatrix {
	t.Helper()

	rows := len(features)
	cols := len(features[0]) + 2
	m := NewBitMatrix(rows, cols)
	for i, row := range features {
		for j, v := range row {
			m.Set(i, j, v)
		}
		m.Set(i, len(row)+labels[i], true)
	}
	return m
}

func TestNewValidation(t *testing.T) {
	input := twoClassMatrix(t, [][]bool{{false}, {true}}, []int{0, 1})

	t.Run("non square costs", func(t *testing.T) {
		_, err := New(input, mat.NewDense(2, 3, nil), nil)
		var costErr *ErrCostShape
		assert.ErrorAs(t, err, &costErr)
	})

	t.Run("too few columns", func(t *testing.T) {
		_, err := New(NewBitMatrix(2, 2), UnitCosts(2, 2), nil)
		assert.ErrorIs(t, err, ErrNoFeatures)
	})

	t.Run("no rows", func(t *testing.T) {
		_, err := New(NewBitMatrix(0, 3), UnitCosts(2, 2), nil)
		assert.ErrorIs(t, err, ErrNoRows)
	})

	t.Run("feature map must partition", func(t *testing.T) {
		_, err := New(input, UnitCosts(2, 2), [][]int{{0, 0}})
		var fmErr *ErrFeatureMap
		assert.ErrorAs(t, err, &fmErr)
	})

	t.Run("reference shape", func(t *testing.T) {
		_, err := New(input, UnitCosts(2, 2), nil, WithReference(NewBitMatrix(1, 2)))
		var refErr *ErrReferenceShape
		assert.ErrorAs(t, err, &refErr)
	})

	t.Run("row without target", func(t *testing.T) {
		bad := NewBitMatrix(2, 3)
		bad.Set(0, 1, true) // row 1 has no label column set
		_, err := New(bad, UnitCosts(2, 2), nil)
		assert.ErrorIs(t, err, ErrEmptyTargetRow)
	})

	t.Run("valid", func(t *testing.T) {
		ds, err := New(input, UnitCosts(2, 2), nil)
		require.NoError(t, err)
		assert.Equal(t, 2, ds.NumRows)
		assert.Equal(t, 1, ds.NumFeatures)
		assert.Equal(t, 2, ds.NumTargets)
		assert.False(t, ds.HasReference())
	})
}

func TestUnitCosts(t *testing.T) {
	costs := UnitCosts(2, 4)
	assert.Equal(t, 0.0, costs.At(0, 0))
	assert.Equal(t, 0.0, costs.At(1, 1))
	assert.Equal(t, 0.25, costs.At(0, 1))
	assert.Equal(t, 0.25, costs.At(1, 0))
}

// perfectSplit is the canonical toy problem: one feature that separates
// the classes exactly.
func perfectSplit(t *testing.T) *Dataset {
	t.Helper()

	input := twoClassMatrix(t,
		[][]bool{{false}, {false}, {true}, {true}},
		[]int{0, 0, 1, 1},
	)
	ds, err := New(input, UnitCosts(2, 4), nil)
	require.NoError(t, err)
	return ds
}

func TestSummaryStatisticsFullCapture(t *testing.T) {
	ds := perfectSplit(t)
	stats := ds.SummaryStatistics(ds.FullCapture())

	// Best constant prediction misclassifies half the samples.
	assert.InDelta(t, 0.5, stats.MaxLoss, 1e-9)
	// The feature rows are distinct per class, so some tree is perfect.
	assert.InDelta(t, 0.0, stats.GuaranteedMinLoss, 1e-9)
	assert.Equal(t, stats.GuaranteedMinLoss, stats.MinLoss)
	assert.InDelta(t, 1.0, stats.Potential, 1e-9)
}

func TestSummaryStatisticsPureCapture(t *testing.T) {
	ds := perfectSplit(t)
	pure := ds.Subset(ds.FullCapture(), 0, true)

	require.Equal(t, uint64(2), pure.Count())
	stats := ds.SummaryStatistics(pure)
	assert.InDelta(t, 0.0, stats.MaxLoss, 1e-9)
	assert.Equal(t, 1, stats.Optimal)
}

func TestSummaryStatisticsConflictingRows(t *testing.T) {
	// Two identical feature rows with different labels: no tree on these
	// features can classify both correctly.
	input := twoClassMatrix(t,
		[][]bool{{true}, {true}},
		[]int{0, 1},
	)
	ds, err := New(input, UnitCosts(2, 2), nil)
	require.NoError(t, err)

	stats := ds.SummaryStatistics(ds.FullCapture())
	assert.InDelta(t, 0.5, stats.MaxLoss, 1e-9)
	assert.InDelta(t, 0.5, stats.GuaranteedMinLoss, 1e-9)
}

func TestSubset(t *testing.T) {
	ds := perfectSplit(t)

	positive := ds.Subset(ds.FullCapture(), 0, true)
	assert.Equal(t, []uint32{2, 3}, positive.ToArray())

	negative := ds.Subset(ds.FullCapture(), 0, false)
	assert.Equal(t, []uint32{0, 1}, negative.ToArray())
}

func TestDistance(t *testing.T) {
	input := twoClassMatrix(t,
		[][]bool{
			{false, false},
			{false, true},
			{true, true},
			{true, true},
		},
		[]int{0, 0, 1, 1},
	)
	ds, err := New(input, UnitCosts(2, 4), nil)
	require.NoError(t, err)

	// Identical columns would have distance zero; these differ by one
	// sample, so the swing is that sample's worst-case cost.
	d := ds.Distance(ds.FullCapture(), 0, 1)
	assert.InDelta(t, 0.25, d, 1e-9)

	assert.InDelta(t, 0.0, ds.Distance(ds.FullCapture(), 0, 0), 1e-9)
}

func TestReferenceTightensMinLoss(t *testing.T) {
	input := twoClassMatrix(t,
		[][]bool{{false}, {false}, {true}, {true}},
		[]int{0, 0, 1, 1},
	)

	// A reference that agrees with every label has zero reference loss.
	reference := NewBitMatrix(4, 2)
	reference.Set(0, 0, true)
	reference.Set(1, 0, true)
	reference.Set(2, 1, true)
	reference.Set(3, 1, true)

	ds, err := New(input, UnitCosts(2, 4), nil, WithReference(reference))
	require.NoError(t, err)
	require.True(t, ds.HasReference())

	stats := ds.SummaryStatistics(ds.FullCapture())
	assert.InDelta(t, 0.0, stats.MinLoss, 1e-9)
}

func TestOriginalFeature(t *testing.T) {
	input := twoClassMatrix(t,
		[][]bool{
			{false, false, true},
			{false, true, false},
			{true, true, false},
			{true, false, true},
		},
		[]int{0, 0, 1, 1},
	)
	ds, err := New(input, UnitCosts(2, 4), [][]int{{0}, {1, 2}})
	require.NoError(t, err)

	original, err := ds.OriginalFeature(2)
	require.NoError(t, err)
	assert.Equal(t, 1, original)

	_, err = ds.OriginalFeature(99)
	assert.Error(t, err)
}

func TestFullSets(t *testing.T) {
	ds := perfectSplit(t)
	assert.Equal(t, uint64(4), ds.FullCapture().Count())
	assert.Equal(t, uint64(1), ds.FullFeatureSet().Count())
	assert.True(t, ds.FullFeatureSet().Contains(0))
}

func TestFootprintBytes(t *testing.T) {
	small := perfectSplit(t)

	input := twoClassMatrix(t,
		[][]bool{
			{false, false}, {false, true}, {true, false}, {true, true},
			{false, false}, {false, true}, {true, false}, {true, true},
		},
		[]int{0, 0, 0, 0, 1, 1, 1, 1},
	)
	larger, err := New(input, UnitCosts(2, 8), nil)
	require.NoError(t, err)

	assert.Positive(t, small.FootprintBytes())
	assert.Greater(t, larger.FootprintBytes(), small.FootprintBytes())
}

func TestBalancedCosts(t *testing.T) {
	costs := BalancedCosts([]int{3, 1})
	assert.Equal(t, 0.0, costs.At(0, 0))
	assert.InDelta(t, 1.0/(2*3), costs.At(1, 0), 1e-9)
	assert.InDelta(t, 1.0/(2*1), costs.At(0, 1), 1e-9)
}

func TestErrorsUnwrap(t *testing.T) {
	err := &ErrFeatureMap{Column: 1, Reason: "not covered"}
	assert.NotEmpty(t, err.Error())
	assert.False(t, errors.Is(err, ErrNoRows))
}
