package graph

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gosdt/bitmask"
	"github.com/hupe1980/gosdt/dataset"
)

func testDataset(t *testing.T, features [][]bool, labels []int) *dataset.Dataset {
	t.Helper()

	rows := len(features)
	cols := len(features[0]) + 2
	m := dataset.NewBitMatrix(rows, cols)
	for i, row := range features {
		for j, v := range row {
			m.Set(i, j, v)
		}
		m.Set(i, len(row)+labels[i], true)
	}
	ds, err := dataset.New(m, dataset.UnitCosts(2, rows), nil)
	require.NoError(t, err)
	return ds
}

func perfectSplitDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	return testDataset(t,
		[][]bool{{false}, {false}, {true}, {true}},
		[]int{0, 0, 1, 1},
	)
}

func TestMakeSignature(t *testing.T) {
	a := bitmask.FromIndices(1, 2, 3)
	b := bitmask.FromIndices(3, 2, 1)

	assert.Equal(t, MakeSignature(a, 0), MakeSignature(b, 0))
	assert.NotEqual(t, MakeSignature(a, 0), MakeSignature(a, 1))
	assert.NotEqual(t, MakeSignature(a, 0), MakeSignature(bitmask.FromIndices(1, 2), 0))
}

func TestNewTaskRoot(t *testing.T) {
	ds := perfectSplitDataset(t)
	params := Params{Regularization: 0.01}

	task, err := NewTask(ds.FullCapture(), ds.FullFeatureSet(), 0, ds, params)
	require.NoError(t, err)

	// Best single-leaf tree: half the samples misclassified plus one leaf.
	assert.InDelta(t, 0.51, task.BaseObjective(), 1e-9)
	// A perfect two-leaf tree is possible, so the floor is two leaves.
	assert.InDelta(t, 0.02, task.Lowerbound(), 1e-9)
	assert.InDelta(t, 0.51, task.Upperbound(), 1e-9)
	assert.False(t, task.Solved())
	assert.InDelta(t, 1.0, task.Support(), 1e-9)
}

func TestNewTaskForcedLeafPure(t *testing.T) {
	ds := perfectSplitDataset(t)
	params := Params{Regularization: 0.01}

	pure := ds.Subset(ds.FullCapture(), 0, true)
	task, err := NewTask(pure, ds.FullFeatureSet(), 0, ds, params)
	require.NoError(t, err)

	// Already pure: splitting cannot pay for another leaf.
	assert.True(t, task.Solved())
	assert.InDelta(t, 0.01, task.Upperbound(), 1e-9)
	assert.True(t, task.Features().IsEmpty())
}

func TestNewTaskDepthExhausted(t *testing.T) {
	ds := perfectSplitDataset(t)
	params := Params{Regularization: 0.01}

	task, err := NewTask(ds.FullCapture(), ds.FullFeatureSet(), 1, ds, params)
	require.NoError(t, err)

	// Depth 1 leaves room for a lone leaf only.
	assert.True(t, task.Solved())
	assert.InDelta(t, 0.51, task.Upperbound(), 1e-9)
}

func TestNewTaskLargeRegularizationForcesLeaf(t *testing.T) {
	ds := perfectSplitDataset(t)
	params := Params{Regularization: 0.6}

	task, err := NewTask(ds.FullCapture(), ds.FullFeatureSet(), 0, ds, params)
	require.NoError(t, err)
	assert.True(t, task.Solved())
}

func TestUpdateTightensOnly(t *testing.T) {
	ds := perfectSplitDataset(t)
	task, err := NewTask(ds.FullCapture(), ds.FullFeatureSet(), 0, ds, Params{Regularization: 0.01})
	require.NoError(t, err)

	changed, err := task.Update(0.02, 0.04, 0)
	require.NoError(t, err)
	assert.True(t, changed)

	lower, upper := task.Bounds()
	assert.InDelta(t, 0.02, lower, 1e-9)
	assert.InDelta(t, 0.04, upper, 1e-9)
	assert.Equal(t, 0, task.OptimalFeature())

	// A looser interval must not move the bounds back out.
	_, err = task.Update(0.0, 1.0, 0)
	require.NoError(t, err)
	lower, upper = task.Bounds()
	assert.InDelta(t, 0.02, lower, 1e-9)
	assert.InDelta(t, 0.04, upper, 1e-9)
}

func TestUpdateSnapsShut(t *testing.T) {
	ds := perfectSplitDataset(t)
	task, err := NewTask(ds.FullCapture(), ds.FullFeatureSet(), 0, ds, Params{Regularization: 0.01})
	require.NoError(t, err)

	_, err = task.Update(0.02, 0.02+1e-12, -1)
	require.NoError(t, err)
	assert.True(t, task.Solved())
	assert.Equal(t, 0.0, task.Uncertainty())
}

func TestUpdateCrossingIsFatal(t *testing.T) {
	ds := perfectSplitDataset(t)
	task, err := NewTask(ds.FullCapture(), ds.FullFeatureSet(), 0, ds, Params{Regularization: 0.01})
	require.NoError(t, err)

	_, err = task.Update(0.4, 0.1, -1)
	var invariantErr *InvariantError
	require.ErrorAs(t, err, &invariantErr)
	assert.NotEmpty(t, invariantErr.Error())
}

func TestScopeFolding(t *testing.T) {
	ds := perfectSplitDataset(t)
	task, err := NewTask(ds.FullCapture(), ds.FullFeatureSet(), 0, ds, Params{Regularization: 0.01})
	require.NoError(t, err)

	assert.True(t, math.IsInf(task.UpperScope(), 1))

	task.Scope(0.3)
	assert.InDelta(t, 0.3, task.UpperScope(), 1e-9)
	assert.InDelta(t, 0.3, task.LowerScope(), 1e-9)

	task.Scope(0.5)
	assert.InDelta(t, 0.5, task.UpperScope(), 1e-9)
	assert.InDelta(t, 0.3, task.LowerScope(), 1e-9)

	// Zero means "no scope", not "scope of zero".
	task.Scope(0)
	assert.InDelta(t, 0.5, task.UpperScope(), 1e-9)
}

func TestGuaranteedLowerbound(t *testing.T) {
	ds := perfectSplitDataset(t)

	plain := Params{Regularization: 0.01}
	task, err := NewTask(ds.FullCapture(), ds.FullFeatureSet(), 0, ds, plain)
	require.NoError(t, err)

	// Without the reference bound the working bound is the guarantee.
	assert.Equal(t, task.Lowerbound(), task.GuaranteedLowerbound(plain))

	ref := Params{Regularization: 0.01, ReferenceLB: true}
	assert.InDelta(t, 0.02, task.GuaranteedLowerbound(ref), 1e-9)
}

func TestConcurrentUpdates(t *testing.T) {
	ds := perfectSplitDataset(t)
	task, err := NewTask(ds.FullCapture(), ds.FullFeatureSet(), 0, ds, Params{Regularization: 0.01})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := task.Update(0.02, 0.04, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	lower, upper := task.Bounds()
	assert.InDelta(t, 0.02, lower, 1e-9)
	assert.InDelta(t, 0.04, upper, 1e-9)
}
