package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xorTree() *Tree {
	return NewSplit(0,
		NewSplit(1, NewLeaf(0, 0), NewLeaf(1, 0)),
		NewSplit(1, NewLeaf(1, 0), NewLeaf(0, 0)),
	)
}

func TestLeaf(t *testing.T) {
	leaf := NewLeaf(1, 0.25)
	assert.True(t, leaf.IsLeaf())
	assert.Equal(t, 1, leaf.Prediction())
	assert.InDelta(t, 0.25, leaf.Loss(), 1e-9)
	assert.Equal(t, 1, leaf.Leaves())
	assert.Equal(t, 1, leaf.Depth())
}

func TestSplitAggregates(t *testing.T) {
	tree := NewSplit(2, NewLeaf(1, 0.1), NewLeaf(0, 0.2))
	assert.False(t, tree.IsLeaf())
	assert.Equal(t, 2, tree.Feature())
	assert.InDelta(t, 0.3, tree.Loss(), 1e-9)
	assert.Equal(t, 2, tree.Leaves())
	assert.Equal(t, 2, tree.Depth())
	assert.InDelta(t, 0.02, tree.Complexity(0.01), 1e-9)
}

func TestPredict(t *testing.T) {
	tree := xorTree()

	sample := func(bits ...bool) func(int) bool {
		return func(feature int) bool { return bits[feature] }
	}

	assert.Equal(t, 0, tree.Predict(sample(false, false)))
	assert.Equal(t, 1, tree.Predict(sample(false, true)))
	assert.Equal(t, 1, tree.Predict(sample(true, false)))
	assert.Equal(t, 0, tree.Predict(sample(true, true)))
}

func TestMarshalJSONFormat(t *testing.T) {
	tree := NewSplit(3, NewLeaf(1, 0), NewLeaf(0, 0.25))

	data, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"feature":3,"true":{"prediction":1,"loss":0},"false":{"prediction":0,"loss":0.25}}`,
		string(data),
	)
}

func TestUnmarshalRoundTrip(t *testing.T) {
	tree := xorTree()
	data, err := json.Marshal(tree)
	require.NoError(t, err)

	decoded := &Tree{}
	require.NoError(t, json.Unmarshal(data, decoded))

	assert.Equal(t, tree.String(), decoded.String())
	assert.Equal(t, 0, decoded.Predict(func(feature int) bool { return true }))
}

func TestUnmarshalRejectsMissingBranch(t *testing.T) {
	decoded := &Tree{}
	err := json.Unmarshal([]byte(`{"feature":0,"true":{"prediction":1,"loss":0}}`), decoded)
	assert.Error(t, err)
}

func TestStringIsCompactJSON(t *testing.T) {
	leaf := NewLeaf(0, 0.5)
	assert.Equal(t, `{"prediction":0,"loss":0.5}`, leaf.String())
}
