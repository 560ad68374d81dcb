package model

import (
	"encoding/json"
	"fmt"
)

// Tree is one extracted classifier: either a leaf carrying a class
// prediction and its training loss, or a split on a binarized feature with
// a true branch (feature present) and a false branch (feature absent).
// Trees are immutable once built.
type Tree struct {
	feature     int
	trueBranch  *Tree
	falseBranch *Tree

	prediction int
	loss       float64
	leaf       bool
}

// NewLeaf creates a leaf predicting the given class index with the given
// training loss (regularization excluded).
func NewLeaf(prediction int, loss float64) *Tree {
	return &Tree{
		prediction: prediction,
		loss:       loss,
		leaf:       true,
	}
}

// NewSplit creates an internal node splitting on a binarized feature.
func NewSplit(feature int, trueBranch, falseBranch *Tree) *Tree {
	return &Tree{
		feature:     feature,
		trueBranch:  trueBranch,
		falseBranch: falseBranch,
	}
}

// IsLeaf reports whether the node is a leaf.
func (t *Tree) IsLeaf() bool {
	return t.leaf
}

// Feature returns the split feature of an internal node.
func (t *Tree) Feature() int {
	return t.feature
}

// TrueBranch returns the subtree for samples with the split feature set.
func (t *Tree) TrueBranch() *Tree {
	return t.trueBranch
}

// FalseBranch returns the subtree for samples without the split feature.
func (t *Tree) FalseBranch() *Tree {
	return t.falseBranch
}

// Prediction returns the class index of a leaf.
func (t *Tree) Prediction() int {
	return t.prediction
}

// Loss returns the total training loss of the tree, the sum over leaves.
func (t *Tree) Loss() float64 {
	if t.leaf {
		return t.loss
	}
	return t.trueBranch.Loss() + t.falseBranch.Loss()
}

// Complexity returns the regularization penalty of the tree: one unit of
// regularization per leaf.
func (t *Tree) Complexity(regularization float64) float64 {
	return regularization * float64(t.Leaves())
}

// Leaves returns the number of leaves.
func (t *Tree) Leaves() int {
	if t.leaf {
		return 1
	}
	return t.trueBranch.Leaves() + t.falseBranch.Leaves()
}

// Depth returns the maximum number of decision nodes on any root-to-leaf
// path plus one for the leaf itself, so a lone leaf has depth 1.
func (t *Tree) Depth() int {
	if t.leaf {
		return 1
	}
	td, fd := t.trueBranch.Depth(), t.falseBranch.Depth()
	if td > fd {
		return td + 1
	}
	return fd + 1
}

// Predict classifies a sample given an oracle for its binarized features.
func (t *Tree) Predict(feature func(int) bool) int {
	node := t
	for !node.leaf {
		if feature(node.feature) {
			node = node.trueBranch
		} else {
			node = node.falseBranch
		}
	}
	return node.prediction
}

type leafJSON struct {
	Prediction int     `json:"prediction"`
	Loss       float64 `json:"loss"`
}

type splitJSON struct {
	Feature int             `json:"feature"`
	True    json.RawMessage `json:"true"`
	False   json.RawMessage `json:"false"`
}

// MarshalJSON encodes the tree in the engine's wire format:
// {"prediction": class, "loss": loss} for leaves and
// {"feature": index, "true": subtree, "false": subtree} for splits.
func (t *Tree) MarshalJSON() ([]byte, error) {
	if t.leaf {
		return json.Marshal(leafJSON{Prediction: t.prediction, Loss: t.loss})
	}
	trueRaw, err := t.trueBranch.MarshalJSON()
	if err != nil {
		return nil, err
	}
	falseRaw, err := t.falseBranch.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(splitJSON{Feature: t.feature, True: trueRaw, False: falseRaw})
}

// UnmarshalJSON decodes the wire format produced by MarshalJSON.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if _, ok := fields["prediction"]; ok {
		var leaf leafJSON
		if err := json.Unmarshal(data, &leaf); err != nil {
			return err
		}
		*t = Tree{prediction: leaf.Prediction, loss: leaf.Loss, leaf: true}
		return nil
	}
	var split splitJSON
	if err := json.Unmarshal(data, &split); err != nil {
		return err
	}
	if split.True == nil || split.False == nil {
		return fmt.Errorf("model: split node missing branch")
	}
	trueBranch, falseBranch := &Tree{}, &Tree{}
	if err := trueBranch.UnmarshalJSON(split.True); err != nil {
		return err
	}
	if err := falseBranch.UnmarshalJSON(split.False); err != nil {
		return err
	}
	*t = Tree{feature: split.Feature, trueBranch: trueBranch, falseBranch: falseBranch}
	return nil
}

// String returns the compact JSON encoding.
func (t *Tree) String() string {
	data, err := t.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("model: %v", err)
	}
	return string(data)
}
