// Package dataset provides the immutable training data the search engine
// operates on: a word-packed boolean matrix of binarized features with
// trailing one-hot target columns, a dense cost matrix, a feature map back
// to original features, and optional reference labels.
//
// Construction derives everything the bounding engine needs: per-column
// sample masks, the feature-equivalence majority mask, and per-class
// match/mismatch/diff cost vectors. All derived state is read-only after
// New returns, so a Dataset is freely shared across workers.
package dataset
