// Package model holds the decision trees produced by the optimizer. A tree
// is a binary classifier over binarized features with a fixed JSON encoding
// and optional graphviz rendering.
package model
