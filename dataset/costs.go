package dataset

import (
	"gonum.org/v1/gonum/mat"
)

// UnitCosts returns a classes x classes cost matrix with zero diagonal and
// every misclassification charged 1/samples, so a tree's total loss is its
// misclassification rate.
func UnitCosts(classes, samples int) *mat.Dense {
	costs := mat.NewDense(classes, classes, nil)
	unit := 1.0 / float64(samples)
	for i := 0; i < classes; i++ {
		for j := 0; j < classes; j++ {
			if i != j {
				costs.Set(i, j, unit)
			}
		}
	}
	return costs
}

// BalancedCosts returns a cost matrix where misclassifying a sample of
// class j costs 1/(classes * count[j]), so every class contributes equally
// to the objective regardless of its frequency.
func BalancedCosts(counts []int) *mat.Dense {
	classes := len(counts)
	costs := mat.NewDense(classes, classes, nil)
	for j, count := range counts {
		if count == 0 {
			continue
		}
		unit := 1.0 / (float64(classes) * float64(count))
		for i := 0; i < classes; i++ {
			if i != j {
				costs.Set(i, j, unit)
			}
		}
	}
	return costs
}
