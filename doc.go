// Package gosdt computes provably optimal sparse decision trees over
// pre-binarized datasets, under a regularized, cost-weighted
// misclassification objective.
//
// The search is a branch and bound over sample subsets: two split sequences
// reaching the same subset share one cached subproblem, turning the search
// space into a DAG and letting bound tightenings propagate to every parent
// of a shared child. Workers drain a shared priority frontier until the
// root's lower and upper bounds meet or a limit fires.
//
// Basic usage:
//
//	ds, err := dataset.New(input, dataset.UnitCosts(2, rows), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := gosdt.Fit(ctx, ds,
//	    gosdt.WithRegularization(0.01),
//	    gosdt.WithDepthBudget(5),
//	    gosdt.WithTimeLimit(time.Minute),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tree, err := gosdt.BestTree(result)
package gosdt
