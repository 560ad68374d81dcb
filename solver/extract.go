package solver

import (
	"github.com/hupe1980/gosdt/bitmask"
	"github.com/hupe1980/gosdt/graph"
	"github.com/hupe1980/gosdt/model"
)

// extractor walks the solved graph collecting every tree whose objective
// falls within the extraction tolerance of a subproblem's proven upper
// bound. The cap bounds the per-node candidate count so Rashomon
// enumeration cannot explode.
type extractor struct {
	o   *Optimizer
	cap int
}

// extract reconstructs the result models from the root subproblem, ordered
// by ascending loss with the JSON encoding as tie-break.
func (o *Optimizer) extract() ([]*model.Tree, error) {
	if o.cfg.ModelLimit == 0 {
		return nil, nil
	}
	ex := &extractor{o: o, cap: o.cfg.ModelLimit}
	candidates := ex.modelsAt(o.rootSig)
	models := dedupModels(candidates)
	sortModels(models)
	if len(models) > o.cfg.ModelLimit {
		models = models[:o.cfg.ModelLimit]
	}
	return models, nil
}

func dedupModels(candidates []*model.Tree) []*model.Tree {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]*model.Tree, 0, len(candidates))
	for _, m := range candidates {
		key := m.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

// leafModel builds the best single-leaf classifier for a capture set.
func (ex *extractor) leafModel(capture *bitmask.Bitmask) *model.Tree {
	stats := ex.o.ds.SummaryStatistics(capture)
	return model.NewLeaf(stats.Optimal, stats.MaxLoss)
}

// modelsAt collects the acceptable trees for one subproblem: its own leaf
// when the single-leaf objective is within tolerance of the upper bound,
// plus every split whose combined child bound is.
func (ex *extractor) modelsAt(sig graph.Signature) []*model.Tree {
	task, ok := ex.o.g.Get(sig)
	if !ok {
		return nil
	}
	threshold := task.Upperbound() + epsilon + ex.o.cfg.UncertaintyTolerance

	var results []*model.Tree
	if task.BaseObjective() <= threshold {
		results = append(results, ex.leafModel(task.Capture()))
	}

	bl, ok := ex.o.g.Bounds(sig)
	if !ok {
		return results
	}

	for _, entry := range bl.Snapshot() {
		if entry.Upper > threshold {
			continue
		}
		if ex.cap > 0 && len(results) >= ex.cap {
			break
		}
		results = append(results, ex.splitModels(sig, task, entry.Feature, threshold, len(results))...)
	}
	return results
}

// splitModels enumerates the acceptable trees rooted at one split of a
// subproblem. Branches whose subproblem was never materialized are provably
// optimal leaves and rebuilt directly from the capture subset.
func (ex *extractor) splitModels(sig graph.Signature, task *graph.Task, feature int, threshold float64, have int) []*model.Tree {
	negatives := ex.branchModels(sig, task, feature, false)
	positives := ex.branchModels(sig, task, feature, true)
	if len(negatives) == 0 || len(positives) == 0 {
		return nil
	}

	var results []*model.Tree
	full := func() bool {
		return ex.cap > 0 && have+len(results) >= ex.cap
	}

	if ex.o.cfg.RuleList {
		reg := ex.o.cfg.Regularization
		negativeLeaf := ex.leafModel(ex.o.ds.Subset(task.Capture(), feature, false))
		positiveLeaf := ex.leafModel(ex.o.ds.Subset(task.Capture(), feature, true))

		for _, negative := range negatives {
			risk := positiveLeaf.Loss() + reg + negative.Loss() + negative.Complexity(reg)
			if risk > threshold || full() {
				continue
			}
			results = append(results, model.NewSplit(feature, positiveLeaf, negative))
		}
		for _, positive := range positives {
			risk := negativeLeaf.Loss() + reg + positive.Loss() + positive.Complexity(reg)
			if risk > threshold || full() {
				continue
			}
			results = append(results, model.NewSplit(feature, positive, negativeLeaf))
		}
		return results
	}

	for _, negative := range negatives {
		for _, positive := range positives {
			if full() {
				return results
			}
			results = append(results, model.NewSplit(feature, positive, negative))
		}
	}
	return results
}

// branchModels resolves one branch of a split: recurse into the child
// subproblem when it exists, otherwise the branch is a forced leaf.
func (ex *extractor) branchModels(sig graph.Signature, task *graph.Task, feature int, positive bool) []*model.Tree {
	signed := feature + 1
	if !positive {
		signed = -signed
	}
	if childSig, ok := ex.o.g.Child(sig, signed); ok {
		return ex.modelsAt(childSig)
	}
	sub := ex.o.ds.Subset(task.Capture(), feature, positive)
	if sub.IsEmpty() {
		return nil
	}
	return []*model.Tree{ex.leafModel(sub)}
}
