package solver

import (
	"math"

	"github.com/hupe1980/gosdt/bitmask"
	"github.com/hupe1980/gosdt/graph"
)

// dispatch handles one frontier message. Reports whether the global
// objective boundary moved; a non-nil error is a fatal bound fault.
func (o *Optimizer) dispatch(msg message, id int) (bool, error) {
	switch msg.kind {
	case exploreMessage:
		o.exploreCount.Add(1)
		return o.explore(msg, id)
	case exploitMessage:
		o.exploitCount.Add(1)
		return o.exploit(msg)
	default:
		return false, &graph.InvariantError{Op: "solver: dispatch unknown message"}
	}
}

// explore materializes a subproblem: bound it, enumerate its candidate
// splits, wire it to its parent and push exploration of any children whose
// bounds leave room for improvement. Racing arrivals for the same signature
// observe the first worker's record instead of recomputing it.
func (o *Optimizer) explore(msg message, id int) (bool, error) {
	sig := graph.MakeSignature(msg.capture, msg.depth)
	isRoot := sig == o.rootSig

	var neighbourhood map[int]*graph.Task
	task, created, err := o.g.GetOrCreate(sig, func() (*graph.Task, error) {
		t, err := graph.NewTask(msg.capture, msg.features.Clone(), msg.depth, o.ds, o.params)
		if err != nil {
			return nil, err
		}
		if o.injectFault != nil {
			if err := o.injectFault(t); err != nil {
				return nil, err
			}
		}
		return t, nil
	})
	if err != nil {
		return false, err
	}

	task.Scope(msg.scope)

	if created {
		neighbourhood, err = o.createChildren(task)
		if err != nil {
			return false, err
		}
		if err := o.storeChildren(task, neighbourhood); err != nil {
			return false, err
		}
	}

	globalUpdate := false
	if isRoot {
		rootUpper := 1.0
		if o.cfg.UpperboundGuess > 0 {
			rootUpper = math.Min(rootUpper, o.cfg.UpperboundGuess)
		}
		if _, err := task.Update(task.Lowerbound(), rootUpper, task.OptimalFeature()); err != nil {
			return false, err
		}
		lower, upper := task.Bounds()
		globalUpdate = o.updateRoot(lower, upper)
	} else {
		o.linkToParent(sig, msg.sender, msg.feature, msg.scope)
		o.signalExploiters(task)
	}

	if o.cfg.ReferenceLB || msg.scope >= task.UpperScope() {
		if err := o.sendExplorers(task, msg.scope, neighbourhood); err != nil {
			return false, err
		}
	}

	return globalUpdate, nil
}

// exploit folds refreshed child bounds back into a parent subproblem and
// propagates any tightening further up through the recorded parent links.
func (o *Optimizer) exploit(msg message) (bool, error) {
	task, ok := o.g.Get(msg.recipient)
	if !ok {
		return false, nil
	}

	if task.Solved() {
		return false, nil
	}
	if !o.cfg.ReferenceLB && task.Lowerbound() >= task.UpperScope()-epsilon {
		return false, nil
	}

	if _, err := o.loadChildren(task, msg.features); err != nil {
		return false, err
	}

	if msg.recipient == o.rootSig {
		lower, upper := task.Bounds()
		return o.updateRoot(lower, upper), nil
	}
	o.signalExploiters(task)
	return false, nil
}

// createChildren bounds both branches of every candidate split. Features
// whose split leaves a branch empty or captures everything carry no
// information and are pruned from the task.
func (o *Optimizer) createChildren(task *graph.Task) (map[int]*graph.Task, error) {
	childDepth := task.Depth()
	if childDepth > 0 {
		childDepth--
	}

	neighbourhood := make(map[int]*graph.Task)
	for _, j := range task.FeatureArray() {
		skip := false
		for k, positive := range []bool{false, true} {
			sub := o.ds.Subset(task.Capture(), int(j), positive)
			if sub.IsEmpty() || sub.Equals(task.Capture()) {
				skip = true
				continue
			}
			child, err := graph.NewTask(sub, task.Features(), childDepth, o.ds, o.params)
			if err != nil {
				return nil, err
			}
			neighbourhood[2*int(j)+k] = child
		}
		if skip {
			task.PruneFeature(int(j))
		}
	}
	return neighbourhood, nil
}

// combine merges the bound intervals of a split's two branches. Under the
// rule list constraint one branch must stay a leaf, so the interval is the
// better of the two leaf-anchored combinations.
func (o *Optimizer) combine(left, right *graph.Task) (lower, upper float64) {
	leftLower, leftUpper := left.Bounds()
	rightLower, rightUpper := right.Bounds()

	if o.cfg.RuleList {
		lower = math.Min(leftLower+right.BaseObjective(), left.BaseObjective()+rightLower)
		upper = math.Min(leftUpper+right.BaseObjective(), left.BaseObjective()+rightUpper)
		return lower, upper
	}
	return leftLower + rightLower, leftUpper + rightUpper
}

// storeChildren installs the per-feature split bounds for a freshly created
// subproblem and performs its first bound refinement from them. Children
// already present in the graph contribute their refined bounds instead of
// the locally computed ones.
func (o *Optimizer) storeChildren(task *graph.Task, neighbourhood map[int]*graph.Task) error {
	lower, upper := task.BaseObjective(), task.BaseObjective()
	optimal := -1
	upperScope := task.UpperScope()

	var entries []graph.FeatureBound
	for _, j := range task.FeatureArray() {
		for k := 0; k < 2; k++ {
			child := neighbourhood[2*int(j)+k]
			if child == nil {
				continue
			}
			if existing, ok := o.g.Get(child.Signature()); ok {
				neighbourhood[2*int(j)+k] = existing
			}
		}
		left, right := neighbourhood[2*int(j)], neighbourhood[2*int(j)+1]
		if left == nil || right == nil {
			continue
		}

		splitLower, splitUpper := o.combine(left, right)
		entries = append(entries, graph.FeatureBound{Feature: int(j), Lower: splitLower, Upper: splitUpper})

		if splitLower > upperScope {
			continue
		}
		if splitUpper < upper {
			optimal = int(j)
		}
		lower = math.Min(lower, splitLower)
		upper = math.Min(upper, splitUpper)
	}

	o.g.StoreBounds(task.Signature(), entries)
	_, err := task.Update(lower, upper, optimal)
	return err
}

// loadChildren re-derives a parent's bounds from its split-bound list,
// refreshing the entries flagged by the pending mask from the children's
// current bounds. Adjacent entries additionally exchange bounds through the
// similar support distance when enabled.
func (o *Optimizer) loadChildren(task *graph.Task, signals *bitmask.Bitmask) (bool, error) {
	bl, ok := o.g.Bounds(task.Signature())
	if !ok {
		return false, nil
	}

	lower, upper := task.BaseObjective(), task.BaseObjective()
	optimal := -1
	upperScope := task.UpperScope()

	bl.Visit(func(entries []graph.FeatureBound) {
		for idx := range entries {
			e := &entries[idx]
			j := e.Feature

			if signals.Contains(uint32(j)) {
				left := o.childOf(task.Signature(), -(j + 1))
				right := o.childOf(task.Signature(), j+1)
				if left != nil && right != nil {
					e.Lower, e.Upper = o.combine(left, right)
				}
			}

			if o.cfg.SimilarSupport {
				if idx > 0 {
					prev := entries[idx-1]
					d := o.ds.Distance(task.Capture(), j, prev.Feature)
					e.Lower = math.Max(e.Lower, prev.Lower-d)
					e.Upper = math.Min(e.Upper, prev.Upper+d)
				}
				if idx+1 < len(entries) {
					next := entries[idx+1]
					d := o.ds.Distance(task.Capture(), j, next.Feature)
					e.Lower = math.Max(e.Lower, next.Lower-d)
					e.Upper = math.Min(e.Upper, next.Upper+d)
				}
			}

			if e.Lower > upperScope {
				continue
			}
			if e.Upper < upper {
				optimal = j
			}
			lower = math.Min(lower, e.Lower)
			upper = math.Min(upper, e.Upper)
		}
	})

	return task.Update(lower, upper, optimal)
}

// childOf resolves a signed child edge to its graph record, if both the
// edge and the record exist.
func (o *Optimizer) childOf(parent graph.Signature, signedFeature int) *graph.Task {
	childSig, ok := o.g.Child(parent, signedFeature)
	if !ok {
		return nil
	}
	child, ok := o.g.Get(childSig)
	if !ok {
		return nil
	}
	return child
}

// linkToParent records the graph edges between a child and the parent that
// requested it, so later tightenings reach every parent sharing the child.
func (o *Optimizer) linkToParent(child, parent graph.Signature, feature int, scope float64) {
	if parent == "" || feature == 0 {
		return
	}
	j := feature
	if j < 0 {
		j = -j
	}
	j--
	o.g.LinkChild(parent, feature, child)
	o.g.LinkParent(child, parent, j, scope)
}

// signalExploiters pushes exploitation messages to every parent whose
// decisions the task's current bounds can influence. Parents dispatched
// under a tighter scope than the task's lower bound are skipped until the
// task is solved.
func (o *Optimizer) signalExploiters(task *graph.Task) {
	if task.Uncertainty() != 0 && task.Lowerbound() < task.LowerScope()-epsilon {
		return
	}
	for _, parent := range o.g.Parents(task.Signature()) {
		if parent.Pending.IsEmpty() {
			continue
		}
		if task.Lowerbound() < parent.Scope-epsilon && task.Uncertainty() > 0 {
			continue
		}
		o.queue.Push(message{
			kind:      exploitMessage,
			sender:    task.Signature(),
			recipient: parent.Parent,
			features:  parent.Pending,
			priority:  task.Support() - task.Lowerbound(),
			order:     string(parent.Parent),
		})
	}
}

// sendExplorers pushes exploration of every candidate split whose combined
// child bounds leave room below the exploration boundary. With look-ahead
// enabled the boundary is the tighter of the task's own upper bound and the
// loosest scope any parent needs.
func (o *Optimizer) sendExplorers(task *graph.Task, newScope float64, neighbourhood map[int]*graph.Task) error {
	if task.Uncertainty() == 0 {
		return nil
	}
	task.Scope(newScope)

	boundary := task.Upperbound()
	if o.cfg.LookAhead {
		boundary = math.Min(boundary, task.UpperScope())
	}

	for _, j := range task.FeatureArray() {
		left, err := o.branchTask(task, int(j), false, neighbourhood)
		if err != nil {
			return err
		}
		right, err := o.branchTask(task, int(j), true, neighbourhood)
		if err != nil {
			return err
		}
		if left == nil || right == nil {
			continue
		}

		lower, upper := o.combine(left, right)
		if lower > boundary {
			continue
		}
		if upper <= task.Coverage() {
			continue
		}

		if o.cfg.RuleList {
			o.sendExplorer(task, left, boundary-right.BaseObjective(), -(int(j) + 1))
			o.sendExplorer(task, right, boundary-left.BaseObjective(), int(j)+1)
		} else {
			o.sendExplorer(task, left, boundary-right.GuaranteedLowerbound(o.params), -(int(j) + 1))
			o.sendExplorer(task, right, boundary-left.GuaranteedLowerbound(o.params), int(j)+1)
		}
	}

	task.SetCoverage(task.UpperScope())
	return nil
}

// branchTask resolves one branch of a candidate split: the locally created
// child if this worker materialized the subproblem, the graph's record for
// a shared child, or a freshly bounded task when neither exists yet.
func (o *Optimizer) branchTask(task *graph.Task, j int, positive bool, neighbourhood map[int]*graph.Task) (*graph.Task, error) {
	k := 0
	if positive {
		k = 1
	}
	if child := neighbourhood[2*j+k]; child != nil {
		return child, nil
	}

	signed := j + 1
	if !positive {
		signed = -signed
	}
	if childSig, ok := o.g.Child(task.Signature(), signed); ok {
		if child, found := o.g.Get(childSig); found {
			return child, nil
		}
	}

	sub := o.ds.Subset(task.Capture(), j, positive)
	if sub.IsEmpty() || sub.Equals(task.Capture()) {
		return nil, nil
	}
	childDepth := task.Depth()
	if childDepth > 0 {
		childDepth--
	}
	return graph.NewTask(sub, task.Features(), childDepth, o.ds, o.params)
}

// sendExplorer dispatches one child exploration, unless the child already
// exists with a looser scope than needed, in which case the parent link is
// tightened in place and the child's existing bounds stand.
func (o *Optimizer) sendExplorer(parent *graph.Task, child *graph.Task, scope float64, signedFeature int) {
	if childSig, ok := o.g.Child(parent.Signature(), signedFeature); ok {
		if existing, found := o.g.Get(childSig); found && scope < existing.UpperScope() {
			j := signedFeature
			if j < 0 {
				j = -j
			}
			j--
			o.g.LinkParent(childSig, parent.Signature(), j, scope)
			existing.Scope(scope)
			return
		}
	}

	o.queue.Push(message{
		kind:     exploreMessage,
		sender:   parent.Signature(),
		capture:  child.Capture(),
		features: parent.Features(),
		feature:  signedFeature,
		depth:    child.Depth(),
		scope:    scope,
		priority: parent.Support() - parent.Lowerbound(),
		order:    string(child.Signature()),
	})
}
