package gosdt

import (
	"context"
	"errors"

	"github.com/hupe1980/gosdt/dataset"
	"github.com/hupe1980/gosdt/model"
	"github.com/hupe1980/gosdt/solver"
)

// ErrNoModel is returned when a result carries no extracted model.
var ErrNoModel = errors.New("gosdt: result contains no model")

// Re-exported solver types, so most callers only import this package and
// dataset.
type (
	// Config bundles the search hyperparameters.
	Config = solver.Config

	// Result is the outcome of one optimization run.
	Result = solver.Result

	// Status is the termination state of a run.
	Status = solver.Status
)

// Termination states.
const (
	StatusUninitialized    = solver.StatusUninitialized
	StatusSuccess          = solver.StatusSuccess
	StatusNonConvergence   = solver.StatusNonConvergence
	StatusTimeout          = solver.StatusTimeout
	StatusFalseConvergence = solver.StatusFalseConvergence
)

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return solver.DefaultConfig()
}

// Fit searches for the optimal sparse decision trees of a dataset.
//
// The search runs until the objective bounds converge, the time limit
// elapses or ctx is cancelled; cancellation folds into StatusTimeout and
// still yields the best-known bounds and model. A non-nil error means the
// run is not trustworthy: either the configuration was invalid or an
// internal bound invariant broke (StatusFalseConvergence).
func Fit(ctx context.Context, ds *dataset.Dataset, optFns ...Option) (*Result, error) {
	opts := options{
		config: solver.DefaultConfig(),
		logger: NewLogger(nil),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	optimizer, err := solver.New(opts.config, ds, opts.logger.Logger)
	if err != nil {
		return nil, err
	}
	return optimizer.Solve(ctx)
}

// BestTree returns the optimal (first) tree of a result.
func BestTree(result *Result) (*model.Tree, error) {
	if result == nil || len(result.Models) == 0 {
		return nil, ErrNoModel
	}
	return result.Models[0], nil
}
