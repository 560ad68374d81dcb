package gosdt

import (
	"time"

	"github.com/hupe1980/gosdt/solver"
)

type options struct {
	config solver.Config
	logger *Logger
}

// Option configures a Fit call.
type Option func(*options)

// WithConfig replaces the whole configuration. Later options still apply
// on top of it.
func WithConfig(config solver.Config) Option {
	return func(o *options) {
		o.config = config
	}
}

// WithRegularization sets the per-leaf penalty. Smaller values allow larger
// trees; values below 1/samples rarely pay for themselves.
func WithRegularization(regularization float64) Option {
	return func(o *options) {
		o.config.Regularization = regularization
	}
}

// WithDepthBudget caps the number of decision nodes on any root-to-leaf
// path. 0 disables the constraint.
func WithDepthBudget(depth int) Option {
	return func(o *options) {
		o.config.DepthBudget = depth
	}
}

// WithTimeLimit caps the wall time of the search. On expiry the best-known
// bounds and model are returned with StatusTimeout.
func WithTimeLimit(limit time.Duration) Option {
	return func(o *options) {
		o.config.TimeLimit = limit
	}
}

// WithWorkerLimit sets the number of concurrent workers. 0 selects
// runtime.GOMAXPROCS.
func WithWorkerLimit(workers int) Option {
	return func(o *options) {
		o.config.WorkerLimit = workers
	}
}

// WithModelLimit caps the number of extracted models.
func WithModelLimit(limit int) Option {
	return func(o *options) {
		o.config.ModelLimit = limit
	}
}

// WithUncertaintyTolerance extends extraction to near-optimal trees within
// the given objective distance of the optimum.
func WithUncertaintyTolerance(tolerance float64) Option {
	return func(o *options) {
		o.config.UncertaintyTolerance = tolerance
	}
}

// WithUpperboundGuess primes the root upper bound for pruning. The guess
// must dominate the true optimum or the search may discard it.
func WithUpperboundGuess(guess float64) Option {
	return func(o *options) {
		o.config.UpperboundGuess = guess
	}
}

// WithReferenceBound enables the reference-label lower bound. The dataset
// must carry reference labels.
func WithReferenceBound() Option {
	return func(o *options) {
		o.config.ReferenceLB = true
	}
}

// WithoutLookAhead disables the one-step look-ahead bound.
func WithoutLookAhead() Option {
	return func(o *options) {
		o.config.LookAhead = false
	}
}

// WithoutSimilarSupport disables the similar-support bound.
func WithoutSimilarSupport() Option {
	return func(o *options) {
		o.config.SimilarSupport = false
	}
}

// WithRuleList constrains models to rule lists: every split keeps at least
// one leaf child.
func WithRuleList() Option {
	return func(o *options) {
		o.config.RuleList = true
	}
}

// WithVerbose enables periodic progress logging.
func WithVerbose() Option {
	return func(o *options) {
		o.config.Verbose = true
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}
