package solver

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/hupe1980/gosdt/model"
)

var (
	// ErrInvalidRegularization is returned when the per-leaf penalty is
	// outside (0, 1].
	ErrInvalidRegularization = errors.New("regularization must be in (0, 1]")

	// ErrInvalidDepthBudget is returned when the depth budget is negative
	// or too large to encode.
	ErrInvalidDepthBudget = errors.New("depth budget must be in [0, 254]")

	// ErrInvalidUpperboundGuess is returned when the objective guess is
	// outside [0, 1].
	ErrInvalidUpperboundGuess = errors.New("upperbound guess must be in [0, 1]")

	// ErrInvalidUncertaintyTolerance is returned when the extraction
	// tolerance is negative.
	ErrInvalidUncertaintyTolerance = errors.New("uncertainty tolerance must be non-negative")

	// ErrMissingReference is returned when the reference bound is enabled
	// on a dataset without reference labels.
	ErrMissingReference = errors.New("reference bound requires reference labels")
)

// Config bundles the search hyperparameters. It is validated once and never
// mutated afterwards, so it is freely shared across workers.
type Config struct {
	// Regularization is the penalty charged per leaf. Must be in (0, 1].
	Regularization float64

	// DepthBudget caps the number of decision nodes on any root-to-leaf
	// path. 0 disables the constraint.
	DepthBudget int

	// TimeLimit caps the wall time of the optimization. 0 disables it.
	TimeLimit time.Duration

	// WorkerLimit is the number of concurrent workers. 0 selects
	// runtime.GOMAXPROCS.
	WorkerLimit int

	// ModelLimit caps the number of extracted models. 0 skips extraction.
	ModelLimit int

	// UncertaintyTolerance widens model extraction to near-optimal trees:
	// every extracted tree's objective is within this distance of the
	// proven optimum.
	UncertaintyTolerance float64

	// UpperboundGuess primes the root upper bound for pruning. The guess
	// must dominate the true optimum or the search may discard it.
	// 0 disables the guess.
	UpperboundGuess float64

	// ReferenceLB enables the reference-label lower bound. Requires a
	// dataset constructed with reference labels.
	ReferenceLB bool

	// LookAhead enables the one-step look-ahead bound.
	LookAhead bool

	// SimilarSupport enables bound transfer between splits whose capture
	// sets differ by few samples.
	SimilarSupport bool

	// RuleList constrains models to rule lists: every split keeps at
	// least one leaf child.
	RuleList bool

	// NonBinary marks datasets binarized from multi-valued source columns.
	// The engine operates on the binarized columns either way; the flag is
	// carried for callers that post-process feature indices.
	NonBinary bool

	// Verbose enables periodic progress logging.
	Verbose bool
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return Config{
		Regularization: 0.05,
		WorkerLimit:    1,
		ModelLimit:     1,
		LookAhead:      true,
		SimilarSupport: true,
	}
}

// Validate checks the configuration, returning the first violation.
func (c Config) Validate() error {
	if c.Regularization <= 0 || c.Regularization > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidRegularization, c.Regularization)
	}
	if c.DepthBudget < 0 || c.DepthBudget > 254 {
		return fmt.Errorf("%w: %d", ErrInvalidDepthBudget, c.DepthBudget)
	}
	if c.UpperboundGuess < 0 || c.UpperboundGuess > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidUpperboundGuess, c.UpperboundGuess)
	}
	if c.UncertaintyTolerance < 0 {
		return fmt.Errorf("%w: %g", ErrInvalidUncertaintyTolerance, c.UncertaintyTolerance)
	}
	if c.TimeLimit < 0 {
		return fmt.Errorf("time limit must be non-negative: %s", c.TimeLimit)
	}
	if c.WorkerLimit < 0 {
		return fmt.Errorf("worker limit must be non-negative: %d", c.WorkerLimit)
	}
	if c.ModelLimit < 0 {
		return fmt.Errorf("model limit must be non-negative: %d", c.ModelLimit)
	}
	return nil
}

func (c Config) workers() int {
	if c.WorkerLimit <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.WorkerLimit
}

// internalDepth converts the caller-facing decision-node budget into the
// internal depth counter, which counts a lone leaf as depth 1. 0 stays 0,
// meaning unlimited.
func (c Config) internalDepth() int {
	if c.DepthBudget == 0 {
		return 0
	}
	return c.DepthBudget + 1
}

// Status is the termination state of one optimization run.
type Status int

const (
	// StatusUninitialized means the optimization never ran.
	StatusUninitialized Status = iota

	// StatusSuccess means the bounds converged and the extracted model is
	// provably optimal (up to the extraction tolerance).
	StatusSuccess

	// StatusNonConvergence means the frontier drained without the bounds
	// meeting. The best-known model is returned but not proven optimal.
	StatusNonConvergence

	// StatusTimeout means the time limit elapsed or the run was cancelled.
	// The best-known bounds and model reflect the state at that instant.
	StatusTimeout

	// StatusFalseConvergence means the run terminated claiming progress it
	// cannot back with a model, or an internal bound invariant broke. No
	// trustworthy model is available.
	StatusFalseConvergence
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "Uninitialized"
	case StatusSuccess:
		return "Success"
	case StatusNonConvergence:
		return "NonConvergence"
	case StatusTimeout:
		return "Timeout"
	case StatusFalseConvergence:
		return "FalseConvergence"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of one optimization run. It is immutable after
// return.
type Result struct {
	// Status is the termination state.
	Status Status

	// Models holds the extracted trees ordered by ascending loss, at most
	// ModelLimit of them. Empty when Status is FalseConvergence.
	Models []*model.Tree

	// ModelJSON is the JSON array encoding of Models.
	ModelJSON string

	// ModelLoss is the training loss of the first model, excluding
	// regularization.
	ModelLoss float64

	// Lowerbound and Upperbound are the final global objective bounds.
	Lowerbound float64
	Upperbound float64

	// Iterations is the total number of dispatched messages.
	Iterations uint64

	// GraphSize is the number of subproblem records created.
	GraphSize int

	// QueueSize is the number of messages left in the frontier at
	// termination. Non-zero only on timeout or cancellation.
	QueueSize int

	// Elapsed is the wall time spent searching.
	Elapsed time.Duration
}
