package solver

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/gosdt/dataset"
	"github.com/hupe1980/gosdt/graph"
	"github.com/hupe1980/gosdt/model"
)

// epsilon absorbs floating point drift when comparing objective values.
const epsilon = 1e-9

// tickDuration is the number of iterations between termination checkpoints.
const tickDuration = 10000

// idleBackoff is how long an idle worker sleeps before re-polling the
// frontier.
const idleBackoff = 50 * time.Microsecond

// Optimizer runs one branch and bound search over a dataset. It owns the
// frontier, the subproblem graph and the global objective boundary. An
// Optimizer is single-use: create one per Solve call.
type Optimizer struct {
	cfg    Config
	ds     *dataset.Dataset
	params graph.Params

	g     *graph.Graph
	queue *messageQueue

	rootSig graph.Signature

	start  time.Time
	active atomic.Bool

	boundaryMu    sync.Mutex
	boundaryLower float64
	boundaryUpper float64

	iterations   atomic.Uint64
	exploreCount atomic.Uint64
	exploitCount atomic.Uint64
	idle         atomic.Int32

	logger   *slog.Logger
	progress *rate.Limiter

	// injectFault, when set, corrupts freshly created subproblems. It
	// exists to verify that a broken bound invariant surfaces as
	// FalseConvergence instead of a silently wrong model.
	injectFault func(*graph.Task) error
}

// New creates an optimizer for one run. The config is validated here; a nil
// logger disables logging.
func New(cfg Config, ds *dataset.Dataset, logger *slog.Logger) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReferenceLB && !ds.HasReference() {
		return nil, ErrMissingReference
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	o := &Optimizer{
		cfg:   cfg,
		ds:    ds,
		params: graph.Params{
			Regularization: cfg.Regularization,
			ReferenceLB:    cfg.ReferenceLB,
		},
		g:       graph.New(),
		queue:   newMessageQueue(),
		rootSig: graph.MakeSignature(ds.FullCapture(), cfg.internalDepth()),
		logger:  logger,
		// Progress lines are throttled rather than tied to the tick
		// cadence, which varies wildly with dataset size.
		progress: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	o.boundaryLower = math.Inf(-1)
	o.boundaryUpper = math.Inf(1)
	return o, nil
}

// Boundary returns the current global objective bounds.
func (o *Optimizer) Boundary() (lower, upper float64) {
	o.boundaryMu.Lock()
	defer o.boundaryMu.Unlock()
	return o.boundaryLower, o.boundaryUpper
}

// updateRoot folds fresh root bounds into the global boundary. Reports
// whether the boundary moved.
func (o *Optimizer) updateRoot(lower, upper float64) bool {
	o.boundaryMu.Lock()
	defer o.boundaryMu.Unlock()

	changed := lower != o.boundaryLower || upper != o.boundaryUpper
	o.boundaryLower = lower
	o.boundaryUpper = upper
	o.boundaryLower = math.Min(o.boundaryLower, o.boundaryUpper)
	return changed
}

func (o *Optimizer) complete() bool {
	lower, upper := o.Boundary()
	if math.IsInf(upper, 1) || math.IsInf(lower, -1) {
		return false
	}
	return upper-lower < epsilon
}

func (o *Optimizer) elapsed() time.Duration {
	return time.Since(o.start)
}

func (o *Optimizer) timedOut() bool {
	return o.cfg.TimeLimit > 0 && o.elapsed() > o.cfg.TimeLimit
}

// GraphSize returns the number of subproblem records created so far.
func (o *Optimizer) GraphSize() int {
	return o.g.Size()
}

// Solve runs the optimization to termination and extracts the models.
// Cancelling the context stops the search at the next checkpoint and folds
// into the Timeout status; the returned Result is still valid.
//
// A non-nil error is only returned for fatal faults (a broken bound
// invariant); the Result then carries StatusFalseConvergence and no models.
func (o *Optimizer) Solve(ctx context.Context) (*Result, error) {
	if o.cfg.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TimeLimit)
		defer cancel()
	}

	o.start = time.Now()
	o.active.Store(true)

	// Seed the frontier with the root subproblem.
	o.queue.Push(message{
		kind:     exploreMessage,
		capture:  o.ds.FullCapture(),
		features: o.ds.FullFeatureSet(),
		depth:    o.cfg.internalDepth(),
		scope:    math.Inf(1),
		priority: math.Inf(1),
	})

	workers := o.cfg.workers()
	o.logger.Info("starting optimization",
		slog.Int("workers", workers),
		slog.Int("features", o.ds.NumFeatures),
		slog.Int("samples", o.ds.NumRows),
		slog.Uint64("dataset_bytes", o.ds.FootprintBytes()),
		slog.Float64("regularization", o.cfg.Regularization),
	)

	grp, grpCtx := errgroup.WithContext(ctx)
	cancelled := &atomic.Bool{}
	for wid := 0; wid < workers; wid++ {
		grp.Go(func() error {
			return o.work(grpCtx, wid, workers, cancelled)
		})
	}
	err := grp.Wait()

	return o.finish(err, cancelled.Load())
}

// work is one worker's dispatch loop. Worker 0 additionally refreshes the
// shared continuation flag at tick checkpoints.
func (o *Optimizer) work(ctx context.Context, id, workers int, cancelled *atomic.Bool) error {
	ticks := 0
	for {
		if msg, ok := o.queue.Pop(); ok {
			update, err := o.dispatch(msg, id)
			o.iterations.Add(1)
			if err != nil {
				o.active.Store(false)
				return err
			}

			if id == 0 {
				ticks++
				if update || o.complete() || ticks%tickDuration == 0 {
					if o.complete() || o.timedOut() {
						o.active.Store(false)
					}
					o.logProgress()
				}
			}
		} else {
			// The frontier drains transiently while peers are mid-dispatch.
			// Only a fully idle pool with an empty frontier terminates.
			idle := o.idle.Add(1)
			if int(idle) == workers && o.queue.Len() == 0 {
				o.active.Store(false)
				o.idle.Add(-1)
				return nil
			}
			time.Sleep(idleBackoff)
			o.idle.Add(-1)
		}

		if !o.active.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			o.active.Store(false)
			return nil
		default:
		}
	}
}

func (o *Optimizer) logProgress() {
	if !o.cfg.Verbose || !o.progress.Allow() {
		return
	}
	lower, upper := o.Boundary()
	o.logger.Info("progress",
		slog.Duration("elapsed", o.elapsed()),
		slog.Float64("lowerbound", lower),
		slog.Float64("upperbound", upper),
		slog.Int("graph_size", o.GraphSize()),
		slog.Int("queue_size", o.queue.Len()),
		slog.Uint64("explore", o.exploreCount.Load()),
		slog.Uint64("exploit", o.exploitCount.Load()),
	)
}

// finish assembles the Result, classifies the termination status and
// extracts the models.
func (o *Optimizer) finish(fault error, cancelled bool) (*Result, error) {
	lower, upper := o.Boundary()
	res := &Result{
		Status:     StatusUninitialized,
		Lowerbound: lower,
		Upperbound: upper,
		Iterations: o.iterations.Load(),
		GraphSize:  o.GraphSize(),
		QueueSize:  o.queue.Len(),
		Elapsed:    o.elapsed(),
	}

	if fault != nil {
		res.Status = StatusFalseConvergence
		o.logger.Error("bound invariant violated", slog.Any("error", fault))
		return res, fault
	}

	converged := !math.IsInf(upper, 1) && upper-lower < epsilon
	switch {
	case converged:
		res.Status = StatusSuccess
	case o.timedOut() || cancelled || res.QueueSize > 0:
		res.Status = StatusTimeout
	default:
		res.Status = StatusNonConvergence
	}

	models, err := o.extract()
	if err != nil {
		res.Status = StatusFalseConvergence
		return res, err
	}
	res.Models = models

	// A run that claims progress under a deadline but cannot produce a
	// model within its own bounds has converged falsely.
	if o.cfg.ModelLimit > 0 && len(models) == 0 && (o.cfg.TimeLimit > 0 || cancelled) {
		res.Status = StatusFalseConvergence
		return res, nil
	}

	if len(models) > 0 {
		res.ModelLoss = models[0].Loss()
		encoded, err := json.MarshalIndent(models, "", "  ")
		if err != nil {
			return res, err
		}
		res.ModelJSON = string(encoded)
	}

	o.logger.Info("optimization complete",
		slog.String("status", res.Status.String()),
		slog.Duration("elapsed", res.Elapsed),
		slog.Uint64("iterations", res.Iterations),
		slog.Int("graph_size", res.GraphSize),
		slog.Float64("lowerbound", res.Lowerbound),
		slog.Float64("upperbound", res.Upperbound),
		slog.Int("models", len(res.Models)),
	)
	return res, nil
}

func sortModels(models []*model.Tree) {
	sort.Slice(models, func(i, j int) bool {
		li, lj := models[i].Loss(), models[j].Loss()
		if li != lj {
			return li < lj
		}
		return models[i].String() < models[j].String()
	})
}
