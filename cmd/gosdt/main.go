// Command gosdt trains optimal sparse decision trees from the command line.
//
// The input is a binarized CSV (or .csv.gz or .npy) whose trailing columns
// are the one-hot label columns. The number of classes selects how many
// trailing columns are treated as labels.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/hupe1980/gosdt"
	"github.com/hupe1980/gosdt/dataset"
)

func main() {
	var (
		inputPath      = flag.String("input", "", "binarized dataset with trailing one-hot label columns (.csv, .csv.gz or .npy)")
		referencePath  = flag.String("reference", "", "optional reference label matrix, shaped like the label columns")
		classes        = flag.Int("classes", 2, "number of classes (trailing label columns)")
		regularization = flag.Float64("regularization", 0.05, "per-leaf penalty in (0, 1]")
		depthBudget    = flag.Int("depth", 0, "maximum decision nodes per path, 0 = unlimited")
		timeLimit      = flag.Duration("time-limit", 0, "wall time limit, 0 = unlimited")
		workers        = flag.Int("workers", 1, "worker count, 0 = GOMAXPROCS")
		modelLimit     = flag.Int("models", 1, "maximum number of extracted models")
		tolerance      = flag.Float64("tolerance", 0, "extraction tolerance for near-optimal trees")
		ruleList       = flag.Bool("rule-list", false, "constrain models to rule lists")
		renderPath     = flag.String("render", "", "render the best tree to this file (.png, .svg, .jpg or .dot)")
		verbose        = flag.Bool("verbose", false, "log periodic progress")
	)
	flag.Parse()

	if *inputPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*inputPath, *referencePath, *classes, *regularization, *depthBudget,
		*timeLimit, *workers, *modelLimit, *tolerance, *ruleList, *renderPath, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "gosdt:", err)
		os.Exit(1)
	}
}

func run(inputPath, referencePath string, classes int, regularization float64, depthBudget int,
	timeLimit time.Duration, workers, modelLimit int, tolerance float64, ruleList bool,
	renderPath string, verbose bool,
) error {
	input, err := dataset.OpenBitMatrix(inputPath)
	if err != nil {
		return err
	}
	rows, _ := input.Dims()

	var datasetOpts []dataset.Option
	if referencePath != "" {
		reference, err := dataset.OpenBitMatrix(referencePath)
		if err != nil {
			return err
		}
		datasetOpts = append(datasetOpts, dataset.WithReference(reference))
	}

	ds, err := dataset.New(input, dataset.UnitCosts(classes, rows), nil, datasetOpts...)
	if err != nil {
		return err
	}

	fitOpts := []gosdt.Option{
		gosdt.WithRegularization(regularization),
		gosdt.WithDepthBudget(depthBudget),
		gosdt.WithTimeLimit(timeLimit),
		gosdt.WithWorkerLimit(workers),
		gosdt.WithModelLimit(modelLimit),
		gosdt.WithUncertaintyTolerance(tolerance),
	}
	if ruleList {
		fitOpts = append(fitOpts, gosdt.WithRuleList())
	}
	if referencePath != "" {
		fitOpts = append(fitOpts, gosdt.WithReferenceBound())
	}
	if verbose {
		fitOpts = append(fitOpts,
			gosdt.WithVerbose(),
			gosdt.WithLogger(gosdt.NewTextLogger(slog.LevelDebug)),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := gosdt.Fit(ctx, ds, fitOpts...)
	if err != nil {
		return err
	}

	fmt.Println("Status:", result.Status)
	fmt.Println("Graph Size:", result.GraphSize)
	fmt.Println("Iterations:", result.Iterations)
	fmt.Printf("Objective: [%g, %g]\n", result.Lowerbound, result.Upperbound)
	fmt.Println("Model Loss:", result.ModelLoss)
	fmt.Println("Time Elapsed:", result.Elapsed)
	if result.ModelJSON != "" {
		fmt.Println(result.ModelJSON)
	}

	if renderPath != "" {
		tree, err := gosdt.BestTree(result)
		if err != nil {
			return err
		}
		if err := tree.RenderFile(renderPath, nil); err != nil {
			return err
		}
	}
	return nil
}
