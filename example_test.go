package gosdt_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/gosdt"
	"github.com/hupe1980/gosdt/dataset"
)

func ExampleFit() {
	// Four samples over one binary feature; the feature separates the two
	// classes exactly. Columns: feature, class 0 indicator, class 1
	// indicator.
	input := dataset.NewBitMatrixFromRows([][]bool{
		{false, true, false},
		{false, true, false},
		{true, false, true},
		{true, false, true},
	})

	ds, err := dataset.New(input, dataset.UnitCosts(2, 4), nil)
	if err != nil {
		log.Fatal(err)
	}

	result, err := gosdt.Fit(context.Background(), ds,
		gosdt.WithRegularization(0.01),
	)
	if err != nil {
		log.Fatal(err)
	}

	tree, err := gosdt.BestTree(result)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(result.Status)
	fmt.Println(tree)
	// Output:
	// Success
	// {"feature":0,"true":{"prediction":1,"loss":0},"false":{"prediction":0,"loss":0}}
}
