// qra analyzes pairwise human judgment studies and quantifies how well a
// study reproduces previously published scores.
//
// Usage:
//
//	qra analyze --responses responses.csv [--original results.csv] --out results/
//	qra precision 85.0 86.5
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
