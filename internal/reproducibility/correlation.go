package reproducibility

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahrav/go-qra/internal/domain"
)

// Correlation method names.
const (
	MethodPearson  = "pearson"
	MethodSpearman = "spearman"
)

// Pearson returns the linear correlation of x and y with its two-sided
// p-value.
func Pearson(x, y []float64) (domain.CorrelationResult, error) {
	if err := checkPair(x, y); err != nil {
		return domain.CorrelationResult{}, err
	}
	r := stat.Correlation(x, y, nil)
	return domain.CorrelationResult{Method: MethodPearson, Coefficient: r, P: twoSidedP(r, len(x)), N: len(x)}, nil
}

// Spearman returns the rank correlation of x and y with its two-sided
// p-value. Tied values receive their average rank.
func Spearman(x, y []float64) (domain.CorrelationResult, error) {
	if err := checkPair(x, y); err != nil {
		return domain.CorrelationResult{}, err
	}
	rx, ry := Ranks(x), Ranks(y)
	if err := checkVaries(rx, ry); err != nil {
		return domain.CorrelationResult{}, err
	}
	r := stat.Correlation(rx, ry, nil)
	return domain.CorrelationResult{Method: MethodSpearman, Coefficient: r, P: twoSidedP(r, len(x)), N: len(x)}, nil
}

// Ranks assigns 1-based ranks to values, averaging the ranks of ties.
func Ranks(values []float64) []float64 {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case values[a] < values[b]:
			return -1
		case values[a] > values[b]:
			return 1
		}
		return 0
	})

	ranks := make([]float64, len(values))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && values[order[j+1]] == values[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

func checkPair(x, y []float64) error {
	if len(x) != len(y) {
		return fmt.Errorf("correlation needs paired samples, got %d and %d values", len(x), len(y))
	}
	if len(x) < 2 {
		return &domain.SampleError{Measurand: "correlation", Values: x, Err: domain.ErrInsufficientSample}
	}
	return checkVaries(x, y)
}

func checkVaries(x, y []float64) error {
	for _, s := range [][]float64{x, y} {
		if stat.Variance(s, nil) == 0 {
			return fmt.Errorf("%w: constant series %v", domain.ErrUndefinedCorrelation, s)
		}
	}
	return nil
}

// twoSidedP tests r against zero with a Student-t statistic on n-2 degrees
// of freedom. With two observations the test has no power and p is 1.
func twoSidedP(r float64, n int) float64 {
	if n <= 2 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := math.Abs(r) * math.Sqrt(df/(1-r*r))
	return 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(t)
}
