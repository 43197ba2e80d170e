package scoring

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahrav/go-qra/internal/domain"
)

// DefaultAlpha is the family-wise error rate of TukeyHSD.
const DefaultAlpha = 0.05

// Quadrature resolution for the studentized range distribution.
const (
	rangeNodes = 128
	chiNodes   = 128
)

// TukeyHSD runs Tukey's honestly significant difference test over the
// candidate columns of table. Pairs follow the enumeration order, and
// MeanDiff is the later system's mean minus the earlier one's. An alpha
// outside (0, 1) selects DefaultAlpha. The result is nil when the table
// has fewer than two rows or no within-group variance.
func TukeyHSD(table domain.TaskScoreTable, alpha float64) []domain.TukeyComparison {
	if !(alpha > 0 && alpha < 1) {
		alpha = DefaultAlpha
	}
	k := domain.NumCandidates
	n := len(table.Rows)
	if n < 2 {
		return nil
	}

	var means [domain.NumCandidates]float64
	var ssWithin float64
	for i, s := range domain.CandidateSystems {
		col := table.Column(s)
		means[i] = stat.Mean(col, nil)
		for _, v := range col {
			e := v - means[i]
			ssWithin += e * e
		}
	}
	if ssWithin == 0 {
		return nil
	}

	df := float64(k*n - k)
	se := math.Sqrt(ssWithin / df / float64(n))
	crit := StudentizedRangeQuantile(1-alpha, k, df)

	out := make([]domain.TukeyComparison, 0, k*(k-1)/2)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			diff := means[j] - means[i]
			p := 1 - StudentizedRangeCDF(math.Abs(diff)/se, k, df)
			out = append(out, domain.TukeyComparison{
				SystemA:  domain.CandidateSystems[i],
				SystemB:  domain.CandidateSystems[j],
				MeanDiff: diff,
				P:        math.Max(p, 0),
				Lower:    diff - crit*se,
				Upper:    diff + crit*se,
				Alpha:    alpha,
				Reject:   p < alpha,
			})
		}
	}
	return out
}

// StudentizedRangeCDF returns P(Q <= q) for the range of k standard normal
// means studentized by an independent scale estimate on df degrees of
// freedom.
//
// P(Q <= q) = ∫ f(s) W(qs) ds, where s = sqrt(χ²_df/df) and W is the
// distribution of the range of k standard normals. Both integrals use
// Gauss-Legendre quadrature over bounds that hold all but a negligible
// tail of the integrand.
func StudentizedRangeCDF(q float64, k int, df float64) float64 {
	if q <= 0 || k < 2 || df <= 0 {
		return 0
	}
	chi := distuv.ChiSquared{K: df}
	spread := 12 / math.Sqrt(2*df)
	lo, hi := math.Max(0, 1-spread), 1+spread

	p := quad.Fixed(func(s float64) float64 {
		if s <= 0 {
			return 0
		}
		// Density of s = sqrt(x/df) with x ~ χ²(df).
		density := chi.Prob(df*s*s) * 2 * df * s
		if density == 0 {
			return 0
		}
		return density * normalRangeCDF(q*s, k)
	}, lo, hi, chiNodes, legendre, 0)
	return math.Min(math.Max(p, 0), 1)
}

// normalRangeCDF returns the probability that the range of k independent
// standard normal draws is at most w.
func normalRangeCDF(w float64, k int) float64 {
	if w <= 0 {
		return 0
	}
	n := distuv.UnitNormal
	inner := quad.Fixed(func(z float64) float64 {
		return n.Prob(z) * math.Pow(n.CDF(z)-n.CDF(z-w), float64(k-1))
	}, -8, 8, rangeNodes, legendre, 0)
	return float64(k) * inner
}

// StudentizedRangeQuantile inverts StudentizedRangeCDF by bisection.
func StudentizedRangeQuantile(p float64, k int, df float64) float64 {
	lo, hi := 0.0, 50.0
	for range 60 {
		mid := (lo + hi) / 2
		if StudentizedRangeCDF(mid, k, df) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// cachedLegendre serves Gauss-Legendre nodes computed once per size and
// rescaled to each interval.
type cachedLegendre struct {
	mu    sync.Mutex
	nodes map[int][2][]float64
}

var legendre = &cachedLegendre{nodes: make(map[int][2][]float64)}

func (c *cachedLegendre) FixedLocations(x, weight []float64, min, max float64) {
	n := len(x)
	c.mu.Lock()
	unit, ok := c.nodes[n]
	if !ok {
		ux, uw := make([]float64, n), make([]float64, n)
		quad.Legendre{}.FixedLocations(ux, uw, -1, 1)
		unit = [2][]float64{ux, uw}
		c.nodes[n] = unit
	}
	c.mu.Unlock()

	half, mid := (max-min)/2, (max+min)/2
	for i := range x {
		x[i] = mid + half*unit[0][i]
		weight[i] = half * unit[1][i]
	}
}
