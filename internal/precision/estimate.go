// Package precision estimates the precision of a small sample of repeated
// measurements of one measurand.
//
// The estimator follows the small-sample procedure used for quantified
// reproducibility assessments: the sample standard deviation is corrected
// by c4(n), the coefficient of variation is further scaled by (1 + 1/4n),
// and the confidence interval for the corrected standard deviation is a
// Student-t interval whose scale is the standard error of the uncorrected
// variance propagated to standard-deviation units.
package precision

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahrav/go-qra/internal/domain"
)

// DefaultConfidence is the confidence level of the standard deviation interval.
const DefaultConfidence = 0.95

// C4 returns the bias-correction factor for the standard deviation of a
// normal sample of size n, √(2/(n−1))·Γ(n/2)/Γ((n−1)/2).
func C4(n int) float64 {
	df := float64(n - 1)
	lg1, _ := math.Lgamma(float64(n) / 2)
	lg2, _ := math.Lgamma(df / 2)
	return math.Sqrt(2/df) * math.Exp(lg1-lg2)
}

// Estimate computes the precision of values, which must hold at least two
// measurements with a strictly positive mean. Values that can be
// non-positive must be shifted onto a positive scale by the caller.
// A confidence outside (0, 1) selects DefaultConfidence.
func Estimate(measurand string, values []float64, confidence float64) (domain.PrecisionResult, error) {
	n := len(values)
	if n < 2 {
		return domain.PrecisionResult{}, &domain.SampleError{Measurand: measurand, Values: values, Err: domain.ErrInsufficientSample}
	}
	mean := stat.Mean(values, nil)
	if !(mean > 0) {
		return domain.PrecisionResult{}, &domain.SampleError{Measurand: measurand, Values: values, Err: domain.ErrInvalidSample}
	}
	if !(confidence > 0 && confidence < 1) {
		confidence = DefaultConfidence
	}

	df := float64(n - 1)
	variance := stat.Variance(values, nil)
	sd := math.Sqrt(variance)
	corrected := sd / C4(n)

	cv := corrected / mean * 100
	res := domain.PrecisionResult{
		Measurand:  measurand,
		Values:     append([]float64(nil), values...),
		SampleSize: n,
		Mean:       mean,
		StdDev:     corrected,
		Confidence: confidence,
		CV:         cv,
		CVStar:     (1 + 1/(4*float64(n))) * cv,
	}

	if corrected > 0 {
		seVariance := variance * math.Sqrt(2/df)
		seSD := seVariance / (2 * corrected)
		t := distuv.StudentsT{Mu: corrected, Sigma: seSD, Nu: df}
		tail := (1 - confidence) / 2
		res.CILower = t.Quantile(tail)
		res.CIUpper = t.Quantile(1 - tail)
	}

	res.WithinOneSD = withinPct(values, mean, corrected)
	res.WithinTwoSD = withinPct(values, mean, 2*corrected)
	return res, nil
}

// withinPct returns the percentage of values strictly closer than radius
// to mean.
func withinPct(values []float64, mean, radius float64) float64 {
	in := 0
	for _, v := range values {
		if math.Abs(v-mean) < radius {
			in++
		}
	}
	return float64(in) / float64(len(values)) * 100
}
