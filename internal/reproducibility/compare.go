// Package reproducibility compares reproduced per-system scores with
// previously published ones.
package reproducibility

import (
	"fmt"
	"math"

	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/precision"
)

// Options controls Compare.
type Options struct {
	// RangeStart and RangeEnd bound the score scale. When RangeStart is
	// negative both score sets are shifted by |RangeStart| so the
	// coefficient of variation is taken on a scale starting at zero.
	RangeStart float64
	RangeEnd   float64

	// Confidence is the level of the standard deviation interval.
	Confidence float64
}

// DefaultOptions matches the Best-Worst Scale range of -100 to 100.
func DefaultOptions() Options {
	return Options{RangeStart: -100, RangeEnd: 100, Confidence: precision.DefaultConfidence}
}

// Shift returns the offset Compare adds to every score.
func (o Options) Shift() float64 {
	if o.RangeStart < 0 {
		return math.Abs(o.RangeStart)
	}
	return 0
}

// Align orders a score table by the candidate enumeration. Every candidate
// present in one table must be present exactly once.
func Align(scores []domain.SystemScore) (map[domain.System]float64, error) {
	out := make(map[domain.System]float64, len(scores))
	for _, s := range scores {
		if !s.System.IsCandidate() {
			return nil, fmt.Errorf("%w: %s is not a candidate system", domain.ErrUnknownSystem, s.System)
		}
		if _, dup := out[s.System]; dup {
			return nil, fmt.Errorf("system %s appears more than once", s.System)
		}
		out[s.System] = s.BestWorstScale
	}
	return out, nil
}

// Compare aligns both score tables by the fixed system order, estimates
// the precision of each system's pair of scores and correlates the two
// studies. Both tables must cover the same systems.
func Compare(original, reproduced []domain.SystemScore, opts Options) (domain.ReproducibilityReport, error) {
	orig, err := Align(original)
	if err != nil {
		return domain.ReproducibilityReport{}, fmt.Errorf("original scores: %w", err)
	}
	repro, err := Align(reproduced)
	if err != nil {
		return domain.ReproducibilityReport{}, fmt.Errorf("reproduced scores: %w", err)
	}
	if opts.RangeEnd != 0 && opts.RangeEnd <= opts.RangeStart {
		return domain.ReproducibilityReport{}, fmt.Errorf("invalid score range [%v, %v]", opts.RangeStart, opts.RangeEnd)
	}

	report := domain.ReproducibilityReport{Shift: opts.Shift()}
	for _, s := range domain.CandidateSystems {
		o, inOrig := orig[s]
		r, inRepro := repro[s]
		if inOrig != inRepro {
			return domain.ReproducibilityReport{}, fmt.Errorf("system %s is missing from one of the score tables", s)
		}
		if !inOrig {
			continue
		}
		report.Systems = append(report.Systems, s)
		report.Original = append(report.Original, o)
		report.Reproduced = append(report.Reproduced, r)

		res, err := precision.Estimate(s.String(), []float64{o + report.Shift, r + report.Shift}, opts.Confidence)
		if err != nil {
			return domain.ReproducibilityReport{}, fmt.Errorf("precision of %s: %w", s, err)
		}
		report.Precision = append(report.Precision, res)
	}

	if report.Pearson, err = Pearson(report.Original, report.Reproduced); err != nil {
		return domain.ReproducibilityReport{}, fmt.Errorf("pearson: %w", err)
	}
	if report.Spearman, err = Spearman(report.Original, report.Reproduced); err != nil {
		return domain.ReproducibilityReport{}, fmt.Errorf("spearman: %w", err)
	}
	return report, nil
}
