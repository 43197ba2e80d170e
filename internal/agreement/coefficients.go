package agreement

import (
	"errors"
	"fmt"

	"github.com/ahrav/go-qra/internal/domain"
)

// Coefficient names used in reports and errors.
const (
	FleissKappaName       = "fleiss_kappa"
	KrippendorffAlphaName = "krippendorff_alpha"
)

// undefined builds the explicit undefined coefficient and its error.
func undefined(name, reason string) (domain.Coefficient, error) {
	return domain.Coefficient{Name: name, Reason: reason},
		&domain.AgreementError{Coefficient: name, Reason: reason}
}

// FleissKappa computes Fleiss' kappa with per-item rater counts.
// Items judged only once carry no agreement information and are skipped;
// the number skipped is returned alongside the coefficient.
func FleissKappa(m CategoryMatrix) (domain.Coefficient, int, error) {
	var (
		sumP    float64
		items   int
		single  int
		catSums [NumCategories]float64
		total   float64
	)
	for _, row := range m.Rows {
		n := 0
		sq := 0
		for _, c := range row.Counts {
			n += c
			sq += c * c
		}
		if n < 2 {
			single++
			continue
		}
		sumP += float64(sq-n) / float64(n*(n-1))
		items++
		for j, c := range row.Counts {
			catSums[j] += float64(c)
		}
		total += float64(n)
	}

	if items == 0 {
		c, err := undefined(FleissKappaName, "no item has two or more raters")
		return c, single, err
	}

	pBar := sumP / float64(items)
	var pe float64
	for _, s := range catSums {
		p := s / total
		pe += p * p
	}
	if pe >= 1 {
		c, err := undefined(FleissKappaName, "every rating falls in one category")
		return c, single, err
	}

	return domain.Coefficient{
		Name:    FleissKappaName,
		Value:   (pBar - pe) / (1 - pe),
		Defined: true,
	}, single, nil
}

// KrippendorffAlpha computes nominal Krippendorff's alpha from the
// coincidence matrix of the reliability matrix. Tasks are the units of
// analysis; a unit contributes only when it holds at least two values.
func KrippendorffAlpha(m *ReliabilityMatrix) (domain.Coefficient, error) {
	var coincidence [NumCategories][NumCategories]float64
	for _, task := range m.Tasks {
		vals := m.unitValues(task)
		mu := len(vals)
		if mu < 2 {
			continue
		}
		w := 1 / float64(mu-1)
		for a := range vals {
			for b := range vals {
				if a != b {
					coincidence[vals[a]][vals[b]] += w
				}
			}
		}
	}

	var marginals [NumCategories]float64
	var n float64
	for c := range NumCategories {
		for k := range NumCategories {
			marginals[c] += coincidence[c][k]
		}
		n += marginals[c]
	}
	if n == 0 {
		return undefined(KrippendorffAlphaName, "no unit has two or more values")
	}

	var observed, expected float64
	for c := range NumCategories {
		for k := range NumCategories {
			if c == k {
				continue
			}
			observed += coincidence[c][k]
			expected += marginals[c] * marginals[k]
		}
	}
	if expected == 0 {
		return undefined(KrippendorffAlphaName, "every value falls in one category")
	}

	return domain.Coefficient{
		Name:    KrippendorffAlphaName,
		Value:   1 - (n-1)*observed/expected,
		Defined: true,
	}, nil
}

// Estimate builds both matrices and computes both coefficients. An
// undefined coefficient is returned as an explicit undefined value and its
// error is joined into the returned error, so callers decide whether it is
// fatal.
func Estimate(judgments []domain.Judgment) (domain.AgreementReport, error) {
	for _, j := range judgments {
		if !j.Selected.Valid() {
			return domain.AgreementReport{}, domain.NewJudgmentError(j, -1,
				fmt.Errorf("%w: selected_system=%d", domain.ErrMalformedSelection, j.Selected))
		}
	}

	cm := NewCategoryMatrix(judgments)
	rm := NewReliabilityMatrix(judgments)

	fleiss, single, ferr := FleissKappa(cm)
	alpha, aerr := KrippendorffAlpha(rm)

	report := domain.AgreementReport{
		Fleiss:           fleiss,
		Krippendorff:     alpha,
		Categories:       cm.Rows,
		Reliability:      rm.Table(),
		SingleRaterItems: single,
		DuplicateRatings: rm.Duplicates,
	}
	return report, errors.Join(ferr, aerr)
}
