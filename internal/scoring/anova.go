package scoring

import (
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahrav/go-qra/internal/domain"
)

// OneWayANOVA tests whether the candidate columns of a task score table
// share a common mean. The result is marked undefined, not failed, when
// the table is too small or has no within-group variance.
func OneWayANOVA(table domain.TaskScoreTable) domain.SignificanceResult {
	k := domain.NumCandidates
	n := len(table.Rows)
	res := domain.SignificanceResult{
		DFBetween: k - 1,
		DFWithin:  k*n - k,
	}
	if n < 2 {
		res.Reason = "fewer than two rows"
		return res
	}

	var grand float64
	columns := make([][]float64, k)
	for i, s := range domain.CandidateSystems {
		columns[i] = table.Column(s)
		res.GroupMeans[i] = stat.Mean(columns[i], nil)
		grand += res.GroupMeans[i]
	}
	grand /= float64(k)

	var ssBetween, ssWithin float64
	for i, col := range columns {
		d := res.GroupMeans[i] - grand
		ssBetween += float64(n) * d * d
		for _, v := range col {
			e := v - res.GroupMeans[i]
			ssWithin += e * e
		}
	}
	if ssWithin == 0 {
		res.Reason = "no within-group variance"
		return res
	}

	msBetween := ssBetween / float64(res.DFBetween)
	msWithin := ssWithin / float64(res.DFWithin)
	res.F = msBetween / msWithin
	res.P = distuv.F{D1: float64(res.DFBetween), D2: float64(res.DFWithin)}.Survival(res.F)
	res.Defined = true
	return res
}
