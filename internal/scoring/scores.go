// Package scoring reduces pairwise outcomes into per-task and per-system
// scores.
package scoring

import (
	"fmt"

	"github.com/ahrav/go-qra/internal/domain"
)

// GroupBy selects the row key of a task score table.
type GroupBy string

const (
	// GroupByTask keys rows by the synthesized task id.
	GroupByTask GroupBy = "task_id"
	// GroupByDatasetItem keys rows by dataset item, merging every system
	// pair shown on the same item.
	GroupByDatasetItem GroupBy = "dataset_item"
)

// Deltas returns the score change a judgment applies to system A and
// system B. The two always sum to zero.
func Deltas(j domain.Judgment) (deltaA, deltaB int) {
	if j.Selected == domain.SelectA {
		return 1, -1
	}
	return -1, 1
}

// candidateIndices resolves both sides of j to accumulator positions.
func candidateIndices(j domain.Judgment) (int, int, error) {
	ia, ib := j.SystemA.Index(), j.SystemB.Index()
	if ia < 0 || ib < 0 {
		return 0, 0, domain.NewJudgmentError(j, -1,
			fmt.Errorf("%w: %s vs %s is not a candidate comparison", domain.ErrUnknownSystem, j.SystemA, j.SystemB))
	}
	if !j.Selected.Valid() {
		return 0, 0, domain.NewJudgmentError(j, -1,
			fmt.Errorf("%w: selected_system=%d", domain.ErrMalformedSelection, j.Selected))
	}
	return ia, ib, nil
}

// TaskScores builds the per-task score table. Rows follow first-seen order
// of their keys; every row starts at zero for every candidate.
func TaskScores(judgments []domain.Judgment, groupBy GroupBy) (domain.TaskScoreTable, error) {
	if groupBy == "" {
		groupBy = GroupByTask
	}
	if groupBy != GroupByTask && groupBy != GroupByDatasetItem {
		return domain.TaskScoreTable{}, fmt.Errorf("unsupported grouping %q", groupBy)
	}

	table := domain.TaskScoreTable{GroupBy: string(groupBy)}
	rowOf := make(map[string]int)
	for _, j := range judgments {
		ia, ib, err := candidateIndices(j)
		if err != nil {
			return domain.TaskScoreTable{}, err
		}

		key := j.TaskID
		if groupBy == GroupByDatasetItem {
			key = j.DatasetItemID()
		}
		r, ok := rowOf[key]
		if !ok {
			r = len(table.Rows)
			rowOf[key] = r
			table.Rows = append(table.Rows, domain.TaskScoreRow{Key: key})
		}

		da, db := Deltas(j)
		table.Rows[r].Scores[ia] += da
		table.Rows[r].Scores[ib] += db
		table.Appearances[ia]++
		table.Appearances[ib]++
	}
	return table, nil
}

// SystemMetrics computes whole-study totals per candidate in enumeration
// order. Appearances are counted from the system columns alone, wins and
// losses from the system columns paired with the selection; a mismatch
// between the two fails with ErrInconsistentCount. A judgment comparing a
// system with itself is one appearance but both a win and a loss, so it
// trips the check.
func SystemMetrics(judgments []domain.Judgment) ([]domain.SystemMetrics, error) {
	for _, j := range judgments {
		if _, _, err := candidateIndices(j); err != nil {
			return nil, err
		}
	}

	appearances := countAppearances(judgments)
	out := make([]domain.SystemMetrics, 0, domain.NumCandidates)
	for i, s := range domain.CandidateSystems {
		var wins, losses int
		for _, j := range judgments {
			if (j.SystemA == s && j.Selected == domain.SelectA) || (j.SystemB == s && j.Selected == domain.SelectB) {
				wins++
			}
			if (j.SystemA == s && j.Selected == domain.SelectB) || (j.SystemB == s && j.Selected == domain.SelectA) {
				losses++
			}
		}
		if err := checkCounts(s, wins, losses, appearances[i]); err != nil {
			return nil, err
		}

		m := domain.SystemMetrics{
			System:         s,
			Wins:           wins,
			Losses:         losses,
			BestWorstScore: wins - losses,
		}
		if total := wins + losses; total > 0 {
			scale := float64(m.BestWorstScore) / float64(total) * 100
			pct := float64(wins) / float64(total) * 100
			m.BestWorstScale, m.WinPercentage = &scale, &pct
		}
		out = append(out, m)
	}
	return out, nil
}

// countAppearances counts the judgments showing each candidate on either
// side, ignoring the outcome.
func countAppearances(judgments []domain.Judgment) [domain.NumCandidates]int {
	var n [domain.NumCandidates]int
	for i, s := range domain.CandidateSystems {
		for _, j := range judgments {
			if j.SystemA == s || j.SystemB == s {
				n[i]++
			}
		}
	}
	return n
}

// checkCounts asserts that every appearance ended in a win or a loss.
func checkCounts(s domain.System, wins, losses, appearances int) error {
	if wins+losses != appearances {
		return &domain.CountError{System: s, Wins: wins, Losses: losses, Appearances: appearances}
	}
	return nil
}

// Scores projects metrics into a score table, skipping systems that never
// appeared.
func Scores(metrics []domain.SystemMetrics) []domain.SystemScore {
	out := make([]domain.SystemScore, 0, len(metrics))
	for _, m := range metrics {
		if m.BestWorstScale == nil {
			continue
		}
		out = append(out, domain.SystemScore{System: m.System, BestWorstScale: *m.BestWorstScale})
	}
	return out
}
