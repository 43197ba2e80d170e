// Package quality removes inattentive participants and attention-check
// trials from a judgment set.
//
// A participant fails when they prefer the distractor in any trial that
// offered it. Every judgment of a failing participant is dropped, and every
// remaining attention-check trial is dropped regardless of its outcome.
// Participants who were never shown a check are counted but kept.
package quality

import (
	"fmt"
	"slices"

	"github.com/ahrav/go-qra/internal/domain"
)

// Result is the outcome of one filter pass.
type Result struct {
	// Kept holds the surviving judgments in input order.
	Kept []domain.Judgment

	Report domain.FilterReport
}

// Failed reports whether j is a distractor trial in which the distractor
// was preferred.
func Failed(j domain.Judgment) bool {
	return (j.SystemA == domain.SystemDistractor && j.Selected == domain.SelectA) ||
		(j.SystemB == domain.SystemDistractor && j.Selected == domain.SelectB)
}

// Filter applies the exclusion rules to judgments. The input slice is never
// modified. The only error is a judgment carrying an invalid selection.
func Filter(judgments []domain.Judgment) (Result, error) {
	for _, j := range judgments {
		if !j.Selected.Valid() {
			return Result{}, domain.NewJudgmentError(j, -1,
				fmt.Errorf("%w: selected_system=%d", domain.ErrMalformedSelection, j.Selected))
		}
	}

	var failedA, failedB []string
	excluded := make(map[string]struct{})
	for _, j := range judgments {
		if !Failed(j) {
			continue
		}
		excluded[j.ParticipantID] = struct{}{}
		if j.SystemA == domain.SystemDistractor {
			failedA = append(failedA, j.TaskUUID)
		} else {
			failedB = append(failedB, j.TaskUUID)
		}
	}

	report := domain.FilterReport{
		ExcludedParticipants: sortedKeys(excluded),
		FailedTaskUUIDs:      append(failedA, failedB...),
		Before:               len(judgments),
	}

	kept := make([]domain.Judgment, 0, len(judgments))
	for _, j := range judgments {
		if _, ok := excluded[j.ParticipantID]; ok {
			report.RemovedByExclusion++
			continue
		}
		if j.IsAttentionCheck() {
			report.RemovedAsChecks++
			continue
		}
		kept = append(kept, j)
	}
	report.After = len(kept)
	report.ParticipantsWithoutChecks = countWithoutChecks(judgments)

	return Result{Kept: kept, Report: report}, nil
}

// countWithoutChecks counts distinct participants none of whose judgments
// was an attention-check trial. Every sentinel counts as a check, so a
// participant shown only a gold-reference or raw-input trial is not
// counted even though they never saw the distractor, the only sentinel
// that can exclude them.
func countWithoutChecks(judgments []domain.Judgment) int {
	checked := make(map[string]bool)
	for _, j := range judgments {
		checked[j.ParticipantID] = checked[j.ParticipantID] || j.IsAttentionCheck()
	}
	n := 0
	for _, ok := range checked {
		if !ok {
			n++
		}
	}
	return n
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
