package tables

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ahrav/go-qra/internal/domain"
)

// writeCSV writes header and rows and flushes.
func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

// WriteJudgments writes one row per judgment with selected_system as 0 or 1.
func WriteJudgments(w io.Writer, judgments []domain.Judgment) error {
	header := []string{
		"task_id", "task_uuid", "participant_id", "dataset", "dataset_index", "dataset_id",
		"systema", "systemb", "selected_system", "input", "outputa", "outputb",
	}
	rows := make([][]string, 0, len(judgments))
	for _, j := range judgments {
		rows = append(rows, []string{
			j.TaskID, j.TaskUUID, j.ParticipantID, j.Dataset, strconv.Itoa(j.DatasetIndex), j.DatasetItemID(),
			j.SystemA.String(), j.SystemB.String(), strconv.Itoa(int(j.Selected)), j.Input, j.OutputA, j.OutputB,
		})
	}
	return writeCSV(w, header, rows)
}

// WriteSystemMetrics writes the whole-study metrics. Scale and win
// percentage are blank for systems that never appeared.
func WriteSystemMetrics(w io.Writer, metrics []domain.SystemMetrics) error {
	header := []string{"system", "wins", "losses", "best_worst_score", "best_worst_scale", "win_percentage"}
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []string{
			m.System.String(), strconv.Itoa(m.Wins), strconv.Itoa(m.Losses), strconv.Itoa(m.BestWorstScore),
			formatOptional(m.BestWorstScale), formatOptional(m.WinPercentage),
		})
	}
	return writeCSV(w, header, rows)
}

// WriteTaskScores writes the per-task score table, one column per candidate.
func WriteTaskScores(w io.Writer, table domain.TaskScoreTable) error {
	header := make([]string, 0, domain.NumCandidates+1)
	header = append(header, table.GroupBy)
	for _, s := range domain.CandidateSystems {
		header = append(header, s.String())
	}
	rows := make([][]string, 0, len(table.Rows))
	for _, r := range table.Rows {
		row := make([]string, 0, len(header))
		row = append(row, r.Key)
		for _, v := range r.Scores {
			row = append(row, strconv.Itoa(v))
		}
		rows = append(rows, row)
	}
	return writeCSV(w, header, rows)
}

// WriteCategoryMatrix writes the item-by-category counts behind Fleiss' kappa.
func WriteCategoryMatrix(w io.Writer, rows []domain.CategoryRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.TaskID, strconv.Itoa(r.Counts[0]), strconv.Itoa(r.Counts[1])})
	}
	return writeCSV(w, []string{"task_id", "0", "1"}, out)
}

// WriteReliabilityMatrix writes the participant-by-task matrix behind
// Krippendorff's alpha. Unobserved cells are left empty.
func WriteReliabilityMatrix(w io.Writer, table domain.ReliabilityTable) error {
	header := make([]string, 0, len(table.Tasks)+1)
	header = append(header, "participant_id")
	header = append(header, table.Tasks...)

	rows := make([][]string, 0, len(table.Participants))
	for i, p := range table.Participants {
		row := make([]string, 0, len(header))
		row = append(row, p)
		for _, c := range table.Cells[i] {
			if c == domain.MissingCell {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.Itoa(int(c)))
		}
		rows = append(rows, row)
	}
	return writeCSV(w, header, rows)
}

// WritePrecision writes one row per precision estimate.
func WritePrecision(w io.Writer, results []domain.PrecisionResult) error {
	header := []string{
		"measurand", "n", "mean", "stdev", "stdev_ci_lower", "stdev_ci_upper", "confidence",
		"cv", "cv_star", "within_one_sd_pct", "within_two_sd_pct",
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Measurand, strconv.Itoa(r.SampleSize), formatFloat(r.Mean), formatFloat(r.StdDev),
			formatFloat(r.CILower), formatFloat(r.CIUpper), formatFloat(r.Confidence),
			formatFloat(r.CV), formatFloat(r.CVStar), formatFloat(r.WithinOneSD), formatFloat(r.WithinTwoSD),
		})
	}
	return writeCSV(w, header, rows)
}

// WriteDatasetUsage writes the distinct item count per dataset.
func WriteDatasetUsage(w io.Writer, usage []domain.DatasetUsage) error {
	rows := make([][]string, 0, len(usage))
	for _, u := range usage {
		rows = append(rows, []string{u.Dataset, strconv.Itoa(u.Items)})
	}
	return writeCSV(w, []string{"dataset", "count"}, rows)
}
