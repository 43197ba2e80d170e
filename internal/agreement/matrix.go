// Package agreement computes inter-annotator agreement over filtered
// judgments.
//
// Two matrices are built from the same judgments. The category matrix
// counts outcomes per task and feeds Fleiss' kappa. The reliability matrix
// records each participant's outcome per task, with explicit missing
// cells, and feeds Krippendorff's alpha.
package agreement

import (
	"slices"

	"github.com/ahrav/go-qra/internal/domain"
)

// NumCategories is the size of the outcome space {A, B}.
const NumCategories = 2

// CategoryMatrix counts outcomes per task. Rows are sorted by task id.
type CategoryMatrix struct {
	Rows []domain.CategoryRow
}

// NewCategoryMatrix builds the category-count matrix.
func NewCategoryMatrix(judgments []domain.Judgment) CategoryMatrix {
	counts := make(map[string]*[NumCategories]int)
	for _, j := range judgments {
		c, ok := counts[j.TaskID]
		if !ok {
			c = new([NumCategories]int)
			counts[j.TaskID] = c
		}
		c[j.Selected]++
	}

	tasks := make([]string, 0, len(counts))
	for id := range counts {
		tasks = append(tasks, id)
	}
	slices.Sort(tasks)

	m := CategoryMatrix{Rows: make([]domain.CategoryRow, len(tasks))}
	for i, id := range tasks {
		m.Rows[i] = domain.CategoryRow{TaskID: id, Counts: *counts[id]}
	}
	return m
}

type cellKey struct {
	participant string
	task        string
}

// ReliabilityMatrix is a sparse participant-by-task matrix of outcomes.
// Absent cells are missing, which is distinct from outcome A.
type ReliabilityMatrix struct {
	// Participants in first-seen order.
	Participants []string
	// Tasks in sorted order.
	Tasks []string

	cells map[cellKey]domain.Selection
	units map[string][]domain.Selection

	// Duplicates counts judgments dropped because their (participant, task)
	// cell was already filled. The first occurrence wins.
	Duplicates int
}

// NewReliabilityMatrix folds judgments into a reliability matrix in
// encounter order.
func NewReliabilityMatrix(judgments []domain.Judgment) *ReliabilityMatrix {
	m := &ReliabilityMatrix{
		cells: make(map[cellKey]domain.Selection),
		units: make(map[string][]domain.Selection),
	}
	seenParticipant := make(map[string]struct{})
	seenTask := make(map[string]struct{})

	for _, j := range judgments {
		if _, ok := seenParticipant[j.ParticipantID]; !ok {
			seenParticipant[j.ParticipantID] = struct{}{}
			m.Participants = append(m.Participants, j.ParticipantID)
		}
		if _, ok := seenTask[j.TaskID]; !ok {
			seenTask[j.TaskID] = struct{}{}
			m.Tasks = append(m.Tasks, j.TaskID)
		}

		k := cellKey{participant: j.ParticipantID, task: j.TaskID}
		if _, filled := m.cells[k]; filled {
			m.Duplicates++
			continue
		}
		m.cells[k] = j.Selected
		m.units[j.TaskID] = append(m.units[j.TaskID], j.Selected)
	}
	slices.Sort(m.Tasks)
	return m
}

// Value returns the outcome recorded for a cell and whether it is present.
func (m *ReliabilityMatrix) Value(participant, task string) (domain.Selection, bool) {
	v, ok := m.cells[cellKey{participant: participant, task: task}]
	return v, ok
}

// Observed returns the number of filled cells.
func (m *ReliabilityMatrix) Observed() int { return len(m.cells) }

// unitValues returns the outcomes recorded for one task.
func (m *ReliabilityMatrix) unitValues(task string) []domain.Selection {
	return m.units[task]
}

// Table renders the dense form with domain.MissingCell for absent cells.
func (m *ReliabilityMatrix) Table() domain.ReliabilityTable {
	t := domain.ReliabilityTable{
		Participants: slices.Clone(m.Participants),
		Tasks:        slices.Clone(m.Tasks),
		Cells:        make([][]int8, len(m.Participants)),
	}
	for i, p := range m.Participants {
		row := make([]int8, len(m.Tasks))
		for k, task := range m.Tasks {
			row[k] = domain.MissingCell
			if v, ok := m.Value(p, task); ok {
				row[k] = int8(v)
			}
		}
		t.Cells[i] = row
	}
	return t
}
