package testutils

import (
	"fmt"

	"github.com/ahrav/go-qra/internal/domain"
)

// JudgmentOption customises a judgment built by NewJudgment.
type JudgmentOption func(*domain.Judgment)

// WithTaskUUID sets the rendering instance identifier.
func WithTaskUUID(uuid string) JudgmentOption {
	return func(j *domain.Judgment) { j.TaskUUID = uuid }
}

// WithTexts sets the input and output texts.
func WithTexts(input, outputA, outputB string) JudgmentOption {
	return func(j *domain.Judgment) {
		j.Input, j.OutputA, j.OutputB = input, outputA, outputB
	}
}

// NewJudgment builds a judgment with a synthesized task id.
func NewJudgment(participant, dataset string, index int, a, b domain.System, sel domain.Selection, opts ...JudgmentOption) domain.Judgment {
	j := domain.Judgment{
		TaskID:        domain.TaskID(dataset, index, a, b),
		TaskUUID:      "uuid-" + participant,
		ParticipantID: participant,
		Dataset:       dataset,
		DatasetIndex:  index,
		SystemA:       a,
		SystemB:       b,
		Selected:      sel,
	}
	for _, opt := range opts {
		opt(&j)
	}
	return j
}

// OnTask builds a judgment whose TaskID is forced to taskID. It is handy for
// agreement tests that reason about task ids directly.
func OnTask(taskID, participant string, sel domain.Selection) domain.Judgment {
	j := NewJudgment(participant, "ds", 0, domain.SystemVAE, domain.SystemLBOW, sel)
	j.TaskID = taskID
	return j
}

// PayloadFor renders judgments as the raw slot fields of one participant
// response, in slot order.
func PayloadFor(taskUUID, participant string, judgments ...domain.Judgment) domain.Payload {
	fields := make(map[string]any, len(judgments)*8)
	for i, j := range judgments {
		fields[fmt.Sprintf("systema%d", i)] = j.SystemA.String()
		fields[fmt.Sprintf("systemb%d", i)] = j.SystemB.String()
		fields[fmt.Sprintf("meaning%d", i)] = j.Selected == domain.SelectB
		fields[fmt.Sprintf("dataset%d", i)] = j.Dataset
		fields[fmt.Sprintf("ix%d", i)] = float64(j.DatasetIndex)
		fields[fmt.Sprintf("input%d", i)] = j.Input
		fields[fmt.Sprintf("outputa%d", i)] = j.OutputA
		fields[fmt.Sprintf("outputb%d", i)] = j.OutputB
	}
	return domain.Payload{TaskUUID: taskUUID, ParticipantID: participant, Fields: fields}
}
