package domain

import (
	"fmt"
	"strconv"
)

// Selection is a participant's choice within one comparison.
// Only SelectA and SelectB exist; every other value is malformed.
type Selection int8

const (
	// SelectA means the output of system A was preferred.
	SelectA Selection = 0
	// SelectB means the output of system B was preferred.
	SelectB Selection = 1
)

// Valid reports whether s is one of the two outcomes.
func (s Selection) Valid() bool { return s == SelectA || s == SelectB }

// SelectionFromFlag converts the payload's boolean meaning flag.
// false selects A and true selects B.
func SelectionFromFlag(flag bool) Selection {
	if flag {
		return SelectB
	}
	return SelectA
}

// TaskID renders the comparison key shared by every participant who saw the
// same dataset item with the same system pair.
func TaskID(dataset string, index int, a, b System) string {
	return dataset + "-" + strconv.Itoa(index) + "-" + a.String() + "-" + b.String()
}

// DatasetItemID renders the key of one dataset item regardless of the
// systems compared on it.
func DatasetItemID(dataset string, index int) string {
	return dataset + "-" + strconv.Itoa(index)
}

// Judgment is one participant's decision for one comparison slot.
// Judgments are created by DecodePayload and never modified afterwards.
type Judgment struct {
	// TaskID is the synthesized comparison key, see TaskID.
	TaskID string `json:"task_id"`

	// TaskUUID identifies the rendering instance shown to the participant.
	// Several TaskUUIDs may share one TaskID.
	TaskUUID string `json:"task_uuid"`

	// ParticipantID is the anonymized participant identifier.
	ParticipantID string `json:"participant_id"`

	Dataset      string `json:"dataset"`
	DatasetIndex int    `json:"dataset_index"`

	SystemA System `json:"systema"`
	SystemB System `json:"systemb"`

	// Selected is the preferred side.
	Selected Selection `json:"selected_system"`

	Input   string `json:"input"`
	OutputA string `json:"outputa"`
	OutputB string `json:"outputb"`
}

// Winner returns the system the participant preferred.
func (j Judgment) Winner() System {
	if j.Selected == SelectB {
		return j.SystemB
	}
	return j.SystemA
}

// Loser returns the system the participant rejected.
func (j Judgment) Loser() System {
	if j.Selected == SelectB {
		return j.SystemA
	}
	return j.SystemB
}

// IsAttentionCheck reports whether either side is a sentinel system.
func (j Judgment) IsAttentionCheck() bool {
	return j.SystemA.IsSentinel() || j.SystemB.IsSentinel()
}

// ShowsDistractor reports whether the distractor was offered on either side.
func (j Judgment) ShowsDistractor() bool {
	return j.SystemA == SystemDistractor || j.SystemB == SystemDistractor
}

// DatasetItemID returns the key of the dataset item this judgment is about.
func (j Judgment) DatasetItemID() string { return DatasetItemID(j.Dataset, j.DatasetIndex) }

// Validate checks the structural invariants of a judgment.
func (j Judgment) Validate() error {
	verr := NewValidationError("judgment")
	if j.TaskID == "" {
		verr.AddError("task_id is required")
	}
	if j.ParticipantID == "" {
		verr.AddError("participant_id is required")
	}
	if j.SystemA == SystemUnknown || j.SystemB == SystemUnknown {
		verr.AddError("both systems must be known")
	}
	if !j.Selected.Valid() {
		verr.AddError(fmt.Sprintf("selected_system must be 0 or 1, got %d", j.Selected))
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}
