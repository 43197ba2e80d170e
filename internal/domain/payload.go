package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// DefaultSlots is the number of comparison slots embedded in one response.
const DefaultSlots = 32

// Payload is one participant response after upstream parsing and
// anonymization. Fields holds the per-slot entries keyed systema{i},
// systemb{i}, meaning{i}, dataset{i}, ix{i}, input{i}, outputa{i} and
// outputb{i}. A payload that failed to parse upstream has no Fields.
type Payload struct {
	// TaskUUID is the payload-level task identifier.
	TaskUUID string `json:"task_id"`

	// ParticipantID is the anonymized participant identifier.
	ParticipantID string `json:"prolific_pid"`

	Fields map[string]any `json:"fields"`
}

// Empty reports whether the payload carries no comparison slots.
func (p Payload) Empty() bool { return len(p.Fields) == 0 }

// DecodePayload expands a participant response into its judgments.
// Slots whose systema key is absent are skipped, so a response yields at
// most slots judgments. The meaning flag of every present slot must be a
// bool; anything else fails the whole payload with ErrMalformedSelection.
func DecodePayload(p Payload, slots int) ([]Judgment, error) {
	if p.Empty() {
		return nil, nil
	}
	if slots <= 0 {
		slots = DefaultSlots
	}

	judgments := make([]Judgment, 0, slots)
	for i := range slots {
		rawA, ok := p.Fields[slotKey("systema", i)]
		if !ok {
			continue
		}

		j := Judgment{TaskUUID: p.TaskUUID, ParticipantID: p.ParticipantID}
		fail := func(err error) error { return NewJudgmentError(j, i, err) }

		var err error
		if j.SystemA, err = parseSystemField(rawA); err != nil {
			return nil, fail(err)
		}
		if j.SystemB, err = parseSystemField(p.Fields[slotKey("systemb", i)]); err != nil {
			return nil, fail(err)
		}

		j.Dataset = stringField(p.Fields[slotKey("dataset", i)])
		if j.DatasetIndex, err = intField(p.Fields[slotKey("ix", i)]); err != nil {
			return nil, fail(fmt.Errorf("%w: ix%d: %v", ErrMalformedPayload, i, err))
		}
		j.TaskID = TaskID(j.Dataset, j.DatasetIndex, j.SystemA, j.SystemB)

		flag, ok := p.Fields[slotKey("meaning", i)].(bool)
		if !ok {
			return nil, fail(fmt.Errorf("%w: meaning%d=%v", ErrMalformedSelection, i, p.Fields[slotKey("meaning", i)]))
		}
		j.Selected = SelectionFromFlag(flag)

		j.Input = stringField(p.Fields[slotKey("input", i)])
		j.OutputA = stringField(p.Fields[slotKey("outputa", i)])
		j.OutputB = stringField(p.Fields[slotKey("outputb", i)])

		judgments = append(judgments, j)
	}
	return judgments, nil
}

func slotKey(prefix string, i int) string { return prefix + strconv.Itoa(i) }

func parseSystemField(v any) (System, error) {
	name, ok := v.(string)
	if !ok {
		return SystemUnknown, fmt.Errorf("%w: %v", ErrUnknownSystem, v)
	}
	return ParseSystem(name)
}

func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func intField(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("non-integral index %v", t)
		}
		return int(t), nil
	case json.Number:
		n, err := t.Int64()
		return int(n), err
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("unsupported index type %T", v)
	}
}
