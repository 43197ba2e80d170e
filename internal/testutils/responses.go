package testutils

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ahrav/go-qra/internal/domain"
)

// StudyPayloads renders judgments as one payload per participant, in
// first-seen participant order. Each payload uses the TaskUUID of the
// participant's first judgment.
func StudyPayloads(judgments []domain.Judgment) []domain.Payload {
	var order []string
	byPID := make(map[string][]domain.Judgment)
	for _, j := range judgments {
		if _, ok := byPID[j.ParticipantID]; !ok {
			order = append(order, j.ParticipantID)
		}
		byPID[j.ParticipantID] = append(byPID[j.ParticipantID], j)
	}

	payloads := make([]domain.Payload, 0, len(order))
	for _, pid := range order {
		js := byPID[pid]
		payloads = append(payloads, PayloadFor(js[0].TaskUUID, pid, js...))
	}
	return payloads
}

// WriteResponsesCSV writes payloads in the responses export layout: a
// task_id column and a json_string column holding the response object with
// its prolific_pid.
func WriteResponsesCSV(w io.Writer, payloads []domain.Payload) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"task_id", "json_string"}); err != nil {
		return err
	}
	for _, p := range payloads {
		obj := make(map[string]any, len(p.Fields)+1)
		for k, v := range p.Fields {
			obj[k] = v
		}
		obj["prolific_pid"] = p.ParticipantID

		data, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("payload %s: %w", p.TaskUUID, err)
		}
		if err := cw.Write([]string{p.TaskUUID, string(data)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
