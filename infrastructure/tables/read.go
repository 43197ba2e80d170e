// Package tables reads study inputs from CSV and writes analysis results as
// CSV tables and a JSON report.
package tables

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/logging"
)

// Column names of the responses export.
const (
	ColumnJSON        = "json_string"
	ColumnTaskID      = "task_id"
	ColumnParticipant = "prolific_pid"
)

// ErrMissingColumn is returned when a required CSV column is absent.
var ErrMissingColumn = errors.New("missing column")

// ResponseReader turns a responses export into anonymized payloads.
type ResponseReader struct {
	ids    *domain.IDAllocator
	logger *slog.Logger
}

// NewResponseReader creates a reader that anonymizes participants with
// ids. A nil allocator gets a fresh one.
func NewResponseReader(ids *domain.IDAllocator) *ResponseReader {
	if ids == nil {
		ids = domain.NewIDAllocator()
	}
	return &ResponseReader{ids: ids, logger: logging.New("tables")}
}

// ReadResponses reads one payload per CSV row. The json_string column holds
// the response object; task_id and prolific_pid are taken from their own
// columns when present and from the object otherwise. A row whose object
// cannot be parsed yields an empty payload and a warning.
func (rr *ResponseReader) ReadResponses(r io.Reader) ([]domain.Payload, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("responses: empty input")
		}
		return nil, fmt.Errorf("responses header: %w", err)
	}
	cols := indexColumns(header)
	jsonCol, ok := cols[ColumnJSON]
	if !ok {
		return nil, fmt.Errorf("responses: %w: %s", ErrMissingColumn, ColumnJSON)
	}

	var payloads []domain.Payload
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("responses line %d: %w", line, err)
		}

		p := domain.Payload{
			TaskUUID:      column(rec, cols, ColumnTaskID),
			ParticipantID: column(rec, cols, ColumnParticipant),
		}
		fields, perr := parseResponse(cell(rec, jsonCol))
		if perr != nil {
			rr.logger.Warn("malformed response", slog.Int("line", line), slog.String("task_id", p.TaskUUID), slog.Any("error", perr))
		} else if fields != nil {
			if p.TaskUUID == "" {
				p.TaskUUID = stringValue(fields[ColumnTaskID])
			}
			if p.ParticipantID == "" {
				p.ParticipantID = stringValue(fields[ColumnParticipant])
			}
			delete(fields, ColumnTaskID)
			delete(fields, ColumnParticipant)
			p.Fields = fields
		}

		if p.ParticipantID != "" {
			p.ParticipantID = rr.ids.Anonymize(p.ParticipantID)
		}
		payloads = append(payloads, p)
	}

	rr.logger.Info("responses read", slog.Int("rows", len(payloads)), slog.Int("participants", rr.ids.Len()))
	return payloads, nil
}

// parseResponse decodes one json_string cell. Blank and "nan" cells are
// empty responses, not errors.
func parseResponse(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "nan") {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	return fields, nil
}

// ReadPriorScores reads a published score table with system and
// best_worst_scale columns. Other columns are ignored.
func ReadPriorScores(r io.Reader) ([]domain.SystemScore, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("prior scores header: %w", err)
	}
	cols := indexColumns(header)
	for _, name := range []string{"system", "best_worst_scale"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("prior scores: %w: %s", ErrMissingColumn, name)
		}
	}

	var scores []domain.SystemScore
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("prior scores line %d: %w", line, err)
		}

		sys, err := domain.ParseSystem(column(rec, cols, "system"))
		if err != nil {
			return nil, fmt.Errorf("prior scores line %d: %w", line, err)
		}
		v, err := strconv.ParseFloat(column(rec, cols, "best_worst_scale"), 64)
		if err != nil {
			return nil, fmt.Errorf("prior scores line %d: best_worst_scale: %w", line, err)
		}
		scores = append(scores, domain.SystemScore{System: sys, BestWorstScale: v})
	}
	return scores, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return cols
}

// column returns the trimmed cell of the named column, or "" when the
// column is absent.
func column(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok {
		return ""
	}
	return cell(rec, i)
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
