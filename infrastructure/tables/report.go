package tables

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ahrav/go-qra/internal/domain"
)

// File names written by WriteAll.
const (
	FileJudgments    = "judgments.csv"
	FileResults      = "results.csv"
	FileTaskScores   = "task_scores.csv"
	FileCategories   = "fleiss_kappa_matrix.csv"
	FileReliability  = "reliability_data.csv"
	FilePrecision    = "precision.csv"
	FileDatasetUsage = "datasets_used.csv"
	FileReport       = "report.json"
)

// Report is the JSON summary of one analysis run. Sections whose unit did
// not run are omitted.
type Report struct {
	RunID          string                        `json:"run_id,omitempty"`
	GraphID        string                        `json:"graph_id,omitempty"`
	DecodeFailures int                           `json:"decode_failures"`
	Filter         *domain.FilterReport          `json:"filter,omitempty"`
	Agreement      *AgreementSummary             `json:"agreement,omitempty"`
	Significance   *domain.SignificanceResult    `json:"significance,omitempty"`
	Metrics        []domain.SystemMetrics        `json:"system_metrics,omitempty"`
	Reproduce      *domain.ReproducibilityReport `json:"reproducibility,omitempty"`
	DatasetsUsed   []domain.DatasetUsage         `json:"datasets_used,omitempty"`
}

// AgreementSummary is the agreement report without its matrices, which are
// written as separate tables.
type AgreementSummary struct {
	Fleiss           domain.Coefficient `json:"fleiss_kappa"`
	Krippendorff     domain.Coefficient `json:"krippendorff_alpha"`
	SingleRaterItems int                `json:"single_rater_items"`
	DuplicateRatings int                `json:"duplicate_ratings"`
}

// BuildReport collects the report sections present in state.
func BuildReport(state domain.State) Report {
	var rep Report
	if exec, ok := state.GetExecutionContext(); ok {
		rep.RunID, rep.GraphID = exec.RunID, exec.GraphID
	}
	rep.DecodeFailures, _ = domain.Get(state, domain.KeyDecodeFailures)
	if v, ok := domain.Get(state, domain.KeyFilterReport); ok {
		rep.Filter = &v
	}
	if v, ok := domain.Get(state, domain.KeyAgreement); ok {
		rep.Agreement = &AgreementSummary{
			Fleiss:           v.Fleiss,
			Krippendorff:     v.Krippendorff,
			SingleRaterItems: v.SingleRaterItems,
			DuplicateRatings: v.DuplicateRatings,
		}
	}
	if v, ok := domain.Get(state, domain.KeySignificance); ok {
		rep.Significance = &v
	}
	rep.Metrics, _ = domain.Get(state, domain.KeySystemMetrics)
	if v, ok := domain.Get(state, domain.KeyReproducibility); ok {
		rep.Reproduce = &v
	}
	rep.DatasetsUsed, _ = domain.Get(state, domain.KeyDatasetUsage)
	return rep
}

// WriteReport writes rep as indented JSON.
func WriteReport(w io.Writer, rep Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteAll writes every table present in state, plus the JSON report, into
// dir. It returns the paths written.
func WriteAll(dir string, state domain.State) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	emit := func(name string, write func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		werr := write(f)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	var steps []func() error
	if v, ok := domain.Get(state, domain.KeyFilteredJudgments); ok {
		steps = append(steps, func() error { return emit(FileJudgments, func(w io.Writer) error { return WriteJudgments(w, v) }) })
	}
	if v, ok := domain.Get(state, domain.KeySystemMetrics); ok {
		steps = append(steps, func() error { return emit(FileResults, func(w io.Writer) error { return WriteSystemMetrics(w, v) }) })
	}
	if v, ok := domain.Get(state, domain.KeyTaskScores); ok {
		steps = append(steps, func() error { return emit(FileTaskScores, func(w io.Writer) error { return WriteTaskScores(w, v) }) })
	}
	if v, ok := domain.Get(state, domain.KeyAgreement); ok {
		steps = append(steps,
			func() error { return emit(FileCategories, func(w io.Writer) error { return WriteCategoryMatrix(w, v.Categories) }) },
			func() error {
				return emit(FileReliability, func(w io.Writer) error { return WriteReliabilityMatrix(w, v.Reliability) })
			},
		)
	}
	if v, ok := domain.Get(state, domain.KeyReproducibility); ok {
		steps = append(steps, func() error { return emit(FilePrecision, func(w io.Writer) error { return WritePrecision(w, v.Precision) }) })
	}
	if v, ok := domain.Get(state, domain.KeyDatasetUsage); ok {
		steps = append(steps, func() error { return emit(FileDatasetUsage, func(w io.Writer) error { return WriteDatasetUsage(w, v) }) })
	}
	steps = append(steps, func() error { return emit(FileReport, func(w io.Writer) error { return WriteReport(w, BuildReport(state)) }) })

	for _, step := range steps {
		if err := step(); err != nil {
			return written, err
		}
	}
	return written, nil
}
