package application

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/logging"
)

//go:embed default_graph.yaml
var defaultGraphYAML []byte

// DefaultGraphYAML returns the built-in analysis graph configuration.
func DefaultGraphYAML() []byte {
	out := make([]byte, len(defaultGraphYAML))
	copy(out, defaultGraphYAML)
	return out
}

// Inputs are the data an analysis run starts from.
type Inputs struct {
	// Payloads are the anonymized participant responses.
	Payloads []domain.Payload

	// Original holds published scores. Nil skips the reproducibility
	// comparison unless the graph requires it.
	Original []domain.SystemScore
}

// Analyzer runs a compiled graph over study inputs.
type Analyzer struct {
	graph  *Graph
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewAnalyzer compiles the graph at path with loader. An empty path uses
// the embedded default graph.
func NewAnalyzer(ctx context.Context, loader *GraphLoader, path string) (*Analyzer, error) {
	var (
		graph *Graph
		err   error
	)
	if path == "" {
		graph, err = loader.load(ctx, defaultGraphYAML)
	} else {
		graph, err = loader.LoadFromFile(ctx, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	return &Analyzer{
		graph:  graph,
		logger: logging.New("analyzer"),
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// Graph returns the compiled graph.
func (a *Analyzer) Graph() *Graph { return a.graph }

// Run executes the graph once. The returned state carries every key the
// units produced plus the execution context.
func (a *Analyzer) Run(ctx context.Context, in Inputs) (domain.State, error) {
	exec := domain.ExecutionContext{
		GraphID:   a.graph.Name(),
		RunID:     a.newID(),
		StartedAt: a.now(),
	}
	state := domain.NewState().WithExecutionContext(exec)
	state = domain.With(state, domain.KeyPayloads, in.Payloads)
	if in.Original != nil {
		state = domain.With(state, domain.KeyOriginalScores, in.Original)
	}

	logger := a.logger.With(slog.String("run_id", exec.RunID), slog.String("graph", exec.GraphID))
	logger.InfoContext(ctx, "analysis started", slog.Int("payloads", len(in.Payloads)))

	out, err := a.graph.Execute(ctx, state)
	if err != nil {
		logger.ErrorContext(ctx, "analysis failed", slog.Any("error", err))
		return out, fmt.Errorf("run %s: %w", exec.RunID, err)
	}
	logger.InfoContext(ctx, "analysis finished", slog.Duration("elapsed", a.now().Sub(exec.StartedAt)))
	return out, nil
}
