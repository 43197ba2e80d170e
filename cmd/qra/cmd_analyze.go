package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-qra/infrastructure/middleware"
	"github.com/ahrav/go-qra/infrastructure/tables"
	"github.com/ahrav/go-qra/internal/application"
	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/logging"
)

type analyzeOptions struct {
	responses   string
	original    string
	outDir      string
	graphPath   string
	metricsFile string
	logLevel    string
	logFormat   string
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the analysis graph over a responses export",
		Long: `Decode the responses export, drop participants who failed an attention
check, score the candidate systems, estimate agreement and, when published
scores are given, quantify reproducibility.

Tables and report.json are written to --out.

Usage:
  qra analyze --responses responses.csv --out results/
  qra analyze --responses responses.csv --original original.csv --out results/
  qra analyze --responses responses.csv --graph graph.yaml --out results/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.responses, "responses", "", "Responses CSV with a json_string column")
	f.StringVar(&opts.original, "original", "", "Published scores CSV (system,best_worst_scale)")
	f.StringVarP(&opts.outDir, "out", "o", "results", "Output directory")
	f.StringVar(&opts.graphPath, "graph", "", "Analysis graph YAML (default: built-in graph)")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format to this path")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	_ = cmd.MarkFlagRequired("responses")
	return cmd
}

func runAnalyze(cmd *cobra.Command, opts analyzeOptions) error {
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	if opts.logFormat != "text" && opts.logFormat != "json" {
		return fmt.Errorf("invalid log format %q: want text or json", opts.logFormat)
	}
	logging.Init(level, opts.logFormat, cmd.ErrOrStderr())
	logger := logging.New("cli")

	payloads, err := readResponses(opts.responses)
	if err != nil {
		return err
	}
	var original []domain.SystemScore
	if opts.original != "" {
		if original, err = readPriorScores(opts.original); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	units := application.NewDefaultUnitRegistry(application.WithMetrics(middleware.NewPrometheusMetrics(reg)))
	loader, err := application.NewGraphLoader(units)
	if err != nil {
		return err
	}
	analyzer, err := application.NewAnalyzer(cmd.Context(), loader, opts.graphPath)
	if err != nil {
		return err
	}

	state, runErr := analyzer.Run(cmd.Context(), application.Inputs{Payloads: payloads, Original: original})

	// Metrics describe failed runs too.
	if opts.metricsFile != "" {
		if err := middleware.WriteTextfile(opts.metricsFile, reg); err != nil {
			logger.Warn("metrics textfile not written", slog.String("path", opts.metricsFile), slog.Any("error", err))
		}
	}
	if runErr != nil {
		return runErr
	}

	written, err := tables.WriteAll(opts.outDir, state)
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	for _, path := range written {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}

func readResponses(path string) ([]domain.Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open responses: %w", err)
	}
	defer f.Close()
	return tables.NewResponseReader(domain.NewIDAllocator()).ReadResponses(f)
}

func readPriorScores(path string) ([]domain.SystemScore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open published scores: %w", err)
	}
	defer f.Close()
	return tables.ReadPriorScores(f)
}
