package units

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/logging"
	"github.com/ahrav/go-qra/internal/ports"
	"github.com/ahrav/go-qra/internal/reproducibility"
	"github.com/ahrav/go-qra/internal/scoring"
)

var _ ports.Unit = (*ReproducibilityUnit)(nil)

// ReproducibilityUnit compares the reproduced Best-Worst Scale scores with
// the published ones.
//
// State Requirements:
//   - domain.KeySystemMetrics
//   - domain.KeyOriginalScores, unless RequireOriginal is false
//
// State Updates:
//   - domain.KeyReproducibility
type ReproducibilityUnit struct {
	name   string
	config ReproducibilityConfig
	tracer trace.Tracer
	logger *slog.Logger
}

// ReproducibilityConfig controls the comparison.
type ReproducibilityConfig struct {
	// RangeStart and RangeEnd bound the score scale.
	RangeStart float64 `yaml:"range_start" json:"range_start"`
	RangeEnd   float64 `yaml:"range_end" json:"range_end" validate:"gtfield=RangeStart"`

	// Confidence is the level of the standard deviation interval.
	Confidence float64 `yaml:"confidence" json:"confidence" validate:"gt=0,lt=1"`

	// RequireOriginal fails the unit when no published scores were
	// loaded. When false the unit passes the state through unchanged.
	RequireOriginal bool `yaml:"require_original" json:"require_original"`
}

// DefaultReproducibilityConfig uses the -100..100 scale and 95%
// confidence.
func DefaultReproducibilityConfig() ReproducibilityConfig {
	opts := reproducibility.DefaultOptions()
	return ReproducibilityConfig{
		RangeStart:      opts.RangeStart,
		RangeEnd:        opts.RangeEnd,
		Confidence:      opts.Confidence,
		RequireOriginal: false,
	}
}

// NewReproducibilityUnit creates a reproducibility unit.
func NewReproducibilityUnit(name string, config ReproducibilityConfig) (*ReproducibilityUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ReproducibilityUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("reproducibility-unit"),
		logger: logging.New(TypeReproducibility).With(slog.String("unit", name)),
	}, nil
}

// Name returns the unit id.
func (u *ReproducibilityUnit) Name() string { return u.name }

func (u *ReproducibilityUnit) options() reproducibility.Options {
	return reproducibility.Options{
		RangeStart: u.config.RangeStart,
		RangeEnd:   u.config.RangeEnd,
		Confidence: u.config.Confidence,
	}
}

// Execute runs the comparison.
func (u *ReproducibilityUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := u.tracer.Start(ctx, "ReproducibilityUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", TypeReproducibility),
			attribute.String("unit.id", u.name),
			attribute.Float64("config.range_start", u.config.RangeStart),
			attribute.Float64("config.range_end", u.config.RangeEnd),
		),
	)
	defer span.End()

	original, ok := domain.Get(state, domain.KeyOriginalScores)
	if !ok {
		if u.config.RequireOriginal {
			return state, fail(span, fmt.Errorf("%w: missing %q", domain.ErrInvalidState, domain.KeyOriginalScores.Name()))
		}
		u.logger.InfoContext(ctx, "no published scores loaded, skipping comparison")
		return state, nil
	}
	metrics, err := domain.MustGet(state, domain.KeySystemMetrics)
	if err != nil {
		return state, fail(span, err)
	}

	report, err := reproducibility.Compare(original, scoring.Scores(metrics), u.options())
	if err != nil {
		return state, fail(span, fmt.Errorf("reproducibility: %w", err))
	}

	for _, p := range report.Precision {
		u.logger.InfoContext(ctx, "precision",
			slog.String("system", p.Measurand),
			slog.Float64("cv_star", p.CVStar),
			slog.Float64("std_dev", p.StdDev))
	}
	u.logger.InfoContext(ctx, "correlation",
		slog.Float64("pearson", report.Pearson.Coefficient),
		slog.Float64("pearson_p", report.Pearson.P),
		slog.Float64("spearman", report.Spearman.Coefficient),
		slog.Float64("spearman_p", report.Spearman.P))
	span.SetAttributes(
		attribute.Float64("correlation.pearson", report.Pearson.Coefficient),
		attribute.Float64("correlation.spearman", report.Spearman.Coefficient),
		attribute.Int("systems.count", len(report.Systems)),
	)

	return domain.With(state, domain.KeyReproducibility, report), nil
}

// Validate checks the configuration.
func (u *ReproducibilityUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration from YAML.
func (u *ReproducibilityUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultReproducibilityConfig()
	if err := decodeParameters(params, &config); err != nil {
		return err
	}
	u.config = config
	return nil
}

// NewReproducibilityFromConfig creates a ReproducibilityUnit from a
// configuration map.
func NewReproducibilityFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultReproducibilityConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewReproducibilityUnit(id, cfg)
}
