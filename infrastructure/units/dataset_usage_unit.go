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
	"github.com/ahrav/go-qra/internal/scoring"
)

var _ ports.Unit = (*DatasetUsageUnit)(nil)

// DatasetUsageUnit reports how many distinct items of each dataset were
// judged.
//
// State Requirements:
//   - domain.KeyFilteredJudgments, or domain.KeyJudgments when Source is "all"
//
// State Updates:
//   - domain.KeyDatasetUsage
type DatasetUsageUnit struct {
	name   string
	config DatasetUsageConfig
	tracer trace.Tracer
	logger *slog.Logger
}

// DatasetUsageConfig selects which judgments are counted.
type DatasetUsageConfig struct {
	// Source is "filtered" or "all".
	Source string `yaml:"source" json:"source" validate:"required,oneof=filtered all"`
}

// DefaultDatasetUsageConfig counts the filtered judgments.
func DefaultDatasetUsageConfig() DatasetUsageConfig {
	return DatasetUsageConfig{Source: "filtered"}
}

// NewDatasetUsageUnit creates a dataset usage unit.
func NewDatasetUsageUnit(name string, config DatasetUsageConfig) (*DatasetUsageUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &DatasetUsageUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("dataset-usage-unit"),
		logger: logging.New(TypeDatasetUsage).With(slog.String("unit", name)),
	}, nil
}

// Name returns the unit id.
func (u *DatasetUsageUnit) Name() string { return u.name }

// Execute counts the items.
func (u *DatasetUsageUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := u.tracer.Start(ctx, "DatasetUsageUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", TypeDatasetUsage),
			attribute.String("unit.id", u.name),
			attribute.String("config.source", u.config.Source),
		),
	)
	defer span.End()

	key := domain.KeyFilteredJudgments
	if u.config.Source == "all" {
		key = domain.KeyJudgments
	}
	judgments, err := domain.MustGet(state, key)
	if err != nil {
		return state, fail(span, err)
	}

	usage := scoring.DatasetUsage(judgments)
	for _, d := range usage {
		u.logger.InfoContext(ctx, "dataset used", slog.String("dataset", d.Dataset), slog.Int("items", d.Items))
	}
	span.SetAttributes(attribute.Int("datasets.count", len(usage)))

	return domain.With(state, domain.KeyDatasetUsage, usage), nil
}

// Validate checks the configuration.
func (u *DatasetUsageUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration from YAML.
func (u *DatasetUsageUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultDatasetUsageConfig()
	if err := decodeParameters(params, &config); err != nil {
		return err
	}
	u.config = config
	return nil
}

// NewDatasetUsageFromConfig creates a DatasetUsageUnit from a
// configuration map.
func NewDatasetUsageFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultDatasetUsageConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewDatasetUsageUnit(id, cfg)
}
