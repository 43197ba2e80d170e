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
	"github.com/ahrav/go-qra/internal/quality"
)

var _ ports.Unit = (*QualityFilterUnit)(nil)

// QualityFilterUnit drops inattentive participants and attention-check
// trials.
//
// State Requirements:
//   - domain.KeyJudgments
//
// State Updates:
//   - domain.KeyFilteredJudgments
//   - domain.KeyFilterReport
type QualityFilterUnit struct {
	name   string
	config QualityFilterConfig
	tracer trace.Tracer
	logger *slog.Logger
}

// QualityFilterConfig controls the quality filter.
type QualityFilterConfig struct {
	// MaxExcludedFraction fails the run when a larger share of the
	// participants is excluded. 1 disables the check.
	MaxExcludedFraction float64 `yaml:"max_excluded_fraction" json:"max_excluded_fraction" validate:"min=0,max=1"`
}

// DefaultQualityFilterConfig never fails on exclusions.
func DefaultQualityFilterConfig() QualityFilterConfig {
	return QualityFilterConfig{MaxExcludedFraction: 1}
}

// NewQualityFilterUnit creates a quality filter unit.
func NewQualityFilterUnit(name string, config QualityFilterConfig) (*QualityFilterUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &QualityFilterUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("quality-filter-unit"),
		logger: logging.New(TypeQualityFilter).With(slog.String("unit", name)),
	}, nil
}

// Name returns the unit id.
func (u *QualityFilterUnit) Name() string { return u.name }

// Execute filters the decoded judgments.
func (u *QualityFilterUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := u.tracer.Start(ctx, "QualityFilterUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", TypeQualityFilter),
			attribute.String("unit.id", u.name),
		),
	)
	defer span.End()

	judgments, err := domain.MustGet(state, domain.KeyJudgments)
	if err != nil {
		return state, fail(span, err)
	}

	res, err := quality.Filter(judgments)
	if err != nil {
		return state, fail(span, fmt.Errorf("quality filter: %w", err))
	}
	rep := res.Report

	participants := distinctParticipants(judgments)
	u.logger.InfoContext(ctx, "filtered judgments",
		slog.Int("before", rep.Before),
		slog.Int("after", rep.After),
		slog.Int("removed_by_exclusion", rep.RemovedByExclusion),
		slog.Int("removed_as_checks", rep.RemovedAsChecks),
		slog.Int("participants", participants),
		slog.Int("excluded_participants", len(rep.ExcludedParticipants)),
		slog.Int("participants_without_checks", rep.ParticipantsWithoutChecks))
	span.SetAttributes(
		attribute.Int("judgments.before", rep.Before),
		attribute.Int("judgments.after", rep.After),
		attribute.Int("participants.excluded", len(rep.ExcludedParticipants)),
	)

	if participants > 0 {
		frac := float64(len(rep.ExcludedParticipants)) / float64(participants)
		if frac > u.config.MaxExcludedFraction {
			return state, fail(span, fmt.Errorf("%w: %d of %d (limit %.2f)",
				ErrTooManyExclusions, len(rep.ExcludedParticipants), participants, u.config.MaxExcludedFraction))
		}
	}

	next := domain.With(state, domain.KeyFilteredJudgments, res.Kept)
	return domain.With(next, domain.KeyFilterReport, rep), nil
}

func distinctParticipants(judgments []domain.Judgment) int {
	seen := make(map[string]struct{})
	for _, j := range judgments {
		seen[j.ParticipantID] = struct{}{}
	}
	return len(seen)
}

// Validate checks the configuration.
func (u *QualityFilterUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration from YAML.
func (u *QualityFilterUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultQualityFilterConfig()
	if err := decodeParameters(params, &config); err != nil {
		return err
	}
	u.config = config
	return nil
}

// NewQualityFilterFromConfig creates a QualityFilterUnit from a
// configuration map.
func NewQualityFilterFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultQualityFilterConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewQualityFilterUnit(id, cfg)
}
