package units

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-qra/internal/agreement"
	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/logging"
	"github.com/ahrav/go-qra/internal/ports"
)

var _ ports.Unit = (*AgreementUnit)(nil)

// AgreementUnit estimates inter-annotator agreement over the filtered
// judgments.
//
// State Requirements:
//   - domain.KeyFilteredJudgments
//
// State Updates:
//   - domain.KeyAgreement
//
// An undefined coefficient fails the run unless AllowUndefined is set, in
// which case it is recorded as undefined and never coerced to zero.
type AgreementUnit struct {
	name   string
	config AgreementConfig
	tracer trace.Tracer
	logger *slog.Logger
}

// AgreementConfig controls agreement estimation.
type AgreementConfig struct {
	AllowUndefined bool `yaml:"allow_undefined" json:"allow_undefined"`
}

// DefaultAgreementConfig treats an undefined coefficient as fatal.
func DefaultAgreementConfig() AgreementConfig {
	return AgreementConfig{}
}

// NewAgreementUnit creates an agreement unit.
func NewAgreementUnit(name string, config AgreementConfig) (*AgreementUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	return &AgreementUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("agreement-unit"),
		logger: logging.New(TypeAgreement).With(slog.String("unit", name)),
	}, nil
}

// Name returns the unit id.
func (u *AgreementUnit) Name() string { return u.name }

// Execute computes Fleiss' kappa and Krippendorff's alpha.
func (u *AgreementUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := u.tracer.Start(ctx, "AgreementUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", TypeAgreement),
			attribute.String("unit.id", u.name),
			attribute.Bool("config.allow_undefined", u.config.AllowUndefined),
		),
	)
	defer span.End()

	judgments, err := domain.MustGet(state, domain.KeyFilteredJudgments)
	if err != nil {
		return state, fail(span, err)
	}

	report, err := agreement.Estimate(judgments)
	if err != nil {
		if !u.config.AllowUndefined || !errors.Is(err, domain.ErrUndefinedAgreement) {
			return state, fail(span, fmt.Errorf("agreement: %w", err))
		}
		u.logger.WarnContext(ctx, "agreement coefficient undefined", slog.Any("error", err))
	}

	for _, c := range []domain.Coefficient{report.Fleiss, report.Krippendorff} {
		if c.Defined {
			span.SetAttributes(attribute.Float64("agreement."+c.Name, c.Value))
			u.logger.InfoContext(ctx, "agreement", slog.String("coefficient", c.Name), slog.Float64("value", c.Value))
		}
	}
	if report.DuplicateRatings > 0 {
		u.logger.WarnContext(ctx, "duplicate ratings ignored", slog.Int("count", report.DuplicateRatings))
	}
	span.SetAttributes(attribute.Int("agreement.single_rater_items", report.SingleRaterItems))

	return domain.With(state, domain.KeyAgreement, report), nil
}

// Validate checks the configuration.
func (u *AgreementUnit) Validate() error { return nil }

// UnmarshalParameters replaces the configuration from YAML.
func (u *AgreementUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultAgreementConfig()
	if err := decodeParameters(params, &config); err != nil {
		return err
	}
	u.config = config
	return nil
}

// NewAgreementFromConfig creates an AgreementUnit from a configuration map.
func NewAgreementFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultAgreementConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewAgreementUnit(id, cfg)
}
