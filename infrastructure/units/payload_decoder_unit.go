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

	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/logging"
	"github.com/ahrav/go-qra/internal/ports"
)

var _ ports.Unit = (*PayloadDecoderUnit)(nil)

// PayloadDecoderUnit expands participant payloads into judgments.
//
// State Requirements:
//   - domain.KeyPayloads
//
// State Updates:
//   - domain.KeyJudgments: every decoded judgment, attention checks included
//   - domain.KeyDecodeFailures: payloads skipped for a malformed index
//
// A selection flag that is not a bool or an unknown system name fails the
// run with the payload's task UUID and participant attached. A payload
// whose ix field is not an integer fails too, unless SkipMalformed is set,
// in which case it is dropped with a warning and counted.
type PayloadDecoderUnit struct {
	name   string
	config PayloadDecoderConfig
	tracer trace.Tracer
	logger *slog.Logger
}

// PayloadDecoderConfig controls payload decoding.
type PayloadDecoderConfig struct {
	// Slots is the number of comparison slots per payload.
	Slots int `yaml:"slots" json:"slots" validate:"min=1,max=256"`

	// SkipMalformed drops payloads with a non-integral ix field instead
	// of failing. Malformed selections are never skipped. Default: false.
	SkipMalformed bool `yaml:"skip_malformed" json:"skip_malformed"`
}

// DefaultPayloadDecoderConfig returns the 32-slot layout used by the
// study's response form.
func DefaultPayloadDecoderConfig() PayloadDecoderConfig {
	return PayloadDecoderConfig{Slots: domain.DefaultSlots}
}

// NewPayloadDecoderUnit creates a decoder unit.
func NewPayloadDecoderUnit(name string, config PayloadDecoderConfig) (*PayloadDecoderUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &PayloadDecoderUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("payload-decoder-unit"),
		logger: logging.New(TypePayloadDecoder).With(slog.String("unit", name)),
	}, nil
}

// Name returns the unit id.
func (u *PayloadDecoderUnit) Name() string { return u.name }

// Execute decodes every payload in order.
func (u *PayloadDecoderUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := u.tracer.Start(ctx, "PayloadDecoderUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", TypePayloadDecoder),
			attribute.String("unit.id", u.name),
			attribute.Int("config.slots", u.config.Slots),
		),
	)
	defer span.End()

	payloads, err := domain.MustGet(state, domain.KeyPayloads)
	if err != nil {
		return state, fail(span, err)
	}

	var (
		judgments []domain.Judgment
		failures  int
		empty     int
	)
	for _, p := range payloads {
		if err := ctx.Err(); err != nil {
			return state, fail(span, err)
		}
		if p.Empty() {
			empty++
			continue
		}
		js, err := domain.DecodePayload(p, u.config.Slots)
		switch {
		case err == nil:
			judgments = append(judgments, js...)
		case u.config.SkipMalformed && skippable(err):
			failures++
			u.logger.WarnContext(ctx, "skipping malformed payload",
				slog.String("task_uuid", p.TaskUUID),
				slog.String("participant", p.ParticipantID),
				slog.Any("error", err))
		default:
			return state, fail(span, fmt.Errorf("decode payload %s: %w", p.TaskUUID, err))
		}
	}

	u.logger.InfoContext(ctx, "decoded payloads",
		slog.Int("payloads", len(payloads)),
		slog.Int("empty", empty),
		slog.Int("malformed", failures),
		slog.Int("judgments", len(judgments)))
	span.SetAttributes(
		attribute.Int("payloads.count", len(payloads)),
		attribute.Int("payloads.malformed", failures),
		attribute.Int("judgments.count", len(judgments)),
	)

	if judgments == nil {
		judgments = []domain.Judgment{}
	}
	next := domain.With(state, domain.KeyJudgments, judgments)
	return domain.With(next, domain.KeyDecodeFailures, failures), nil
}

// skippable reports whether err only concerns a payload's item index.
func skippable(err error) bool {
	return errors.Is(err, domain.ErrMalformedPayload) && !errors.Is(err, domain.ErrMalformedSelection)
}

// Validate checks the configuration.
func (u *PayloadDecoderUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration from YAML. It is not
// safe to call while the unit is executing.
func (u *PayloadDecoderUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultPayloadDecoderConfig()
	if err := decodeParameters(params, &config); err != nil {
		return err
	}
	u.config = config
	return nil
}

// NewPayloadDecoderFromConfig creates a PayloadDecoderUnit from a
// configuration map.
func NewPayloadDecoderFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultPayloadDecoderConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewPayloadDecoderUnit(id, cfg)
}
